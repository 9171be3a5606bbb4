package diskimage

import "time"

// DirEntryType is the low-nibble file-type code of a directory slot, plus
// the partition-table variants a D1M/D2M/D4M partition-table slot can
// carry (spec §3 "DirEntry").
type DirEntryType int

const (
	DirTypeDEL DirEntryType = iota
	DirTypeSEQ
	DirTypePRG
	DirTypeUSR
	DirTypeREL
	DirTypeCBM
	DirTypeNAT
	DirTypePartNOP
	DirTypePartCNP
	DirTypePartD64
	DirTypePartD71
	DirTypePartD81
	DirTypePartSYS
)

func dirEntryTypeFromByte(b byte) DirEntryType {
	switch b & 0x0F {
	case 0x00:
		return DirTypeDEL
	case 0x01:
		return DirTypeSEQ
	case 0x02:
		return DirTypePRG
	case 0x03:
		return DirTypeUSR
	case 0x04:
		return DirTypeREL
	case 0x05:
		return DirTypeCBM
	case 0x06:
		return DirTypeNAT
	case 0x07:
		return DirTypePartNOP
	case 0x08:
		return DirTypePartCNP
	case 0x09:
		return DirTypePartD64
	case 0x0A:
		return DirTypePartD71
	case 0x0B:
		return DirTypePartD81
	default:
		return DirTypePartSYS
	}
}

// DirEntry is the user-visible decoding of one 32-byte directory slot
// (spec §3 "DirEntry", §4.8).
type DirEntry struct {
	frame *Frame

	Type   DirEntryType
	Locked bool
	Closed bool

	Name  string
	Extra string

	StartBlock BlockAddress
	BlockCount uint16

	HasDateTime bool
	DateTime    time.Time

	// REL-only.
	SideSector BlockAddress
	RecordLen  byte

	// GEOS-only.
	IsGEOS        bool
	GEOSFileType  byte
	GEOSIsVLIR    bool
	GEOSInfoBlock BlockAddress

	// Partition-table slots only.
	partitionStartLow  uint16
	partitionCountLow  uint16
	rawSlot            [32]byte
}

func decodeDirEntry(f *Frame, slot []byte) *DirEntry {
	typeByte := slot[0x02]
	e := &DirEntry{
		frame:  f,
		Type:   dirEntryTypeFromByte(typeByte),
		Locked: typeByte&0x40 != 0,
		Closed: typeByte&0x80 != 0,
	}
	copy(e.rawSlot[:], slot)

	startTrack := slot[0x03]
	startSector := slot[0x04]
	if addr, err := f.BlockFromTS(startTrack, startSector); err == nil {
		e.StartBlock = addr
	} else {
		e.StartBlock = BlockAddress{Track: startTrack, Sector: startSector}
	}

	name, extra := decodeName(slot[0x05:0x15])
	e.Name = name
	e.Extra = extra

	if e.Type < DirTypeREL {
		if slot[0x15] != 0 || slot[0x16] != 0 {
			e.GEOSFileType = slot[0x15]
			e.GEOSIsVLIR = slot[0x16] == 1
			e.IsGEOS = true
			if addr, err := f.BlockFromTS(slot[0x15], slot[0x16]); err == nil {
				e.GEOSInfoBlock = addr
			}
		}
	}
	if e.Type == DirTypeREL {
		if addr, err := f.BlockFromTS(slot[0x15], slot[0x16]); err == nil {
			e.SideSector = addr
		}
		e.RecordLen = slot[0x17]
	}

	y, mo, d, h, mi := slot[0x17], slot[0x18], slot[0x19], slot[0x1A], slot[0x1B]
	if y != 0 || mo != 0 || d != 0 || h != 0 || mi != 0 {
		year := int(y)
		if year <= 83 {
			year += 2000
		} else {
			year += 1900
		}
		e.HasDateTime = true
		e.DateTime = time.Date(year, time.Month(mo), int(d), int(h), int(mi), 0, 0, time.UTC)
	}

	e.BlockCount = uint16(slot[0x1E]) | uint16(slot[0x1F])<<8

	// Partition-table variant fields, decoded alongside the normal fields:
	// only consulted by PartitionRange when this slot lives in a
	// partition-table frame.
	e.partitionStartLow = uint16(slot[0x03]) | uint16(slot[0x04])<<8
	e.partitionCountLow = uint16(slot[0x1E]) | uint16(slot[0x1F])<<8

	return e
}

// isFullyDeleted implements spec §4.8's "fully deleted" predicate: type 0,
// not locked, not closed, zero start track, zero first name byte.
func isFullyDeleted(slot []byte) bool {
	typeByte := slot[0x02]
	if typeByte != 0x00 {
		return false
	}
	if slot[0x03] != 0 {
		return false
	}
	if slot[0x05] != 0 {
		return false
	}
	return true
}

// PartitionRange decodes this entry as a partition-table slot (spec §4.8
// "Partition-table slot variant"): start-LBA and block count are each
// stored pre-halved, doubled-and-offset back on read. No bounds check is
// performed here against the image size -- the source has none either,
// and spec.md's Open Question 2 asks that this be preserved rather than
// silently clamped; validatePartitionRangeEntry is where an out-of-range
// result first surfaces as a diagnostic.
func (e *DirEntry) PartitionRange() (first, last BlockAddress, blockCount int, err error) {
	if e.frame.geom.IsPartitionTable() {
		startLBA := e.partitionStartLow*2 + 1
		count := int(e.partitionCountLow) * 2
		first = BlockAddress{LBA: startLBA}
		last = BlockAddress{LBA: startLBA + uint16(count) - 1}
		if t, s, terr := e.frame.geom.LBAToTS(first.LBA); terr == nil {
			first.Track, first.Sector = byte(t), byte(s)
		}
		if t, s, terr := e.frame.geom.LBAToTS(last.LBA); terr == nil {
			last.Track, last.Sector = byte(t), byte(s)
		}
		return first, last, count, nil
	}

	// A 1581/1541/1571/CMD partition named from an ordinary directory: the
	// entry's start block and block count directly describe the range
	// (spec §4.10 "treat block_count as authoritative").
	first = e.StartBlock
	count := int(e.BlockCount)
	if count <= 0 {
		return Unused, Unused, 0, newErr(KindStructure, "PartitionRange", "zero-length partition")
	}
	lastLBA := first.LBA + uint16(count) - 1
	last = BlockAddress{LBA: lastLBA}
	if t, s, terr := e.frame.geom.LBAToTS(lastLBA); terr == nil {
		last.Track, last.Sector = byte(t), byte(s)
	}
	return first, last, count, nil
}

// DirReader streams directory entries in on-disk order (spec §4.8).
type DirReader struct {
	frame   *Frame
	loop    *LoopDetector
	block   *BlockAccessor
	offset  int
	done    bool
	current *DirEntry
}

// Dir opens a DirReader over f's current directory.
func (f *Frame) Dir() (*DirReader, error) {
	acc, err := f.Accessor(f.dir)
	if err != nil {
		return nil, wrapErr(KindStructure, "Dir", err)
	}
	r := &DirReader{
		frame: f,
		loop:  newLoopDetector(f.geom.MaxLBA()),
		block: acc,
	}
	r.loop.Mark(f.dir)
	if err := r.advanceToNextValid(true); err != nil {
		return nil, err
	}
	return r, nil
}

// First returns the first (non-fully-deleted) entry, or nil at end of
// directory.
func (r *DirReader) First() *DirEntry { return r.current }

// Next advances to the next (non-fully-deleted) entry and returns it, or
// nil at end of directory.
func (r *DirReader) Next() (*DirEntry, error) {
	if r.done {
		return nil, nil
	}
	if err := r.advanceOffset(); err != nil {
		return nil, err
	}
	if err := r.advanceToNextValid(false); err != nil {
		return nil, err
	}
	return r.current, nil
}

func (r *DirReader) advanceOffset() error {
	r.offset += 32
	if r.offset >= r.frame.geom.BytesPerBlock() {
		var next BlockAddress
		err := r.block.GetNextBlock(&next)
		if err != nil {
			r.done = true
			return nil
		}
		if r.loop.Mark(next) {
			r.done = true
			return errLoopDetected("DirReader", next)
		}
		if err := r.block.SetTo(next); err != nil {
			r.done = true
			return wrapErr(KindStructure, "DirReader", err)
		}
		r.offset = 0
	}
	return nil
}

func (r *DirReader) advanceToNextValid(first bool) error {
	for {
		if r.offset >= r.frame.geom.BytesPerBlock() {
			if err := r.advanceOffset(); err != nil {
				return err
			}
			if r.done {
				r.current = nil
				return nil
			}
		}
		slot := r.block.Data()[r.offset : r.offset+32]
		if isFullyDeleted(slot) {
			if err := r.advanceOffset(); err != nil {
				return err
			}
			if r.done {
				r.current = nil
				return nil
			}
			continue
		}
		r.current = decodeDirEntry(r.frame, slot)
		return nil
	}
}

// Find looks up an entry by case-insensitive name, walking the whole
// directory.
func (f *Frame) Find(name string) (*DirEntry, error) {
	target := foldName(name)
	r, err := f.Dir()
	if err != nil {
		return nil, err
	}
	for e := r.First(); ; e, err = r.Next() {
		if err != nil {
			return nil, err
		}
		if e == nil {
			return nil, nil
		}
		if foldName(e.Name) == target {
			return e, nil
		}
	}
}
