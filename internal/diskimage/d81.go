package diskimage

// D81 (1581) geometry: a uniform 80 track x 40 sector address space (no
// zone table), one of the two formats (with DNP) that has a super
// side-sector, and the only one whose chdir finisher uses "global" addressing -- a sub-partition
// reuses the whole disk's absolute track/sector numbering, just bounded to
// its own track range, rather than rebasing the LBA origin (spec §4.12,
// grounded on original_source lib/d81.c).

const (
	d81MaxTrack   = 80
	d81Sectors    = 40
	d81InfoOffset = 0x04
)

type d81Geometry struct {
	selectors []BamSelector
	counters  []BamCounterSelector
}

func newD81Geometry() *d81Geometry {
	g := &d81Geometry{}
	g.selectors, g.counters = d81RootBAM()
	return g
}

// d81RootBAM returns the BAM selector pair for a root-opened D81 image:
// side 1 tracks 1-40 described from block 40/1, side 2 tracks 41-80 from
// block 40/2 (grounded on original_source lib/d81.c's static i_d81 table).
func d81RootBAM() ([]BamSelector, []BamCounterSelector) {
	sel := []BamSelector{
		{Block: BlockAddress{Track: 40, Sector: 1, LBA: 39*d81Sectors + 2}, StartTrack: 1, StartOffset: 0x11, Multiplier: 6, DataCount: 5},
		{Block: BlockAddress{Track: 40, Sector: 2, LBA: 39*d81Sectors + 3}, StartTrack: 41, StartOffset: 0x11, Multiplier: 6, DataCount: 5},
	}
	cnt := []BamCounterSelector{
		{Block: BlockAddress{Track: 40, Sector: 1, LBA: 39*d81Sectors + 2}, StartTrack: 1, StartOffset: 0x10, Multiplier: 6},
		{Block: BlockAddress{Track: 40, Sector: 2, LBA: 39*d81Sectors + 3}, StartTrack: 41, StartOffset: 0x10, Multiplier: 6},
	}
	return sel, cnt
}

func (g *d81Geometry) Kind() ImageKind          { return KindD81 }
func (g *d81Geometry) MaxTracks() int           { return d81MaxTrack }
func (g *d81Geometry) BytesPerBlock() int       { return 256 }
func (g *d81Geometry) HasSuperSideSector() bool { return true }
func (g *d81Geometry) IsPartitionTable() bool   { return false }
func (g *d81Geometry) InfoNameOffset() int      { return d81InfoOffset }
func (g *d81Geometry) DirBlock() (int, int)     { return 40, 3 }
func (g *d81Geometry) InfoBlock() (int, int)    { return 40, 0 }
func (g *d81Geometry) MaxLBA() int              { return d81MaxTrack * d81Sectors }

// DirectoryTracks excludes only track 40 (info+BAM+dir) from the
// free-block count; D81 has no second directory track.
func (g *d81Geometry) DirectoryTracks() [2]int { return [2]int{40, 0} }

func (g *d81Geometry) SectorsInTrack(track int) (int, error) {
	if track < 1 || track > d81MaxTrack {
		return 0, errOutOfRange("SectorsInTrack", "track out of range")
	}
	return d81Sectors, nil
}

func (g *d81Geometry) TSToLBA(track, sector int) (uint16, error) {
	if track < 1 || track > d81MaxTrack {
		return 0, errOutOfRange("TSToLBA", "track out of range")
	}
	if sector < 0 || sector >= d81Sectors {
		return 0, errOutOfRange("TSToLBA", "sector out of range")
	}
	return uint16((track-1)*d81Sectors + sector + 1), nil
}

func (g *d81Geometry) LBAToTS(lba uint16) (int, int, error) {
	if lba == 0 || int(lba) > g.MaxLBA() {
		return 0, 0, errOutOfRange("LBAToTS", "lba out of range")
	}
	idx := int(lba) - 1
	return idx/d81Sectors + 1, idx % d81Sectors, nil
}

func (g *d81Geometry) BAMSelectors() []BamSelector               { return g.selectors }
func (g *d81Geometry) BAMCounterSelectors() []BamCounterSelector { return g.counters }

func (g *d81Geometry) probeGEOS(info []byte) (BlockAddress, bool) {
	return probeGEOSInfoBlock(info)
}

// chdirInto implements the 1581-style finisher (spec §4.8, §4.12): the
// partition must start and end on track boundaries, must not overlap the
// parent's own directory track, and the child reuses absolute track
// numbers verbatim ("global" addressing) rather than rebasing the LBA
// origin -- info, both BAM blocks and the directory are simply the
// partition's first four consecutive blocks.
func (g *d81Geometry) chdirInto(child *Frame, first, last BlockAddress, blockCount int, entryType DirEntryType) error {
	if first.Sector != 0 {
		return newErr(KindStructure, "chdirInto(D81)", "partition does not start on a track boundary")
	}
	if int(last.Sector) != d81Sectors-1 {
		return newErr(KindStructure, "chdirInto(D81)", "partition does not end on a track boundary")
	}
	parentDir := child.parent.geom.DirectoryTracks()
	if int(first.Track) <= parentDir[0] && parentDir[0] <= int(last.Track) {
		return newErr(KindStructure, "chdirInto(D81)", "partition overlaps the parent directory track")
	}

	blockAt := func(delta uint16) BlockAddress {
		addr := BlockAddress{LBA: first.LBA + delta}
		if t, s, err := g.LBAToTS(addr.LBA); err == nil {
			addr.Track, addr.Sector = byte(t), byte(s)
		}
		return addr
	}

	child.subdirGlobalAddressing = true
	child.subdirRelativeAddressing = false
	child.blockSubdirFirst = first
	child.blockSubdirLast = last

	infoAddr := blockAt(0)
	if acc, err := newBlockAccessor(child, infoAddr); err == nil {
		child.info = acc
	}
	child.dir = blockAt(3)

	child.bamOverride = []BamSelector{
		{Block: blockAt(1), StartTrack: int(first.Track), StartOffset: 0x11, Multiplier: 6, DataCount: 5},
		{Block: blockAt(2), StartTrack: int(first.Track) + 40, StartOffset: 0x11, Multiplier: 6, DataCount: 5},
	}
	child.countersOverride = []BamCounterSelector{
		{Block: blockAt(1), StartTrack: int(first.Track), StartOffset: 0x10, Multiplier: 6},
		{Block: blockAt(2), StartTrack: int(first.Track) + 40, StartOffset: 0x10, Multiplier: 6},
	}

	if prober, ok := Geometry(g).(geosProber); ok && child.info != nil {
		if border, found := prober.probeGEOS(child.info.data); found {
			if addr, err := child.BlockFromTS(border.Track, border.Sector); err == nil {
				child.geosBorder = addr
				child.hasGEOS = true
			}
		}
	}
	return nil
}

// bamPostPass implements spec §4.10 step 3 / §4.12's D81 rule: when this
// frame is itself a globally-addressed sub-partition, every block outside
// [blockSubdirFirst, blockSubdirLast] belongs to a sibling and must be
// marked used; a block outside that range that is already marked is a
// conflict.
func (g *d81Geometry) bamPostPass(f *Frame) error {
	if !f.subdirGlobalAddressing || f.blockSubdirFirst.LBA == 0 {
		return nil
	}
	var prev BlockAddress
	havePrev := false
	for lba := 1; lba <= g.MaxLBA(); lba++ {
		if lba >= int(f.blockSubdirFirst.LBA) && lba <= int(f.blockSubdirLast.LBA) {
			continue
		}
		t, s, err := g.LBAToTS(uint16(lba))
		if err != nil {
			continue
		}
		cur := BlockAddress{Track: byte(t), Sector: byte(s), LBA: uint16(lba)}
		if f.fat.IsUsed(cur) {
			f.image.diagf("bamPostPass(D81): block %d/%d outside the partition already marked used", t, s)
		}
		if havePrev {
			f.fat.Set(prev, cur)
		}
		prev = cur
		havePrev = true
	}
	if havePrev {
		f.fat.SetTerminal(prev)
	}
	return nil
}
