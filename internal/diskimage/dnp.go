package diskimage

// CMD native partition (DNP) geometry: a uniform 256-sector track, no zone
// table, whose track count is not implied by file size (DNP images range
// from a few hundred KB up to 16MB) but is stored in the header block
// itself. There is no direct teacher file for this format; the layout
// mirrors the uniform-address-space shape d81.go already establishes,
// generalized to DNP's own header/BAM/dir fixed offsets (spec §4.12).

const (
	dnpSectorsPerTrack = 256
	dnpBAMBlockCount   = 32
	dnpTracksPerBAM    = 8
	dnpMaxTrackOffset  = 8 // byte offset of the track-count field in the first BAM block
)

type dnpGeometry struct {
	maxTrack  int
	selectors []BamSelector
}

// newDNPGeometry builds a root DNP geometry by reading the track count out
// of the header's first BAM block (1/2, LBA 3) before the rest of the
// geometry can be constructed.
func newDNPGeometry(usable []byte) (Geometry, error) {
	const firstBAMLBA = 3 // (track-1)*256+sector+1 for track 1, sector 2
	offset := (firstBAMLBA - 1) * dnpSectorsPerTrack
	if offset+dnpMaxTrackOffset >= len(usable) {
		return nil, newErr(KindGeometry, "Resolve", "DNP image too small to hold a BAM header")
	}
	maxTrack := int(usable[offset+dnpMaxTrackOffset])
	if maxTrack == 0 {
		return nil, newErr(KindGeometry, "Resolve", "DNP image reports zero tracks")
	}
	return newDNPGeometryWithTracks(maxTrack), nil
}

func newDNPGeometryWithTracks(maxTrack int) *dnpGeometry {
	g := &dnpGeometry{maxTrack: maxTrack}
	g.selectors = dnpBAMSelectors(BlockAddress{Track: 1, Sector: 0, LBA: 1})
	return g
}

// dnpBAMSelectors builds the 32 reverse-order bitmap selectors for the
// frame whose 1/0 block is origin: selector i reads block 1/(2+i), so the
// BAM occupies 1/2..1/33, each block covering 8 tracks.
func dnpBAMSelectors(origin BlockAddress) []BamSelector {
	sels := make([]BamSelector, 0, dnpBAMBlockCount)
	for i := 0; i < dnpBAMBlockCount; i++ {
		block := BlockAddress{Track: origin.Track, Sector: origin.Sector + byte(2+i), LBA: origin.LBA + uint16(2+i)}
		sels = append(sels, BamSelector{
			Block:        block,
			StartTrack:   i*dnpTracksPerBAM + 1,
			StartOffset:  0,
			Multiplier:   dnpSectorsPerTrack / 8,
			DataCount:    dnpSectorsPerTrack / 8,
			ReverseOrder: true,
		})
	}
	return sels
}

func (g *dnpGeometry) Kind() ImageKind          { return KindCMDDNP }
func (g *dnpGeometry) MaxTracks() int           { return g.maxTrack }
func (g *dnpGeometry) BytesPerBlock() int       { return 256 }
func (g *dnpGeometry) HasSuperSideSector() bool { return true }
func (g *dnpGeometry) IsPartitionTable() bool   { return false }
func (g *dnpGeometry) InfoNameOffset() int      { return 0x06 }
func (g *dnpGeometry) DirBlock() (int, int)     { return 1, 34 }
func (g *dnpGeometry) InfoBlock() (int, int)    { return 1, 1 }
func (g *dnpGeometry) MaxLBA() int              { return g.maxTrack * dnpSectorsPerTrack }

// DirectoryTracks excludes only track 1 (boot/header/BAM/dir all live
// there) from the free-block count.
func (g *dnpGeometry) DirectoryTracks() [2]int { return [2]int{1, 0} }

func (g *dnpGeometry) SectorsInTrack(track int) (int, error) {
	if track < 1 || track > g.maxTrack {
		return 0, errOutOfRange("SectorsInTrack", "track out of range")
	}
	return dnpSectorsPerTrack, nil
}

func (g *dnpGeometry) TSToLBA(track, sector int) (uint16, error) {
	if track < 1 || track > g.maxTrack {
		return 0, errOutOfRange("TSToLBA", "track out of range")
	}
	if sector < 0 || sector >= dnpSectorsPerTrack {
		return 0, errOutOfRange("TSToLBA", "sector out of range")
	}
	return uint16((track-1)*dnpSectorsPerTrack + sector + 1), nil
}

func (g *dnpGeometry) LBAToTS(lba uint16) (int, int, error) {
	if lba == 0 || int(lba) > g.MaxLBA() {
		return 0, 0, errOutOfRange("LBAToTS", "lba out of range")
	}
	idx := int(lba) - 1
	return idx/dnpSectorsPerTrack + 1, idx % dnpSectorsPerTrack, nil
}

func (g *dnpGeometry) BAMSelectors() []BamSelector               { return g.selectors }
func (g *dnpGeometry) BAMCounterSelectors() []BamCounterSelector { return nil }

func (g *dnpGeometry) probeGEOS(info []byte) (BlockAddress, bool) {
	return probeGEOSInfoBlock(info)
}

// chdirInto implements the "relative" finisher for a DNP partition nested
// inside a D1M/D2M/D4M partition table (spec §4.12): the child's address
// space is rebased so its own track 1 starts at the partition's first
// block, and it gets a fresh header/BAM/dir layout identical in shape to a
// root-opened DNP image.
func (g *dnpGeometry) chdirInto(child *Frame, first, last BlockAddress, blockCount int, entryType DirEntryType) error {
	childTracks := blockCount / dnpSectorsPerTrack
	if childTracks == 0 {
		return newErr(KindStructure, "chdirInto(DNP)", "partition too small to hold a DNP volume")
	}

	child.subdirRelativeAddressing = true
	child.subdirGlobalAddressing = false
	child.blockSubdirFirst = first
	child.blockSubdirLast = last
	child.geom = newDNPGeometryWithTracks(childTracks)

	headerAddr := BlockAddress{Track: 1, Sector: 1}
	if addr, err := child.BlockFromTS(1, 1); err == nil {
		headerAddr = addr
	}
	if acc, err := newBlockAccessor(child, headerAddr); err == nil {
		child.info = acc
	}
	if addr, err := child.BlockFromTS(1, 34); err == nil {
		child.dir = addr
	}

	if prober, ok := child.geom.(geosProber); ok && child.info != nil {
		if border, found := prober.probeGEOS(child.info.data); found {
			if addr, err := child.BlockFromTS(border.Track, border.Sector); err == nil {
				child.geosBorder = addr
				child.hasGEOS = true
			}
		}
	}
	return nil
}

// bamPostPass implements spec §4.10 step 3's DNP rule: only when this
// frame is an active sub-partition, the reserved boot block 1/0 and the
// 31 unlinked BAM blocks 1/3..1/33 are always used (block 1/2 is instead
// reached by the info block's own chain in step 2, so it is excluded
// here).
func (g *dnpGeometry) bamPostPass(f *Frame) error {
	if !f.subdirRelativeAddressing || f.blockSubdirFirst.LBA == 0 {
		return nil
	}

	boot, err := f.BlockFromTS(1, 0)
	if err != nil {
		return wrapErr(KindStructure, "bamPostPass(DNP)", err)
	}
	f.fat.SetTerminal(boot)

	var prev BlockAddress
	for i := 0; i < dnpBAMBlockCount-1; i++ {
		cur, err := f.BlockFromTS(1, byte(3+i))
		if err != nil {
			return wrapErr(KindStructure, "bamPostPass(DNP)", err)
		}
		if i > 0 {
			f.fat.Set(prev, cur)
		}
		prev = cur
	}
	f.fat.SetTerminal(prev)
	return nil
}
