package diskimage

// CMD D1M/D2M/D4M partition-table geometry: a flat directory of
// partitions at 1/0, each slot naming a D64, D71, D81 or DNP ("CNP")
// sub-image by an absolute-LBA/halved-block-count pair rather than a
// track/sector start (spec §3 "DirEntry", §4.8, §4.12). Grounded on
// original_source lib/d1m_d2m_d4m.c; this file used to hold WiCOS64's
// mutable-1581-subdirectory mkdir/rmdir/rename helpers
// (MkdirDirD81/RmdirDirD81/RenameDirD81), which implement in-place image
// write-back -- an explicit non-goal here -- so none of that survives;
// what's kept is the "partitions are just directory-entry metadata, not a
// nested filesystem of their own" shape, regeneralized as a root Geometry.

const d1mRootInfoOffset = 0xF0

type d1mGeometry struct {
	kind       ImageKind
	maxSectors int
}

// newD1MGeometry builds a root D1M/D2M/D4M geometry: a single uniform
// track of maxSectors partition-table slots (40/80/160 for D1M/D2M/D4M
// respectively), the table itself occupying 1/0 with entries following
// directly (grounded on original_source's info_offset_diskname=0xF0,
// dir={1,0}, is_partition_table=1).
func newD1MGeometry(kind ImageKind, maxSectors int) Geometry {
	return &d1mGeometry{kind: kind, maxSectors: maxSectors}
}

func (g *d1mGeometry) Kind() ImageKind          { return g.kind }
func (g *d1mGeometry) MaxTracks() int           { return 1 }
func (g *d1mGeometry) BytesPerBlock() int       { return 256 }
func (g *d1mGeometry) HasSuperSideSector() bool { return false }
func (g *d1mGeometry) IsPartitionTable() bool   { return true }
func (g *d1mGeometry) InfoNameOffset() int      { return d1mRootInfoOffset }
func (g *d1mGeometry) DirBlock() (int, int)     { return 1, 0 }
func (g *d1mGeometry) InfoBlock() (int, int)    { return 1, 0 }
func (g *d1mGeometry) MaxLBA() int              { return g.maxSectors }

// DirectoryTracks excludes the partition table's single track.
func (g *d1mGeometry) DirectoryTracks() [2]int { return [2]int{1, 0} }

func (g *d1mGeometry) SectorsInTrack(track int) (int, error) {
	if track != 1 {
		return 0, errOutOfRange("SectorsInTrack", "D1M/D2M/D4M images have exactly one track")
	}
	return g.maxSectors, nil
}

func (g *d1mGeometry) TSToLBA(track, sector int) (uint16, error) {
	if track != 1 {
		return 0, errOutOfRange("TSToLBA", "D1M/D2M/D4M images have exactly one track")
	}
	if sector < 0 || sector >= g.maxSectors {
		return 0, errOutOfRange("TSToLBA", "sector out of range")
	}
	return uint16(sector + 1), nil
}

func (g *d1mGeometry) LBAToTS(lba uint16) (int, int, error) {
	if lba == 0 || int(lba) > g.maxSectors {
		return 0, 0, errOutOfRange("LBAToTS", "lba out of range")
	}
	return 1, int(lba) - 1, nil
}

func (g *d1mGeometry) BAMSelectors() []BamSelector               { return nil }
func (g *d1mGeometry) BAMCounterSelectors() []BamCounterSelector { return nil }

// chdirInto dispatches to the nested format's own root-geometry
// constructor based on the directory-entry type that named this
// partition, then rebases it relative to the partition's first block
// (spec §4.12 "relative addressing"): the nested image's own track 1
// starts exactly at the partition's first block, same as a file read from
// its own independent root.
func (g *d1mGeometry) chdirInto(child *Frame, first, last BlockAddress, blockCount int, entryType DirEntryType) error {
	child.subdirRelativeAddressing = true
	child.subdirGlobalAddressing = false
	child.blockSubdirFirst = first
	child.blockSubdirLast = last

	switch entryType {
	case DirTypePartD64:
		tracks, err := maxTrackForD64Size(blockCount * 256)
		if err != nil {
			tracks = 35
		}
		child.geom = openD64(KindD64, tracks)
	case DirTypePartD71:
		child.geom = newD71Geometry()
	case DirTypePartD81:
		child.geom = newD81Geometry()
	case DirTypePartCNP:
		childTracks := blockCount / dnpSectorsPerTrack
		if childTracks == 0 {
			return newErr(KindStructure, "chdirInto(D1M)", "partition too small to hold a DNP volume")
		}
		child.geom = newDNPGeometryWithTracks(childTracks)
	default:
		return newErr(KindStructure, "chdirInto(D1M)", "directory entry does not name a partition format this library understands")
	}

	dt, ds := child.geom.DirBlock()
	if addr, err := child.BlockFromTS(byte(dt), byte(ds)); err == nil {
		child.dir = addr
	}
	it, is := child.geom.InfoBlock()
	if infoAddr, err := child.BlockFromTS(byte(it), byte(is)); err == nil {
		if acc, err := newBlockAccessor(child, infoAddr); err == nil {
			child.info = acc
		}
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

// bamPostPass marks every declared, non-deleted partition's range used,
// the same 1581-range algorithm validatePartitionRangeEntry already
// implements for ordinary directories, run here over every slot in the
// partition table itself (spec §4.10 step 3, grounded on
// original_source's cbmimage_i_d1m_d2m_d4m_set_bam temporarily disabling
// relative addressing while marking).
func (g *d1mGeometry) bamPostPass(f *Frame) error {
	dr, err := f.Dir()
	if err != nil {
		return wrapErr(KindStructure, "bamPostPass(D1M)", err)
	}
	rep := &reporter{image: f.image, report: &ValidationReport{}}
	for e := dr.First(); e != nil; {
		if e.Type != DirTypePartNOP {
			f.validatePartitionRangeEntry(rep, e)
		}
		e, err = dr.Next()
		if err != nil {
			break
		}
	}
	for _, d := range rep.report.Diagnostics {
		f.image.diagf("%s", d)
	}
	return nil
}
