package diskimage

// D40/D64 family geometry: the 1541-compatible zone table (and the older
// 2040/3040/4040 35-track D40 variant), shared by plain D64 and, via
// d71Geometry embedding *d64Geometry, by D71 (which repeats the same zones
// across both platter sides).
//
// This file used to hold WiCOS64's file-path based D64 reader
// (LoadD64/parseD64/ReadFileRange). That model reads images straight off
// disk with os.File.ReadAt and a path-keyed cache -- useful for a remote
// storage server, but incompatible with this library's buffer-in,
// chain-and-validate-engine shape, and host filesystem I/O is explicitly
// out of scope here. What carried over is the zone-table arithmetic and
// the directory-chain-with-loop-detection shape; both now live across
// this file and chain.go/dir.go in a form that never touches *os.File.

// zoneTable describes sectors-per-track in contiguous descending runs,
// e.g. the 1541 zones 21/19/18/17.
type zoneTable []zone

type zone struct {
	fromTrack, toTrack int // inclusive, 1-based
	sectors            int
}

func (zt zoneTable) sectorsInTrack(track int) (int, error) {
	for _, z := range zt {
		if track >= z.fromTrack && track <= z.toTrack {
			return z.sectors, nil
		}
	}
	return 0, errOutOfRange("SectorsInTrack", "track outside known zones")
}

func (zt zoneTable) maxTrack() int {
	max := 0
	for _, z := range zt {
		if z.toTrack > max {
			max = z.toTrack
		}
	}
	return max
}

// trackStarts builds the cumulative 0-based sector-index a track begins at,
// for tracks 1..n, used by the per-track-table ts<->lba formulas (spec
// §4.1/§4.2: "a precomputed per-track start table").
func (zt zoneTable) trackStarts(maxTrack int) []int {
	starts := make([]int, maxTrack+1) // index 0 unused, 1..maxTrack valid
	cum := 0
	for t := 1; t <= maxTrack; t++ {
		starts[t] = cum
		n, _ := zt.sectorsInTrack(t)
		cum += n
	}
	return starts
}

// d64Zones is the D64/40-track/42-track zone table (spec §4.1: zones
// 21/19/18/17); D40 uses the same shape with the second zone one sector
// wider (21/20/18/17).
var d64Zones = zoneTable{
	{1, 17, 21},
	{18, 24, 19},
	{25, 30, 18},
	{31, 42, 17}, // extended to 42 to cover the 40/42-track dialects
}

var d40Zones = zoneTable{
	{1, 17, 21},
	{18, 24, 20},
	{25, 30, 18},
	{31, 35, 17},
}

// d64Geometry implements Geometry for D40 and D64 (including the 40- and
// 42-track dialects), which share a BAM layout: a single selector rooted
// at track 18 sector 0.
type d64Geometry struct {
	kind        ImageKind
	zones       zoneTable
	maxTrack    int
	starts      []int
	bamSelector BamSelector
	bamCounter  BamCounterSelector
}

func newD64Geometry(kind ImageKind, zones zoneTable, maxTrack int) *d64Geometry {
	bamBlock := BlockAddress{Track: 18, Sector: 0}
	g := &d64Geometry{
		kind:     kind,
		zones:    zones,
		maxTrack: maxTrack,
		starts:   zones.trackStarts(maxTrack),
		bamSelector: BamSelector{
			Block:       bamBlock,
			StartTrack:  1,
			StartOffset: 0x05,
			Multiplier:  4,
			DataCount:   3,
		},
		bamCounter: BamCounterSelector{
			Block:       bamBlock,
			StartTrack:  1,
			StartOffset: 0x04,
			Multiplier:  4,
		},
	}
	if lba, err := g.TSToLBA(18, 0); err == nil {
		g.bamSelector.Block.LBA = lba
		g.bamCounter.Block.LBA = lba
	}
	return g
}

func (g *d64Geometry) Kind() ImageKind      { return g.kind }
func (g *d64Geometry) MaxTracks() int       { return g.maxTrack }
func (g *d64Geometry) BytesPerBlock() int   { return 256 }
func (g *d64Geometry) HasSuperSideSector() bool { return false }
func (g *d64Geometry) IsPartitionTable() bool    { return false }
func (g *d64Geometry) InfoNameOffset() int       { return 0x90 }

func (g *d64Geometry) MaxLBA() int {
	n, _ := g.TSToLBA(g.maxTrack, g.zones.mustSectors(g.maxTrack)-1)
	return int(n)
}

func (zt zoneTable) mustSectors(track int) int {
	n, err := zt.sectorsInTrack(track)
	if err != nil {
		return 0
	}
	return n
}

func (g *d64Geometry) SectorsInTrack(track int) (int, error) { return g.zones.sectorsInTrack(track) }

func (g *d64Geometry) TSToLBA(track, sector int) (uint16, error) {
	if track < 1 || track > g.maxTrack {
		return 0, errOutOfRange("TSToLBA", "track out of range")
	}
	return uint16(g.starts[track] + sector + 1), nil
}

func (g *d64Geometry) LBAToTS(lba uint16) (int, int, error) {
	idx := int(lba) - 1
	for t := 1; t <= g.maxTrack; t++ {
		n := g.starts[t]
		var next int
		if t == g.maxTrack {
			next = n + g.zones.mustSectors(t)
		} else {
			next = g.starts[t+1]
		}
		if idx >= n && idx < next {
			return t, idx - n, nil
		}
	}
	return 0, 0, errOutOfRange("LBAToTS", "lba out of range")
}

func (g *d64Geometry) BAMSelectors() []BamSelector               { return []BamSelector{g.bamSelector} }
func (g *d64Geometry) BAMCounterSelectors() []BamCounterSelector { return []BamCounterSelector{g.bamCounter} }

// DirBlock names the first real directory block (18/1): the BAM/header
// block at 18/0 (InfoBlock) holds the disk name and free-bitmap, not
// directory slots, and is reached separately.
func (g *d64Geometry) DirBlock() (int, int)  { return 18, 1 }
func (g *d64Geometry) InfoBlock() (int, int) { return 18, 0 }

// DirectoryTracks excludes only track 18 (the BAM/header+directory track)
// from the free-block count; D40/D64 have no second directory track.
func (g *d64Geometry) DirectoryTracks() [2]int { return [2]int{18, 0} }

func (g *d64Geometry) probeGEOS(info []byte) (BlockAddress, bool) {
	return probeGEOSInfoBlock(info)
}

// openD64 builds the geometry for a root-opened D40/D64 image of the given
// kind and track count.
func openD64(kind ImageKind, maxTrack int) Geometry {
	zones := d64Zones
	if kind == KindD40 {
		zones = d40Zones
	}
	return newD64Geometry(kind, zones, maxTrack)
}

func maxTrackForD64Size(usableSize int) (int, error) {
	sectors := usableSize / 256
	if sectors < 683 {
		return 0, newErrf(KindGeometry, "Resolve", "unsupported D64 size: too few sectors (%d)", sectors)
	}
	extra := sectors - 683
	if extra%17 != 0 {
		return 0, newErrf(KindGeometry, "Resolve", "unsupported D64 sector count (%d)", sectors)
	}
	tracks := 35 + extra/17
	if tracks < 35 || tracks > 42 {
		return 0, newErrf(KindGeometry, "Resolve", "unsupported D64 track count (%d)", tracks)
	}
	return tracks, nil
}
