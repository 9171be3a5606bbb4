package diskimage

// D80/D82 (8050/8250) geometry: 77-track zones of 29/27/25/23 sectors,
// D82 repeating the same shape across a second 77-track side for 154
// tracks total, with 4 BAM selectors per spec §4.1.

const d80TracksPerSide = 77

var d80Zones = zoneTable{
	{1, 39, 29},
	{40, 53, 27},
	{54, 64, 25},
	{65, 77, 23},
}

type d80Geometry struct {
	kind      ImageKind
	zones     zoneTable
	maxTrack  int
	starts    []int
	selectors []BamSelector
	counters  []BamCounterSelector
}

func newD80Geometry(kind ImageKind) *d80Geometry {
	maxTrack := d80TracksPerSide
	zones := append(zoneTable{}, d80Zones...)
	if kind == KindD82 {
		maxTrack = d80TracksPerSide * 2
		for _, z := range d80Zones {
			zones = append(zones, zone{fromTrack: z.fromTrack + 77, toTrack: z.toTrack + 77, sectors: z.sectors})
		}
	}

	g := &d80Geometry{
		kind:     kind,
		zones:    zones,
		maxTrack: maxTrack,
		starts:   zones.trackStarts(maxTrack),
	}

	// All BAM blocks live in track 38, sectors 0/3/6/9, one per 50-track
	// span (original_source lib/d80_d82.c); D82's second side reuses the
	// same track 38 blocks rather than a second physical BAM track.
	g.selectors = []BamSelector{
		{Block: BlockAddress{Track: 38, Sector: 0}, StartTrack: 1, StartOffset: 0x07, Multiplier: 5, DataCount: 4},
		{Block: BlockAddress{Track: 38, Sector: 3}, StartTrack: 51, StartOffset: 0x07, Multiplier: 5, DataCount: 4},
	}
	g.counters = []BamCounterSelector{
		{Block: BlockAddress{Track: 38, Sector: 0}, StartTrack: 1, StartOffset: 0x06, Multiplier: 5},
		{Block: BlockAddress{Track: 38, Sector: 3}, StartTrack: 51, StartOffset: 0x06, Multiplier: 5},
	}
	if kind == KindD82 {
		g.selectors = append(g.selectors,
			BamSelector{Block: BlockAddress{Track: 38, Sector: 6}, StartTrack: 101, StartOffset: 0x07, Multiplier: 5, DataCount: 4},
			BamSelector{Block: BlockAddress{Track: 38, Sector: 9}, StartTrack: 151, StartOffset: 0x07, Multiplier: 5, DataCount: 4},
		)
		g.counters = append(g.counters,
			BamCounterSelector{Block: BlockAddress{Track: 38, Sector: 6}, StartTrack: 101, StartOffset: 0x06, Multiplier: 5},
			BamCounterSelector{Block: BlockAddress{Track: 38, Sector: 9}, StartTrack: 151, StartOffset: 0x06, Multiplier: 5},
		)
	}
	for i := range g.selectors {
		g.selectors[i].Block.LBA, _ = g.TSToLBA(int(g.selectors[i].Block.Track), int(g.selectors[i].Block.Sector))
	}
	for i := range g.counters {
		g.counters[i].Block.LBA, _ = g.TSToLBA(int(g.counters[i].Block.Track), int(g.counters[i].Block.Sector))
	}
	return g
}

func (g *d80Geometry) Kind() ImageKind          { return g.kind }
func (g *d80Geometry) MaxTracks() int           { return g.maxTrack }
func (g *d80Geometry) BytesPerBlock() int       { return 256 }
func (g *d80Geometry) HasSuperSideSector() bool { return false }
func (g *d80Geometry) IsPartitionTable() bool   { return false }
func (g *d80Geometry) InfoNameOffset() int      { return 0x06 }

// DirBlock names the first real directory block (39/1): block 39/0
// (InfoBlock) holds the disk name, not directory slots, matching the same
// header/first-dir-block split as D64's 18/0 vs 18/1.
func (g *d80Geometry) DirBlock() (int, int)  { return 39, 1 }
func (g *d80Geometry) InfoBlock() (int, int) { return 39, 0 }

// DirectoryTracks excludes both the header track (39) and the BAM track
// (38) from the free-block count (original_source lib/d80_d82.c).
func (g *d80Geometry) DirectoryTracks() [2]int { return [2]int{39, 38} }

func (g *d80Geometry) SectorsInTrack(track int) (int, error) { return g.zones.sectorsInTrack(track) }

func (g *d80Geometry) MaxLBA() int {
	n, _ := g.TSToLBA(g.maxTrack, g.zones.mustSectors(g.maxTrack)-1)
	return int(n)
}

func (g *d80Geometry) TSToLBA(track, sector int) (uint16, error) {
	if track < 1 || track > g.maxTrack {
		return 0, errOutOfRange("TSToLBA", "track out of range")
	}
	return uint16(g.starts[track] + sector + 1), nil
}

func (g *d80Geometry) LBAToTS(lba uint16) (int, int, error) {
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

func (g *d80Geometry) BAMSelectors() []BamSelector               { return g.selectors }
func (g *d80Geometry) BAMCounterSelectors() []BamCounterSelector { return g.counters }

func (g *d80Geometry) probeGEOS(info []byte) (BlockAddress, bool) {
	return probeGEOSInfoBlock(info)
}
