package diskimage

// D71 (1571) geometry: the D64 zone table repeated across both platter
// sides (tracks 1-35 and 36-70), with a second BAM selector and a second,
// seldom-addressed directory track (53 = 18+35) that the validator marks
// wholesale rather than walking as a chain (spec §4.10 step 3, §4.12).
//
// This file used to hold WiCOS64's in-place D71 mutation helpers
// (d71_modify.go/d71_rw.go/d71_write.go cover the rest); those implement
// write-back, an explicit non-goal here, so this file keeps only the D71
// read geometry, rewritten against the in-memory buffer model instead of
// WiCOS64's os.File-backed one.

const (
	d71MaxTrack       = 70
	d71SecondDirTrack = 18 + 35 // track 53
)

type d71Geometry struct {
	*d64Geometry // side 1 zone arithmetic, reused verbatim for side 2
	bamSelector2 BamSelector
	bamCounter2  BamCounterSelector
}

func newD71Geometry() *d71Geometry {
	base := newD64Geometry(KindD71, d64Zones, 35)

	// d64Zones runs to track 42 for the D64 dialects; one 1571 side has 35.
	side := make(zoneTable, 0, len(d64Zones))
	for _, z := range d64Zones {
		if z.toTrack > 35 {
			z.toTrack = 35
		}
		side = append(side, z)
	}
	extended := make(zoneTable, 0, len(side)*2)
	extended = append(extended, side...)
	for _, z := range side {
		extended = append(extended, zone{fromTrack: z.fromTrack + 35, toTrack: z.toTrack + 35, sectors: z.sectors})
	}
	base.zones = extended
	base.maxTrack = d71MaxTrack
	base.starts = base.zones.trackStarts(d71MaxTrack)

	g := &d71Geometry{d64Geometry: base}

	// Side 2's bitmap packs 3 bytes/track with no interleaved counter byte
	// (unlike side 1's 18/0, which interleaves a counter every 4 bytes);
	// the counter for side 2 instead lives back on side 1's BAM block,
	// one byte per track at 18/0+0xDD (original_source lib/d40_d64_d71.c).
	side2BAM, _ := base.TSToLBA(d71SecondDirTrack, 0)
	g.bamSelector2 = BamSelector{
		Block:       BlockAddress{Track: 53, Sector: 0, LBA: side2BAM},
		StartTrack:  36,
		StartOffset: 0x00,
		Multiplier:  3,
		DataCount:   3,
	}
	g.bamCounter2 = BamCounterSelector{
		Block:       g.bamCounter.Block,
		StartTrack:  36,
		StartOffset: 0xDD,
		Multiplier:  1,
	}
	return g
}

func (g *d71Geometry) BAMSelectors() []BamSelector {
	return []BamSelector{g.bamSelector, g.bamSelector2}
}

func (g *d71Geometry) BAMCounterSelectors() []BamCounterSelector {
	return []BamCounterSelector{g.bamCounter, g.bamCounter2}
}

// DirectoryTracks excludes both the side-1 directory track (18) and the
// side-2 directory track (53 = 18+35) from the free-block count.
func (g *d71Geometry) DirectoryTracks() [2]int { return [2]int{18, d71SecondDirTrack} }

// bamPostPass implements spec §4.10 step 3's D71 rule: mark every sector
// of track 53 as used, chained in order, regardless of what the BAM says.
func (g *d71Geometry) bamPostPass(f *Frame) error {
	inTrack, err := g.SectorsInTrack(d71SecondDirTrack)
	if err != nil {
		return wrapErr(KindStructure, "bamPostPass(D71)", err)
	}

	var prev BlockAddress
	for s := 0; s < inTrack; s++ {
		cur, err := f.BlockFromTS(d71SecondDirTrack, byte(s))
		if err != nil {
			return wrapErr(KindStructure, "bamPostPass(D71)", err)
		}
		if s > 0 {
			f.fat.Set(prev, cur)
		}
		prev = cur
	}
	f.fat.SetTerminal(prev)
	return nil
}
