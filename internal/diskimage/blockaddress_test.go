package diskimage

import "testing"

func TestAdvanceRollsOverTrackBoundary(t *testing.T) {
	geom := openD64(KindD64, 35)
	f := &Frame{geom: geom}

	next, err := f.Advance(BlockAddress{Track: 1, Sector: 20, LBA: 21}) // last sector of track 1 (21 sectors, 0-based 0..20)
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if next.Track != 2 || next.Sector != 0 {
		t.Fatalf("Advance rolled over to %d/%d, want 2/0", next.Track, next.Sector)
	}
}

func TestAdvancePastEndOfImageFails(t *testing.T) {
	geom := openD64(KindD64, 35)
	f := &Frame{geom: geom}

	if _, err := f.Advance(BlockAddress{Track: 35, Sector: 16}); err == nil {
		t.Fatal("expected an error advancing past the last block of a 35-track image")
	}
}

func TestAdvanceInTrackFailsAtTrackEnd(t *testing.T) {
	geom := openD64(KindD64, 35)
	f := &Frame{geom: geom}

	if _, err := f.AdvanceInTrack(BlockAddress{Track: 1, Sector: 20}); err == nil {
		t.Fatal("expected AdvanceInTrack to fail at the last sector of a track")
	}

	next, err := f.AdvanceInTrack(BlockAddress{Track: 1, Sector: 0})
	if err != nil {
		t.Fatalf("AdvanceInTrack: %v", err)
	}
	if next.Sector != 1 {
		t.Fatalf("AdvanceInTrack sector = %d, want 1", next.Sector)
	}
}

// TestAdvanceRelativeAddressingStopsAtPartitionEnd isolates the
// subdirRelativeAddressing rebase branch of Advance (the CMD/DNP/D1M-family
// "rebase the LBA origin" mode): a partition's own geometry may legitimately
// span more tracks than the active sub-partition window, so the rebase
// check is the thing that must stop the walk, not the geometry's own
// MaxTracks.
func TestAdvanceRelativeAddressingStopsAtPartitionEnd(t *testing.T) {
	geom := newDNPGeometryWithTracks(5)
	f := &Frame{
		geom:                      geom,
		subdirRelativeAddressing: true,
		blockSubdirFirst:         BlockAddress{LBA: 1000},
		blockSubdirLast:          BlockAddress{LBA: 1511}, // 1000 .. 1511 = 512 blocks, 2 local tracks
	}

	last, err := f.Advance(BlockAddress{Track: 2, Sector: 254})
	if err != nil {
		t.Fatalf("Advance within the partition window: %v", err)
	}
	if last.Track != 2 || last.Sector != 255 {
		t.Fatalf("Advance landed on %d/%d, want 2/255", last.Track, last.Sector)
	}

	if _, err := f.Advance(last); err == nil {
		t.Fatal("expected Advance to fail stepping past the rebased partition end")
	}
}
