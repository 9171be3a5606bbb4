package diskimage

import "testing"

func TestD64ZoneTableRoundTrip(t *testing.T) {
	g := openD64(KindD64, 35)

	for track := 1; track <= 35; track++ {
		n, err := g.SectorsInTrack(track)
		if err != nil {
			t.Fatalf("SectorsInTrack(%d): %v", track, err)
		}
		for sector := 0; sector < n; sector++ {
			lba, err := g.TSToLBA(track, sector)
			if err != nil {
				t.Fatalf("TSToLBA(%d,%d): %v", track, sector, err)
			}
			gotTrack, gotSector, err := g.LBAToTS(lba)
			if err != nil {
				t.Fatalf("LBAToTS(%d): %v", lba, err)
			}
			if gotTrack != track || gotSector != sector {
				t.Fatalf("round trip %d/%d -> lba %d -> %d/%d", track, sector, lba, gotTrack, gotSector)
			}
		}
	}

	if g.MaxLBA() != 683 {
		t.Fatalf("MaxLBA() = %d, want 683 (standard 35-track D64)", g.MaxLBA())
	}
}

func TestD64SectorsInTrackOutOfRange(t *testing.T) {
	g := openD64(KindD64, 35)
	if _, err := g.SectorsInTrack(36); err == nil {
		t.Fatal("expected an error for a track past the end of a 35-track image")
	}
}

// d64Fixture builds a minimal, fully self-consistent 35-track D64 image
// with one two-block PRG file "HELLO" and a correctly accounted BAM, for
// exercising the directory reader, file reader, and validator together.
type d64Fixture struct {
	buf  []byte
	geom Geometry
}

func newD64Fixture(t *testing.T) *d64Fixture {
	t.Helper()
	g := openD64(KindD64, 35)
	maxLBA := g.MaxLBA()
	buf := make([]byte, maxLBA*256)

	lbaOf := func(track, sector int) int {
		lba, err := g.TSToLBA(track, sector)
		if err != nil {
			t.Fatalf("TSToLBA(%d,%d): %v", track, sector, err)
		}
		return int(lba)
	}
	blockOf := func(track, sector int) []byte {
		off := (lbaOf(track, sector) - 1) * 256
		return buf[off : off+256]
	}

	used := map[[2]int]bool{
		{18, 0}: true, // BAM
		{18, 1}: true, // directory
		{1, 0}:  true, // file block 1
		{1, 1}:  true, // file block 2
	}

	// BAM block: one counter+bitmap group per track, 4 bytes apart,
	// starting at 0x04 (counter) / 0x05 (3-byte bitmap), matching
	// d64Geometry's selector. Every sector starts out free, then the
	// blocks this fixture actually uses are cleared.
	bam := blockOf(18, 0)
	bam[0], bam[1] = 18, 1 // chain link to the first directory block
	for track := 1; track <= 35; track++ {
		n, err := g.SectorsInTrack(track)
		if err != nil {
			t.Fatalf("SectorsInTrack(%d): %v", track, err)
		}
		base := 0x04 + (track-1)*4
		bitmap := bam[base+1 : base+4]
		for s := 0; s < n; s++ {
			bitmap[s/8] |= 1 << uint(s%8)
		}
		free := n
		for s := 0; s < n; s++ {
			if used[[2]int{track, s}] {
				bitmap[s/8] &^= 1 << uint(s%8)
				free--
			}
		}
		bam[base] = byte(free)
	}

	// Directory block: terminal, one PRG entry naming the two-block file.
	dir := blockOf(18, 1)
	dir[0], dir[1] = 0, 0xFF
	slot := dir[0:32]
	slot[0x02] = 0x82 // PRG, closed
	slot[0x03], slot[0x04] = 1, 0
	for i := 0x05; i < 0x15; i++ {
		slot[i] = 0xA0
	}
	copy(slot[0x05:0x15], "HELLO")
	slot[0x1E] = 2 // block count low byte

	// File chain: block 1 links to block 2; block 2 is terminal with 50
	// valid payload bytes.
	b1 := blockOf(1, 0)
	b1[0], b1[1] = 1, 1
	for i := 2; i < 256; i++ {
		b1[i] = byte(i)
	}
	b2 := blockOf(1, 1)
	b2[0], b2[1] = 0, 50
	for i := 2; i < 52; i++ {
		b2[i] = byte(i)
	}

	return &d64Fixture{buf: buf, geom: g}
}

func TestD64DirectoryAndFileReader(t *testing.T) {
	fx := newD64Fixture(t)
	img, err := Open(fx.buf, OpenOptions{Hint: KindD64})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	entry, err := img.Root().Find("HELLO")
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if entry == nil {
		t.Fatal("Find(\"HELLO\") returned nil")
	}
	if entry.Type != DirTypePRG || !entry.Closed {
		t.Fatalf("unexpected entry: type=%v closed=%v", entry.Type, entry.Closed)
	}
	if entry.BlockCount != 2 {
		t.Fatalf("BlockCount = %d, want 2", entry.BlockCount)
	}

	// Case-insensitive lookup.
	if e2, err := img.Root().Find("hello"); err != nil || e2 == nil {
		t.Fatalf("case-insensitive Find failed: entry=%v err=%v", e2, err)
	}

	fr, err := OpenFile(img.Root(), entry)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	defer fr.Close()

	var out []byte
	buf := make([]byte, 64)
	for {
		n, err := fr.ReadNextBlock(buf)
		if err != nil {
			t.Fatalf("ReadNextBlock: %v", err)
		}
		if n == 0 {
			break
		}
		out = append(out, buf[:n]...)
	}
	wantLen := 254 + 50 // block 1 payload (254 bytes) + block 2's 50 valid bytes
	if len(out) != wantLen {
		t.Fatalf("file payload length = %d, want %d", len(out), wantLen)
	}
}

func TestD64BAMGetUsesClearBitAsUsed(t *testing.T) {
	fx := newD64Fixture(t)
	img, err := Open(fx.buf, OpenOptions{Hint: KindD64})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	bam := img.Root().BAM()

	state, err := bam.Get(18, 0)
	if err != nil {
		t.Fatalf("Get(18,0): %v", err)
	}
	if state != BAMUsed {
		t.Fatalf("Get(18,0) = %v, want BAMUsed (block is the BAM sector itself)", state)
	}

	state, err = bam.Get(1, 5)
	if err != nil {
		t.Fatalf("Get(1,5): %v", err)
	}
	if state == BAMUsed {
		t.Fatal("Get(1,5) reported used, but that sector was left free in the fixture")
	}
}

func TestD64ValidateCleanFixture(t *testing.T) {
	fx := newD64Fixture(t)
	img, err := Open(fx.buf, OpenOptions{Hint: KindD64})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	report, err := img.Root().Validate()
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !report.Clean() {
		t.Fatalf("expected a clean validation report, got diagnostics: %v", report.Diagnostics)
	}
}

func TestD64ValidateDetectsBlockCountMismatch(t *testing.T) {
	fx := newD64Fixture(t)
	lba, _ := fx.geom.TSToLBA(18, 1)
	off := (int(lba) - 1) * 256
	fx.buf[off+0x1E] = 99 // directory claims 99 blocks, chain only has 2

	img, err := Open(fx.buf, OpenOptions{Hint: KindD64})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	report, err := img.Root().Validate()
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if report.Clean() {
		t.Fatal("expected the block-count mismatch to be reported")
	}
}

func TestD64ValidateDetectsBAMFATDivergence(t *testing.T) {
	fx := newD64Fixture(t)
	// Flip the BAM bit for block 1/0 to "free" even though the HELLO file
	// chain uses it: bamCheckEquality should catch the divergence.
	bamLBA, _ := fx.geom.TSToLBA(18, 0)
	off := (int(bamLBA) - 1) * 256
	base := 0x04 // track 1's counter/bitmap group
	fx.buf[off+base+1] |= 1 << 0
	fx.buf[off+base] += 1

	img, err := Open(fx.buf, OpenOptions{Hint: KindD64})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	report, err := img.Root().Validate()
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if report.Clean() {
		t.Fatal("expected the BAM/FAT divergence on block 1/0 to be reported")
	}
}
