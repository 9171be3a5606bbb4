package diskimage

// BamSelector locates a run of bitmap bytes for a contiguous range of
// tracks inside some block. The selector chosen for track t is the one
// with the largest StartTrack <= t among all selectors of a geometry
// (spec §3, "Tie-break").
type BamSelector struct {
	Block        BlockAddress // the block that holds this run of bitmap bytes
	StartTrack   int
	StartOffset  int // byte offset of StartTrack's entry within Block
	Multiplier   int // bytes per track
	DataCount    int // bytes making up one track's bitmap
	ReverseOrder bool
}

// BamCounterSelector locates the one free-block counter byte for a range
// of tracks. Nil CounterSelectors (DNP) mean "compute by popcount".
type BamCounterSelector struct {
	Block       BlockAddress
	StartTrack  int
	StartOffset int
	Multiplier  int // bytes per track
}

// Geometry is the per-format descriptor of spec §3/§4.1: an immutable
// record of how many tracks and sectors-per-track exist, where the BAM,
// info block and directory live, and how T/S maps to LBA. Concrete kinds
// (d64Geometry, d71Geometry, ...) implement this; behavior that varies
// per kind (chdir, the post-validation "always used" pass) is reached via
// the optional partitionChdirer / bamPostPasser interfaces below, mirroring
// the source's per-format function-pointer table with a Go interface.
type Geometry interface {
	Kind() ImageKind
	MaxTracks() int
	MaxLBA() int
	SectorsInTrack(track int) (int, error)
	BytesPerBlock() int
	TSToLBA(track, sector int) (uint16, error)
	LBAToTS(lba uint16) (track, sector int, err error)

	BAMSelectors() []BamSelector
	BAMCounterSelectors() []BamCounterSelector

	// DirBlock names the first real directory-slot block (e.g. D64's
	// 18/1), distinct from InfoBlock (the header/BAM block, e.g. 18/0).
	DirBlock() (track, sector int)
	// DirectoryTracks lists the track(s) BlocksFree excludes from the
	// free-block count (spec §3, original_source's dir_tracks[]); a zero
	// second element means only one track is excluded.
	DirectoryTracks() [2]int
	InfoBlock() (track, sector int)
	InfoNameOffset() int
	HasSuperSideSector() bool
	IsPartitionTable() bool
}

// partitionChdirer is implemented by geometries that know how to finish
// initializing a Frame after a chdir into one of their partition entries
// (spec §4.8's three format-specific finishers).
type partitionChdirer interface {
	chdirInto(child *Frame, first, last BlockAddress, blockCount int, entryType DirEntryType) error
}

// bamPostPasser is implemented by geometries with a format-specific
// "always used" BAM post-pass (spec §4.10 step 3).
type bamPostPasser interface {
	bamPostPass(f *Frame) error
}

// geosProber is implemented by geometries that can detect a GEOS info
// block at their info block's fixed probe offset (0xAD).
type geosProber interface {
	probeGEOS(info []byte) (border BlockAddress, ok bool)
}

// formatTriple is one row of the size-based format-resolution table of
// spec §4.1.
type formatTriple struct {
	size        int64
	errMapBytes int64 // 0 if this kind never carries an error map
	kind        ImageKind
}

// sizeTable lists every (size, kind[, error-map]) combination this
// library recognizes, in the order spec.md enumerates the formats.
var sizeTable = []formatTriple{
	{size: 174848, kind: KindD64},                    // D64, 35 tracks
	{size: 174848, errMapBytes: 683, kind: KindD64},   // D64 + error map
	{size: 196608, kind: KindD64},                     // D64, 40 tracks
	{size: 196608, errMapBytes: 768, kind: KindD64},
	{size: 205312, kind: KindD64},                     // D64, 42 tracks
	{size: 205312, errMapBytes: 802, kind: KindD64},
	{size: 349696, kind: KindD71},                     // D71, 70 tracks
	{size: 349696, errMapBytes: 1366, kind: KindD71},
	{size: 819200, kind: KindD81},                     // D81, 80 tracks x 40
	{size: 533248, kind: KindD80},                     // D80, 77 tracks
	{size: 533248, errMapBytes: 2083, kind: KindD80},
	{size: 1066496, kind: KindD82},                    // D82, 154 tracks
	{size: 1066496, errMapBytes: 4166, kind: KindD82},
}

// resolveByLength classifies a raw buffer by length per spec §4.1: an exact match
// on total length wins; failing that, a match on base_size+block_count
// classifies with an error-map suffix retained-but-unexamined. DNP and the
// D1M family are variable-sized (partition-table driven) and must be
// opened with an explicit Hint.
func resolveByLength(size int) (kind ImageKind, usable int, err error) {
	for _, t := range sizeTable {
		if t.errMapBytes == 0 && int64(size) == t.size {
			return t.kind, size, nil
		}
	}
	for _, t := range sizeTable {
		if t.errMapBytes != 0 && int64(size) == t.size+t.errMapBytes {
			return t.kind, int(t.size), nil
		}
	}
	return KindUnknown, 0, errUnknownFormat(size)
}
