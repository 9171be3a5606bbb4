package diskimage

// BAM block states, spec §4.6.
type BAMState int

const (
	BAMUsed BAMState = iota
	BAMFree
	BAMReallyFree
)

// BAMEngine reads the free-bitmap and free-counter for each track from
// format-defined offsets (spec §4.6).
type BAMEngine struct {
	frame *Frame
}

// BAM returns a BAMEngine bound to f.
func (f *Frame) BAM() *BAMEngine { return &BAMEngine{frame: f} }

func selectBAM(selectors []BamSelector, track int) (*BamSelector, error) {
	var best *BamSelector
	for i := range selectors {
		s := &selectors[i]
		if s.StartTrack <= track && (best == nil || s.StartTrack > best.StartTrack) {
			best = s
		}
	}
	if best == nil {
		return nil, newErrf(KindStructure, "BAM", "no selector covers track %d", track)
	}
	return best, nil
}

func selectBAMCounter(selectors []BamCounterSelector, track int) (*BamCounterSelector, error) {
	var best *BamCounterSelector
	for i := range selectors {
		s := &selectors[i]
		if s.StartTrack <= track && (best == nil || s.StartTrack > best.StartTrack) {
			best = s
		}
	}
	if best == nil {
		return nil, newErrf(KindStructure, "BAM", "no counter selector covers track %d", track)
	}
	return best, nil
}

// reverseBits mirrors one byte so that bit 0 refers to the numerically
// lowest sector (DNP's reverse_order bitmap convention, spec §4.6).
func reverseBits(b byte) byte {
	var out byte
	for i := 0; i < 8; i++ {
		out <<= 1
		out |= b & 1
		b >>= 1
	}
	return out
}

// bitmapFor reads a track's raw bitmap bytes (after any reverse-order
// correction), via the frame's accessor over the selector's block.
func (e *BAMEngine) bitmapFor(track int) ([]byte, error) {
	sel, err := selectBAM(e.frame.effectiveBAMSelectors(), track)
	if err != nil {
		return nil, err
	}
	acc, err := e.frame.Accessor(sel.Block)
	if err != nil {
		return nil, wrapErr(KindStructure, "BAM.bitmapFor", err)
	}
	off := sel.StartOffset + (track-sel.StartTrack)*sel.Multiplier
	data := acc.Data()
	if off < 0 || off+sel.DataCount > len(data) {
		return nil, newErrf(KindStructure, "BAM.bitmapFor", "selector for track %d out of block bounds", track)
	}
	raw := make([]byte, sel.DataCount)
	copy(raw, data[off:off+sel.DataCount])
	if sel.ReverseOrder {
		for i := range raw {
			raw[i] = reverseBits(raw[i])
		}
	}
	return raw, nil
}

// counterFor reads a track's free-block counter, falling back to popcount
// over the bitmap when the geometry has no counter selector (DNP).
func (e *BAMEngine) counterFor(track int) (int, error) {
	counters := e.frame.effectiveBAMCounterSelectors()
	if len(counters) == 0 {
		bits, err := e.bitmapFor(track)
		if err != nil {
			return 0, err
		}
		return popcount(bits), nil
	}
	sel, err := selectBAMCounter(counters, track)
	if err != nil {
		return 0, err
	}
	acc, err := e.frame.Accessor(sel.Block)
	if err != nil {
		return 0, wrapErr(KindStructure, "BAM.counterFor", err)
	}
	off := sel.StartOffset + (track-sel.StartTrack)*sel.Multiplier
	data := acc.Data()
	if off < 0 || off >= len(data) {
		return 0, newErrf(KindStructure, "BAM.counterFor", "counter selector for track %d out of block bounds", track)
	}
	return int(data[off]), nil
}

func popcount(bs []byte) int {
	n := 0
	for _, b := range bs {
		for b != 0 {
			n += int(b & 1)
			b >>= 1
		}
	}
	return n
}

func bitSet(bits []byte, sectorIdx int) bool {
	byteIdx := sectorIdx / 8
	bitIdx := uint(sectorIdx % 8)
	if byteIdx >= len(bits) {
		return false
	}
	return bits[byteIdx]&(1<<bitIdx) != 0
}

// reallyFree implements spec §4.6's BAM_REALLY_FREE "factory empty"
// predicate: all bytes zero, or bytes 1..N are each 0x01 (ignoring byte 0,
// which may carry an informational value such as 0x4B).
func reallyFree(bits []byte) bool {
	allZero := true
	for _, b := range bits {
		if b != 0 {
			allZero = false
			break
		}
	}
	if allZero {
		return true
	}
	if len(bits) < 2 {
		return false
	}
	for _, b := range bits[1:] {
		if b != 0x01 {
			return false
		}
	}
	return true
}

// Get returns this track/sector's classification: BAM_USED when its bit is
// clear; otherwise BAM_REALLY_FREE for a factory-empty track, BAM_FREE
// otherwise (spec §4.6 "bam_get").
func (e *BAMEngine) Get(track, sector int) (BAMState, error) {
	bits, err := e.bitmapFor(track)
	if err != nil {
		return BAMUsed, err
	}
	if !bitSet(bits, sector) {
		return BAMUsed, nil
	}
	if reallyFree(bits) {
		return BAMReallyFree, nil
	}
	return BAMFree, nil
}

// CheckConsistency validates, for every track: no bit set for a
// nonexistent sector, the counter equals the bitmap's popcount, and the
// counter does not exceed the sectors-per-track. It reports every
// violation to the diagnostic sink and returns a non-nil error iff at
// least one was found.
func (e *BAMEngine) CheckConsistency() error {
	f := e.frame
	var firstErr error
	report := func(format string, args ...interface{}) {
		f.image.diagf(format, args...)
		if firstErr == nil {
			firstErr = newErrf(KindStructure, "CheckConsistency", format, args...)
		}
	}

	for track := 1; track <= f.geom.MaxTracks(); track++ {
		inTrack, err := f.geom.SectorsInTrack(track)
		if err != nil {
			continue
		}
		bits, err := e.bitmapFor(track)
		if err != nil {
			report("track %d: %v", track, err)
			continue
		}
		for s := inTrack; s < len(bits)*8; s++ {
			if bitSet(bits, s) {
				report("track %d: BAM bit set for nonexistent sector %d", track, s)
			}
		}
		counter, err := e.counterFor(track)
		if err != nil {
			report("track %d: %v", track, err)
			continue
		}
		pc := popcount(bits)
		if counter != pc {
			report("track %d: BAM counter %d does not match popcount %d", track, counter, pc)
		}
		if counter > inTrack {
			report("track %d: BAM counter %d exceeds sectors-in-track %d", track, counter, inTrack)
		}
	}
	return firstErr
}

// BlocksFree sums the free-block counters over every track that is not a
// directory track (CBM DOS never counts directory tracks toward free
// space).
func (e *BAMEngine) BlocksFree() (int, error) {
	f := e.frame
	dirTracks := f.geom.DirectoryTracks()
	total := 0
	for track := 1; track <= f.geom.MaxTracks(); track++ {
		if track == dirTracks[0] || (dirTracks[1] != 0 && track == dirTracks[1]) {
			continue
		}
		n, err := e.counterFor(track)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}
