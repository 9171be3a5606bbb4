package diskimage

// BlockAddress is a block named two ways at once: the hardware-native
// (track, sector) pair and the 1-based linear LBA. Both are valid
// simultaneously; track == 0 or lba == 0 denotes "unused/invalid".
type BlockAddress struct {
	Track  byte
	Sector byte
	LBA    uint16
}

// Unused is the zero BlockAddress, used as a sentinel throughout (e.g. a
// chain's "next block" once the chain is done).
var Unused = BlockAddress{}

// IsUnused reports whether b names no real block on any frame.
func (b BlockAddress) IsUnused() bool {
	return b.Track == 0 || b.LBA == 0
}

// BlockFromTS resolves a (track, sector) pair on f's active geometry to a
// BlockAddress, failing with KindAddress when out of range.
func (f *Frame) BlockFromTS(track, sector byte) (BlockAddress, error) {
	maxTracks := f.geom.MaxTracks()
	if track == 0 || int(track) > maxTracks {
		return Unused, errOutOfRange("BlockFromTS", "track out of range")
	}
	inTrack, err := f.geom.SectorsInTrack(int(track))
	if err != nil {
		return Unused, wrapErr(KindAddress, "BlockFromTS", err)
	}
	if int(sector) >= inTrack {
		return Unused, errOutOfRange("BlockFromTS", "sector out of range")
	}
	lba, err := f.geom.TSToLBA(int(track), int(sector))
	if err != nil {
		return Unused, wrapErr(KindAddress, "BlockFromTS", err)
	}
	return BlockAddress{Track: track, Sector: sector, LBA: lba}, nil
}

// BlockFromLBA is the inverse of BlockFromTS.
func (f *Frame) BlockFromLBA(lba uint16) (BlockAddress, error) {
	if lba == 0 || int(lba) > f.geom.MaxLBA() {
		return Unused, errOutOfRange("BlockFromLBA", "lba out of range")
	}
	track, sector, err := f.geom.LBAToTS(lba)
	if err != nil {
		return Unused, wrapErr(KindAddress, "BlockFromLBA", err)
	}
	return BlockAddress{Track: byte(track), Sector: byte(sector), LBA: lba}, nil
}

// Advance moves to the next sector in linear (track,sector) order: sector
// increments, and on overflow sector resets to 0 and track increments. It
// fails with KindAddress when b is the last block of the frame's visible
// region (the whole image normally, or up to block_subdir_last when a
// relative sub-partition is active).
func (f *Frame) Advance(b BlockAddress) (BlockAddress, error) {
	inTrack, err := f.geom.SectorsInTrack(int(b.Track))
	if err != nil {
		return Unused, wrapErr(KindAddress, "Advance", err)
	}

	next := b
	if int(b.Sector)+1 < inTrack {
		next.Sector = b.Sector + 1
	} else {
		next.Track = b.Track + 1
		next.Sector = 0
	}

	if int(next.Track) > f.geom.MaxTracks() {
		return Unused, errEndOfImage("Advance")
	}

	lba, err := f.geom.TSToLBA(int(next.Track), int(next.Sector))
	if err != nil {
		return Unused, wrapErr(KindAddress, "Advance", err)
	}
	next.LBA = lba

	if f.subdirRelativeAddressing && f.blockSubdirFirst.LBA != 0 {
		rebased := next.LBA + f.blockSubdirFirst.LBA - 1
		if rebased > f.blockSubdirLast.LBA {
			return Unused, errEndOfPartition("Advance")
		}
	}

	return next, nil
}

// AdvanceInTrack is like Advance but fails with KindAddress at the end of
// the current track rather than rolling over into the next one.
func (f *Frame) AdvanceInTrack(b BlockAddress) (BlockAddress, error) {
	inTrack, err := f.geom.SectorsInTrack(int(b.Track))
	if err != nil {
		return Unused, wrapErr(KindAddress, "AdvanceInTrack", err)
	}
	if int(b.Sector)+1 >= inTrack {
		return Unused, errEndOfTrack("AdvanceInTrack")
	}
	next := b
	next.Sector = b.Sector + 1
	lba, err := f.geom.TSToLBA(int(next.Track), int(next.Sector))
	if err != nil {
		return Unused, wrapErr(KindAddress, "AdvanceInTrack", err)
	}
	next.LBA = lba
	return next, nil
}

// AddDelta rebases result by delta's LBA the way a relatively addressed
// (CMD-style) sub-partition maps a block between its own frame and the
// parent's: result.LBA += delta.LBA - 1. The block accessor and
// Frame.Advance apply the same formula inline rather than calling this.
func AddDelta(result, delta BlockAddress) BlockAddress {
	result.LBA = result.LBA + delta.LBA - 1
	return result
}
