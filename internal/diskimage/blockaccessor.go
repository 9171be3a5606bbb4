package diskimage

// BlockAccessor resolves a BlockAddress to a mutable byte slice inside the
// image buffer, respecting the active frame's partition rebasing (spec
// §4.3). It may be reassigned to a new address, advanced sector-wise, or
// "followed" via the block's own link header.
type BlockAccessor struct {
	frame *Frame
	block BlockAddress
	data  []byte
}

func resolveOffset(f *Frame, addr BlockAddress) (int, error) {
	lba := addr.LBA
	if f.subdirRelativeAddressing && f.blockSubdirFirst.LBA != 0 {
		lba = lba + f.blockSubdirFirst.LBA - 1
	}

	bpb := f.geom.BytesPerBlock()
	offset := (int(lba)-1)*bpb + f.subdirDataOffset
	if offset < 0 || offset+bpb > len(f.image.buf) {
		return 0, newErrf(KindAddress, "BlockAccessor", "block %d/%d (lba %d) resolves outside the image buffer", addr.Track, addr.Sector, addr.LBA)
	}
	return offset, nil
}

func newBlockAccessor(f *Frame, addr BlockAddress) (*BlockAccessor, error) {
	off, err := resolveOffset(f, addr)
	if err != nil {
		return nil, err
	}
	bpb := f.geom.BytesPerBlock()
	return &BlockAccessor{frame: f, block: addr, data: f.image.buf[off : off+bpb]}, nil
}

// Accessor creates a BlockAccessor at addr on f.
func (f *Frame) Accessor(addr BlockAddress) (*BlockAccessor, error) {
	return newBlockAccessor(f, addr)
}

// Block returns the address this accessor currently points at.
func (a *BlockAccessor) Block() BlockAddress { return a.block }

// Data returns the block-sized byte slice borrowed from the image buffer.
// The slice is only valid for as long as the accessor's frame remains on
// the chdir stack.
func (a *BlockAccessor) Data() []byte { return a.data }

// SetTo reassigns the accessor to a new address without allocating a new
// BlockAccessor.
func (a *BlockAccessor) SetTo(addr BlockAddress) error {
	off, err := resolveOffset(a.frame, addr)
	if err != nil {
		return err
	}
	bpb := a.frame.geom.BytesPerBlock()
	a.block = addr
	a.data = a.frame.image.buf[off : off+bpb]
	return nil
}

// Advance moves this accessor to the next sector in linear order.
func (a *BlockAccessor) Advance() error {
	next, err := a.frame.Advance(a.block)
	if err != nil {
		return err
	}
	return a.SetTo(next)
}

// GetNextBlock inspects the in-block link header (bytes 0-1). When the
// link track is nonzero it resolves and returns that block address (also
// writing it to out if out != nil) with a nil error. When the link track
// is zero, this is the terminal block of its chain and the function
// returns *EndOfChainError carrying the valid-byte count (treating a
// stored 0 as 256, per the chain terminator convention).
func (a *BlockAccessor) GetNextBlock(out *BlockAddress) error {
	linkTrack := a.data[0]
	linkSector := a.data[1]

	if linkTrack == 0 {
		validBytes := int(linkSector)
		if validBytes == 0 {
			validBytes = 256
		}
		return &EndOfChainError{ValidBytes: validBytes}
	}

	next, err := a.frame.BlockFromTS(linkTrack, linkSector)
	if err != nil {
		return wrapErr(KindChain, "GetNextBlock", err)
	}
	if out != nil {
		*out = next
	}
	return nil
}
