package diskimage

// Chain follows a block-to-block link the way every CBM file, directory,
// and side-sector chain is stored: the first two bytes of every block
// name the next one, and a link-track of zero marks the terminal block,
// whose link-sector then holds the count of valid payload bytes (spec §3
// "Chain", §4.5).
type Chain struct {
	frame       *Frame
	loop        *LoopDetector
	accessor    *BlockAccessor
	start       BlockAddress
	done        bool
	looped      bool
	lastResult  int // 0: has successor, >0: valid bytes of terminal block
	lastErr     error
}

// StartChain begins following a chain at block_start, acquiring a fresh
// loop detector scoped to this chain.
func StartChain(f *Frame, start BlockAddress) (*Chain, error) {
	acc, err := f.Accessor(start)
	if err != nil {
		return nil, wrapErr(KindChain, "StartChain", err)
	}

	c := &Chain{
		frame:    f,
		loop:     newLoopDetector(f.geom.MaxLBA()),
		accessor: acc,
		start:    start,
	}
	c.loop.Mark(start)
	c.readCurrent()
	return c, nil
}

func (c *Chain) readCurrent() {
	var next BlockAddress
	err := c.accessor.GetNextBlock(&next)
	if err == nil {
		c.lastResult = 0
		c.lastErr = nil
		return
	}
	var eoc *EndOfChainError
	if asEndOfChain(err, &eoc) {
		c.lastResult = eoc.ValidBytes
		c.lastErr = nil
		return
	}
	c.lastErr = err
	c.done = true
}

func asEndOfChain(err error, out **EndOfChainError) bool {
	e, ok := err.(*EndOfChainError)
	if ok {
		*out = e
	}
	return ok
}

// Advance moves to the next block of the chain. A no-op once the chain is
// Done.
func (c *Chain) Advance() error {
	if c.done {
		return nil
	}

	var next BlockAddress
	err := c.accessor.GetNextBlock(&next)
	if err != nil {
		var eoc *EndOfChainError
		if asEndOfChain(err, &eoc) {
			c.done = true
			c.lastResult = eoc.ValidBytes
			return nil
		}
		c.done = true
		c.lastErr = err
		return err
	}

	if c.loop.Mark(next) {
		c.looped = true
		c.done = true
		return errLoopDetected("Chain.Advance", next)
	}

	if err := c.accessor.SetTo(next); err != nil {
		c.done = true
		c.lastErr = err
		return wrapErr(KindChain, "Chain.Advance", err)
	}
	c.readCurrent()
	return nil
}

// IsDone reports whether the chain has been fully read.
func (c *Chain) IsDone() bool { return c.done }

// IsLoop reports whether the chain terminated because it revisited a
// block rather than by reaching a normal terminator.
func (c *Chain) IsLoop() bool { return c.looped }

// LastResult returns 0 if the current block has a successor, or the
// 1..256 valid-byte count if it is the terminal block.
func (c *Chain) LastResult() int { return c.lastResult }

// Current returns the address of the block the chain is currently on.
func (c *Chain) Current() BlockAddress { return c.accessor.Block() }

// Data returns the raw bytes of the current block.
func (c *Chain) Data() []byte { return c.accessor.Data() }

// Close releases the chain's own loop detector and accessor. It does not
// touch any "global" loop detector the caller may be sharing across
// multiple chains (that remains the caller's responsibility, matching the
// source's cbmimage_chain_close contract).
func (c *Chain) Close() {
	c.loop = nil
	c.accessor = nil
}
