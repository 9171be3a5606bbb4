package diskimage

// FileReader emits a file's data payload by walking its chain, skipping
// the 2-byte link header of every block and honoring the "valid bytes in
// last block" convention (spec §4.9). It does not interpret REL record
// structure or GEOS VLIR record maps; callers combine it with the
// directory entry's side-sector or record-map block for that.
type FileReader struct {
	chain     *Chain
	inBlock   int // read offset within the current block's payload (0..len(payload))
	payload   []byte
	eof       bool
}

// OpenFile starts a FileReader at entry's start block, using its own loop
// detector (spec §4.9 "Opens via a clone of a DirEntry").
func OpenFile(f *Frame, entry *DirEntry) (*FileReader, error) {
	chain, err := StartChain(f, entry.StartBlock)
	if err != nil {
		return nil, wrapErr(KindChain, "OpenFile", err)
	}
	fr := &FileReader{chain: chain}
	fr.loadPayload()
	return fr, nil
}

func (fr *FileReader) loadPayload() {
	data := fr.chain.Data()
	if fr.chain.LastResult() > 0 {
		n := fr.chain.LastResult()
		if n > len(data)-2 {
			n = len(data) - 2
		}
		fr.payload = data[2 : 2+n]
	} else {
		fr.payload = data[2:]
	}
	fr.inBlock = 0
}

// ReadNextBlock copies min(len(buf), remaining-in-block) bytes into buf,
// advancing the chain when the current block is exhausted and more
// buffer space remains. It returns the number of bytes copied, 0 at EOF,
// and a non-nil error only on a chain failure (loop, malformed link).
func (fr *FileReader) ReadNextBlock(buf []byte) (int, error) {
	if fr.eof {
		return 0, nil
	}

	total := 0
	for total < len(buf) {
		remaining := len(fr.payload) - fr.inBlock
		if remaining > 0 {
			n := copy(buf[total:], fr.payload[fr.inBlock:])
			fr.inBlock += n
			total += n
			continue
		}

		if fr.chain.IsDone() {
			fr.eof = true
			break
		}
		prev := fr.chain.Current()
		if err := fr.chain.Advance(); err != nil {
			return total, wrapErr(KindChain, "ReadNextBlock", err)
		}
		if fr.chain.IsDone() && fr.chain.Current() == prev {
			// Chain.Advance reached EndOfChain-as-done with no further
			// payload (LastResult was already consumed on the terminal
			// block before Advance was called).
			fr.eof = true
			break
		}
		fr.loadPayload()
		if len(fr.payload) == 0 {
			fr.eof = true
			break
		}
	}
	return total, nil
}

// Close releases the underlying chain.
func (fr *FileReader) Close() { fr.chain.Close() }
