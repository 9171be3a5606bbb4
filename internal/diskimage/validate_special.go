package diskimage

// validateRelFile cross-checks a REL file's side-sector (and, on 1581/CMD,
// super-side-sector) structure against its already-followed data chain
// (spec §4.10's REL bullet, grounded on original_source's side-sector
// self-index and record-length checks). dataBlocks is the ordered list of
// blocks validateEntry's generic chain-follow already walked and marked.
func (f *Frame) validateRelFile(rep *reporter, e *DirEntry, dataBlocks []BlockAddress) {
	if e.SideSector.IsUnused() {
		rep.logf("REL file %q has no side-sector pointer", e.Name)
		return
	}

	acc, err := f.Accessor(e.SideSector)
	if err != nil {
		rep.logf("REL file %q: side-sector block: %v", e.Name, err)
		return
	}

	if f.geom.HasSuperSideSector() && acc.Data()[0x02] == 0xFE {
		f.validateSuperSideSector(rep, e, acc.Block(), dataBlocks)
		return
	}

	f.validateSideSectorGroup(rep, e, acc.Block(), dataBlocks, 0)
}

// validateSuperSideSector follows a super-side-sector's up-to-6 group
// pointers, validating each group's side-sector chain against the
// corresponding slice of dataBlocks.
func (f *Frame) validateSuperSideSector(rep *reporter, e *DirEntry, super BlockAddress, dataBlocks []BlockAddress) {
	if f.fat.IsUsed(super) {
		rep.logf("REL file %q: super-side-sector %d/%d already marked used", e.Name, super.Track, super.Sector)
	}
	f.fat.SetTerminal(super)

	acc, err := f.Accessor(super)
	if err != nil {
		rep.logf("REL file %q: super-side-sector: %v", e.Name, err)
		return
	}
	data := acc.Data()

	dataOffset := 0
	for g := 0; g < 6; g++ {
		t, s := data[0x04+2*g], data[0x05+2*g]
		if t == 0 {
			break
		}
		groupFirst, err := f.BlockFromTS(t, s)
		if err != nil {
			rep.logf("REL file %q: super-side-sector group %d pointer: %v", e.Name, g, err)
			continue
		}
		consumed := f.validateSideSectorGroup(rep, e, groupFirst, dataBlocks, dataOffset)
		dataOffset += consumed
	}
}

// validateSideSectorGroup walks one side-sector chain (up to 6 blocks),
// checking each block's self-reported record length and shared-area
// self-index, and cross-validates its link table against
// dataBlocks[dataOffset:] in order. It returns how many data blocks this
// group's link table consumed.
func (f *Frame) validateSideSectorGroup(rep *reporter, e *DirEntry, groupFirst BlockAddress, dataBlocks []BlockAddress, dataOffset int) int {
	consumed := 0
	var sharedArea [12]byte
	haveShared := false

	cur := groupFirst
	for idx := 0; idx < 6; idx++ {
		if f.fat.IsUsed(cur) {
			rep.logf("REL file %q: side sector %d/%d already marked used", e.Name, cur.Track, cur.Sector)
		}

		acc, err := f.Accessor(cur)
		if err != nil {
			rep.logf("REL file %q: side sector: %v", e.Name, err)
			return consumed
		}
		data := acc.Data()

		if data[0x03] != e.RecordLen {
			rep.logf("REL file %q: side sector %d/%d record length %d does not match directory record length %d",
				e.Name, cur.Track, cur.Sector, data[0x03], e.RecordLen)
		}

		if !haveShared {
			copy(sharedArea[:], data[0x04:0x10])
			haveShared = true
		} else if string(data[0x04:0x10]) != string(sharedArea[:]) {
			rep.logf("REL file %q: side sector %d/%d shared area does not match group", e.Name, cur.Track, cur.Sector)
		}
		if sharedArea[2*idx] != cur.Track || sharedArea[2*idx+1] != cur.Sector {
			rep.logf("REL file %q: side sector %d/%d does not report itself at its own index %d", e.Name, cur.Track, cur.Sector, idx)
		}

		for off := 0x10; off+1 < len(data); off += 2 {
			t, s := data[off], data[off+1]
			if t == 0 && s == 0 {
				break
			}
			if dataOffset+consumed >= len(dataBlocks) {
				rep.logf("REL file %q: side sector %d/%d link table has more entries than the data chain", e.Name, cur.Track, cur.Sector)
				break
			}
			want := dataBlocks[dataOffset+consumed]
			if t != want.Track || s != want.Sector {
				rep.logf("REL file %q: side sector %d/%d link table entry %d/%d does not match data chain block %d/%d",
					e.Name, cur.Track, cur.Sector, t, s, want.Track, want.Sector)
			}
			consumed++
		}

		linkTrack := data[0]
		if linkTrack == 0 {
			f.fat.SetTerminal(cur)
			break
		}
		next, err := f.BlockFromTS(linkTrack, data[1])
		if err != nil {
			rep.logf("REL file %q: side sector %d/%d link: %v", e.Name, cur.Track, cur.Sector, err)
			break
		}
		f.fat.Set(cur, next)
		cur = next
	}
	return consumed
}

// validateGeosFile walks a VLIR record map (entry.StartBlock, already
// marked as the file's single primary-chain block by the generic
// follow-chain pass) and, separately, the GEOS info block. It returns the
// number of additional blocks found (every VLIR sub-chain block plus the
// info block), which the caller adds to the primary chain's count before
// comparing against the directory's declared block_count (spec §4.10's
// GEOS bullet).
func (f *Frame) validateGeosFile(rep *reporter, e *DirEntry) int {
	extra := 0

	if !e.GEOSInfoBlock.IsUnused() {
		if f.fat.IsUsed(e.GEOSInfoBlock) {
			rep.logf("GEOS file %q: info block %d/%d already marked used", e.Name, e.GEOSInfoBlock.Track, e.GEOSInfoBlock.Sector)
		}
		f.fat.SetTerminal(e.GEOSInfoBlock)
		extra++
	}

	if !e.GEOSIsVLIR {
		return extra
	}

	acc, err := f.Accessor(e.StartBlock)
	if err != nil {
		rep.logf("GEOS file %q: record map: %v", e.Name, err)
		return extra
	}
	data := acc.Data()

	pastEnd := false
	for i := 0; i+1 < len(data)-2; i += 2 {
		t, s := data[2+i], data[2+i+1]

		if pastEnd {
			if t != 0 || s != 0 {
				rep.logf("GEOS file %q: record map has a non-terminator entry after the first (0,0)", e.Name)
			}
			continue
		}

		switch {
		case t == 0 && s == 0:
			pastEnd = true
		case t == 0 && s == 0xFF:
			// Missing record: no sub-chain to follow.
		default:
			addr, err := f.BlockFromTS(t, s)
			if err != nil {
				rep.logf("GEOS file %q: record map entry: %v", e.Name, err)
				continue
			}
			_, n, err := f.followChainInto(addr)
			if err != nil {
				rep.logf("GEOS file %q: record chain at %d/%d: %v", e.Name, t, s, err)
			}
			extra += n
		}
	}
	return extra
}
