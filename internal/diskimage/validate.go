package diskimage

// ValidationReport aggregates every diagnostic the validator produced
// into a single return status (spec §7 "Propagation"): Clean() is true
// iff no diagnostic was recorded.
type ValidationReport struct {
	Diagnostics []string
}

// Clean reports whether validation found zero anomalies.
func (r *ValidationReport) Clean() bool { return len(r.Diagnostics) == 0 }

type reporter struct {
	image  *Image
	report *ValidationReport
}

func (r *reporter) logf(format string, args ...interface{}) {
	msg := newErrf(KindStructure, "Validate", format, args...).Error()
	r.image.diagf("%s", msg)
	r.report.Diagnostics = append(r.report.Diagnostics, msg)
}

// Validate walks f's whole address space, reconstructing a FAT from every
// reachable structure and cross-checking it against the BAM (spec §4.10).
// It reports every anomaly rather than stopping at the first, and returns
// an error only when it could not even begin (the directory's first
// block cannot be opened); structural findings are reported via r.Diagnostics and
// the diagnostic sink, never as the returned error.
func (f *Frame) Validate() (*ValidationReport, error) {
	f.fat = newReconstructedFAT(f.geom.MaxLBA())
	rep := &reporter{image: f.image, report: &ValidationReport{}}

	if !f.geom.IsPartitionTable() {
		if f.info != nil {
			if err := f.validateFollowChain(rep, f.info.Block()); err != nil {
				rep.logf("info block chain: %v", err)
			}
		}

		for _, sel := range f.effectiveBAMSelectors() {
			if f.fat.IsUsed(sel.Block) {
				continue
			}
			if err := f.validateFollowChain(rep, sel.Block); err != nil {
				rep.logf("BAM block chain at %d/%d: %v", sel.Block.Track, sel.Block.Sector, err)
			}
		}

		if f.hasGEOS && !f.geosBorder.IsUnused() {
			if err := f.validateFollowChain(rep, f.geosBorder); err != nil {
				rep.logf("GEOS border chain: %v", err)
			}
		}

		dr, err := f.Dir()
		if err != nil {
			return nil, wrapErr(KindStructure, "Validate", err)
		}
		for e := dr.First(); e != nil; {
			f.validateEntry(rep, e)
			e, err = dr.Next()
			if err != nil {
				rep.logf("directory enumeration: %v", err)
				break
			}
		}
	}

	if passer, ok := f.geom.(bamPostPasser); ok {
		if err := passer.bamPostPass(f); err != nil {
			rep.logf("BAM post-pass: %v", err)
		}
	}

	if !f.geom.IsPartitionTable() {
		f.bamCheckEquality(rep)
	}

	return rep.report, nil
}

// validateFollowChain walks a chain start-to-finish, marking every block
// into f.fat; a duplicate link (loop) is reported as an error.
func (f *Frame) validateFollowChain(rep *reporter, start BlockAddress) error {
	_, _, err := f.followChainInto(start)
	if err != nil {
		return err
	}
	return nil
}

// followChainInto walks the chain rooted at start, recording every block
// into f.fat (chained in traversal order, terminated with fatTerminal),
// and returns the ordered list of visited block addresses plus a count.
func (f *Frame) followChainInto(start BlockAddress) ([]BlockAddress, int, error) {
	chain, err := StartChain(f, start)
	if err != nil {
		return nil, 0, err
	}
	defer chain.Close()

	var blocks []BlockAddress
	for {
		cur := chain.Current()
		blocks = append(blocks, cur)

		if chain.LastResult() > 0 {
			f.fat.SetTerminal(cur)
			break
		}
		if chain.IsDone() {
			if chain.IsLoop() {
				return blocks, len(blocks), errLoopDetected("followChainInto", cur)
			}
			break
		}

		if err := chain.Advance(); err != nil {
			return blocks, len(blocks), err
		}
		if chain.IsLoop() {
			return blocks, len(blocks), nil
		}
		if !chain.IsDone() || chain.LastResult() > 0 {
			f.fat.Set(cur, chain.Current())
		}
	}
	return blocks, len(blocks), nil
}

// validateEntry dispatches one directory entry per spec §4.10 "Per-entry
// dispatch".
func (f *Frame) validateEntry(rep *reporter, e *DirEntry) {
	switch e.Type {
	case DirTypePartD64, DirTypePartD71, DirTypePartD81, DirTypePartSYS:
		f.validatePartitionRangeEntry(rep, e)
		return
	case DirTypePartCNP:
		rep.logf("%v", ErrNotImplemented)
		return
	case DirTypePartNOP:
		return
	}

	blocks, count, err := f.followChainInto(e.StartBlock)
	if err != nil {
		rep.logf("file %q chain: %v", e.Name, err)
	}

	if e.Type == DirTypeREL {
		f.validateRelFile(rep, e, blocks)
	}
	if e.IsGEOS {
		count += f.validateGeosFile(rep, e)
	}

	if count != int(e.BlockCount) {
		rep.logf("file %q: chain block count %d does not match directory block count %d", e.Name, count, e.BlockCount)
	}
}

// validatePartitionRangeEntry implements spec §4.10's "mark the declared
// range without following any chain; treat block_count as authoritative"
// rule for 1581/1541/1571/CMD partition-table entries. Relative
// addressing is temporarily disabled while marking, since partition-table
// entries are always expressed in the table's own global coordinates
// (grounded on original_source lib/d1m_d2m_d4m.c's set_bam).
func (f *Frame) validatePartitionRangeEntry(rep *reporter, e *DirEntry) {
	first, last, count, err := e.PartitionRange()
	if err != nil {
		rep.logf("partition %q: %v", e.Name, err)
		return
	}

	savedRelative := f.subdirRelativeAddressing
	f.subdirRelativeAddressing = false
	defer func() { f.subdirRelativeAddressing = savedRelative }()

	cur := first
	for i := 0; i < count; i++ {
		if int(cur.LBA) > f.geom.MaxLBA() {
			rep.logf("partition %q exceeds end of disk at lba %d", e.Name, cur.LBA)
			return
		}
		if f.fat.IsUsed(cur) {
			rep.logf("partition %q: block %d/%d already marked used", e.Name, cur.Track, cur.Sector)
		}
		if i == count-1 {
			f.fat.SetTerminal(cur)
			break
		}
		nextLBA := cur.LBA + 1
		next := BlockAddress{LBA: nextLBA}
		if t, s, terr := f.geom.LBAToTS(nextLBA); terr == nil {
			next.Track, next.Sector = byte(t), byte(s)
		}
		f.fat.Set(cur, next)
		cur = next
	}
	_ = last
}

// bamCheckEquality walks every block from 1/0, comparing the reconstructed
// FAT's used/unused state against what the BAM reports, and logs every
// divergence in both directions (spec §4.10 step 4).
func (f *Frame) bamCheckEquality(rep *reporter) {
	bam := f.BAM()
	for track := 1; track <= f.geom.MaxTracks(); track++ {
		inTrack, err := f.geom.SectorsInTrack(track)
		if err != nil {
			continue
		}
		for s := 0; s < inTrack; s++ {
			addr, err := f.BlockFromTS(byte(track), byte(s))
			if err != nil {
				continue
			}
			fatUsedFlag := f.fat.IsUsed(addr)
			state, err := bam.Get(track, s)
			if err != nil {
				continue
			}
			bamUsedFlag := state == BAMUsed
			if fatUsedFlag && !bamUsedFlag {
				rep.logf("block %d/%d marked used by FAT but free in BAM", track, s)
			}
			if !fatUsedFlag && bamUsedFlag {
				rep.logf("block %d/%d marked used in BAM but unused in FAT", track, s)
			}
		}
	}
}
