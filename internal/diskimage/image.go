package diskimage

// Image owns the raw buffer and the chdir stack. It outlives every
// accessor, chain, directory iterator, loop detector, and FAT built
// against it (spec §3 "Image").
type Image struct {
	buf       []byte
	usableLen int // excludes any trailing error map
	diag      DiagSink

	root *Frame
	top  *Frame
}

// Frame is one entry of the chdir stack (spec §3 "Image Frame"): it owns a
// Geometry, a parent back-reference, a lazily-built reconstructed FAT, an
// info-block accessor, and the partition-positioning fields that let a
// block accessor find the right bytes when a sub-partition is active.
type Frame struct {
	image  *Image
	parent *Frame
	geom   Geometry

	fat  *ReconstructedFAT
	info *BlockAccessor

	dir        BlockAddress
	geosBorder BlockAddress
	hasGEOS    bool

	// subdirDataOffset is an additional byte offset applied after LBA
	// resolution, modeled per spec §3 for structural fidelity with the
	// source's "global partition rebases the buffer" mechanism. No
	// geometry in this rewrite populates it with a nonzero value: every
	// supported format keeps a uniform bytes-per-block across nesting, so
	// the LBA rebase below is sufficient on its own (see DESIGN.md).
	subdirDataOffset int

	blockSubdirFirst BlockAddress
	blockSubdirLast  BlockAddress

	subdirGlobalAddressing   bool
	subdirRelativeAddressing bool

	// bamOverride/countersOverride replace geom.BAMSelectors()/
	// BAMCounterSelectors() once a chdir has moved this frame's BAM out
	// from under the format's fixed root location (spec §4.8's
	// format-specific finishers re-point info/BAM/dir within the
	// partition's own range). nil means "use the geometry's root values".
	bamOverride      []BamSelector
	countersOverride []BamCounterSelector
}

// effectiveBAMSelectors returns this frame's BAM selectors, honoring any
// chdir override.
func (f *Frame) effectiveBAMSelectors() []BamSelector {
	if f.bamOverride != nil {
		return f.bamOverride
	}
	return f.geom.BAMSelectors()
}

// effectiveBAMCounterSelectors returns this frame's BAM counter selectors,
// honoring any chdir override.
func (f *Frame) effectiveBAMCounterSelectors() []BamCounterSelector {
	if f.countersOverride != nil {
		return f.countersOverride
	}
	return f.geom.BAMCounterSelectors()
}

// Open resolves buf's image kind (or honors opts.Hint), builds the root
// Geometry, and returns an Image whose Root() frame is ready for
// directory/BAM/validate operations.
func Open(buf []byte, opts OpenOptions) (*Image, error) {
	kind := opts.Hint
	usable := len(buf)

	if kind == KindUnknown {
		var err error
		kind, usable, err = resolveByLength(len(buf))
		if err != nil {
			return nil, err
		}
	}

	geom, err := buildRootGeometry(kind, buf[:usable])
	if err != nil {
		return nil, err
	}

	img := &Image{buf: buf, usableLen: usable, diag: opts.Diag}

	root := &Frame{image: img, geom: geom}
	dt, ds := geom.DirBlock()
	root.dir = BlockAddress{Track: byte(dt), Sector: byte(ds)}
	if root.dir.Track != 0 {
		if addr, err := root.BlockFromTS(root.dir.Track, root.dir.Sector); err == nil {
			root.dir = addr
		}
	}

	it, is := geom.InfoBlock()
	if it != 0 || is != 0 {
		infoAddr, err := root.BlockFromTS(byte(it), byte(is))
		if err == nil {
			root.info, _ = newBlockAccessor(root, infoAddr)
		}
	}

	if prober, ok := geom.(geosProber); ok && root.info != nil {
		if border, found := prober.probeGEOS(root.info.data); found {
			if addr, err := root.BlockFromTS(border.Track, border.Sector); err == nil {
				root.geosBorder = addr
				root.hasGEOS = true
			}
		}
	}

	img.root = root
	img.top = root
	return img, nil
}

func buildRootGeometry(kind ImageKind, usable []byte) (Geometry, error) {
	switch kind {
	case KindD40:
		return openD64(KindD40, 35), nil
	case KindD64:
		tracks, err := maxTrackForD64Size(len(usable))
		if err != nil {
			return nil, err
		}
		return openD64(KindD64, tracks), nil
	case KindD71:
		return newD71Geometry(), nil
	case KindD80:
		return newD80Geometry(KindD80), nil
	case KindD82:
		return newD80Geometry(KindD82), nil
	case KindD81:
		return newD81Geometry(), nil
	case KindCMDD1M:
		return newD1MGeometry(KindCMDD1M, 40), nil
	case KindCMDD2M:
		return newD1MGeometry(KindCMDD2M, 80), nil
	case KindCMDD4M:
		return newD1MGeometry(KindCMDD4M, 160), nil
	case KindCMDDNP:
		return newDNPGeometry(usable)
	default:
		return nil, errUnknownFormat(len(usable))
	}
}

// Root returns the outermost frame (the whole image, no partition active).
func (img *Image) Root() *Frame { return img.root }

// Top returns the current top of the chdir stack.
func (img *Image) Top() *Frame { return img.top }

func (img *Image) diagSink() DiagSink {
	if img.diag != nil {
		return img.diag
	}
	return stderrSink
}

// Geometry exposes f's format descriptor.
func (f *Frame) Geometry() Geometry { return f.geom }

// Parent returns the frame this one was chdir'd from, or nil at the root.
func (f *Frame) Parent() *Frame { return f.parent }

// FAT returns (building if necessary) f's reconstructed FAT.
func (f *Frame) FAT() *ReconstructedFAT {
	if f.fat == nil {
		f.fat = newReconstructedFAT(f.geom.MaxLBA())
	}
	return f.fat
}

// Chdir pushes a new frame for the given directory entry, which must name
// a partition (spec §4.8). The new frame becomes the image's top frame.
func (f *Frame) Chdir(entry *DirEntry) (*Frame, error) {
	first, last, count, err := entry.PartitionRange()
	if err != nil {
		return nil, err
	}

	child := &Frame{
		image:            f.image,
		parent:           f,
		geom:             f.geom,
		blockSubdirFirst: first,
		blockSubdirLast:  last,
	}

	chdirer, ok := f.geom.(partitionChdirer)
	if !ok {
		return nil, newErr(KindStructure, "Chdir", "geometry does not support partitions")
	}
	if err := chdirer.chdirInto(child, first, last, count, entry.Type); err != nil {
		return nil, err
	}

	f.image.top = child
	return child, nil
}

// ChdirClose pops f, releasing its FAT and info accessor, and returns the
// parent frame (now the image's top frame).
func (f *Frame) ChdirClose() (*Frame, error) {
	if f.parent == nil {
		return nil, newErr(KindInput, "ChdirClose", "already at root frame")
	}
	f.fat = nil
	f.info = nil
	f.image.top = f.parent
	return f.parent, nil
}
