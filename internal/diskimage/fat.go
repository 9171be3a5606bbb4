package diskimage

import "strconv"

// ReconstructedFAT is a flat array, indexed by LBA, of "next-link-or-
// terminal" target values (spec §3/§4.7). It is built only by the
// validator and never written to by regular read operations.
const (
	fatUnused   uint16 = 0
	fatTerminal uint16 = 0xFFFF
)

type ReconstructedFAT struct {
	target []uint16 // indexed by LBA, 0 unused
}

func newReconstructedFAT(maxLBA int) *ReconstructedFAT {
	return &ReconstructedFAT{target: make([]uint16, maxLBA+1)}
}

// Set records that b's chain continues at target.
func (fat *ReconstructedFAT) Set(b, target BlockAddress) {
	if int(b.LBA) < len(fat.target) {
		fat.target[b.LBA] = target.LBA
	}
}

// SetTerminal marks b as the last block of its chain.
func (fat *ReconstructedFAT) SetTerminal(b BlockAddress) {
	if int(b.LBA) < len(fat.target) {
		fat.target[b.LBA] = fatTerminal
	}
}

// Get returns the recorded target LBA, fatTerminal, or fatUnused.
func (fat *ReconstructedFAT) Get(b BlockAddress) uint16 {
	if int(b.LBA) >= len(fat.target) {
		return fatUnused
	}
	return fat.target[b.LBA]
}

// IsUsed reports whether b has been marked by any reconstructed chain.
func (fat *ReconstructedFAT) IsUsed(b BlockAddress) bool {
	return fat.Get(b) != fatUnused
}

// MaxLBA returns the highest LBA this FAT was sized for.
func (fat *ReconstructedFAT) MaxLBA() int { return len(fat.target) - 1 }

// Dump renders the FAT linearly, one "lba -> target" line per used block;
// a caller wanting a tiled-by-track rendering can combine this with the
// Geometry's LBAToTS.
func (fat *ReconstructedFAT) Dump() []string {
	var lines []string
	for lba := 1; lba < len(fat.target); lba++ {
		t := fat.target[lba]
		switch t {
		case fatUnused:
			continue
		case fatTerminal:
			lines = append(lines, formatFATLine(lba, -1))
		default:
			lines = append(lines, formatFATLine(lba, int(t)))
		}
	}
	return lines
}

func formatFATLine(lba, target int) string {
	if target < 0 {
		return strconv.Itoa(lba) + " -> terminal"
	}
	return strconv.Itoa(lba) + " -> " + strconv.Itoa(target)
}
