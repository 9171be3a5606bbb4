package diskimage

import (
	"strings"

	"golang.org/x/text/cases"
)

// foldName folds a decoded directory name for case-insensitive comparison.
// Real CBM names are already uppercase-only ASCII, but host-side lookups
// may come in any case; x/text/cases gives a locale-stable fold instead of
// the teacher's bare strings.ToUpper (carried from d64.go's byName map
// convention, generalized to every format this library supports).
var foldCaser = cases.Fold()

func foldName(s string) string {
	return foldCaser.String(s)
}

// decodeName extracts a CBM directory name from its 16 raw bytes: the
// first occurrence of 0xA0 (shifted space) is the terminator, and every
// 0xA0 byte up to it is rendered as a space (spec §4.8 "Name extraction").
// Anything from the terminator onward ("extra text", e.g. ",8,1" in
// "A",8,1 filenames) is returned separately.
func decodeName(raw []byte) (name string, extra string) {
	term := len(raw)
	for i, b := range raw {
		if b == 0xA0 {
			term = i
			break
		}
	}

	var sb strings.Builder
	for _, b := range raw[:term] {
		if b == 0xA0 {
			sb.WriteByte(' ')
		} else {
			sb.WriteByte(b)
		}
	}

	var eb strings.Builder
	for _, b := range raw[term:] {
		if b == 0xA0 {
			eb.WriteByte(' ')
		} else {
			eb.WriteByte(b)
		}
	}

	return sb.String(), eb.String()
}
