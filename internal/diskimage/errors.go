package diskimage

import (
	stderrors "errors"
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies a returned error by the taxonomy of spec §7: it never
// identifies a specific condition, only the broad family a caller might
// want to branch on.
type Kind byte

const (
	KindGeometry Kind = iota
	KindAddress
	KindChain
	KindStructure
	KindInput
)

func (k Kind) String() string {
	switch k {
	case KindGeometry:
		return "geometry"
	case KindAddress:
		return "address"
	case KindChain:
		return "chain"
	case KindStructure:
		return "structure"
	case KindInput:
		return "input"
	default:
		return "unknown"
	}
}

// Error wraps an underlying cause with the operation that produced it and
// its taxonomy Kind, so a caller can recover both the message and the
// classification without string-matching.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func newErr(kind Kind, op, msg string) error {
	return &Error{Kind: kind, Op: op, Err: errors.New(msg)}
}

func newErrf(kind Kind, op, format string, args ...interface{}) error {
	return &Error{Kind: kind, Op: op, Err: errors.Errorf(format, args...)}
}

func wrapErr(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: errors.WithStack(err)}
}

// ErrorKind recovers the taxonomy Kind from err, if it (or something it
// wraps) is one of ours.
func ErrorKind(err error) (Kind, bool) {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// EndOfChainError is returned by a block accessor's link-follow operation
// when the current block is the terminal block of its chain. ValidBytes is
// the number of valid payload bytes in that block (the link-sector byte of
// the terminator, with 0 meaning 256).
type EndOfChainError struct {
	ValidBytes int
}

func (e *EndOfChainError) Error() string {
	return fmt.Sprintf("end of chain, %d valid byte(s) in final block", e.ValidBytes)
}

// Sentinel-ish constructors for the common named conditions in spec §7.
func errUnknownFormat(size int) error {
	return newErrf(KindGeometry, "Resolve", "no known image format matches length %d", size)
}

func errOutOfRange(op, msg string) error {
	return newErr(KindAddress, op, msg)
}

func errEndOfImage(op string) error {
	return newErr(KindAddress, op, "end of image")
}

func errEndOfTrack(op string) error {
	return newErr(KindAddress, op, "end of track")
}

func errEndOfPartition(op string) error {
	return newErr(KindAddress, op, "end of partition")
}

func errLoopDetected(op string, addr BlockAddress) error {
	return newErrf(KindChain, op, "loop detected at track %d sector %d (lba %d)", addr.Track, addr.Sector, addr.LBA)
}

// ErrNotImplemented is recorded as a validation diagnostic when Validate
// meets a CMD native partition entry in an ordinary directory: that
// descent is not performed, and the report says so rather than staying
// clean.
var ErrNotImplemented = newErr(KindStructure, "Validate", "CMD native partition entry descent is not implemented")
