package diskimage

import (
	"fmt"
	"os"
)

// DiagSink receives one formatted diagnostic line per call. It is the
// library's sole callback and always runs on the caller's goroutine.
type DiagSink func(text string)

func stderrSink(text string) {
	fmt.Fprintln(os.Stderr, text)
}

func (img *Image) diagf(format string, args ...interface{}) {
	sink := img.diag
	if sink == nil {
		sink = stderrSink
	}
	sink(fmt.Sprintf(format, args...))
}
