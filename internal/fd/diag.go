package fd

import (
	"fmt"
	"os"
	"sync/atomic"
)

// Close failures that happen where no error can be returned, in finalizers
// and during Adopt replacement, go through this hook. It must be safe to call
// from any goroutine.
var closeDiag atomic.Pointer[func(error)]

// SetCloseDiagnostic installs the sink for close failures that cannot be
// returned to a caller. Passing nil restores the default, which writes the
// error text followed by a newline to stderr.
func SetCloseDiagnostic(fn func(error)) {
	if fn == nil {
		closeDiag.Store(nil)
		return
	}
	closeDiag.Store(&fn)
}

func reportCloseError(err error) {
	if p := closeDiag.Load(); p != nil {
		(*p)(err)
		return
	}
	fmt.Fprintf(os.Stderr, "%s\n", err)
}
