// Package stacktrace captures ordered call-frame descriptors in the intake
// frame shape, truncated to a configured depth.
package stacktrace

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
)

// hardLimit caps unbounded captures so pathological recursion cannot balloon
// an event.
const hardLimit = 128

// Frame describes one call site.
type Frame struct {
	AbsPath  string `json:"abs_path,omitempty"`
	Filename string `json:"filename"`
	Module   string `json:"module,omitempty"`
	Function string `json:"function"`
	Lineno   int    `json:"lineno"`
}

// Capture records the calling goroutine's stack. skip=0 starts at Capture's
// caller. limit bounds the depth; zero or negative means unbounded per this
// package's convention (internally capped).
func Capture(skip, limit int) []Frame {
	if limit <= 0 || limit > hardLimit {
		limit = hardLimit
	}

	pcs := make([]uintptr, limit)
	n := runtime.Callers(skip+2, pcs)
	if n == 0 {
		return nil
	}

	out := make([]Frame, 0, n)
	frames := runtime.CallersFrames(pcs[:n])
	for {
		f, more := frames.Next()
		out = append(out, toFrame(f))
		if !more || len(out) == limit {
			break
		}
	}
	return out
}

// Location returns the file and line of the caller. skip=0 means Location's
// caller.
func Location(skip int) (string, int) {
	_, file, line, ok := runtime.Caller(skip + 1)
	if !ok {
		return "", 0
	}
	return file, line
}

// FormatLocation renders a capture origin as "<file>:<line>".
func FormatLocation(file string, line int) string {
	return fmt.Sprintf("%s:%d", file, line)
}

func toFrame(f runtime.Frame) Frame {
	module, fn := splitFunction(f.Function)
	return Frame{
		AbsPath:  f.File,
		Filename: filepath.Base(f.File),
		Module:   module,
		Function: fn,
		Lineno:   f.Line,
	}
}

// splitFunction splits a runtime function name like
// "github.com/acme/pkg.(*T).Do" into package path and bare function.
func splitFunction(name string) (module, fn string) {
	if name == "" {
		return "", ""
	}
	slash := strings.LastIndex(name, "/")
	dot := strings.Index(name[slash+1:], ".")
	if dot < 0 {
		return "", name
	}
	dot += slash + 1
	return name[:dot], name[dot+1:]
}
