package errcoll

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"runtime"
	"strconv"
	"time"
)

// WriterErrorCollector is an [Interface] implementation that writes errors to
// a file.
type WriterErrorCollector struct {
	w io.Writer
}

// NewWriterErrorCollector returns a new properly initialized
// *WriterErrorCollector.
func NewWriterErrorCollector(w io.Writer) (c *WriterErrorCollector) {
	return &WriterErrorCollector{
		w: w,
	}
}

// type check
var _ Interface = (*WriterErrorCollector)(nil)

// Collect implements the [Interface] interface for *WriterErrorCollector.
func (c *WriterErrorCollector) Collect(_ context.Context, err error) {
	_, _ = fmt.Fprintf(c.w, "%s: %s: caught error: %s\n", time.Now(), caller(2), err)
}

// caller returns the position of the function skip frames above caller itself
// in the "dir/file.go:line" form.
func caller(skip int) (pos string) {
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		return "(unknown)"
	}

	return filepath.Join(filepath.Base(filepath.Dir(file)), filepath.Base(file)) +
		":" + strconv.Itoa(line)
}
