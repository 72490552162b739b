// Package file opens FFL exports from the local disk or standard input.
package file

import (
	"context"
	"fmt"
	"io"
	"os"
)

// Local reads one file. The path "-" is standard input.
type Local struct{ path string }

// NewLocal returns a Local source for path.
func NewLocal(path string) *Local { return &Local{path: path} }

// Open opens the file. Errors keep the path and still match
// errors.Is(err, fs.ErrNotExist); a directory is rejected.
func (l *Local) Open(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if l.path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", l.path, err)
	}
	if st, err := f.Stat(); err == nil && st.IsDir() {
		f.Close()
		return nil, fmt.Errorf("open %s: is a directory", l.path)
	}
	return f, nil
}
