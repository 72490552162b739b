// Package datasource turns an input Source into a lazy sequence of decoded
// text lines while fingerprinting the raw bytes it reads.
package datasource

import (
	"context"
	"io"
)

// Source opens the raw input stream.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}
