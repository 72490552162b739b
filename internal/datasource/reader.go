package datasource

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"iter"
	"strings"

	"github.com/zeebo/xxh3"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Encoding names accepted by Decoder.
const (
	EncodingUTF8        = "utf-8"
	EncodingWindows1252 = "windows-1252"
	EncodingISO88591    = "iso-8859-1"
)

// MaxLineBytes bounds a single decoded line.
const MaxLineBytes = 1 << 20

// Encodings lists the supported input encodings.
func Encodings() []string {
	return []string{EncodingUTF8, EncodingWindows1252, EncodingISO88591}
}

// Decoder returns the decoder for name. Empty selects UTF-8. The UTF-8
// decoder drops a leading byte order mark.
func Decoder(name string) (transform.Transformer, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", EncodingUTF8, "utf8":
		return unicode.BOMOverride(unicode.UTF8.NewDecoder()), nil
	case EncodingWindows1252, "cp1252":
		return charmap.Windows1252.NewDecoder(), nil
	case EncodingISO88591, "latin1", "latin-1":
		return charmap.ISO8859_1.NewDecoder(), nil
	default:
		return nil, fmt.Errorf("datasource: unsupported encoding %q", name)
	}
}

// Reader yields the decoded lines of a Source. The xxh3 fingerprint and byte
// count cover the raw bytes consumed so far, so they are final once Lines
// has been fully drained.
type Reader struct {
	rc      io.ReadCloser
	raw     *tally
	decoded io.Reader
}

// tally hashes and counts the raw bytes passing through a TeeReader.
type tally struct {
	hash *xxh3.Hasher
	n    int64
}

func (t *tally) Write(p []byte) (int, error) {
	t.n += int64(len(p))
	return t.hash.Write(p)
}

// Open opens src and prepares it for decoding with the named encoding.
func Open(ctx context.Context, src Source, enc string) (*Reader, error) {
	dec, err := Decoder(enc)
	if err != nil {
		return nil, err
	}
	rc, err := src.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("datasource: open: %w", err)
	}
	raw := &tally{hash: xxh3.New()}
	return &Reader{
		rc:      rc,
		raw:     raw,
		decoded: transform.NewReader(io.TeeReader(rc, raw), dec),
	}, nil
}

// Lines returns the line sequence with "\n" and "\r\n" terminators removed.
// A read error is yielded once and ends the sequence. The sequence can be
// ranged over only once.
func (r *Reader) Lines() iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		sc := bufio.NewScanner(r.decoded)
		sc.Buffer(make([]byte, 0, 64*1024), MaxLineBytes)
		for sc.Scan() {
			if !yield(sc.Text(), nil) {
				return
			}
		}
		if err := sc.Err(); err != nil {
			yield("", fmt.Errorf("datasource: read: %w", err))
		}
	}
}

// Fingerprint returns the hex xxh3-64 of the raw bytes read so far.
func (r *Reader) Fingerprint() string { return fmt.Sprintf("%016x", r.raw.hash.Sum64()) }

// Bytes returns the raw bytes read so far.
func (r *Reader) Bytes() int64 { return r.raw.n }

// Close closes the underlying stream.
func (r *Reader) Close() error { return r.rc.Close() }
