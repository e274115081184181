// Package stream implements the tilewall:// custom stream source: a
// read-only adapter that lets the decoder pull bytes out of a pane's ring
// buffer as if it were reading an ordinary file or network stream.
package stream

import (
	"errors"

	"github.com/tilewall/tilewall/internal/decoder"
	"github.com/tilewall/tilewall/internal/ring"
)

// Scheme is the URL scheme this package registers with a decoder Handle.
const Scheme = "tilewall"

// ErrUnsupported is returned by Size and Seek: the stream is a live,
// forward-only byte feed with no known length.
var ErrUnsupported = errors.New("stream: operation not supported")

// Source drains a single pane's ring non-blockingly. It never talks back
// to the decoder handle: Close in particular must stay inert, since the
// decoder calls it from inside the same callback chain that owns the
// handle and re-entering the handle from there deadlocks the library.
type Source struct {
	r *ring.Ring
}

// New returns a Source bound to r.
func New(r *ring.Ring) *Source {
	return &Source{r: r}
}

// Size reports that the stream has no fixed length.
func (s *Source) Size() (int64, error) {
	return 0, ErrUnsupported
}

// Seek reports that the stream cannot be repositioned.
func (s *Source) Seek(pos int64) error {
	return ErrUnsupported
}

// Read drains up to len(dst) bytes from the ring without blocking. A
// return of (0, nil) is expected and normal: the caller is responsible
// for retrying.
func (s *Source) Read(dst []byte) (int, error) {
	return s.r.Get(dst), nil
}

// Close is a deliberate no-op.
func (s *Source) Close() error {
	return nil
}

// Callbacks adapts Source to the decoder package's StreamCallbacks shape.
func (s *Source) Callbacks() decoder.StreamCallbacks {
	return decoder.StreamCallbacks{
		Size:  s.Size,
		Seek:  s.Seek,
		Read:  s.Read,
		Close: s.Close,
	}
}

// Open builds an OpenFunc that ignores the requested URL (every pane
// registers its own scheme instance bound to its own ring) and hands back
// this Source's callbacks.
func (s *Source) Open() decoder.OpenFunc {
	return func(url string) (decoder.StreamCallbacks, error) {
		return s.Callbacks(), nil
	}
}
