package frame

import (
	"context"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
)

// ErrCameraUnavailable is returned when the underlying device cannot
// produce a frame. The intake loop treats it as transient and keeps
// polling.
var ErrCameraUnavailable = eris.New("frame: camera unavailable")

// ErrExhausted is returned by replay sources once every frame has been
// served.
var ErrExhausted = eris.New("frame: source exhausted")

// Source yields one raster frame per call. Implementations may fail on
// any call; callers retry on their own cadence.
type Source interface {
	Frame(ctx context.Context) (image.Image, error)
}

// DirectorySource replays image files from a directory in lexical order,
// one file per Frame call. It stands in for the capture hardware on bench
// setups: a sequence of empty-platen frames followed by sheet frames
// reproduces a full insertion cycle.
type DirectorySource struct {
	mu    sync.Mutex
	cache *Cache
	paths []string
	next  int
	loop  bool
}

// NewDirectorySource scans dir for supported image files (png, jpeg, gif).
// When loop is true the sequence repeats from the start after the last
// frame instead of reporting ErrExhausted.
func NewDirectorySource(cache *Cache, dir string, loop bool) (*DirectorySource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, eris.Wrapf(err, "frame: read dir %s", dir)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".png", ".jpg", ".jpeg", ".gif":
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)

	if len(paths) == 0 {
		return nil, eris.Errorf("frame: no image files in %s", dir)
	}

	return &DirectorySource{cache: cache, paths: paths, loop: loop}, nil
}

// Frame returns the next file's decoded image.
func (s *DirectorySource) Frame(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.next >= len(s.paths) {
		if !s.loop {
			s.mu.Unlock()
			return nil, ErrExhausted
		}
		s.next = 0
	}
	path := s.paths[s.next]
	s.next++
	s.mu.Unlock()

	img, err := s.cache.Load(path)
	if err != nil {
		return nil, eris.Wrap(err, "frame: load")
	}
	return img, nil
}

// Remaining reports how many frames are left before exhaustion. Looping
// sources always report the full sequence length.
func (s *DirectorySource) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loop {
		return len(s.paths)
	}
	return len(s.paths) - s.next
}

// FuncSource adapts a plain function to the Source interface. Used by
// tests and by callers wrapping real device handles.
type FuncSource func(ctx context.Context) (image.Image, error)

// Frame calls the wrapped function.
func (f FuncSource) Frame(ctx context.Context) (image.Image, error) { return f(ctx) }
