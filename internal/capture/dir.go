package capture

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	_ "golang.org/x/image/webp"
)

// DirSource cycles through the still images in a directory, one per frame.
// It stands in for a camera when running offline.
type DirSource struct {
	Dir string

	mu    sync.Mutex
	files []string
	next  int
}

var imageExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".webp": true}

// Start lists the images in Dir. An empty or missing directory is
// ErrUnavailable.
func (d *DirSource) Start(ctx context.Context, _ Size) error {
	entries, err := os.ReadDir(d.Dir)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !imageExts[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		files = append(files, filepath.Join(d.Dir, e.Name()))
	}
	if len(files) == 0 {
		return fmt.Errorf("%w: no images in %s", ErrUnavailable, d.Dir)
	}
	sort.Strings(files)

	d.mu.Lock()
	d.files = files
	d.next = 0
	d.mu.Unlock()
	return nil
}

// Frame decodes the next image, wrapping around at the end.
func (d *DirSource) Frame() (image.Image, error) {
	d.mu.Lock()
	if len(d.files) == 0 {
		d.mu.Unlock()
		return nil, ErrNoFrame
	}
	path := d.files[d.next]
	d.next = (d.next + 1) % len(d.files)
	d.mu.Unlock()

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoFrame, err)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %w", ErrNoFrame, filepath.Base(path), err)
	}
	return img, nil
}

// Stop forgets the file list.
func (d *DirSource) Stop() error {
	d.mu.Lock()
	d.files = nil
	d.mu.Unlock()
	return nil
}
