// Copyright 2026 The Eyeballs Authors
// SPDX-License-Identifier: Apache-2.0

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
)

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
}

// Directory replays the PNG and JPEG files of a directory in name
// order, wrapping around at the end.
type Directory struct {
	paths []string

	mu   sync.Mutex
	next int
}

// NewDirectory lists the images under path. It fails if there are
// none.
func NewDirectory(path string) (*Directory, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("reading capture directory %s: %w", path, err)
	}
	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if imageExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			paths = append(paths, filepath.Join(path, entry.Name()))
		}
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("capture directory %s contains no .png or .jpg images", path)
	}
	sort.Strings(paths)
	return &Directory{paths: paths}, nil
}

// Capture decodes the next image. A file that fails to decode is
// reported and skipped on the following call.
func (d *Directory) Capture(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	path := d.paths[d.next]
	d.next = (d.next + 1) % len(d.paths)
	d.mu.Unlock()

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoFrame, err)
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("%w: decoding %s: %v", ErrNoFrame, path, err)
	}
	return img, nil
}

// Len is the number of images in rotation.
func (d *Directory) Len() int { return len(d.paths) }
