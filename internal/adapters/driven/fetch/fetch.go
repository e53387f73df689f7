// Package fetch reads uploads from local paths or remote URLs through
// github.com/viant/afs.
package fetch

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/viant/afs"
	"github.com/viant/afs/storage"
	"github.com/viant/afs/url"

	"github.com/custodia-labs/ragline/internal/core/domain"
)

// maxFileBytes skips files larger than this when walking a directory.
const maxFileBytes = 32 << 20

// Fetcher loads files as uploads.
type Fetcher struct {
	fs afs.Service
}

// New creates a Fetcher backed by the default afs service.
func New() *Fetcher {
	return &Fetcher{fs: afs.New()}
}

// Normalize turns a relative or absolute OS path into a file URL.
// Locations that already carry a scheme are returned unchanged.
func Normalize(location string) (string, error) {
	norm := location
	if url.Scheme(norm, "") == "" && url.IsRelative(norm) {
		abs, err := filepath.Abs(norm)
		if err != nil {
			return "", fmt.Errorf("absolute path for %s: %w", location, err)
		}
		norm = abs
	}
	if url.Scheme(norm, "") == "" {
		norm = url.ToFileURL(norm)
	}
	return norm, nil
}

// Fetch downloads one file. The upload is named after the last path element
// and its media type is left to the extractor registry.
func (f *Fetcher) Fetch(ctx context.Context, location string) (*domain.Upload, error) {
	norm, err := Normalize(location)
	if err != nil {
		return nil, err
	}

	data, err := f.fs.DownloadWithURL(ctx, norm)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", location, err)
	}
	return &domain.Upload{Name: path.Base(url.Path(norm)), Data: data}, nil
}

// List returns every regular, non-hidden file below location.
// A location naming a file returns just that file.
func (f *Fetcher) List(ctx context.Context, location string) ([]string, error) {
	norm, err := Normalize(location)
	if err != nil {
		return nil, err
	}

	object, err := f.fs.Object(ctx, norm)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", location, err)
	}
	if !object.IsDir() {
		return []string{norm}, nil
	}

	var files []string
	if err := f.walk(ctx, norm, &files); err != nil {
		return nil, err
	}
	return files, nil
}

func (f *Fetcher) walk(ctx context.Context, dir string, files *[]string) error {
	objects, err := f.fs.List(ctx, dir)
	if err != nil {
		return fmt.Errorf("list %s: %w", dir, err)
	}

	for _, object := range objects {
		if isSelf(object, dir) || hidden(object.Name()) {
			continue
		}
		if object.IsDir() {
			if err := f.walk(ctx, url.Join(dir, object.Name()), files); err != nil {
				return err
			}
			continue
		}
		if object.Size() > maxFileBytes {
			continue
		}
		*files = append(*files, object.URL())
	}
	return nil
}

// isSelf reports whether a listing entry is the listed directory itself.
func isSelf(object storage.Object, dir string) bool {
	return object.IsDir() && url.Equals(url.Path(object.URL()), url.Path(dir))
}

func hidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
