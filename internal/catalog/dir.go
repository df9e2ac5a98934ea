package catalog

import (
	"context"
	"io/fs"
	"os"
	"path"
	"strings"

	"github.com/pkg/errors"
)

// IndexNames are the index file names a DirSource tries, in order.
var IndexNames = []string{"index.json", "index.yaml", "index.yml"}

// DirSource reads the catalog from a file tree.
type DirSource struct {
	fsys fs.FS
}

// NewDirSource returns a source rooted at dir.
func NewDirSource(dir string) *DirSource {
	return &DirSource{fsys: os.DirFS(dir)}
}

// NewFSSource returns a source reading from fsys.
func NewFSSource(fsys fs.FS) *DirSource {
	return &DirSource{fsys: fsys}
}

func (d *DirSource) ReadIndex(ctx context.Context) ([]byte, error) {
	for _, name := range IndexNames {
		data, err := fs.ReadFile(d.fsys, name)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, errors.Wrapf(err, "read %s", name)
		}
	}
	return nil, errors.Wrapf(ErrNotFound, "no index file (tried %s)", strings.Join(IndexNames, ", "))
}

// ReadNotation reads p relative to the root. Paths escaping the root are
// rejected.
func (d *DirSource) ReadNotation(ctx context.Context, p string) (string, error) {
	clean := path.Clean(strings.TrimPrefix(p, "/"))
	if !fs.ValidPath(clean) {
		return "", errors.Errorf("invalid notation path %q", p)
	}
	data, err := fs.ReadFile(d.fsys, clean)
	if errors.Is(err, fs.ErrNotExist) {
		return "", errors.Wrapf(ErrNotFound, "notation %q", clean)
	}
	if err != nil {
		return "", errors.Wrap(err, "read notation")
	}
	return string(data), nil
}
