package dataset

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// Embedder produces a fixed-length embedding for one file. Image-folder
// datasets depend on an external embedding model; the engine only consumes
// the resulting vectors.
type Embedder interface {
	Embed(ctx context.Context, path string) ([]float64, error)
}

// ImageFolder is a class-per-subfolder image dataset converted to embeddings.
// Files are walked in lexicographic order so sample indices are stable across
// runs and match the purifier's per-class running index.
type ImageFolder struct {
	Samples Matrix
	Labels  Labels
	Paths   []string
	Classes []string
	Path    string
}

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

// LoadImageFolder walks root (one subfolder per class) and embeds every image
// via the provided Embedder. Files that fail to embed are skipped with a
// warning so one corrupt image does not sink the whole dataset.
func LoadImageFolder(ctx context.Context, root string, embedder Embedder, logger *zap.Logger) (*ImageFolder, error) {
	if embedder == nil {
		return nil, fmt.Errorf("image folder %s: embedder is required", root)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("read dataset root: %w", err)
	}

	var classDirs []string
	for _, e := range entries {
		if e.IsDir() {
			classDirs = append(classDirs, e.Name())
		}
	}
	sort.Strings(classDirs)

	ds := &ImageFolder{Path: root, Classes: classDirs}
	for label, class := range classDirs {
		files, err := os.ReadDir(filepath.Join(root, class))
		if err != nil {
			return nil, fmt.Errorf("read class %s: %w", class, err)
		}

		names := make([]string, 0, len(files))
		for _, f := range files {
			if f.IsDir() || !imageExtensions[strings.ToLower(filepath.Ext(f.Name()))] {
				continue
			}
			names = append(names, f.Name())
		}
		sort.Strings(names)

		for _, name := range names {
			p := filepath.Join(root, class, name)
			vec, err := embedder.Embed(ctx, p)
			if err != nil {
				logger.Warn("skipping image that failed to embed",
					zap.String("path", p), zap.Error(err))
				continue
			}
			ds.Samples = append(ds.Samples, vec)
			ds.Labels = append(ds.Labels, label)
			ds.Paths = append(ds.Paths, p)
		}
	}

	if len(ds.Samples) == 0 {
		return nil, ErrEmptyMatrix
	}
	return ds, nil
}
