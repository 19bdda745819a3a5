package command

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/pixil98/go-realm/internal/storage"
)

// AssetConfig points at a directory tree of asset files of one type.
type AssetConfig[T storage.ValidatingSpec] struct {
	Path string `json:"path"`
}

func (c *AssetConfig[T]) Validate(name string) error {
	if c.Path == "" {
		return fmt.Errorf("%s: path is required", name)
	}
	info, err := os.Stat(c.Path)
	switch {
	case err != nil:
		return fmt.Errorf("%s: invalid path %q: %w", name, c.Path, err)
	case !info.IsDir():
		return fmt.Errorf("%s: %q is not a directory", name, c.Path)
	}
	return nil
}

func (c *AssetConfig[T]) BuildFileStore() (*storage.FileStore[T], error) {
	fs, err := storage.NewFileStore[T](c.Path)
	if err != nil {
		return nil, err
	}
	slog.Info("loaded assets", "path", c.Path, "count", len(fs.Ids()))
	return fs, nil
}
