package describe

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sqlquorum/sqlquorum/internal/storage"
)

// DirStore reads description files from a local data directory.
type DirStore struct {
	Root string
}

func (s DirStore) Table(_ context.Context, dbID, table string) ([]Column, error) {
	key, err := storage.DescriptionPath(dbID, table)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(filepath.Join(s.Root, filepath.FromSlash(key)))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("open description %q: %w", key, err)
	}
	defer func() { _ = file.Close() }()
	return ParseCSV(file)
}

// ObjectStore reads description files from a bucket.
type ObjectStore struct {
	Store storage.ObjectStore
}

func (s ObjectStore) Table(ctx context.Context, dbID, table string) ([]Column, error) {
	key, err := storage.DescriptionPath(dbID, table)
	if err != nil {
		return nil, err
	}
	reader, err := s.Store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	defer func() { _ = reader.Close() }()
	return ParseCSV(reader)
}

// NoopStore has no descriptions for any table.
type NoopStore struct{}

func (NoopStore) Table(context.Context, string, string) ([]Column, error) {
	return nil, ErrNotFound
}
