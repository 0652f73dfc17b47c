package storage

import (
	"context"
	"errors"
	"io"
)

var ErrObjectNotFound = errors.New("object not found")

// ObjectStore is the read side of a bucket holding database description files.
type ObjectStore interface {
	Get(ctx context.Context, key string) (io.ReadCloser, error)
}
