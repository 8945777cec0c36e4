package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"maskframe/internal/mask"
)

// ErrNotFound is returned when no record exists for the requested image id.
var ErrNotFound = errors.New("image not found")

// ErrNoMasks is returned when an image exists but its mask collection has not
// been produced yet. Callers distinguish it from ErrNotFound to decide between
// polling and treating the image as absent.
var ErrNoMasks = errors.New("masks not available for image")

// Summary describes one stored record without its pixel payload.
type Summary struct {
	ImageID   string
	Width     int
	Height    int
	CreatedAt time.Time
	MaskCount int
}

// Store persists image records keyed by exact image id. Put replaces the whole
// record atomically; a reader concurrent with a replacement observes either
// the old or the new record, never a mix. Stores never validate mask data;
// that responsibility sits with the ingestion caller.
type Store interface {
	Put(ctx context.Context, record *mask.Record) error
	Get(ctx context.Context, imageID string) (*mask.Record, error)
	Delete(ctx context.Context, imageID string) error
	List(ctx context.Context) ([]Summary, error)
	Close() error
}

// NewStore builds a store for the configured backend type.
func NewStore(storeType, connectionString string) (Store, error) {
	var (
		s   Store
		err error
	)
	switch storeType {
	case "memory":
		s = NewMemoryStore()
	case "sqlite":
		s, err = NewSQLiteStore(connectionString)
	case "redis":
		s, err = NewRedisStore(connectionString)
	default:
		return nil, fmt.Errorf("unsupported store type: %s", storeType)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s store: %w", storeType, err)
	}

	slog.Info("store initialized", "type", storeType)
	return s, nil
}

func summarize(record *mask.Record) Summary {
	return Summary{
		ImageID:   record.ImageID,
		Width:     record.Width,
		Height:    record.Height,
		CreatedAt: record.CreatedAt,
		MaskCount: len(record.Masks),
	}
}
