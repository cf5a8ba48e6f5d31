package storage

import (
	"context"

	"github.com/drmick/unichecker/internal/model"
)

// Storage defines a sink for pool records.
type Storage interface {
	PutPoolRecords(ctx context.Context, records []model.DexPoolRecord) error
}
