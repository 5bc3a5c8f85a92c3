package journal

import (
	"context"

	"github.com/yanun0323/errors"
	"gorm.io/gorm"

	"stockex/pkg/conn"
)

// Store persists batches of fills.
type Store interface {
	Insert(ctx context.Context, records []FillRecord) error
}

type gormStore struct {
	db *gorm.DB
}

// NewPostgresStore migrates the fills table and returns a store writing to it.
func NewPostgresStore(ctx context.Context, client *conn.Client) (Store, error) {
	if err := client.Migrate(ctx, &FillRecord{}); err != nil {
		return nil, err
	}
	return &gormStore{db: client.DB()}, nil
}

func (s *gormStore) Insert(ctx context.Context, records []FillRecord) error {
	if len(records) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).CreateInBatches(records, len(records)).Error; err != nil {
		return errors.Wrap(err, "insert fills").With("count", len(records))
	}
	return nil
}
