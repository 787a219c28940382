package ports

import (
	"context"

	"github.com/J-York/TarotWhisper/internal/domain"
)

// ReadingStore persists completed readings, newest first.
type ReadingStore interface {
	Save(ctx context.Context, r domain.Reading) error
	List(ctx context.Context) ([]domain.Reading, error)
	Get(ctx context.Context, id string) (domain.Reading, error)
	Delete(ctx context.Context, ids ...string) error
	Clear(ctx context.Context) error
}
