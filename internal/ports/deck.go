package ports

import (
	"context"

	"github.com/J-York/TarotWhisper/internal/domain"
)

// DeckStore provides the static card and spread tables.
type DeckStore interface {
	Cards(ctx context.Context) ([]domain.Card, error)
	Spreads(ctx context.Context) ([]domain.Spread, error)
	Spread(ctx context.Context, id string) (domain.Spread, error)
}
