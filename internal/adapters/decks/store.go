package decks

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/J-York/TarotWhisper/internal/domain"
)

//go:embed data/*.json
var deckFS embed.FS

const (
	deckFile    = "data/tarot_deck.json"
	spreadsFile = "data/spreads.json"

	// DefaultSpreadID is preselected when a session starts or resets.
	DefaultSpreadID = "three-card"
)

// EmbeddedStore loads the 78-card deck and the spread layouts from embedded JSON.
type EmbeddedStore struct {
	once    sync.Once
	cards   []domain.Card
	spreads []domain.Spread
	err     error
}

func NewEmbeddedStore() *EmbeddedStore {
	return &EmbeddedStore{}
}

func (s *EmbeddedStore) init() {
	if err := readJSON(deckFile, &s.cards); err != nil {
		s.err = err
		return
	}
	if err := readJSON(spreadsFile, &s.spreads); err != nil {
		s.err = err
		return
	}
}

func readJSON(name string, v any) error {
	raw, err := deckFS.ReadFile(name)
	if err != nil {
		return fmt.Errorf("read embedded %s: %w", name, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("parse embedded %s: %w", name, err)
	}
	return nil
}

// Cards returns a copy of the full deck.
func (s *EmbeddedStore) Cards(_ context.Context) ([]domain.Card, error) {
	s.once.Do(s.init)
	if s.err != nil {
		return nil, s.err
	}
	return append([]domain.Card(nil), s.cards...), nil
}

func (s *EmbeddedStore) Spreads(_ context.Context) ([]domain.Spread, error) {
	s.once.Do(s.init)
	if s.err != nil {
		return nil, s.err
	}
	return append([]domain.Spread(nil), s.spreads...), nil
}

func (s *EmbeddedStore) Spread(_ context.Context, id string) (domain.Spread, error) {
	s.once.Do(s.init)
	if s.err != nil {
		return domain.Spread{}, s.err
	}
	for _, sp := range s.spreads {
		if sp.ID == id {
			return sp, nil
		}
	}
	return domain.Spread{}, domain.ErrSpreadNotFound
}

// Card looks up a single card by ID.
func (s *EmbeddedStore) Card(_ context.Context, id string) (domain.Card, error) {
	s.once.Do(s.init)
	if s.err != nil {
		return domain.Card{}, s.err
	}
	for _, c := range s.cards {
		if c.ID == id {
			return c, nil
		}
	}
	return domain.Card{}, domain.ErrCardNotFound
}
