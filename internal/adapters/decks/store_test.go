package decks_test

import (
	"context"
	"errors"
	"testing"

	"github.com/J-York/TarotWhisper/internal/adapters/decks"
	"github.com/J-York/TarotWhisper/internal/domain"
)

func TestEmbeddedStore_FullDeck(t *testing.T) {
	store := decks.NewEmbeddedStore()
	cards, err := store.Cards(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cards) != 78 {
		t.Fatalf("expected 78 cards, got %d", len(cards))
	}

	seen := make(map[string]bool)
	var major int
	for _, c := range cards {
		if seen[c.ID] {
			t.Errorf("duplicate card ID: %s", c.ID)
		}
		seen[c.ID] = true
		if c.Type == domain.Major {
			major++
		}
		if c.NameCn == "" || len(c.Keywords.Upright) == 0 || len(c.Keywords.Reversed) == 0 {
			t.Errorf("card %s is missing localized data", c.ID)
		}
		if c.Meaning.Upright == "" || c.Meaning.Reversed == "" {
			t.Errorf("card %s is missing meanings", c.ID)
		}
	}
	if major != 22 {
		t.Errorf("expected 22 major arcana, got %d", major)
	}
}

func TestEmbeddedStore_Spreads(t *testing.T) {
	store := decks.NewEmbeddedStore()
	ctx := context.Background()

	sp, err := store.Spread(ctx, decks.DefaultSpreadID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sp.Positions) != 3 {
		t.Errorf("expected 3 positions, got %d", len(sp.Positions))
	}

	celtic, err := store.Spread(ctx, "celtic-cross")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(celtic.Positions) != 10 {
		t.Errorf("expected 10 positions, got %d", len(celtic.Positions))
	}

	if _, err := store.Spread(ctx, "nope"); !errors.Is(err, domain.ErrSpreadNotFound) {
		t.Errorf("expected ErrSpreadNotFound, got %v", err)
	}
}

func TestEmbeddedStore_CardsReturnsCopy(t *testing.T) {
	store := decks.NewEmbeddedStore()
	ctx := context.Background()

	cards, _ := store.Cards(ctx)
	cards[0].ID = "mutated"

	c, err := store.Card(ctx, "major-00")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Name != "The Fool" {
		t.Errorf("unexpected card: %+v", c)
	}
}
