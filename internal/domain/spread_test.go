package domain_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/J-York/TarotWhisper/internal/domain"
)

// deterministicRNG returns values from a pre-set sequence.
type deterministicRNG struct {
	values []int
	idx    int
}

func (r *deterministicRNG) Intn(n int) int {
	v := r.values[r.idx%len(r.values)] % n
	r.idx++
	return v
}

// seqRNG is a tiny LCG, enough to scramble a deck reproducibly.
type seqRNG struct{ state int }

func (r *seqRNG) Intn(n int) int {
	r.state = (r.state*1103515245 + 12345) & 0x7fffffff
	return r.state % n
}

func testDeck(n int) []domain.Card {
	cards := make([]domain.Card, n)
	for i := range n {
		cards[i] = domain.Card{
			ID:     fmt.Sprintf("card-%02d", i),
			Name:   fmt.Sprintf("Card %d", i),
			NameCn: fmt.Sprintf("牌%d", i),
			Keywords: domain.Keywords{
				Upright:  []string{"kw1", "kw2"},
				Reversed: []string{"rkw1"},
			},
			Meaning: domain.Meaning{Upright: "Up.", Reversed: "Down."},
		}
	}
	return cards
}

func testSpread(k int) domain.Spread {
	positions := make([]domain.SpreadPosition, k)
	for i := range k {
		positions[i] = domain.SpreadPosition{ID: fmt.Sprintf("pos-%d", i), NameCn: fmt.Sprintf("位置%d", i)}
	}
	return domain.Spread{ID: "test", Positions: positions}
}

func TestDraw_DistinctCardsForEveryPosition(t *testing.T) {
	deck := testDeck(78)
	for _, k := range []int{1, 3, 10, 78} {
		drawn, err := domain.Draw(deck, testSpread(k), &seqRNG{state: k})
		if err != nil {
			t.Fatalf("k=%d: unexpected error: %v", k, err)
		}
		if len(drawn) != k {
			t.Fatalf("k=%d: expected %d cards, got %d", k, k, len(drawn))
		}
		seen := make(map[string]bool)
		for _, c := range drawn {
			if seen[c.Card.ID] {
				t.Errorf("k=%d: duplicate card ID: %s", k, c.Card.ID)
			}
			seen[c.Card.ID] = true
		}
	}
}

func TestDraw_PositionOrder(t *testing.T) {
	spread := testSpread(5)
	drawn, err := domain.Draw(testDeck(22), spread, &seqRNG{state: 7})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, c := range drawn {
		if c.Position.ID != spread.Positions[i].ID {
			t.Errorf("card %d: expected position %s, got %s", i, spread.Positions[i].ID, c.Position.ID)
		}
	}
}

func TestDraw_Orientation(t *testing.T) {
	deck := testDeck(5)
	rng := &deterministicRNG{values: []int{
		0, 0, 0, 0, // shuffle (4 swaps for 5 cards)
		0, 1, 0, // orientation: upright, reversed, upright
	}}

	drawn, err := domain.Draw(deck, testSpread(3), rng)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := []domain.Orientation{domain.Upright, domain.Reversed, domain.Upright}
	for i, c := range drawn {
		if c.Orientation() != expected[i] {
			t.Errorf("card %d: expected %s, got %s", i, expected[i], c.Orientation())
		}
	}
}

func TestDraw_EmptySpread(t *testing.T) {
	_, err := domain.Draw(testDeck(5), domain.Spread{}, &deterministicRNG{values: []int{0}})
	if !errors.Is(err, domain.ErrEmptySpread) {
		t.Errorf("expected ErrEmptySpread, got %v", err)
	}
}

func TestDraw_DeckTooSmall(t *testing.T) {
	_, err := domain.Draw(testDeck(2), testSpread(5), &deterministicRNG{values: []int{0}})
	if !errors.Is(err, domain.ErrDeckTooSmall) {
		t.Errorf("expected ErrDeckTooSmall, got %v", err)
	}
}

func TestReadingRequest_Validate(t *testing.T) {
	spread := testSpread(3)
	drawn, _ := domain.Draw(testDeck(10), spread, &seqRNG{})

	tests := []struct {
		name string
		req  domain.ReadingRequest
		want error
	}{
		{"ok", domain.ReadingRequest{Question: "q", Spread: spread, DrawnCards: drawn}, nil},
		{"blank question", domain.ReadingRequest{Question: "  ", Spread: spread, DrawnCards: drawn}, domain.ErrEmptyQuestion},
		{"no positions", domain.ReadingRequest{Question: "q"}, domain.ErrEmptySpread},
		{"short draw", domain.ReadingRequest{Question: "q", Spread: spread, DrawnCards: drawn[:2]}, domain.ErrCardCountMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.req.Validate(); !errors.Is(err, tt.want) {
				t.Errorf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestRateLimitError_MentionsCap(t *testing.T) {
	err := error(&domain.RateLimitError{Limit: 10})
	if !errors.Is(err, domain.ErrRateLimited) {
		t.Fatal("RateLimitError should unwrap to ErrRateLimited")
	}
	if got := err.Error(); !strings.Contains(got, "10") {
		t.Errorf("message %q does not mention the cap", got)
	}
}

func TestApiConfig_StringRedactsKey(t *testing.T) {
	cfg := domain.ApiConfig{Endpoint: "https://api.example.com/v1", APIKey: "sk-secret", Model: "m"}
	if s := cfg.String(); strings.Contains(s, "sk-secret") {
		t.Errorf("String leaked key: %s", s)
	}
	if s := fmt.Sprintf("%v", cfg); strings.Contains(s, "sk-secret") {
		t.Errorf("%%v leaked key: %s", s)
	}
}
