package domain

import "strings"

// Draw deals one distinct card from deck for each position of spread, in
// position order. Orientation is 50/50 upright/reversed.
func Draw(deck []Card, spread Spread, rng RNG) ([]DrawnCard, error) {
	n := len(spread.Positions)
	if n == 0 {
		return nil, ErrEmptySpread
	}
	if n > len(deck) {
		return nil, ErrDeckTooSmall
	}

	// Fisher-Yates over the whole deck; the first n slots are the draw.
	indices := make([]int, len(deck))
	for i := range indices {
		indices[i] = i
	}
	for i := len(indices) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		indices[i], indices[j] = indices[j], indices[i]
	}

	cards := make([]DrawnCard, n)
	for i, pos := range spread.Positions {
		cards[i] = DrawnCard{
			Card:       deck[indices[i]],
			IsReversed: rng.Intn(2) == 1,
			Position:   pos,
		}
	}
	return cards, nil
}

// Validate checks the request shape the relay relies on.
func (r ReadingRequest) Validate() error {
	if strings.TrimSpace(r.Question) == "" {
		return ErrEmptyQuestion
	}
	if len(r.Spread.Positions) == 0 {
		return ErrEmptySpread
	}
	if len(r.DrawnCards) != len(r.Spread.Positions) {
		return ErrCardCountMismatch
	}
	return nil
}
