package domain

import (
	"fmt"
	"log/slog"
	"time"
)

// RNG abstracts random number generation for deterministic testing.
type RNG interface {
	// Intn returns a non-negative random int in [0, n).
	Intn(n int) int
}

// CardType separates the major and minor arcana.
type CardType string

const (
	Major CardType = "major"
	Minor CardType = "minor"
)

// Suit of a minor arcana card. Empty for the major arcana.
type Suit string

const (
	Wands     Suit = "wands"
	Cups      Suit = "cups"
	Swords    Suit = "swords"
	Pentacles Suit = "pentacles"
)

// Orientation represents the orientation of a drawn tarot card.
type Orientation string

const (
	Upright  Orientation = "upright"
	Reversed Orientation = "reversed"
)

// Label is the localized orientation label used in prompts and the CLI.
func (o Orientation) Label() string {
	if o == Reversed {
		return "逆位"
	}
	return "正位"
}

// Keywords holds orientation-specific keyword lists.
type Keywords struct {
	Upright  []string `json:"upright"`
	Reversed []string `json:"reversed"`
}

// Meaning holds orientation-specific meaning text.
type Meaning struct {
	Upright  string `json:"upright"`
	Reversed string `json:"reversed"`
}

// Card represents a single tarot card in the deck.
type Card struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	NameCn   string   `json:"nameCn"`
	Type     CardType `json:"type"`
	Suit     Suit     `json:"suit,omitempty"`
	Number   int      `json:"number"`
	Keywords Keywords `json:"keywords"`
	Meaning  Meaning  `json:"meaning"`
}

// KeywordsFor returns the keyword list for the given orientation.
func (c Card) KeywordsFor(o Orientation) []string {
	if o == Reversed {
		return c.Keywords.Reversed
	}
	return c.Keywords.Upright
}

// MeaningFor returns the meaning text for the given orientation.
func (c Card) MeaningFor(o Orientation) string {
	if o == Reversed {
		return c.Meaning.Reversed
	}
	return c.Meaning.Upright
}

// SpreadPosition is one slot of a spread layout.
type SpreadPosition struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	NameCn      string `json:"nameCn"`
	Description string `json:"description"`
}

// Spread is a named layout of ordered positions.
type Spread struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	NameCn      string           `json:"nameCn"`
	Description string           `json:"description"`
	Positions   []SpreadPosition `json:"positions"`
}

// DrawnCard is a deck card bound to one spread position with an orientation.
type DrawnCard struct {
	Card       Card           `json:"card"`
	IsReversed bool           `json:"isReversed"`
	Position   SpreadPosition `json:"position"`
}

// Orientation reports the orientation of the drawn card.
func (d DrawnCard) Orientation() Orientation {
	if d.IsReversed {
		return Reversed
	}
	return Upright
}

// ApiConfig points at an OpenAI-compatible chat-completions endpoint.
// APIKey is secret material and must never be logged or persisted with a reading.
type ApiConfig struct {
	Endpoint string `json:"endpoint"`
	APIKey   string `json:"apiKey"`
	Model    string `json:"model"`
}

func (c ApiConfig) String() string {
	return fmt.Sprintf("{endpoint:%s model:%s has_key:%t}", c.Endpoint, c.Model, c.APIKey != "")
}

// LogValue keeps the key out of structured logs.
func (c ApiConfig) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("endpoint", c.Endpoint),
		slog.String("model", c.Model),
		slog.Bool("has_key", c.APIKey != ""),
	)
}

// ReadingRequest is what the client submits to the relay.
type ReadingRequest struct {
	Question   string      `json:"question"`
	Spread     Spread      `json:"spread"`
	DrawnCards []DrawnCard `json:"drawnCards"`
	APIConfig  ApiConfig   `json:"apiConfig"`
}

// Reading is a completed, persisted tarot reading.
type Reading struct {
	ID             string      `json:"id"`
	Question       string      `json:"question"`
	Spread         Spread      `json:"spread"`
	DrawnCards     []DrawnCard `json:"drawnCards"`
	Interpretation string      `json:"interpretation"`
	CreatedAt      time.Time   `json:"createdAt"`
}
