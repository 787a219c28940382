// Package session drives one interactive reading from question to
// interpretation. A Session is not safe for concurrent use.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/J-York/TarotWhisper/internal/client"
	"github.com/J-York/TarotWhisper/internal/domain"
	"github.com/J-York/TarotWhisper/internal/ports"
)

// DefaultSpreadID is selected on start and after every reset.
const DefaultSpreadID = "three-card"

type Phase int

const (
	PhaseQuestion Phase = iota
	PhaseSpread
	PhaseShuffle
	PhaseDraw
	PhaseReveal
	PhaseInterpret
)

func (p Phase) String() string {
	switch p {
	case PhaseQuestion:
		return "question"
	case PhaseSpread:
		return "spread"
	case PhaseShuffle:
		return "shuffle"
	case PhaseDraw:
		return "draw"
	case PhaseReveal:
		return "reveal"
	case PhaseInterpret:
		return "interpret"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

var (
	ErrInvalidTransition = errors.New("invalid session transition")
	ErrAllRevealed       = errors.New("all cards are already revealed")
	// ErrStreamFailed wraps an error frame reported by the relay.
	ErrStreamFailed = errors.New("interpretation stream reported an error")
)

// Interpreter streams an interpretation for a complete reading request.
type Interpreter interface {
	Interpret(ctx context.Context, req domain.ReadingRequest, onDelta func(string)) (client.Result, error)
}

// Deps are the collaborators a Session needs. Now and NewID default to
// time.Now and uuid.NewString.
type Deps struct {
	Deck        ports.DeckStore
	Interpreter Interpreter
	Store       ports.ReadingStore
	RNG         domain.RNG
	Logger      *slog.Logger
	Now         func() time.Time
	NewID       func() string
}

type Session struct {
	deps          Deps
	defaultSpread domain.Spread

	phase          Phase
	question       string
	spread         domain.Spread
	drawn          []domain.DrawnCard
	revealed       int
	interpretation string
	err            error
	usingFallback  bool
	lastReading    *domain.Reading
}

func New(ctx context.Context, deps Deps) (*Session, error) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.NewID == nil {
		deps.NewID = uuid.NewString
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	def, err := deps.Deck.Spread(ctx, DefaultSpreadID)
	if err != nil {
		return nil, fmt.Errorf("load default spread: %w", err)
	}

	s := &Session{deps: deps, defaultSpread: def}
	s.Reset()
	return s, nil
}

func (s *Session) Phase() Phase                 { return s.phase }
func (s *Session) Question() string             { return s.question }
func (s *Session) Spread() domain.Spread        { return s.spread }
func (s *Session) Revealed() int                { return s.revealed }
func (s *Session) Interpretation() string       { return s.interpretation }
func (s *Session) Err() error                   { return s.err }
func (s *Session) UsingFallback() bool          { return s.usingFallback }
func (s *Session) LastReading() *domain.Reading { return s.lastReading }

// Drawn returns a copy of the drawn cards in position order.
func (s *Session) Drawn() []domain.DrawnCard {
	out := make([]domain.DrawnCard, len(s.drawn))
	copy(out, s.drawn)
	return out
}

// RevealedCards returns the cards revealed so far.
func (s *Session) RevealedCards() []domain.DrawnCard {
	out := make([]domain.DrawnCard, s.revealed)
	copy(out, s.drawn[:s.revealed])
	return out
}

// Reset returns to the question phase and clears everything gathered so far.
func (s *Session) Reset() {
	s.phase = PhaseQuestion
	s.question = ""
	s.spread = s.defaultSpread
	s.drawn = nil
	s.revealed = 0
	s.interpretation = ""
	s.err = nil
	s.usingFallback = false
	s.lastReading = nil
}

func (s *Session) expect(phases ...Phase) error {
	for _, p := range phases {
		if s.phase == p {
			return nil
		}
	}
	return fmt.Errorf("%w: cannot do that in phase %s", ErrInvalidTransition, s.phase)
}

// SetQuestion moves question → spread.
func (s *Session) SetQuestion(q string) error {
	if err := s.expect(PhaseQuestion); err != nil {
		return err
	}
	q = strings.TrimSpace(q)
	if q == "" {
		return domain.ErrEmptyQuestion
	}
	s.question = q
	s.phase = PhaseSpread
	return nil
}

// SelectSpread changes the selected spread without leaving the spread phase.
func (s *Session) SelectSpread(ctx context.Context, id string) error {
	if err := s.expect(PhaseSpread); err != nil {
		return err
	}
	sp, err := s.deps.Deck.Spread(ctx, id)
	if err != nil {
		return err
	}
	s.spread = sp
	return nil
}

// ConfirmSpread moves spread → shuffle.
func (s *Session) ConfirmSpread() error {
	if err := s.expect(PhaseSpread); err != nil {
		return err
	}
	if len(s.spread.Positions) == 0 {
		return domain.ErrEmptySpread
	}
	s.phase = PhaseShuffle
	return nil
}

// Shuffle draws one distinct card per position and moves shuffle → draw.
func (s *Session) Shuffle(ctx context.Context) error {
	if err := s.expect(PhaseShuffle); err != nil {
		return err
	}
	deck, err := s.deps.Deck.Cards(ctx)
	if err != nil {
		return fmt.Errorf("load deck: %w", err)
	}
	drawn, err := domain.Draw(deck, s.spread, s.deps.RNG)
	if err != nil {
		return err
	}
	s.drawn = drawn
	s.revealed = 0
	s.phase = PhaseDraw
	return nil
}

// RevealNext turns over the next card. Revealing the last card moves
// draw → reveal.
func (s *Session) RevealNext() (domain.DrawnCard, error) {
	if err := s.expect(PhaseDraw); err != nil {
		return domain.DrawnCard{}, err
	}
	if s.revealed >= len(s.drawn) {
		return domain.DrawnCard{}, ErrAllRevealed
	}
	card := s.drawn[s.revealed]
	s.revealed++
	if s.revealed == len(s.drawn) {
		s.phase = PhaseReveal
	}
	return card, nil
}

// RevealAll turns over every remaining card and moves draw → reveal.
func (s *Session) RevealAll() error {
	if err := s.expect(PhaseDraw); err != nil {
		return err
	}
	s.revealed = len(s.drawn)
	s.phase = PhaseReveal
	return nil
}

// Interpret requests an interpretation; it may be repeated from the
// interpret phase. Text and error from an earlier attempt are cleared first.
// A reading is saved only when some text came back; save failures are
// logged and do not fail the call.
func (s *Session) Interpret(ctx context.Context, api domain.ApiConfig, onDelta func(string)) error {
	if err := s.expect(PhaseReveal, PhaseInterpret); err != nil {
		return err
	}
	s.phase = PhaseInterpret
	s.interpretation = ""
	s.err = nil
	s.usingFallback = false
	s.lastReading = nil

	req := domain.ReadingRequest{
		Question:   s.question,
		Spread:     s.spread,
		DrawnCards: s.Drawn(),
		APIConfig:  api,
	}

	res, err := s.deps.Interpreter.Interpret(ctx, req, onDelta)
	s.interpretation = res.Text
	s.usingFallback = res.UsingFallback
	switch {
	case err != nil:
		s.err = err
	case res.StreamError != "":
		s.err = fmt.Errorf("%w: %s", ErrStreamFailed, res.StreamError)
	}

	if s.interpretation != "" {
		s.save(ctx)
	}
	return s.err
}

func (s *Session) save(ctx context.Context) {
	r := domain.Reading{
		ID:             s.deps.NewID(),
		Question:       s.question,
		Spread:         s.spread,
		DrawnCards:     s.Drawn(),
		Interpretation: s.interpretation,
		CreatedAt:      s.deps.Now(),
	}
	if s.deps.Store == nil {
		s.lastReading = &r
		return
	}
	if err := s.deps.Store.Save(ctx, r); err != nil {
		s.deps.Logger.WarnContext(ctx, "failed to save reading", "reading_id", r.ID, "error", err)
		return
	}
	s.lastReading = &r
}
