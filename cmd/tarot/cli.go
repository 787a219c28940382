package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"
	"github.com/yuin/goldmark"

	"github.com/J-York/TarotWhisper/internal/adapters/decks"
	"github.com/J-York/TarotWhisper/internal/client"
	"github.com/J-York/TarotWhisper/internal/config"
	"github.com/J-York/TarotWhisper/internal/domain"
	"github.com/J-York/TarotWhisper/internal/history"
	"github.com/J-York/TarotWhisper/internal/session"
)

// Version is set at build time.
var Version = "dev"

// stdRNG delegates to math/rand/v2 (auto-seeded).
type stdRNG struct{}

func (stdRNG) Intn(n int) int { return rand.IntN(n) }

// env carries the process streams so commands can be driven from tests.
type env struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	rng    domain.RNG
}

func defaultEnv() *env {
	return &env{stdin: os.Stdin, stdout: os.Stdout, stderr: os.Stderr, rng: stdRNG{}}
}

// newCLIApp creates the CLI application with all commands.
func newCLIApp(e *env) *cli.App {
	app := &cli.App{
		Name:      "tarot",
		Usage:     "Tarot readings interpreted by an LLM",
		Version:   Version,
		Reader:    e.stdin,
		Writer:    e.stdout,
		ErrWriter: e.stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "home", EnvVars: []string{"TAROT_HOME"}, Usage: "Directory for settings and history (default ~/.tarot)"},
			&cli.BoolFlag{Name: "verbose", Usage: "Debug logging to stderr"},
		},
		Commands: []*cli.Command{
			readCmd(e),
			spreadsCmd(e),
			cardCmd(e),
			historyCmd(e),
			settingsCmd(e),
			modelsCmd(e),
			relayConfigCmd(e),
		},
	}
	// Errors are returned from Run; main decides the exit code.
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

func baseDir(c *cli.Context) (string, error) {
	if dir := c.String("home"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".tarot"), nil
}

func newLogger(c *cli.Context, e *env) *slog.Logger {
	level := slog.LevelWarn
	if c.Bool("verbose") {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(e.stderr, &slog.HandlerOptions{Level: level}))
}

func loadSettings(c *cli.Context) (string, *config.Settings, error) {
	dir, err := baseDir(c)
	if err != nil {
		return "", nil, err
	}
	s, err := config.LoadSettings(dir)
	if err != nil {
		return "", nil, fmt.Errorf("load settings: %w", err)
	}
	return dir, s, nil
}

func newRelayClient(c *cli.Context, e *env, s *config.Settings) *client.Client {
	relay := s.RelayURL
	if v := c.String("relay"); v != "" {
		relay = v
	}
	return client.New(&http.Client{}, relay, newLogger(c, e))
}

// readCmd runs an interactive reading session.
func readCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "read",
		Usage: "Ask a question, draw cards and stream an interpretation",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "question", Aliases: []string{"q"}, Usage: "Question to ask (prompted when empty)"},
			&cli.StringFlag{Name: "spread", Aliases: []string{"s"}, Value: session.DefaultSpreadID, Usage: "Spread id (see `tarot spreads`)"},
			&cli.BoolFlag{Name: "reveal-all", Usage: "Reveal every card at once instead of one by one"},
			&cli.StringFlag{Name: "relay", Usage: "Relay base URL (overrides settings)"},
		},
		Action: func(c *cli.Context) error {
			ctx := c.Context
			dir, settings, err := loadSettings(c)
			if err != nil {
				return outputError(err)
			}
			store, err := history.Open(dir)
			if err != nil {
				return outputError(fmt.Errorf("open history: %w", err))
			}
			defer store.Close()

			logger := newLogger(c, e)
			rc := newRelayClient(c, e, settings)
			in := bufio.NewScanner(e.stdin)

			if !settings.HasAPIKey() {
				rcfg, err := rc.FetchConfig(ctx)
				if err != nil {
					return outputError(fmt.Errorf("no API key configured and relay config unavailable: %w", err))
				}
				if !rcfg.FallbackAvailable {
					return outputError(fmt.Errorf("%w: run `tarot settings set apiKey <key>`", domain.ErrMissingCredentials))
				}
				fmt.Fprintf(e.stdout, "Using the shared key (limit %d readings per hour).\n", rcfg.RateLimit)
			}

			s, err := session.New(ctx, session.Deps{
				Deck:        decks.NewEmbeddedStore(),
				Interpreter: rc,
				Store:       store,
				RNG:         e.rng,
				Logger:      logger,
			})
			if err != nil {
				return outputError(err)
			}

			question := c.String("question")
			if question == "" {
				question = prompt(e, in, "你的问题: ")
			}
			if err := s.SetQuestion(question); err != nil {
				return outputError(err)
			}
			if err := s.SelectSpread(ctx, c.String("spread")); err != nil {
				return outputError(err)
			}
			if err := s.ConfirmSpread(); err != nil {
				return outputError(err)
			}
			sp := s.Spread()
			fmt.Fprintf(e.stdout, "\n%s (%s), %d 张牌\n", sp.NameCn, sp.Name, len(sp.Positions))

			if err := s.Shuffle(ctx); err != nil {
				return outputError(err)
			}

			if c.Bool("reveal-all") {
				if err := s.RevealAll(); err != nil {
					return outputError(err)
				}
				for _, d := range s.RevealedCards() {
					printCard(e.stdout, d)
				}
			} else {
				for s.Phase() == session.PhaseDraw {
					prompt(e, in, fmt.Sprintf("按回车翻开第 %d 张牌...", s.Revealed()+1))
					d, err := s.RevealNext()
					if err != nil {
						return outputError(err)
					}
					printCard(e.stdout, d)
				}
			}

			fmt.Fprintln(e.stdout, "\n解读中...")
			fmt.Fprintln(e.stdout)
			err = s.Interpret(ctx, settings.APIConfig(), func(delta string) {
				fmt.Fprint(e.stdout, delta)
			})
			fmt.Fprintln(e.stdout)
			if err != nil {
				if s.Interpretation() != "" {
					fmt.Fprintln(e.stdout, "\n(解读未完整结束)")
				}
				return outputError(err)
			}
			if r := s.LastReading(); r != nil {
				fmt.Fprintf(e.stdout, "\n已保存: %s\n", r.ID)
			}
			return nil
		},
	}
}

func prompt(e *env, in *bufio.Scanner, label string) string {
	fmt.Fprint(e.stdout, label)
	if in.Scan() {
		return strings.TrimSpace(in.Text())
	}
	return ""
}

func printCard(w io.Writer, d domain.DrawnCard) {
	o := d.Orientation()
	fmt.Fprintf(w, "【%s】%s（%s）%s\n", d.Position.NameCn, d.Card.NameCn, o.Label(), strings.Join(d.Card.KeywordsFor(o), "、"))
}

// spreadsCmd lists the available spreads.
func spreadsCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "spreads",
		Usage: "List available spreads",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "Output JSON"},
		},
		Action: func(c *cli.Context) error {
			spreads, err := decks.NewEmbeddedStore().Spreads(c.Context)
			if err != nil {
				return outputError(err)
			}
			if c.Bool("json") {
				return outputJSON(e.stdout, spreads)
			}
			tw := tabwriter.NewWriter(e.stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tCARDS\tDESCRIPTION")
			for _, sp := range spreads {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", sp.ID, sp.NameCn, len(sp.Positions), sp.Description)
			}
			return tw.Flush()
		},
	}
}

// cardCmd prints one card's keywords and meanings.
func cardCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:      "card",
		Usage:     "Show one card by id, such as major-00 or cups-03",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "Output JSON"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return outputError(fmt.Errorf("%w: exactly one card id is required", domain.ErrInvalidRequest))
			}
			card, err := decks.NewEmbeddedStore().Card(c.Context, c.Args().First())
			if err != nil {
				return outputError(err)
			}
			if c.Bool("json") {
				return outputJSON(e.stdout, card)
			}
			fmt.Fprintf(e.stdout, "%s (%s)\n", card.NameCn, card.Name)
			for _, o := range []domain.Orientation{domain.Upright, domain.Reversed} {
				fmt.Fprintf(e.stdout, "\n%s: %s\n%s\n", o.Label(), strings.Join(card.KeywordsFor(o), "、"), card.MeaningFor(o))
			}
			return nil
		},
	}
}

func withHistory(c *cli.Context, fn func(*history.Store) error) error {
	dir, err := baseDir(c)
	if err != nil {
		return outputError(err)
	}
	store, err := history.Open(dir)
	if err != nil {
		return outputError(fmt.Errorf("open history: %w", err))
	}
	defer store.Close()
	if err := fn(store); err != nil {
		return outputError(err)
	}
	return nil
}

// historyCmd groups the saved-reading commands.
func historyCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Browse saved readings",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List saved readings, newest first",
				Flags: []cli.Flag{&cli.BoolFlag{Name: "json", Usage: "Output JSON"}},
				Action: func(c *cli.Context) error {
					return withHistory(c, func(store *history.Store) error {
						readings, err := store.List(c.Context)
						if err != nil {
							return err
						}
						if c.Bool("json") {
							return outputJSON(e.stdout, readings)
						}
						tw := tabwriter.NewWriter(e.stdout, 0, 4, 2, ' ', 0)
						fmt.Fprintln(tw, "ID\tDATE\tSPREAD\tQUESTION")
						for _, r := range readings {
							fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.ID, r.CreatedAt.Local().Format(time.DateTime), r.Spread.NameCn, r.Question)
						}
						return tw.Flush()
					})
				},
			},
			{
				Name:      "show",
				Usage:     "Show one reading",
				ArgsUsage: "<id>",
				Flags:     []cli.Flag{&cli.BoolFlag{Name: "html", Usage: "Render the interpretation as HTML"}},
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return outputError(fmt.Errorf("%w: exactly one reading id is required", domain.ErrInvalidRequest))
					}
					return withHistory(c, func(store *history.Store) error {
						r, err := store.Get(c.Context, c.Args().First())
						if err != nil {
							return err
						}
						if c.Bool("html") {
							return renderHTML(e.stdout, r)
						}
						fmt.Fprintf(e.stdout, "%s\n%s  %s\n\n", r.Question, r.CreatedAt.Local().Format(time.DateTime), r.Spread.NameCn)
						for _, d := range r.DrawnCards {
							printCard(e.stdout, d)
						}
						fmt.Fprintf(e.stdout, "\n%s\n", r.Interpretation)
						return nil
					})
				},
			},
			{
				Name:      "delete",
				Usage:     "Delete readings by id",
				ArgsUsage: "<id>...",
				Action: func(c *cli.Context) error {
					if c.NArg() == 0 {
						return outputError(fmt.Errorf("%w: at least one reading id is required", domain.ErrInvalidRequest))
					}
					return withHistory(c, func(store *history.Store) error {
						return store.Delete(c.Context, c.Args().Slice()...)
					})
				},
			},
			{
				Name:  "clear",
				Usage: "Delete every saved reading",
				Action: func(c *cli.Context) error {
					return withHistory(c, func(store *history.Store) error {
						return store.Clear(c.Context)
					})
				},
			},
		},
	}
}

// renderHTML writes a standalone HTML fragment for r. The interpretation is
// markdown from the model.
func renderHTML(w io.Writer, r domain.Reading) error {
	var body bytes.Buffer
	if err := goldmark.Convert([]byte(r.Interpretation), &body); err != nil {
		return fmt.Errorf("render interpretation: %w", err)
	}
	var cards strings.Builder
	for _, d := range r.DrawnCards {
		o := d.Orientation()
		fmt.Fprintf(&cards, "<li>%s: %s (%s)</li>\n", html.EscapeString(d.Position.NameCn), html.EscapeString(d.Card.NameCn), o.Label())
	}
	_, err := fmt.Fprintf(w, "<article>\n<h1>%s</h1>\n<ul>\n%s</ul>\n%s</article>\n", html.EscapeString(r.Question), cards.String(), body.String())
	return err
}

// settingsCmd shows and edits the saved API settings.
func settingsCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "settings",
		Usage: "Show or change API settings",
		Subcommands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Print settings with the API key masked",
				Action: func(c *cli.Context) error {
					_, s, err := loadSettings(c)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(e.stdout, s.Redacted())
				},
			},
			{
				Name:      "set",
				Usage:     "Set one of endpoint, apiKey, model, relay_url",
				ArgsUsage: "<key> <value>",
				Action: func(c *cli.Context) error {
					if c.NArg() != 2 {
						return outputError(fmt.Errorf("%w: usage: tarot settings set <key> <value>", domain.ErrInvalidRequest))
					}
					dir, s, err := loadSettings(c)
					if err != nil {
						return outputError(err)
					}
					if err := s.Set(c.Args().Get(0), c.Args().Get(1)); err != nil {
						return outputError(err)
					}
					if err := config.SaveSettings(dir, s); err != nil {
						return outputError(err)
					}
					return outputJSON(e.stdout, s.Redacted())
				},
			},
		},
	}
}

// modelsCmd lists the models offered by the configured provider.
func modelsCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "models",
		Usage: "List models available at the configured endpoint",
		Action: func(c *cli.Context) error {
			_, s, err := loadSettings(c)
			if err != nil {
				return outputError(err)
			}
			if !s.HasAPIKey() {
				return outputError(fmt.Errorf("%w: run `tarot settings set apiKey <key>`", domain.ErrMissingCredentials))
			}
			rc := newRelayClient(c, e, s)
			models, err := rc.ListModels(c.Context, s.Endpoint, s.APIKey)
			if err != nil {
				return outputError(err)
			}
			for _, m := range models {
				fmt.Fprintln(e.stdout, m.ID)
			}
			return nil
		},
	}
}

// relayConfigCmd prints the relay's public configuration.
func relayConfigCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "relay-config",
		Usage: "Show whether the relay offers a shared key and its hourly limit",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "relay", Usage: "Relay base URL (overrides settings)"},
		},
		Action: func(c *cli.Context) error {
			_, s, err := loadSettings(c)
			if err != nil {
				return outputError(err)
			}
			ctx, cancel := context.WithTimeout(c.Context, 10*time.Second)
			defer cancel()
			cfg, err := newRelayClient(c, e, s).FetchConfig(ctx)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(e.stdout, cfg)
		},
	}
}

func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// outputError wraps err as a cli exit error with status 1.
func outputError(err error) error {
	return cli.Exit(err.Error(), 1)
}
