package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/danieldreier/ankoma-flashcards/internal/config"
	"github.com/danieldreier/ankoma-flashcards/internal/logging"
	"github.com/danieldreier/ankoma-flashcards/internal/storage"
)

// loadTimeout bounds the initial deck load.
const loadTimeout = 2 * time.Minute

const ankomaServerInfo = `
This server runs pathology flashcard study sessions over the ANKOMA deck.
Cards are cloze deletions ({{c1::...}}), basic question/answer cards or image
occlusion cards. Follow this workflow:

1. CHOOSING WHAT TO STUDY:
   - Use list_sections to browse the deck tree, or list_decks for the
     AP/CP categories derived from card tags
   - Call start_session with a section_id, or with a deck_id and category_id
   - Pass a shuffle seed to study the cards in a random order

2. STUDYING A CARD:
   - Show the question_html of the card; hidden clozes appear as [...]
   - Let the student answer before revealing anything
   - Reveal clozes one at a time with reveal_cloze, or press_key with "space"
     to reveal the lowest hidden cloze
   - For basic and image occlusion cards use toggle_answer

3. MOVING ON:
   - press_key "space" once everything is shown moves to the next card
   - navigate goes next or previous; a new card always starts hidden
   - reset_card hides the current card again

4. FINISHING:
   - Call end_session when the student is done
`

// flags are the command-line settings layered over the configuration.
type flags struct {
	configFile string
	envFile    string
	deckPath   string
	deckURL    string
	cachePath  string
	logMode    string
	set        map[string]bool
}

func parseFlags(args []string) (flags, error) {
	var f flags
	fs := flag.NewFlagSet("ankoma", flag.ContinueOnError)
	fs.StringVar(&f.configFile, "config", "", "Path to a YAML configuration file")
	fs.StringVar(&f.envFile, "env", ".env", "Path to a .env file")
	fs.StringVar(&f.deckPath, "deck", "", "Path to the ankoma.json deck file")
	fs.StringVar(&f.deckURL, "deck-url", "", "URL to download ankoma.json from")
	fs.StringVar(&f.cachePath, "cache", "", "Path of the downloaded deck cache")
	fs.StringVar(&f.logMode, "log", "", "Log mode: dev, prod or nop")
	if err := fs.Parse(args); err != nil {
		return f, err
	}
	f.set = make(map[string]bool)
	fs.Visit(func(fl *flag.Flag) { f.set[fl.Name] = true })
	return f, nil
}

// loadConfig builds the configuration from files, environment and flags, the
// flags winning.
func loadConfig(args []string) (config.Config, error) {
	f, err := parseFlags(args)
	if err != nil {
		return config.Config{}, err
	}
	cfg, err := config.Load(config.Options{ConfigFile: f.configFile, EnvFile: f.envFile})
	if err != nil {
		return cfg, err
	}
	if f.set["deck"] {
		cfg.DeckPath = f.deckPath
	}
	if f.set["deck-url"] {
		cfg.DeckURL = f.deckURL
	}
	if f.set["cache"] {
		cfg.CachePath = f.cachePath
	}
	if f.set["log"] {
		cfg.LogMode = f.logMode
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newSource picks the deck source: a download when a deck URL is configured,
// the local file otherwise.
func newSource(cfg config.Config, logger *zap.Logger) storage.Source {
	if cfg.DeckURL != "" {
		return storage.NewHTTPSource(storage.HTTPConfig{
			URL:       cfg.DeckURL,
			CachePath: cfg.CachePath,
			TTL:       cfg.CacheTTL,
			Logger:    logger,
		})
	}
	return storage.NewFileSource(cfg.DeckPath, logger)
}

type toolHandler func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)

type toolEntry struct {
	tool    mcp.Tool
	handler toolHandler
}

func sessionIDParam() mcp.ToolOption {
	return mcp.WithString("session_id",
		mcp.Required(),
		mcp.Description("The id returned by start_session"),
	)
}

// tools lists every tool the server exposes.
func tools() []toolEntry {
	return []toolEntry{
		{
			tool: mcp.NewTool("list_sections",
				mcp.WithDescription("List the sections of the deck tree with card counts. "+
					"Pass a query to keep only sections whose name, cards or tags match."),
				mcp.WithString("query",
					mcp.Description("Case-insensitive search text"),
				),
			),
			handler: handleListSections,
		},
		{
			tool: mcp.NewTool("list_decks",
				mcp.WithDescription("List the AP/CP decks, categories and subcategories derived from #ANKOMA:: card tags."),
			),
			handler: handleListDecks,
		},
		{
			tool: mcp.NewTool("start_session",
				mcp.WithDescription("Start a study session and show its first card. "+
					"Select cards by section_id, or by deck_id and category_id with an optional subcategory. "+
					"An unknown section falls back to the first section with cards."),
				mcp.WithString("section_id",
					mcp.Description("Section id from list_sections"),
				),
				mcp.WithString("deck_id",
					mcp.Description("Deck id from list_decks, e.g. AP"),
				),
				mcp.WithString("category_id",
					mcp.Description("Category id from list_decks"),
				),
				mcp.WithString("subcategory",
					mcp.Description("Subcategory name from list_decks"),
				),
				mcp.WithNumber("shuffle",
					mcp.Description("Seed to shuffle the cards with"),
				),
			),
			handler: handleStartSession,
		},
		{
			tool: mcp.NewTool("show_card",
				mcp.WithDescription("Show the current card of a session with its reveal state."),
				sessionIDParam(),
			),
			handler: handleShowCard,
		},
		{
			tool: mcp.NewTool("reveal_cloze",
				mcp.WithDescription("Toggle one cloze group (c1, c2, ...) of the current card, or reveal all of them."),
				sessionIDParam(),
				mcp.WithNumber("index",
					mcp.Description("Cloze number to toggle, 1 for c1"),
				),
				mcp.WithBoolean("all",
					mcp.Description("Reveal every cloze group"),
				),
			),
			handler: handleRevealCloze,
		},
		{
			tool: mcp.NewTool("toggle_answer",
				mcp.WithDescription("Show or hide the answer of a basic or image occlusion card."),
				sessionIDParam(),
			),
			handler: handleToggleAnswer,
		},
		{
			tool: mcp.NewTool("press_key",
				mcp.WithDescription("Press a key on the card view: space or enter reveal the next cloze or the answer "+
					"and then advance, left and right navigate, r with ctrl or meta resets the card."),
				sessionIDParam(),
				mcp.WithString("key",
					mcp.Required(),
					mcp.Description("Key code such as Space, Enter, ArrowLeft, ArrowRight or KeyR"),
				),
				mcp.WithBoolean("ctrl",
					mcp.Description("Ctrl is held"),
				),
				mcp.WithBoolean("meta",
					mcp.Description("Meta (Cmd) is held"),
				),
				mcp.WithBoolean("in_text_input",
					mcp.Description("The key was typed into a text input"),
				),
			),
			handler: handlePressKey,
		},
		{
			tool: mcp.NewTool("navigate",
				mcp.WithDescription("Move to the next or previous card. The new card starts hidden."),
				sessionIDParam(),
				mcp.WithString("direction",
					mcp.Description("next or previous"),
				),
			),
			handler: handleNavigate,
		},
		{
			tool: mcp.NewTool("reset_card",
				mcp.WithDescription("Hide every cloze and the answer of the current card again."),
				sessionIDParam(),
			),
			handler: handleResetCard,
		},
		{
			tool: mcp.NewTool("end_session",
				mcp.WithDescription("End a study session."),
				sessionIDParam(),
			),
			handler: handleEndSession,
		},
	}
}

// newServer creates the MCP server with every tool and resource bound to svc.
func newServer(svc *StudyService) *server.MCPServer {
	s := server.NewMCPServer(
		"Ankoma Flashcards MCP",
		"1.0.0",
		server.WithInstructions(ankomaServerInfo),
		server.WithResourceCapabilities(true, true),
		server.WithToolCapabilities(true),
		server.WithLogging(),
	)

	for _, t := range tools() {
		h := t.handler
		s.AddTool(t.tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return h(withService(ctx, svc), request)
		})
	}

	s.AddResource(
		mcp.NewResource(DeckOverviewURI, "deck-overview",
			mcp.WithResourceDescription("Total cards, top-level sections with statistics and tag-derived decks"),
			mcp.WithMIMEType("application/json"),
		),
		func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
			return handleDeckOverviewResource(withService(ctx, svc), request)
		},
	)
	return s
}

func main() {
	cfg, err := loadConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.MustNew(cfg.LogMode)
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
	data, err := newSource(cfg, logger).Load(ctx)
	cancel()
	if err != nil {
		logger.Error("Error loading deck", zap.Error(err))
		os.Exit(1)
	}

	svc := NewStudyService(data, cfg, logger)
	defer svc.Close()

	if err := server.ServeStdio(newServer(svc)); err != nil {
		logger.Error("Error serving MCP server", zap.Error(err))
	}
}
