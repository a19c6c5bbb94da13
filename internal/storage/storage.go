// Package storage loads deck data: from a local ankoma.json file, or over HTTP
// with an on-disk copy that is reused while it is fresh.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/danieldreier/ankoma-flashcards/internal/deck"
)

// DefaultTTL is how long a cached deck download is served without refetching.
const DefaultTTL = 24 * time.Hour

// ErrDeckNotFound is returned when the deck file does not exist
var ErrDeckNotFound = errors.New("deck not found")
var ErrEmptyDeck = errors.New("deck is empty")

// Source supplies parsed deck data.
type Source interface {
	Load(ctx context.Context) (*deck.Data, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) (*deck.Data, error)

// Load calls f.
func (f SourceFunc) Load(ctx context.Context) (*deck.Data, error) {
	return f(ctx)
}

// FileSource reads ankoma.json from disk.
type FileSource struct {
	path   string
	logger *zap.Logger
	now    func() time.Time
}

// NewFileSource creates a source for the file at path.
func NewFileSource(path string, logger *zap.Logger) *FileSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileSource{path: path, logger: logger, now: time.Now}
}

// Load reads and parses the deck file.
func (fs *FileSource) Load(ctx context.Context) (*deck.Data, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fs.logger.Info("Loading deck file", zap.String("path", fs.path))

	b, err := os.ReadFile(fs.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrDeckNotFound, fs.path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read deck file: %w", err)
	}
	if len(b) == 0 {
		return nil, ErrEmptyDeck
	}

	data, err := deck.DecodeJSON(b, fs.now())
	if err != nil {
		return nil, err
	}
	fs.logger.Info("Deck loaded",
		zap.String("path", fs.path),
		zap.Int("sections", len(data.Sections)),
		zap.Int("cards", data.TotalCards))
	return data, nil
}

// HTTPConfig configures an HTTPSource.
type HTTPConfig struct {
	URL string
	// CachePath is where the last download is kept. Empty disables caching.
	CachePath string
	TTL       time.Duration
	Client    *http.Client
	Logger    *zap.Logger
}

// HTTPSource downloads ankoma.json. A cached copy younger than the TTL is used
// instead of downloading; an older copy is still used when the download fails.
type HTTPSource struct {
	cfg    HTTPConfig
	logger *zap.Logger
	now    func() time.Time
	mu     sync.Mutex
}

// cachedDeck is the on-disk cache format.
type cachedDeck struct {
	URL       string          `json:"url"`
	FetchedAt time.Time       `json:"fetched_at"`
	Deck      json.RawMessage `json:"deck"`
}

// NewHTTPSource creates a source downloading from cfg.URL.
func NewHTTPSource(cfg HTTPConfig) *HTTPSource {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Client == nil {
		cfg.Client = http.DefaultClient
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPSource{cfg: cfg, logger: logger, now: time.Now}
}

// Load returns the deck from the fresh cache or downloads it.
func (hs *HTTPSource) Load(ctx context.Context) (*deck.Data, error) {
	hs.mu.Lock()
	defer hs.mu.Unlock()

	cached := hs.readCache()
	if cached != nil && hs.now().Sub(cached.FetchedAt) < hs.cfg.TTL {
		data, err := deck.DecodeJSON(cached.Deck, hs.now())
		if err == nil {
			hs.logger.Info("Using cached deck",
				zap.String("path", hs.cfg.CachePath),
				zap.Time("fetched_at", cached.FetchedAt))
			return data, nil
		}
		hs.logger.Warn("Cached deck does not decode, downloading", zap.Error(err))
		cached = nil
	}

	body, err := hs.fetch(ctx)
	if err != nil {
		if cached != nil {
			hs.logger.Warn("Deck download failed, using stale cache",
				zap.Error(err),
				zap.Time("fetched_at", cached.FetchedAt))
			return deck.DecodeJSON(cached.Deck, hs.now())
		}
		return nil, err
	}

	data, err := deck.DecodeJSON(body, hs.now())
	if err != nil {
		return nil, err
	}
	if err := hs.writeCache(cachedDeck{URL: hs.cfg.URL, FetchedAt: hs.now(), Deck: body}); err != nil {
		hs.logger.Warn("Failed to cache deck", zap.Error(err))
	}
	hs.logger.Info("Deck downloaded",
		zap.String("url", hs.cfg.URL),
		zap.Int("cards", data.TotalCards))
	return data, nil
}

func (hs *HTTPSource) fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, hs.cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build deck request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := hs.cfg.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch deck: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrDeckNotFound, hs.cfg.URL)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("failed to fetch deck: %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read deck: %w", err)
	}
	if len(body) == 0 {
		return nil, ErrEmptyDeck
	}
	return body, nil
}

// readCache returns the cached download for the configured URL, or nil.
func (hs *HTTPSource) readCache() *cachedDeck {
	if hs.cfg.CachePath == "" {
		return nil
	}
	b, err := os.ReadFile(hs.cfg.CachePath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			hs.logger.Warn("Failed to read deck cache", zap.Error(err))
		}
		return nil
	}
	var c cachedDeck
	if err := json.Unmarshal(b, &c); err != nil {
		hs.logger.Warn("Ignoring corrupt deck cache", zap.Error(err))
		return nil
	}
	if c.URL != hs.cfg.URL || len(c.Deck) == 0 {
		return nil
	}
	return &c
}

// writeCache stores the download atomically: temp file, then rename.
func (hs *HTTPSource) writeCache(c cachedDeck) error {
	if hs.cfg.CachePath == "" {
		return nil
	}
	b, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal deck cache: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(hs.cfg.CachePath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	tempFile := hs.cfg.CachePath + ".tmp"
	if err := os.WriteFile(tempFile, b, 0644); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to write temporary file: %w", err)
	}
	if err := os.Rename(tempFile, hs.cfg.CachePath); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}
	return nil
}
