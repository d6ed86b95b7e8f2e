package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"storyecho/internal/domain/library"
	"storyecho/internal/domain/story"
	"time"

	"github.com/sirupsen/logrus"
)

// Catalog fetches a theme library published as JSON and caches it on disk
type Catalog struct {
	url        string
	cacheDir   string
	cacheFile  string
	maxAge     time.Duration
	httpClient *http.Client
}

// cachedCatalog represents the cached library data
type cachedCatalog struct {
	Library     library.ThemeLibrary `json:"library"`
	LastUpdated time.Time            `json:"last_updated"`
	TotalThemes int                  `json:"total_themes"`
}

// NewCatalog creates a catalog for url cached under cacheDir
func NewCatalog(url, cacheDir string, maxAge time.Duration) *Catalog {
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		logrus.WithError(err).Warn("Failed to create cache directory")
	}

	return &Catalog{
		url:       url,
		cacheDir:  cacheDir,
		cacheFile: filepath.Join(cacheDir, "theme_catalog.json"),
		maxAge:    maxAge,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Catalog) Name() string { return "Online Themes" }

func (c *Catalog) ListThemes(ctx context.Context) ([]library.Theme, error) {
	lib, err := c.GetLibrary(ctx)
	if err != nil {
		return nil, err
	}
	return lib.Themes, nil
}

func (c *Catalog) LoadTheme(ctx context.Context, id string) (*story.Story, error) {
	lib, err := c.GetLibrary(ctx)
	if err != nil {
		return nil, err
	}
	theme, ok := lib.Find(id)
	if !ok || theme.Story == nil {
		return nil, fmt.Errorf("%w: %s", library.ErrThemeNotFound, id)
	}
	if err := theme.Story.Validate(); err != nil {
		return nil, err
	}
	return theme.Story, nil
}

// GetLibrary returns the catalog, fetching from cache or the network as needed
func (c *Catalog) GetLibrary(ctx context.Context) (*library.ThemeLibrary, error) {
	if c.isCacheFresh() {
		logrus.Debug("Loading theme catalog from cache")
		return c.loadFromCache()
	}

	logrus.Info("Fetching fresh theme catalog")
	lib, err := c.fetch(ctx)
	if err != nil {
		// If the network fails, try to load from cache even if stale
		logrus.WithError(err).Warn("Catalog fetch failed, trying stale cache")
		if cached, cacheErr := c.loadFromCache(); cacheErr == nil {
			return cached, nil
		}
		return nil, fmt.Errorf("failed to fetch catalog and no cache available: %w", err)
	}

	if err := c.saveToCache(lib); err != nil {
		logrus.WithError(err).Warn("Failed to save to cache")
	}

	return lib, nil
}

// isCacheFresh checks if the cache file exists and is within the max age
func (c *Catalog) isCacheFresh() bool {
	info, err := os.Stat(c.cacheFile)
	if err != nil {
		return false
	}

	return time.Since(info.ModTime()) < c.maxAge
}

func (c *Catalog) loadFromCache() (*library.ThemeLibrary, error) {
	file, err := os.Open(c.cacheFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache file: %w", err)
	}
	defer file.Close()

	var cached cachedCatalog
	if err := json.NewDecoder(file).Decode(&cached); err != nil {
		return nil, fmt.Errorf("failed to decode cache file: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"themes":       len(cached.Library.Themes),
		"last_updated": cached.LastUpdated.Format(time.RFC3339),
	}).Debug("Loaded theme catalog from cache")

	return &cached.Library, nil
}

func (c *Catalog) saveToCache(lib *library.ThemeLibrary) error {
	cached := cachedCatalog{
		Library:     *lib,
		LastUpdated: time.Now(),
		TotalThemes: len(lib.Themes),
	}

	file, err := os.Create(c.cacheFile)
	if err != nil {
		return fmt.Errorf("failed to create cache file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(cached); err != nil {
		return fmt.Errorf("failed to encode cache data: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"themes": len(lib.Themes),
		"file":   c.cacheFile,
	}).Debug("Saved theme catalog to cache")

	return nil
}

func (c *Catalog) fetch(ctx context.Context) (*library.ThemeLibrary, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL %s: %w", c.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog returned status %d for URL %s", resp.StatusCode, c.url)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var lib library.ThemeLibrary
	if err := json.Unmarshal(body, &lib); err != nil {
		return nil, fmt.Errorf("failed to parse JSON response: %w", err)
	}
	lib.URL = c.url

	// Drop entries the engine could not play
	valid := lib.Themes[:0]
	for _, t := range lib.Themes {
		if err := t.Story.Validate(); err != nil {
			logrus.WithError(err).WithField("theme", t.ID).Warn("Skipping invalid theme")
			continue
		}
		valid = append(valid, t)
	}
	lib.Themes = valid

	return &lib, nil
}

// ClearCache removes the cache file
func (c *Catalog) ClearCache() error {
	if err := os.Remove(c.cacheFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	logrus.Info("Cleared theme catalog cache")
	return nil
}
