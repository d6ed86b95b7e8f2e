package tts

import (
	"context"
	"crypto/md5"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// CachedSynthesizer keeps synthesized audio on disk keyed by text and voice,
// so replaying a story does not hit the network again.
type CachedSynthesizer struct {
	next         Remote
	voice        string
	cacheRootDir string
}

var _ CacheableEngine = (*CachedSynthesizer)(nil)

func NewCachedSynthesizer(next Remote, voice, cacheDir string) (*CachedSynthesizer, error) {
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache dir: %w", err)
	}
	return &CachedSynthesizer{next: next, voice: voice, cacheRootDir: cacheDir}, nil
}

func (c *CachedSynthesizer) path(text string) string {
	contentHash := md5Sum(text + c.voice)[:16]
	return filepath.Join(c.cacheRootDir, fmt.Sprintf("audio_%s.mp3", contentHash))
}

func (c *CachedSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	path := c.path(text)
	if data, err := os.ReadFile(path); err == nil && len(data) > 0 {
		logrus.WithField("file", path).Debug("Using cached audio")
		return data, nil
	}

	data, err := c.next.Synthesize(ctx, text)
	if err != nil {
		return nil, err
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		logrus.WithError(err).WithField("file", path).Warn("Failed to cache audio")
	} else {
		logrus.WithField("file", path).Debug("Cached audio")
	}
	return data, nil
}

func (c *CachedSynthesizer) GetAvailableVoices(ctx context.Context) ([]string, error) {
	if vl, ok := c.next.(VoiceLister); ok {
		return vl.GetAvailableVoices(ctx)
	}
	return nil, fmt.Errorf("%w: voice listing not supported", ErrUnavailable)
}

// GetCacheStats returns cache statistics
func (c *CachedSynthesizer) GetCacheStats() (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	var totalFiles int64
	var totalSize int64

	err := filepath.Walk(c.cacheRootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Continue walking despite errors
		}

		if !info.IsDir() && strings.HasSuffix(strings.ToLower(info.Name()), ".mp3") {
			totalFiles++
			totalSize += info.Size()
		}
		return nil
	})

	if err != nil {
		return stats, err
	}

	stats["cache_directory"] = c.cacheRootDir
	stats["cached_files"] = totalFiles
	stats["total_size_mb"] = float64(totalSize) / (1024 * 1024)

	return stats, nil
}

// ClearCache removes all cached files
func (c *CachedSynthesizer) ClearCache() error {
	if err := os.RemoveAll(c.cacheRootDir); err != nil {
		return err
	}
	return os.MkdirAll(c.cacheRootDir, 0755)
}

func md5Sum(s string) string {
	h := md5.New()
	io.WriteString(h, s)
	return fmt.Sprintf("%x", h.Sum(nil))
}

// Close closes the wrapped synthesizer if it holds a client.
func (c *CachedSynthesizer) Close() error {
	if cl, ok := c.next.(io.Closer); ok {
		return cl.Close()
	}
	return nil
}
