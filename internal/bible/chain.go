package bible

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/verte-zerg/bibleclock/internal/model"
)

// Fetcher is one verse source in a Chain.
type Fetcher interface {
	Verse(ctx context.Context, t model.Translation, book string, chapter, verse int) (string, error)
}

// Cache stores verses fetched from the network.
type Cache interface {
	CachedVerse(ctx context.Context, t model.Translation, book string, chapter, verse int) (string, bool, error)
	PutVerse(ctx context.Context, t model.Translation, book string, chapter, verse int, text string) error
}

// Chain tries local files, then the cache, then the remote service. Remote
// hits are written to the cache.
type Chain struct {
	local  Fetcher
	cache  Cache
	remote Fetcher
}

// NewChain builds a Chain. Any of the sources may be nil.
func NewChain(local Fetcher, cache Cache, remote Fetcher) *Chain {
	return &Chain{local: local, cache: cache, remote: remote}
}

// Verse implements verse.Source.
func (c *Chain) Verse(ctx context.Context, t model.Translation, book string, chapter, verse int) (string, error) {
	if c.local != nil {
		text, err := c.local.Verse(ctx, t, book, chapter, verse)
		if err == nil {
			return text, nil
		}
		if !errors.Is(err, ErrNotFound) {
			log.Printf("bible: local lookup failed: %v", err)
		}
	}
	if c.cache != nil {
		text, ok, err := c.cache.CachedVerse(ctx, t, book, chapter, verse)
		switch {
		case err != nil:
			log.Printf("bible: cache lookup failed: %v", err)
		case ok:
			return text, nil
		}
	}
	if c.remote == nil {
		return "", fmt.Errorf("%s %s %d:%d: %w", t, book, chapter, verse, ErrNotFound)
	}
	text, err := c.remote.Verse(ctx, t, book, chapter, verse)
	if err != nil {
		return "", err
	}
	if c.cache != nil {
		if err := c.cache.PutVerse(ctx, t, book, chapter, verse, text); err != nil {
			log.Printf("bible: cache write failed: %v", err)
		}
	}
	return text, nil
}
