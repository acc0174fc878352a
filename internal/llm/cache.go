package llm

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"

	"github.com/rs/zerolog/log"
)

// ResponseCache persists raw model responses keyed by request hash.
type ResponseCache interface {
	GetVisionCache(hash string) (string, bool, error)
	SetVisionCache(hash, response string) error
}

// CachedModel wraps a Model with response caching. Identical requests (same
// prompt, same image bytes, same params) return the cached raw text without
// hitting the provider. Cache failures degrade to a provider call; they never
// fail the request.
type CachedModel struct {
	inner Model
	cache ResponseCache
}

// NewCachedModel creates a cached model.
func NewCachedModel(inner Model, cache ResponseCache) *CachedModel {
	return &CachedModel{inner: inner, cache: cache}
}

// Name implements the Model interface.
func (c *CachedModel) Name() string {
	return c.inner.Name()
}

// hashRequest creates a SHA256 hash over the prompt and image bytes.
// Each component is length-prefixed to prevent boundary collisions
// (e.g. [A,B] vs [AB]).
func hashRequest(req Request) string {
	h := sha256.New()
	binary.Write(h, binary.LittleEndian, int64(len(req.Prompt)))
	h.Write([]byte(req.Prompt))
	for _, img := range req.Images {
		binary.Write(h, binary.LittleEndian, int64(len(img.Data)))
		h.Write(img.Data)
	}
	binary.Write(h, binary.LittleEndian, req.Params.MaxOutputTokens)
	binary.Write(h, binary.LittleEndian, req.Params.Temperature)
	return hex.EncodeToString(h.Sum(nil))
}

// Generate implements the Model interface with caching.
func (c *CachedModel) Generate(ctx context.Context, req Request) (string, error) {
	hash := hashRequest(req)

	if c.cache != nil {
		cached, ok, err := c.cache.GetVisionCache(hash)
		if err != nil {
			log.Warn().Err(err).Msg("failed to check vision cache")
		} else if ok {
			log.Debug().Str("hash", hash[:16]).Msg("vision cache hit")
			return cached, nil
		}
	}

	text, err := c.inner.Generate(ctx, req)
	if err != nil {
		return "", err
	}

	if c.cache != nil {
		if err := c.cache.SetVisionCache(hash, text); err != nil {
			log.Warn().Err(err).Msg("failed to cache vision result")
		} else {
			log.Debug().Str("hash", hash[:16]).Msg("cached vision result")
		}
	}

	return text, nil
}
