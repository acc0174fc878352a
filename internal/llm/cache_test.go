package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingModel struct {
	calls    int
	response string
}

func (m *countingModel) Generate(_ context.Context, _ Request) (string, error) {
	m.calls++
	return m.response, nil
}

func (m *countingModel) Name() string { return "counting-model" }

type mapCache struct {
	entries map[string]string
	err     error
}

func newMapCache() *mapCache { return &mapCache{entries: map[string]string{}} }

func (c *mapCache) GetVisionCache(hash string) (string, bool, error) {
	if c.err != nil {
		return "", false, c.err
	}
	v, ok := c.entries[hash]
	return v, ok, nil
}

func (c *mapCache) SetVisionCache(hash, response string) error {
	if c.err != nil {
		return c.err
	}
	c.entries[hash] = response
	return nil
}

func TestCachedModelHit(t *testing.T) {
	inner := &countingModel{response: `{"ok": true}`}
	cached := NewCachedModel(inner, newMapCache())

	req := Request{
		Prompt: "identify the product",
		Images: []Image{{Data: []byte("jpeg-bytes"), MIMEType: "image/jpeg"}},
		Params: Params{MaxOutputTokens: 1024, Temperature: 0.2},
	}

	first, err := cached.Generate(context.Background(), req)
	require.NoError(t, err)
	second, err := cached.Generate(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.calls)
}

func TestCachedModelDistinguishesRequests(t *testing.T) {
	inner := &countingModel{response: "r"}
	cached := NewCachedModel(inner, newMapCache())

	base := Request{Prompt: "p", Params: Params{MaxOutputTokens: 100, Temperature: 0.5}}

	variants := []Request{
		base,
		{Prompt: "q", Params: base.Params},
		{Prompt: "p", Params: Params{MaxOutputTokens: 200, Temperature: 0.5}},
		{Prompt: "p", Params: Params{MaxOutputTokens: 100, Temperature: 0.6}},
		{Prompt: "p", Images: []Image{{Data: []byte("x")}}, Params: base.Params},
	}
	for _, req := range variants {
		_, err := cached.Generate(context.Background(), req)
		require.NoError(t, err)
	}

	assert.Equal(t, len(variants), inner.calls)
}

func TestHashRequestLengthPrefixing(t *testing.T) {
	// Two images "ab"+"c" must not collide with "a"+"bc".
	a := hashRequest(Request{Images: []Image{{Data: []byte("ab")}, {Data: []byte("c")}}})
	b := hashRequest(Request{Images: []Image{{Data: []byte("a")}, {Data: []byte("bc")}}})
	assert.NotEqual(t, a, b)

	// Prompt/image boundary is also prefixed.
	c := hashRequest(Request{Prompt: "ab", Images: []Image{{Data: []byte("c")}}})
	d := hashRequest(Request{Prompt: "a", Images: []Image{{Data: []byte("bc")}}})
	assert.NotEqual(t, c, d)
}

func TestCachedModelDegradesOnCacheFailure(t *testing.T) {
	inner := &countingModel{response: "live"}
	cached := NewCachedModel(inner, &mapCache{err: errors.New("disk full")})

	got, err := cached.Generate(context.Background(), Request{Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, "live", got)
	assert.Equal(t, 1, inner.calls)
}
