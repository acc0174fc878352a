package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ArunBabu98/sellist-server/internal/jsonutil"
)

func testConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: 5 * time.Millisecond,
		Factor:       2.0,
		Label:        "test",
	}
}

func TestDoSucceedsFirstAttempt(t *testing.T) {
	attempts := 0
	got, err := Do(context.Background(), testConfig(), func(ctx context.Context) (string, error) {
		attempts++
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 1, attempts)
}

func TestDoExhaustsAttemptsOnTransientError(t *testing.T) {
	attempts := 0
	lastErr := errors.New("503 service unavailable")
	_, err := Do(context.Background(), testConfig(), func(ctx context.Context) (string, error) {
		attempts++
		return "", lastErr
	})
	assert.Equal(t, 3, attempts)
	assert.Equal(t, lastErr, err)
}

func TestDoShortCircuitsOnFatalError(t *testing.T) {
	attempts := 0
	fatal := errors.New("400 bad request")
	_, err := Do(context.Background(), testConfig(), func(ctx context.Context) (string, error) {
		attempts++
		return "", fatal
	})
	assert.Equal(t, 1, attempts)
	assert.Equal(t, fatal, err)
}

func TestDoRecoversAfterTransientError(t *testing.T) {
	attempts := 0
	got, err := Do(context.Background(), testConfig(), func(ctx context.Context) (int, error) {
		attempts++
		if attempts < 3 {
			return 0, errors.New("connection reset by peer")
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, 3, attempts)
}

func TestDoBackoffDoubles(t *testing.T) {
	cfg := Config{
		MaxAttempts:  4,
		InitialDelay: 20 * time.Millisecond,
		Factor:       2.0,
		Label:        "backoff",
	}

	var stamps []time.Time
	_, _ = Do(context.Background(), cfg, func(ctx context.Context) (string, error) {
		stamps = append(stamps, time.Now())
		return "", errors.New("request timeout")
	})
	require.Len(t, stamps, 4)

	// Expected gaps: 20ms, 40ms, 80ms. Allow generous scheduling tolerance
	// but verify each gap is at least the configured delay and roughly
	// doubles.
	expected := []time.Duration{20, 40, 80}
	for i := 0; i < 3; i++ {
		gap := stamps[i+1].Sub(stamps[i])
		want := expected[i] * time.Millisecond
		assert.GreaterOrEqual(t, gap, want, "gap %d", i)
		assert.Less(t, gap, want*3, "gap %d", i)
	}
}

func TestDoContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := Config{
		MaxAttempts:  3,
		InitialDelay: time.Minute,
		Factor:       2.0,
		Label:        "cancel",
	}

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := Do(ctx, cfg, func(ctx context.Context) (string, error) {
		return "", errors.New("model overloaded")
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{errors.New("429 too many requests"), true},
		{errors.New("HTTP 500 internal server error"), true},
		{errors.New("502 bad gateway"), true},
		{errors.New("model is overloaded, try again later"), true},
		{errors.New("rate limit exceeded"), true},
		{errors.New("quota exhausted for project"), true},
		{errors.New("read tcp: econnreset"), true},
		{errors.New("request timed out"), true},
		{jsonutil.ErrInvalidJSON, true},
		{errors.New("400 bad request"), false},
		{errors.New("missing required field productIdentification"), false},
		{jsonutil.ErrNoJSONFound, false},
		{context.Canceled, false},
		{nil, false},
	}
	for _, tc := range tests {
		name := "nil"
		if tc.err != nil {
			name = tc.err.Error()
		}
		assert.Equal(t, tc.want, IsTransient(tc.err), name)
	}
}
