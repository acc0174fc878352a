package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/ArunBabu98/sellist-server/internal/ebay"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	key, err := DeriveKey("test-passphrase")
	require.NoError(t, err)
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"), key)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key, err := DeriveKey("hunter2")
	require.NoError(t, err)
	assert.Len(t, key, 32)

	plaintext := []byte(`{"access_token":"v^1.1#i^1#abc"}`)
	encrypted, err := Encrypt(plaintext, key)
	require.NoError(t, err)
	assert.NotContains(t, encrypted, "access_token")

	decrypted, err := Decrypt(encrypted, key)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)
}

func TestDecryptWrongKey(t *testing.T) {
	key1, err := DeriveKey("first")
	require.NoError(t, err)
	key2, err := DeriveKey("second")
	require.NoError(t, err)

	encrypted, err := Encrypt([]byte("secret"), key1)
	require.NoError(t, err)

	_, err = Decrypt(encrypted, key2)
	assert.Error(t, err)
}

func TestDeriveKeyEmptyPassphrase(t *testing.T) {
	_, err := DeriveKey("")
	assert.Error(t, err)
}

func TestVisionCacheRoundTrip(t *testing.T) {
	store := newTestStore(t)

	_, found, err := store.GetVisionCache("missing")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.SetVisionCache("abc123", `{"category": "Sneakers"}`))

	response, found, err := store.GetVisionCache("abc123")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, `{"category": "Sneakers"}`, response)

	// Upsert replaces the stored response
	require.NoError(t, store.SetVisionCache("abc123", `{"category": "Boots"}`))
	response, found, err = store.GetVisionCache("abc123")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, `{"category": "Boots"}`, response)
}

func TestEbayTokensRoundTrip(t *testing.T) {
	store := newTestStore(t)

	loaded, err := store.GetEbayTokens()
	require.NoError(t, err)
	assert.Nil(t, loaded)

	tokens := &ebay.TokenSet{
		AccessToken:  "access-token",
		RefreshToken: "refresh-token",
		ExpiresAt:    time.Now().Add(2 * time.Hour).Truncate(time.Second),
	}
	require.NoError(t, store.SaveEbayTokens(tokens))

	loaded, err = store.GetEbayTokens()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "access-token", loaded.AccessToken)
	assert.Equal(t, "refresh-token", loaded.RefreshToken)
	assert.True(t, loaded.ExpiresAt.Equal(tokens.ExpiresAt))

	// Second save overwrites the single row
	tokens.AccessToken = "rotated"
	require.NoError(t, store.SaveEbayTokens(tokens))
	loaded, err = store.GetEbayTokens()
	require.NoError(t, err)
	assert.Equal(t, "rotated", loaded.AccessToken)
}

func TestRunLog(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.LogRun(RunRecord{
		CorrelationID: "run-1",
		Status:        "success",
		Title:         "Nike Air Max 90",
		ModelVersion:  "gemini-3-flash-preview",
		ProcessingMs:  4200,
	}))
	require.NoError(t, store.LogRun(RunRecord{
		CorrelationID: "run-2",
		Status:        "rejected",
		Reason:        "EBAY_POLICY_VIOLATION",
		ProcessingMs:  900,
	}))

	records, err := store.RecentRuns(10)
	require.NoError(t, err)
	require.Len(t, records, 2)

	byID := map[string]RunRecord{}
	for _, rec := range records {
		byID[rec.CorrelationID] = rec
	}
	assert.Equal(t, "success", byID["run-1"].Status)
	assert.Equal(t, "Nike Air Max 90", byID["run-1"].Title)
	assert.Equal(t, int64(4200), byID["run-1"].ProcessingMs)
	assert.Equal(t, "EBAY_POLICY_VIOLATION", byID["run-2"].Reason)
}
