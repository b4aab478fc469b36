package history

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/lexbrief/internal/model"
)

func summary(body string) model.SummaryResult {
	return model.NewSummaryResult(body, model.DefaultClosingPrompt)
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	queries := []string{
		"How do I file a civil suit?",
		"multi\nline\r\nquery",
		`back\slash \n literal`,
		"",
		"trailing backslash \\",
	}
	body := "First paragraph.\n\nSecond paragraph.\n\nWould you like more details on any specific aspect?"

	for _, q := range queries {
		data := Encode(q, body)
		gotQ, gotBody, err := Decode(data)
		require.NoError(t, err)
		assert.Equal(t, q, gotQ)
		assert.Equal(t, body, gotBody)
	}
}

func TestEncode_Layout(t *testing.T) {
	assert.Equal(t, "# Query: What is bail?\n\nBail is...", string(Encode("What is bail?", "Bail is...")))
}

func TestDecode_Malformed(t *testing.T) {
	_, _, err := Decode([]byte("no header here"))
	assert.ErrorIs(t, err, ErrMalformedEntry)
}

func TestDecode_HeaderOnly(t *testing.T) {
	q, body, err := Decode([]byte("# Query: lonely"))
	require.NoError(t, err)
	assert.Equal(t, "lonely", q)
	assert.Empty(t, body)
}

func TestSplitSummary(t *testing.T) {
	s := summary("Body text")
	assert.Equal(t, s, SplitSummary(s.Raw))

	empty := summary("")
	assert.Equal(t, empty, SplitSummary(empty.Raw))

	plain := SplitSummary("legacy body")
	assert.Equal(t, "legacy body", plain.Body)
	assert.Empty(t, plain.ClosingPrompt)
}

func TestFileStore_AppendThenListOne(t *testing.T) {
	store := NewFileStore(t.TempDir(), true)
	ctx := context.Background()
	retrieval := &model.RetrievalResult{
		Query:   "How do I file a civil suit?",
		Results: []model.Citation{{Document: "Guide", Citation: "page 4", Extract: "A suit is instituted by a plaint."}},
	}

	appended, err := store.Append(ctx, "s1", retrieval.Query, summary("File a plaint."), retrieval)
	require.NoError(t, err)

	entries, err := store.ListRecent(ctx, "s1", 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	got := entries[0]
	assert.Equal(t, appended.ID, got.ID)
	assert.Equal(t, "How do I file a civil suit?", got.Query)
	assert.Equal(t, summary("File a plaint."), got.Result)
	require.NotNil(t, got.Retrieval)
	assert.Equal(t, *retrieval, *got.Retrieval)
	assert.WithinDuration(t, time.Now(), got.CreatedAt, time.Minute)
}

func TestFileStore_FileFormatOnDisk(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir, false)

	entry, err := store.Append(context.Background(), "s1", "What is a decree?", summary("A decree is a formal decision."), nil)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "s1", entry.ID+".md"))
	require.NoError(t, err)
	assert.Equal(t, "# Query: What is a decree?\n\nA decree is a formal decision.\n\nWould you like more details on any specific aspect?", string(data))

	_, err = os.Stat(filepath.Join(dir, "s1", entry.ID+".json"))
	assert.True(t, os.IsNotExist(err), "sidecar written although disabled")
}

func TestFileStore_ListRecentOrderAndLimit(t *testing.T) {
	store := NewFileStore(t.TempDir(), false)
	ctx := context.Background()

	for i := 0; i < 12; i++ {
		_, err := store.Append(ctx, "s1", fmt.Sprintf("q%d", i), summary("a"), nil)
		require.NoError(t, err)
	}

	entries, err := store.ListRecent(ctx, "s1", 0)
	require.NoError(t, err)
	require.Len(t, entries, DefaultLimit)
	assert.Equal(t, "q11", entries[0].Query)
	assert.Equal(t, "q2", entries[9].Query)

	entries, err = store.ListRecent(ctx, "s1", 3)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestFileStore_ListMissingSession(t *testing.T) {
	store := NewFileStore(t.TempDir(), false)
	entries, err := store.ListRecent(context.Background(), "nobody", 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFileStore_ClearTwice(t *testing.T) {
	store := NewFileStore(t.TempDir(), false)
	ctx := context.Background()
	_, err := store.Append(ctx, "s1", "q", summary("a"), nil)
	require.NoError(t, err)

	require.NoError(t, store.Clear(ctx, "s1"))
	require.NoError(t, store.Clear(ctx, "s1"))

	entries, err := store.ListRecent(ctx, "s1", 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFileStore_SessionIsolation(t *testing.T) {
	store := NewFileStore(t.TempDir(), false)
	ctx := context.Background()
	_, err := store.Append(ctx, "alice", "qa", summary("a"), nil)
	require.NoError(t, err)
	_, err = store.Append(ctx, "bob", "qb", summary("b"), nil)
	require.NoError(t, err)

	require.NoError(t, store.Clear(ctx, "alice"))

	bob, err := store.ListRecent(ctx, "bob", 10)
	require.NoError(t, err)
	require.Len(t, bob, 1)
	assert.Equal(t, "qb", bob[0].Query)
}

func TestFileStore_ConcurrentAppendsSameSession(t *testing.T) {
	store := NewFileStore(t.TempDir(), true)
	ctx := context.Background()

	const n = 25
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := store.Append(ctx, "s1", fmt.Sprintf("q%d", i), summary("a"), &model.RetrievalResult{Query: "x"})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	entries, err := store.ListRecent(ctx, "s1", 100)
	require.NoError(t, err)
	require.Len(t, entries, n)

	seen := map[string]bool{}
	for _, e := range entries {
		assert.False(t, seen[e.Query], "duplicate %s", e.Query)
		seen[e.Query] = true
	}
}

func TestFileStore_StampsStrictlyIncrease(t *testing.T) {
	fixed := time.Unix(1700000000, 0)
	store := NewFileStore(t.TempDir(), false)
	store.clock = &stampClock{now: func() time.Time { return fixed }}
	ctx := context.Background()

	first, err := store.Append(ctx, "s1", "first", summary("a"), nil)
	require.NoError(t, err)
	second, err := store.Append(ctx, "s1", "second", summary("b"), nil)
	require.NoError(t, err)

	assert.Less(t, first.ID, second.ID)
	entries, err := store.ListRecent(ctx, "s1", 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "second", entries[0].Query)
}

func TestFileStore_Get(t *testing.T) {
	store := NewFileStore(t.TempDir(), false)
	ctx := context.Background()
	entry, err := store.Append(ctx, "s1", "multi\nline", summary("a"), nil)
	require.NoError(t, err)

	got, err := store.Get(ctx, "s1", entry.ID)
	require.NoError(t, err)
	assert.Equal(t, "multi\nline", got.Query)

	_, err = store.Get(ctx, "s1", "00000000000000000001-deadbeef")
	assert.ErrorIs(t, err, ErrEntryNotFound)
	_, err = store.Get(ctx, "s1", "../../etc/passwd")
	assert.ErrorIs(t, err, ErrEntryNotFound)
}

func TestFileStore_InvalidSession(t *testing.T) {
	store := NewFileStore(t.TempDir(), false)
	ctx := context.Background()

	_, err := store.Append(ctx, "../x", "q", summary("a"), nil)
	assert.ErrorIs(t, err, model.ErrInvalidSession)
	assert.ErrorIs(t, store.Clear(ctx, ""), model.ErrInvalidSession)
}

func TestFileStore_IgnoresForeignFiles(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir, false)
	ctx := context.Background()
	_, err := store.Append(ctx, "s1", "q", summary("a"), nil)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "s1", "notes.md"), []byte("x"), 0o644))

	entries, err := store.ListRecent(ctx, "s1", 10)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFileStore_SkipsCorruptEntries(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir, false)
	ctx := context.Background()
	older, err := store.Append(ctx, "s1", "older", summary("a"), nil)
	require.NoError(t, err)
	newer, err := store.Append(ctx, "s1", "newer", summary("b"), nil)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "s1", newer.ID+".md"), []byte("truncated"), 0o644))

	entries, err := store.ListRecent(ctx, "s1", 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, older.ID, entries[0].ID)

	_, err = store.Get(ctx, "s1", newer.ID)
	assert.ErrorIs(t, err, ErrMalformedEntry)
}
