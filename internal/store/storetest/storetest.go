// Package storetest holds the contract test suite every registry.Store backend must pass.
package storetest

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/toolmeta/toolregistry/internal/registry"
)

// Factory returns a fresh, empty store. The suite closes it when the subtest ends.
type Factory func(t *testing.T) registry.Store

// NewRecord builds a valid record with the given id and formats.
// Formats must already be normalized and sorted.
func NewRecord(id string, formats ...string) *registry.ToolRecord {
	now := time.Date(2025, 3, 14, 9, 26, 53, 589793000, time.UTC)
	return &registry.ToolRecord{
		ToolID:             id,
		Name:               "tool-" + id,
		Version:            "1.0.0",
		OwnerID:            "owner-" + id,
		Description:        "converts things",
		Location:           "https://tools.example.org/" + id,
		SupportedFormats:   formats,
		InvocationContract: json.RawMessage(`{"entrypoint":"run","inputs":["csv"]}`),
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

// AssertRecordEqual compares two records field by field, tolerating backend-specific
// time zones and JSON re-encoding.
func AssertRecordEqual(t *testing.T, want, got *registry.ToolRecord) {
	t.Helper()
	require.NotNil(t, got)
	assert.Equal(t, want.ToolID, got.ToolID)
	assert.Equal(t, want.Name, got.Name)
	assert.Equal(t, want.Version, got.Version)
	assert.Equal(t, want.OwnerID, got.OwnerID)
	assert.Equal(t, want.Description, got.Description)
	assert.Equal(t, want.Location, got.Location)
	assert.Equal(t, want.SupportedFormats, got.SupportedFormats)
	assert.JSONEq(t, string(want.InvocationContract), string(got.InvocationContract))
	assert.Equal(t, want.Revision, got.Revision)
	assert.True(t, want.CreatedAt.Equal(got.CreatedAt), "created_at: want %s, got %s", want.CreatedAt, got.CreatedAt)
	assert.True(t, want.UpdatedAt.Equal(got.UpdatedAt), "updated_at: want %s, got %s", want.UpdatedAt, got.UpdatedAt)
}

// Run executes the full contract suite against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s registry.Store)
	}{
		{"put then get returns the record", testRoundTrip},
		{"get unknown tool", testGetMissing},
		{"create over existing id conflicts", testCreateConflict},
		{"update with stale revision conflicts", testStaleUpdate},
		{"update of missing tool", testUpdateMissing},
		{"index follows format changes", testIndexFollowsUpdate},
		{"delete retracts index entries", testDelete},
		{"delete with stale revision conflicts", testStaleDelete},
		{"delete unknown tool", testDeleteMissing},
		{"unknown format yields empty list", testUnknownFormat},
		{"list by format is sorted", testListByFormatSorted},
		{"list returns every record", testList},
		{"concurrent updates have a single winner", testConcurrentUpdates},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { _ = s.Close() })
			tc.fn(t, s)
		})
	}
}

func testRoundTrip(t *testing.T, s registry.Store) {
	ctx := context.Background()
	rec := NewRecord("a", "csv", "json")
	require.NoError(t, s.Put(ctx, rec, 0))
	assert.Equal(t, int64(1), rec.Revision)

	got, err := s.Get(ctx, "a")
	require.NoError(t, err)
	AssertRecordEqual(t, rec, got)
}

func testGetMissing(t *testing.T, s registry.Store) {
	_, err := s.Get(context.Background(), "nope")
	require.Error(t, err)
	assert.ErrorIs(t, err, registry.ErrNotFound)
}

func testCreateConflict(t *testing.T, s registry.Store) {
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, NewRecord("a", "csv"), 0))

	err := s.Put(ctx, NewRecord("a", "xml"), 0)
	assert.ErrorIs(t, err, registry.ErrConflict)

	ids, err := s.ListByFormat(ctx, "xml")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func testStaleUpdate(t *testing.T, s registry.Store) {
	ctx := context.Background()
	rec := NewRecord("a", "csv")
	require.NoError(t, s.Put(ctx, rec, 0))

	updated := NewRecord("a", "csv")
	updated.Version = "2.0.0"
	require.NoError(t, s.Put(ctx, updated, 1))
	assert.Equal(t, int64(2), updated.Revision)

	stale := NewRecord("a", "tsv")
	err := s.Put(ctx, stale, 1)
	assert.ErrorIs(t, err, registry.ErrConflict)

	got, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", got.Version)
	assert.Equal(t, []string{"csv"}, got.SupportedFormats)
}

func testUpdateMissing(t *testing.T, s registry.Store) {
	err := s.Put(context.Background(), NewRecord("ghost", "csv"), 3)
	assert.ErrorIs(t, err, registry.ErrNotFound)
}

func testIndexFollowsUpdate(t *testing.T, s registry.Store) {
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, NewRecord("a", "csv", "json"), 0))
	require.NoError(t, s.Put(ctx, NewRecord("a", "json", "xml"), 1))

	expect := map[string][]string{
		"csv":  {},
		"json": {"a"},
		"xml":  {"a"},
	}
	for format, want := range expect {
		ids, err := s.ListByFormat(ctx, format)
		require.NoError(t, err)
		assert.ElementsMatch(t, want, ids, "format %s", format)
	}
}

func testDelete(t *testing.T, s registry.Store) {
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, NewRecord("a", "csv", "json"), 0))
	require.NoError(t, s.Put(ctx, NewRecord("b", "csv"), 0))

	require.NoError(t, s.Delete(ctx, "a", 1))

	_, err := s.Get(ctx, "a")
	assert.ErrorIs(t, err, registry.ErrNotFound)

	ids, err := s.ListByFormat(ctx, "csv")
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids)

	ids, err = s.ListByFormat(ctx, "json")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func testStaleDelete(t *testing.T, s registry.Store) {
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, NewRecord("a", "csv"), 0))
	require.NoError(t, s.Put(ctx, NewRecord("a", "csv"), 1))

	err := s.Delete(ctx, "a", 1)
	assert.ErrorIs(t, err, registry.ErrConflict)

	ids, err := s.ListByFormat(ctx, "csv")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids)
}

func testDeleteMissing(t *testing.T, s registry.Store) {
	err := s.Delete(context.Background(), "nope", 1)
	assert.ErrorIs(t, err, registry.ErrNotFound)
}

func testUnknownFormat(t *testing.T, s registry.Store) {
	ids, err := s.ListByFormat(context.Background(), "never-registered")
	require.NoError(t, err)
	assert.NotNil(t, ids)
	assert.Empty(t, ids)
}

func testListByFormatSorted(t *testing.T, s registry.Store) {
	ctx := context.Background()
	for _, id := range []string{"c", "a", "b"} {
		require.NoError(t, s.Put(ctx, NewRecord(id, "csv"), 0))
	}
	ids, err := s.ListByFormat(ctx, "csv")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}

func testList(t *testing.T, s registry.Store) {
	ctx := context.Background()
	recs, err := s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, recs)

	require.NoError(t, s.Put(ctx, NewRecord("a", "csv"), 0))
	require.NoError(t, s.Put(ctx, NewRecord("b", "json", "xml"), 0))

	recs, err = s.List(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	byID := make(map[string]*registry.ToolRecord, len(recs))
	for _, r := range recs {
		byID[r.ToolID] = r
	}
	assert.Equal(t, []string{"csv"}, byID["a"].SupportedFormats)
	assert.Equal(t, []string{"json", "xml"}, byID["b"].SupportedFormats)
}

func testConcurrentUpdates(t *testing.T, s registry.Store) {
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, NewRecord("a", "csv"), 0))

	const writers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)
	formats := []string{"json", "tsv", "xml", "yaml", "toml", "ini", "png", "txt"}
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(format string) {
			defer wg.Done()
			err := s.Put(ctx, NewRecord("a", format), 1)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case registry.IsKind(err, registry.KindConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(formats[i])
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, writers-1, conflicts)

	got, err := s.Get(ctx, "a")
	require.NoError(t, err)
	require.Len(t, got.SupportedFormats, 1)

	// exactly the winner's format is indexed
	ids, err := s.ListByFormat(ctx, got.SupportedFormats[0])
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids)
	csvIDs, err := s.ListByFormat(ctx, "csv")
	require.NoError(t, err)
	assert.Empty(t, csvIDs)
}
