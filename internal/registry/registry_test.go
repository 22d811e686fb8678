package registry_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/toolmeta/toolregistry/internal/registry"
	"github.com/toolmeta/toolregistry/internal/store/memstore"
)

// fakeClock advances by one second on every call so that later writes always rank higher.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type testRegistry struct {
	*registry.Registry
	store *memstore.Store
}

func newTestRegistry(t *testing.T) *testRegistry {
	t.Helper()
	s := memstore.New()
	clock := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	var (
		mu  sync.Mutex
		seq int
	)
	r, err := registry.New(&registry.Config{
		Store: s,
		Now:   clock.Now,
		NewID: func() string {
			mu.Lock()
			defer mu.Unlock()
			seq++
			return fmt.Sprintf("tool-%03d", seq)
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return &testRegistry{Registry: r, store: s}
}

func toolDoc(name string, formats ...string) registry.Document {
	list := make([]any, len(formats))
	for i, f := range formats {
		list[i] = f
	}
	return registry.Document{
		"name":              name,
		"version":           "1.0.0",
		"supported_formats": list,
		"invocation_contract": map[string]any{
			"entrypoint": name,
			"inputs":     []any{"file"},
		},
	}
}

func ids(recs []*registry.ToolRecord) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.ToolID
	}
	return out
}

var (
	p1    = &registry.Principal{ID: "p1"}
	p2    = &registry.Principal{ID: "p2"}
	admin = &registry.Principal{ID: "root", Roles: []string{registry.DefaultAdminRole}}
)

func TestNewRequiresStore(t *testing.T) {
	_, err := registry.New(&registry.Config{})
	assert.Error(t, err)

	_, err = registry.New(&registry.Config{Store: memstore.New(), FormatNormalization: "bogus"})
	assert.Error(t, err)
}

func TestRegisterRoundTrip(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	rec, err := r.Register(ctx, p1, toolDoc("csvkit", "CSV", "json", "csv"))
	require.NoError(t, err)
	assert.Equal(t, "tool-001", rec.ToolID)
	assert.Equal(t, "p1", rec.OwnerID)
	assert.Equal(t, []string{"csv", "json"}, rec.SupportedFormats)
	assert.Equal(t, int64(1), rec.Revision)

	got, err := r.Get(ctx, rec.ToolID)
	require.NoError(t, err)
	assert.Equal(t, rec, got)

	for _, f := range rec.SupportedFormats {
		resolved, err := r.Resolve(ctx, f)
		require.NoError(t, err)
		assert.Contains(t, ids(resolved), rec.ToolID)
	}
}

func TestRegisterRequiresPrincipal(t *testing.T) {
	r := newTestRegistry(t)

	_, err := r.Register(context.Background(), nil, toolDoc("x", "csv"))
	assert.ErrorIs(t, err, registry.ErrUnauthenticated)

	// authentication is checked before validation
	_, err = r.Register(context.Background(), &registry.Principal{}, registry.Document{})
	assert.ErrorIs(t, err, registry.ErrUnauthenticated)
}

func TestRegisterEmptyFormats(t *testing.T) {
	r := newTestRegistry(t)

	_, err := r.Register(context.Background(), p1, toolDoc("empty"))
	require.Error(t, err)

	var rerr *registry.Error
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, registry.KindValidation, rerr.Kind)
	assert.Equal(t, "supported_formats", rerr.Field)
	assert.Equal(t, "register", rerr.Op)

	all, err := r.List(context.Background(), registry.ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestResolveUnregisteredFormat(t *testing.T) {
	r := newTestRegistry(t)
	_, err := r.Register(context.Background(), p1, toolDoc("a", "csv"))
	require.NoError(t, err)

	got, err := r.Resolve(context.Background(), "parquet")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestResolveEmptyToken(t *testing.T) {
	r := newTestRegistry(t)
	_, err := r.Resolve(context.Background(), "  ")
	assert.ErrorIs(t, err, registry.ErrValidation)
}

func TestResolveNormalizesQuery(t *testing.T) {
	r := newTestRegistry(t)
	rec, err := r.Register(context.Background(), p1, toolDoc("a", "csv"))
	require.NoError(t, err)

	got, err := r.Resolve(context.Background(), " CSV ")
	require.NoError(t, err)
	assert.Equal(t, []string{rec.ToolID}, ids(got))
}

func TestResolveDeterministicOrder(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	a, err := r.Register(ctx, p1, toolDoc("a", "csv"))
	require.NoError(t, err)
	b, err := r.Register(ctx, p1, toolDoc("b", "csv"))
	require.NoError(t, err)
	c, err := r.Register(ctx, p2, toolDoc("c", "csv"))
	require.NoError(t, err)

	first, err := r.Resolve(ctx, "csv")
	require.NoError(t, err)
	assert.Equal(t, []string{c.ToolID, b.ToolID, a.ToolID}, ids(first))

	// updating a tool moves it to the front
	_, err = r.Update(ctx, p1, a.ToolID, toolDoc("a", "csv"))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		got, err := r.Resolve(ctx, "csv")
		require.NoError(t, err)
		assert.Equal(t, []string{a.ToolID, c.ToolID, b.ToolID}, ids(got))
	}
}

func TestSortByRankTieBreak(t *testing.T) {
	at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	recs := []*registry.ToolRecord{
		{ToolID: "b", UpdatedAt: at},
		{ToolID: "c", UpdatedAt: at.Add(time.Hour)},
		{ToolID: "a", UpdatedAt: at},
	}
	registry.SortByRank(recs)
	assert.Equal(t, []string{"c", "a", "b"}, ids(recs))
}

func TestCSVScenario(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	a, err := r.Register(ctx, p1, toolDoc("A", "csv"))
	require.NoError(t, err)

	got, err := r.Resolve(ctx, "csv")
	require.NoError(t, err)
	assert.Equal(t, []string{a.ToolID}, ids(got))

	b, err := r.Register(ctx, p1, toolDoc("B", "csv", "json"))
	require.NoError(t, err)

	got, err = r.Resolve(ctx, "csv")
	require.NoError(t, err)
	assert.Equal(t, []string{b.ToolID, a.ToolID}, ids(got))

	require.NoError(t, r.Remove(ctx, p1, a.ToolID))

	got, err = r.Resolve(ctx, "csv")
	require.NoError(t, err)
	assert.Equal(t, []string{b.ToolID}, ids(got))
}

func TestUpdateByNonOwnerDenied(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	rec, err := r.Register(ctx, p1, toolDoc("mine", "csv"))
	require.NoError(t, err)

	_, err = r.Update(ctx, p2, rec.ToolID, toolDoc("stolen", "xml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, registry.ErrPermissionDenied)

	got, err := r.Get(ctx, rec.ToolID)
	require.NoError(t, err)
	assert.Equal(t, rec, got)

	resolved, err := r.Resolve(ctx, "xml")
	require.NoError(t, err)
	assert.Empty(t, resolved)
}

func TestUpdateReindexes(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	rec, err := r.Register(ctx, p1, toolDoc("conv", "csv", "json"))
	require.NoError(t, err)

	doc := toolDoc("conv", "json", "xml")
	doc["description"] = "now with xml"
	updated, err := r.Update(ctx, p1, rec.ToolID, doc)
	require.NoError(t, err)
	assert.Equal(t, rec.ToolID, updated.ToolID)
	assert.Equal(t, "p1", updated.OwnerID)
	assert.Equal(t, rec.CreatedAt, updated.CreatedAt)
	assert.True(t, updated.UpdatedAt.After(rec.UpdatedAt))
	assert.Equal(t, int64(2), updated.Revision)
	assert.Equal(t, "now with xml", updated.Description)

	expect := map[string]int{"csv": 0, "json": 1, "xml": 1}
	for f, n := range expect {
		got, err := r.Resolve(ctx, f)
		require.NoError(t, err)
		assert.Len(t, got, n, "format %s", f)
	}
}

func TestUpdateRules(t *testing.T) {
	tests := []struct {
		name      string
		principal *registry.Principal
		target    func(id string) string
		mutate    func(doc registry.Document)
		wantKind  registry.Kind
	}{
		{
			name:      "admin may update",
			principal: admin,
		},
		{
			name:      "unauthenticated",
			principal: nil,
			wantKind:  registry.KindUnauthenticated,
		},
		{
			name:      "unknown tool",
			principal: p1,
			target:    func(string) string { return "missing" },
			wantKind:  registry.KindNotFound,
		},
		{
			name:      "owner change rejected",
			principal: p1,
			mutate:    func(doc registry.Document) { doc["owner_id"] = "p2" },
			wantKind:  registry.KindValidation,
		},
		{
			name:      "owner restated",
			principal: p1,
			mutate:    func(doc registry.Document) { doc["owner_id"] = "p1" },
		},
		{
			name:      "invalid document",
			principal: p1,
			mutate:    func(doc registry.Document) { doc["version"] = "one" },
			wantKind:  registry.KindValidation,
		},
		{
			name:      "non-owner",
			principal: p2,
			wantKind:  registry.KindPermissionDenied,
		},
		{
			name:      "non-owner with invalid version",
			principal: p2,
			mutate:    func(doc registry.Document) { doc["version"] = "one" },
			wantKind:  registry.KindValidation,
		},
		{
			name:      "non-owner without formats",
			principal: p2,
			mutate:    func(doc registry.Document) { delete(doc, "supported_formats") },
			wantKind:  registry.KindValidation,
		},
		{
			name:      "non-owner on unknown tool with invalid document",
			principal: p2,
			target:    func(string) string { return "missing" },
			mutate:    func(doc registry.Document) { doc["invocation_contract"] = "run it" },
			wantKind:  registry.KindValidation,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := newTestRegistry(t)
			ctx := context.Background()
			rec, err := r.Register(ctx, p1, toolDoc("t", "csv"))
			require.NoError(t, err)

			target := rec.ToolID
			if tc.target != nil {
				target = tc.target(rec.ToolID)
			}
			doc := toolDoc("t2", "csv")
			if tc.mutate != nil {
				tc.mutate(doc)
			}

			_, err = r.Update(ctx, tc.principal, target, doc)
			if tc.wantKind == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tc.wantKind, registry.KindOf(err))

			// a rejected update leaves the record and its index entries alone
			stored, err := r.Get(ctx, rec.ToolID)
			require.NoError(t, err)
			assert.Equal(t, rec, stored)
			resolved, err := r.Resolve(ctx, "csv")
			require.NoError(t, err)
			assert.Equal(t, []string{rec.ToolID}, ids(resolved))
		})
	}
}

func TestRegisterValidatesBeforeAuthorizing(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	// a principal with no roles at all still gets the validation error, not a permission error
	nobody := &registry.Principal{ID: "nobody"}
	doc := toolDoc("broken", "csv")
	doc["version"] = "latest"

	_, err := r.Register(ctx, nobody, doc)
	require.Error(t, err)
	assert.Equal(t, registry.KindValidation, registry.KindOf(err))
	var regErr *registry.Error
	require.ErrorAs(t, err, &regErr)
	assert.Equal(t, registry.FieldVersion, regErr.Field)

	all, err := r.List(ctx, registry.ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, all)
	resolved, err := r.Resolve(ctx, "csv")
	require.NoError(t, err)
	assert.Empty(t, resolved)
}

func TestRemove(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	rec, err := r.Register(ctx, p1, toolDoc("gone", "csv", "tsv"))
	require.NoError(t, err)

	err = r.Remove(ctx, p2, rec.ToolID)
	assert.ErrorIs(t, err, registry.ErrPermissionDenied)

	err = r.Remove(ctx, nil, rec.ToolID)
	assert.ErrorIs(t, err, registry.ErrUnauthenticated)

	require.NoError(t, r.Remove(ctx, admin, rec.ToolID))

	_, err = r.Get(ctx, rec.ToolID)
	assert.ErrorIs(t, err, registry.ErrNotFound)

	for _, f := range []string{"csv", "tsv"} {
		got, err := r.Resolve(ctx, f)
		require.NoError(t, err)
		assert.Empty(t, got)
	}

	err = r.Remove(ctx, admin, rec.ToolID)
	assert.ErrorIs(t, err, registry.ErrNotFound)
}

func TestList(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	for _, name := range []string{"pandoc", "csvkit", "PandocLite"} {
		_, err := r.Register(ctx, p1, toolDoc(name, "txt"))
		require.NoError(t, err)
	}

	all, err := r.List(ctx, registry.ListFilter{})
	require.NoError(t, err)
	names := make([]string, len(all))
	for i, rec := range all {
		names[i] = rec.Name
	}
	assert.Equal(t, []string{"PandocLite", "csvkit", "pandoc"}, names)

	filtered, err := r.List(ctx, registry.ListFilter{NameContains: "PANDOC"})
	require.NoError(t, err)
	assert.Len(t, filtered, 2)
}

func TestListFilters(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	withOutputs := func(name string, outputs []any, formats ...string) registry.Document {
		doc := toolDoc(name, formats...)
		doc["invocation_contract"] = map[string]any{
			"entrypoint": name,
			"inputs":     []any{"file"},
			"outputs":    outputs,
		}
		return doc
	}
	bwa, err := r.Register(ctx, p1, withOutputs("bwa", []any{"BAM"}, "fasta", "fastq"))
	require.NoError(t, err)
	samtools, err := r.Register(ctx, p1, withOutputs("samtools", []any{map[string]any{"type": "cram"}, "sam"}, "bam"))
	require.NoError(t, err)
	seqkit, err := r.Register(ctx, p2, toolDoc("seqkit", "FASTA"))
	require.NoError(t, err)

	tests := []struct {
		name   string
		filter registry.ListFilter
		want   []string
	}{
		{"no filter", registry.ListFilter{}, []string{bwa.ToolID, samtools.ToolID, seqkit.ToolID}},
		{"input format", registry.ListFilter{Format: " Fasta "}, []string{bwa.ToolID, seqkit.ToolID}},
		{"output type name", registry.ListFilter{OutputType: "bam"}, []string{bwa.ToolID}},
		{"output type object", registry.ListFilter{OutputType: "CRAM"}, []string{samtools.ToolID}},
		{"input and output", registry.ListFilter{Format: "fastq", OutputType: "bam"}, []string{bwa.ToolID}},
		{"all three", registry.ListFilter{NameContains: "seq", Format: "fasta", OutputType: "bam"}, []string{}},
		{"unknown format", registry.ListFilter{Format: "vcf"}, []string{}},
		{"blank filters are ignored", registry.ListFilter{Format: "  ", OutputType: "\t"}, []string{bwa.ToolID, samtools.ToolID, seqkit.ToolID}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := r.List(ctx, tc.filter)
			require.NoError(t, err)
			assert.Equal(t, tc.want, ids(got))
		})
	}
}

func TestListFilterOnUnusableFormat(t *testing.T) {
	r, err := registry.New(&registry.Config{Store: memstore.New(), FormatNormalization: registry.NormalizeExtension})
	require.NoError(t, err)

	_, err = r.List(context.Background(), registry.ListFilter{Format: "..."})
	require.Error(t, err)
	assert.Equal(t, registry.KindValidation, registry.KindOf(err))
}

func TestConcurrentUpdatesOneWinner(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()
	rec, err := r.Register(ctx, p1, toolDoc("race", "csv"))
	require.NoError(t, err)

	const writers = 10
	errs := make([]error, writers)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = r.Update(ctx, p1, rec.ToolID, toolDoc("race", "csv", fmt.Sprintf("f%d", i)))
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			assert.ErrorIs(t, err, registry.ErrConflict)
		}
	}

	got, err := r.Get(ctx, rec.ToolID)
	require.NoError(t, err)
	require.Len(t, got.SupportedFormats, 2)

	// whatever the interleaving, the index matches the final record
	problems, err := r.VerifyIndex(ctx)
	require.NoError(t, err)
	assert.Empty(t, problems)
}

func TestVerifyIndex(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	a, err := r.Register(ctx, p1, toolDoc("a", "csv", "json"))
	require.NoError(t, err)
	b, err := r.Register(ctx, p1, toolDoc("b", "csv"))
	require.NoError(t, err)

	problems, err := r.VerifyIndex(ctx)
	require.NoError(t, err)
	assert.Empty(t, problems)

	r.store.DropIndexEntry("json", a.ToolID)
	r.store.IndexEntry("csv", "ghost")

	problems, err = r.VerifyIndex(ctx)
	require.NoError(t, err)
	assert.Equal(t, []registry.IndexInconsistency{
		{ToolID: "ghost", Format: "csv", Problem: "orphaned"},
		{ToolID: a.ToolID, Format: "json", Problem: "missing"},
	}, problems)

	// resolution skips the orphaned entry
	got, err := r.Resolve(ctx, "csv")
	require.NoError(t, err)
	assert.Equal(t, []string{b.ToolID, a.ToolID}, ids(got))
}
