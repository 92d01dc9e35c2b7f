package errors

import (
	"context"
	stderrors "errors"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *ErrorStore {
	t.Helper()
	store, err := NewErrorStore(StoreConfig{
		Path:          filepath.Join(t.TempDir(), "errors.db"),
		RetentionDays: 30,
	})
	if err != nil {
		t.Fatalf("NewErrorStore() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleRecord(id string, seq uint64, origin Origin, at time.Time) ErrorRecord {
	rec := ErrorRecord{
		ID:           id,
		Seq:          seq,
		ErrorName:    "TypeError",
		ErrorMessage: "boom",
		CapturedAt:   at,
	}
	if origin == OriginBoundary {
		name := "Tuner"
		rec.Message = "Tuner@render: TypeError: boom"
		rec.Context = Context{From: OriginBoundary, Component: &name, Info: "render", Stack: "at render"}
	} else {
		rec.Message = "TypeError: boom"
		rec.Context = Context{From: OriginWindow, Source: "app.js", Lineno: 1, Colno: 2}
	}
	return rec
}

func TestErrorStore_SaveAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	at := time.Date(2026, 2, 15, 18, 32, 5, 0, time.UTC)

	if err := store.Save(ctx, sampleRecord("rec-1", 1, OriginBoundary, at)); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := store.Get(ctx, "rec-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Seq != 1 || got.Message != "Tuner@render: TypeError: boom" {
		t.Errorf("Get() = %+v", got)
	}
	if !got.CapturedAt.Equal(at) {
		t.Errorf("CapturedAt = %v, want %v", got.CapturedAt, at)
	}
	if got.Context.From != OriginBoundary || got.Context.Component == nil || *got.Context.Component != "Tuner" {
		t.Errorf("Context = %+v", got.Context)
	}
	if got.Context.File != nil {
		t.Error("absent file should stay nil")
	}
	if ErrorName(got.Err) != "TypeError" || ErrorMessage(got.Err) != "boom" {
		t.Errorf("rebuilt fault = %s: %s", ErrorName(got.Err), ErrorMessage(got.Err))
	}
}

func TestErrorStore_GetMissing(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Get(context.Background(), "nope")
	if !stderrors.Is(err, ErrRecordNotFound) {
		t.Errorf("Get() error = %v, want ErrRecordNotFound", err)
	}
}

func TestErrorStore_SaveReplaces(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	rec := sampleRecord("rec-1", 1, OriginWindow, now)
	store.Save(ctx, rec)
	rec.Message = "TypeError: replaced"
	if err := store.Save(ctx, rec); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	stats, _ := store.Stats(ctx)
	if stats.TotalRecords != 1 {
		t.Errorf("TotalRecords = %d, want 1", stats.TotalRecords)
	}
	got, _ := store.Get(ctx, "rec-1")
	if got.Message != "TypeError: replaced" {
		t.Errorf("Message = %q", got.Message)
	}
}

func TestErrorStore_Query(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 6; i++ {
		origin := OriginWindow
		if i%2 == 1 {
			origin = OriginBoundary
		}
		id := string(rune('a' + i))
		if err := store.Save(ctx, sampleRecord(id, uint64(i+1), origin, base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	}

	tests := []struct {
		name    string
		query   RecordQuery
		wantIDs string
	}{
		{"all ascending", RecordQuery{}, "abcdef"},
		{"descending", RecordQuery{OrderDesc: true}, "fedcba"},
		{"by origin", RecordQuery{Origin: OriginBoundary}, "bdf"},
		{"since", RecordQuery{Since: base.Add(4 * time.Minute)}, "ef"},
		{"until", RecordQuery{Until: base.Add(time.Minute)}, "ab"},
		{"limit offset", RecordQuery{Limit: 2, Offset: 1}, "bc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, err := store.Query(ctx, tt.query)
			if err != nil {
				t.Fatalf("Query() error = %v", err)
			}
			var ids string
			for _, r := range results {
				ids += r.ID
			}
			if ids != tt.wantIDs {
				t.Errorf("Query() ids = %q, want %q", ids, tt.wantIDs)
			}
		})
	}
}

func TestErrorStore_DeleteAndPurge(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	store.Save(ctx, sampleRecord("a", 1, OriginWindow, now))
	store.Save(ctx, sampleRecord("b", 2, OriginWindow, now))
	store.Save(ctx, sampleRecord("c", 3, OriginBoundary, now))

	if err := store.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := store.Delete(ctx, "a"); !stderrors.Is(err, ErrRecordNotFound) {
		t.Errorf("second Delete() error = %v, want ErrRecordNotFound", err)
	}

	n, err := store.Purge(ctx)
	if err != nil {
		t.Fatalf("Purge() error = %v", err)
	}
	if n != 2 {
		t.Errorf("Purge() = %d, want 2", n)
	}
}

func TestErrorStore_Cleanup(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	store.Save(ctx, sampleRecord("old", 1, OriginWindow, now.AddDate(0, 0, -45)))
	store.Save(ctx, sampleRecord("recent", 2, OriginWindow, now.AddDate(0, 0, -2)))

	removed, err := store.Cleanup(ctx)
	if err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}
	if removed != 1 {
		t.Errorf("Cleanup() = %d, want 1", removed)
	}
	if _, err := store.Get(ctx, "recent"); err != nil {
		t.Errorf("recent record removed: %v", err)
	}
}

func TestErrorStore_Stats(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.TotalRecords != 0 || stats.Oldest != nil {
		t.Errorf("empty Stats() = %+v", stats)
	}

	first := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store.Save(ctx, sampleRecord("a", 1, OriginWindow, first))
	store.Save(ctx, sampleRecord("b", 2, OriginWindow, first.Add(time.Hour)))
	store.Save(ctx, sampleRecord("c", 3, OriginBoundary, first.Add(2*time.Hour)))

	stats, err = store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.TotalRecords != 3 {
		t.Errorf("TotalRecords = %d, want 3", stats.TotalRecords)
	}
	if stats.ByOrigin[OriginWindow] != 2 || stats.ByOrigin[OriginBoundary] != 1 {
		t.Errorf("ByOrigin = %v", stats.ByOrigin)
	}
	if stats.ByErrorName["TypeError"] != 3 {
		t.Errorf("ByErrorName = %v", stats.ByErrorName)
	}
	if stats.Oldest == nil || !stats.Oldest.Equal(first) {
		t.Errorf("Oldest = %v", stats.Oldest)
	}
	if stats.Newest == nil || !stats.Newest.Equal(first.Add(2*time.Hour)) {
		t.Errorf("Newest = %v", stats.Newest)
	}
}

func TestErrorStore_Closed(t *testing.T) {
	store := newTestStore(t)
	if err := store.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := store.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}

	ctx := context.Background()
	if err := store.Save(ctx, ErrorRecord{ID: "x"}); !stderrors.Is(err, ErrStoreClosed) {
		t.Errorf("Save() error = %v, want ErrStoreClosed", err)
	}
	if _, err := store.Query(ctx, RecordQuery{}); !stderrors.Is(err, ErrStoreClosed) {
		t.Errorf("Query() error = %v, want ErrStoreClosed", err)
	}
}

func TestErrorStore_AsAggregatorSink(t *testing.T) {
	store := newTestStore(t)
	agg := NewAggregator(AggregatorConfig{Sink: store})

	agg.CaptureWindow("boom", "app.js", 1, 2, &NamedError{Name: "TypeError"})
	agg.CaptureBoundary(stderrors.New("bad"), ComponentMeta{Name: "Tuner"}, "render")
	agg.Close()

	results, err := store.Query(context.Background(), RecordQuery{})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("stored %d records, want 2", len(results))
	}
	if results[0].Message != "TypeError: boom" || results[1].Message != "Tuner@render: Error: bad" {
		t.Errorf("stored messages = %q, %q", results[0].Message, results[1].Message)
	}
	if results[0].ID != agg.Errors()[0].ID {
		t.Error("stored ID differs from in-memory record")
	}
}
