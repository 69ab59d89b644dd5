package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"menuwatch/models"
	"menuwatch/scraper"
)

type fakeFetcher struct {
	rows []models.RawRow
	err  error
}

func (f *fakeFetcher) Fetch(ctx context.Context) ([]models.RawRow, error) {
	return f.rows, f.err
}

type memStore struct {
	previous *models.Snapshot
	readErr  error
	writeErr error

	written  *models.Snapshot
	appended []models.ChangeEvent
}

func (m *memStore) ReadPrevious(ctx context.Context) (*models.Snapshot, error) {
	if m.readErr != nil {
		return nil, m.readErr
	}
	if m.previous == nil {
		return models.NewSnapshot(), nil
	}
	return m.previous, nil
}

func (m *memStore) WriteSnapshot(ctx context.Context, snap *models.Snapshot) error {
	if m.writeErr != nil {
		return m.writeErr
	}
	m.written = snap
	return nil
}

func (m *memStore) AppendChanges(ctx context.Context, events []models.ChangeEvent) error {
	m.appended = append(m.appended, events...)
	return nil
}

func menuRows() []models.RawRow {
	return []models.RawRow{
		{Cells: []string{"Name", "Tier", "Stock", "Min", "Price"}},
		{Cells: []string{"Tier 1 Exotic SoCal", ""}},
		{
			Cells: []string{"Papaya Punch", "Tier 1 Exotic", "14g", "7g", "$45.00/g"},
			Link:  "https://example.test/papaya-punch",
		},
		{
			Cells: []string{"Runtz", "Tier 1 Exotic", "SOLD OUT", "", "$40.00/g"},
			Link:  "https://example.test/runtz",
		},
		{Cells: []string{"Tier 2 Vegas", "Tier Level"}},
		{
			Cells: []string{"Biscotti", "Tier 2", "28g", "", "$30.00/g"},
			Link:  "https://example.test/biscotti",
		},
	}
}

func newRunner(f Fetcher, s *memStore) *Runner {
	return &Runner{
		Fetcher: f,
		Store:   s,
		Metrics: scraper.NewMetrics(),
		Now:     func() time.Time { return time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC) },
	}
}

func TestRunnerFirstRun(t *testing.T) {
	st := &memStore{}
	r := newRunner(&fakeFetcher{rows: menuRows()}, st)

	result, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if result.RecordCount != 3 {
		t.Errorf("RecordCount = %d, want 3", result.RecordCount)
	}
	if result.HeaderRows != 2 {
		t.Errorf("HeaderRows = %d, want 2", result.HeaderRows)
	}
	if result.SkippedRows != 1 {
		t.Errorf("SkippedRows = %d, want 1", result.SkippedRows)
	}
	if result.Added != 3 || result.Removed != 0 || result.FieldChanges != 0 {
		t.Errorf("changes = +%d -%d ~%d, want +3 -0 ~0",
			result.Added, result.Removed, result.FieldChanges)
	}

	if st.written == nil || st.written.Len() != 3 {
		t.Fatalf("snapshot not persisted: %+v", st.written)
	}
	if len(st.appended) != 3 {
		t.Fatalf("appended %d events, want 3", len(st.appended))
	}
	for _, ev := range st.appended {
		if ev.Type != models.ChangeAdded {
			t.Errorf("event type = %v, want NEW_ITEM", ev.Type)
		}
		if ev.RunID != result.RunID {
			t.Errorf("event run id = %q, want %q", ev.RunID, result.RunID)
		}
	}

	// lab derivation flows from the section headers
	runtz := st.written.Records["socal|tier_1_exotic|runtz"]
	if runtz == nil {
		t.Fatalf("runtz record missing; got identities %v", identities(st.written))
	}
	if runtz.Quantity.Available {
		t.Errorf("runtz should be sold out")
	}
	biscotti := st.written.Records["vegas|tier_2|biscotti"]
	if biscotti == nil {
		t.Fatalf("biscotti record missing; got identities %v", identities(st.written))
	}
}

func identities(s *models.Snapshot) []string {
	var ids []string
	for id := range s.Records {
		ids = append(ids, id)
	}
	return ids
}

func TestRunnerSteadyState(t *testing.T) {
	first := &memStore{}
	r := newRunner(&fakeFetcher{rows: menuRows()}, first)
	if _, err := r.Run(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}

	second := &memStore{previous: first.written}
	r = newRunner(&fakeFetcher{rows: menuRows()}, second)
	result, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	if result.Changes() != 0 {
		t.Errorf("identical menu produced %d change events", result.Changes())
	}
	if len(second.appended) != 0 {
		t.Errorf("appended %d events for an unchanged menu", len(second.appended))
	}
	if second.written == nil {
		t.Errorf("snapshot must still be rewritten on an unchanged menu")
	}
}

func TestRunnerCollisionWarning(t *testing.T) {
	rows := []models.RawRow{
		{Cells: []string{"Tier 1 SoCal", ""}},
		{Cells: []string{"Papaya Punch", "Tier 1", "14g", "", "$45.00/g"}, Link: "https://example.test/a"},
		{Cells: []string{"Papaya Punch", "Tier 1", "7g", "", "$45.00/g"}, Link: "https://example.test/b"},
	}
	st := &memStore{}
	r := newRunner(&fakeFetcher{rows: rows}, st)

	result, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Collisions != 1 {
		t.Errorf("Collisions = %d, want 1", result.Collisions)
	}
	if result.RecordCount != 1 {
		t.Errorf("RecordCount = %d, want 1 (last write wins)", result.RecordCount)
	}
	rec := st.written.Records["socal|tier_1|papaya_punch"]
	if rec == nil || rec.Quantity != models.Grams(7) {
		t.Errorf("stored record = %+v, want the later row's 7g", rec)
	}
}

func TestRunnerParseWarnings(t *testing.T) {
	rows := []models.RawRow{
		{Cells: []string{"Tier 1 SoCal", ""}},
		{Cells: []string{"Papaya Punch", "Tier 1", "plenty", "soon", "call us"}, Link: "https://example.test/a"},
	}
	st := &memStore{}
	r := newRunner(&fakeFetcher{rows: rows}, st)

	result, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("malformed cells must not abort the run: %v", err)
	}
	if result.ParseWarnings != 3 {
		t.Errorf("ParseWarnings = %d, want 3", result.ParseWarnings)
	}
	if result.RecordCount != 1 {
		t.Errorf("RecordCount = %d, want 1 (row kept with defaults)", result.RecordCount)
	}
}

func TestRunnerFetchErrorAborts(t *testing.T) {
	st := &memStore{}
	r := newRunner(&fakeFetcher{err: errors.New("boom")}, st)

	if _, err := r.Run(context.Background()); err == nil {
		t.Fatal("expected fetch error to abort the run")
	}
	if st.written != nil || len(st.appended) != 0 {
		t.Fatal("store must not be touched after a fetch failure")
	}
}

func TestRunnerStoreReadErrorAborts(t *testing.T) {
	st := &memStore{readErr: errors.New("unreachable")}
	r := newRunner(&fakeFetcher{rows: menuRows()}, st)

	if _, err := r.Run(context.Background()); err == nil {
		t.Fatal("expected store read error to abort the run")
	}
	if st.written != nil {
		t.Fatal("no snapshot may be written when the previous one is unreadable")
	}
}

func TestRunnerStoreWriteErrorAborts(t *testing.T) {
	st := &memStore{writeErr: errors.New("quota exceeded")}
	r := newRunner(&fakeFetcher{rows: menuRows()}, st)

	if _, err := r.Run(context.Background()); err == nil {
		t.Fatal("expected store write error to abort the run")
	}
	if len(st.appended) != 0 {
		t.Fatal("changes must not be appended after a failed snapshot write")
	}
}

func TestRunnerDryRun(t *testing.T) {
	st := &memStore{}
	r := newRunner(&fakeFetcher{rows: menuRows()}, st)
	r.DryRun = true

	result, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Added != 3 {
		t.Errorf("dry run should still compute the diff, got +%d", result.Added)
	}
	if st.written != nil || len(st.appended) != 0 {
		t.Fatal("dry run must not write to the store")
	}
}
