package snapshot

import (
	"testing"
	"time"

	"menuwatch/classify"
	"menuwatch/models"
)

func record(lab, tier, name string, qty models.Quantity, minOrder int, price float64) *models.Record {
	return &models.Record{
		Identity: Identity(lab, tier, name),
		Name:     name,
		Tier:     tier,
		Lab:      lab,
		Quantity: qty,
		MinOrder: minOrder,
		Price:    price,
	}
}

func snap(records ...*models.Record) *models.Snapshot {
	s := models.NewSnapshot()
	for _, rec := range records {
		s.Add(rec)
	}
	return s
}

func TestIdentityStability(t *testing.T) {
	a := Identity("SoCal", "Tier 1 Exotic", "Papaya Punch")
	b := Identity("SoCal", "Tier 1 Exotic", "Papaya Punch")
	if a != b {
		t.Fatalf("identity not stable: %q vs %q", a, b)
	}
	if want := "socal|tier_1_exotic|papaya_punch"; a != want {
		t.Fatalf("Identity() = %q, want %q", a, want)
	}
}

func TestBuildRecord(t *testing.T) {
	state := classify.State{Section: "Tier 1 Exotic SoCal"}
	row := models.RawRow{
		Cells: []string{"Papaya Punch Exotic", "Tier 1 Exotic", "14g", "7g", "$45.00/g"},
		Link:  "https://example.test/papaya-punch",
	}
	observed := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

	rec, warned := BuildRecord(state, row, observed)
	if len(warned) != 0 {
		t.Fatalf("unexpected parse warnings: %v", warned)
	}
	if rec.Name != "Papaya Punch" {
		t.Errorf("Name = %q, want %q", rec.Name, "Papaya Punch")
	}
	if rec.Lab != classify.LabSoCal {
		t.Errorf("Lab = %q, want %q", rec.Lab, classify.LabSoCal)
	}
	if rec.Quantity != models.Grams(14) {
		t.Errorf("Quantity = %v, want %v", rec.Quantity, models.Grams(14))
	}
	if rec.MinOrder != 7 {
		t.Errorf("MinOrder = %d, want 7", rec.MinOrder)
	}
	if rec.Price != 45.00 {
		t.Errorf("Price = %v, want 45.00", rec.Price)
	}
	if rec.ObservedAt != observed {
		t.Errorf("ObservedAt = %v, want %v", rec.ObservedAt, observed)
	}
	if want := "socal|tier_1_exotic|papaya_punch"; rec.Identity != want {
		t.Errorf("Identity = %q, want %q", rec.Identity, want)
	}
}

func TestBuildRecordDegradesWithWarnings(t *testing.T) {
	state := classify.State{Section: "Tier 2 Vegas"}
	row := models.RawRow{
		Cells: []string{"Gelato 41", "Tier 2", "ask in store", "n/a", "market rate"},
	}

	rec, warned := BuildRecord(state, row, time.Now())
	if rec.Quantity != models.Unavailable() {
		t.Errorf("Quantity = %v, want Unavailable", rec.Quantity)
	}
	if rec.MinOrder != 0 {
		t.Errorf("MinOrder = %d, want 0", rec.MinOrder)
	}
	if rec.Price != 0 {
		t.Errorf("Price = %v, want 0", rec.Price)
	}
	if len(warned) != 3 {
		t.Fatalf("warned = %v, want all three tracked fields", warned)
	}
}

func TestBuildRecordShortRow(t *testing.T) {
	rec, _ := BuildRecord(classify.State{}, models.RawRow{Cells: []string{"Runtz"}}, time.Now())
	if rec.Quantity != models.Unavailable() {
		t.Errorf("missing stock cell should read unavailable, got %v", rec.Quantity)
	}
	if rec.PriceString() != "0.00" {
		t.Errorf("missing price cell should read 0.00, got %q", rec.PriceString())
	}
}

func TestSortOrder(t *testing.T) {
	records := []*models.Record{
		record(classify.LabSoCal, "Tier 2", "Runtz", models.Grams(10), 0, 30),
		record(classify.LabSoCal, "Tier 1 Exotic", "Zkittlez", models.Grams(10), 0, 50),
		record(classify.LabSoCal, "Tier 1", "Apple Fritter", models.Grams(10), 0, 40),
	}

	Sort(records)

	want := []string{"Tier 1 Exotic", "Tier 1", "Tier 2"}
	for i, tier := range want {
		if records[i].Tier != tier {
			t.Fatalf("position %d: tier %q, want %q", i, records[i].Tier, tier)
		}
	}
}

func TestSortLabThenName(t *testing.T) {
	records := []*models.Record{
		record(classify.LabMain, "Tier 1", "Biscotti", models.Grams(10), 0, 40),
		record(classify.LabSoCal, "Tier 1", "zkittlez", models.Grams(10), 0, 40),
		record(classify.LabSoCal, "Tier 1", "Apple Fritter", models.Grams(10), 0, 40),
	}

	Sort(records)

	want := []string{"Apple Fritter", "zkittlez", "Biscotti"}
	for i, name := range want {
		if records[i].Name != name {
			t.Fatalf("position %d: name %q, want %q", i, records[i].Name, name)
		}
	}
}

func TestDiffIdempotent(t *testing.T) {
	s := snap(
		record(classify.LabSoCal, "Tier 1", "Papaya Punch", models.Grams(14), 7, 45),
		record(classify.LabVegas, "Tier 2", "Runtz", models.Unavailable(), 0, 0),
	)

	if events := Diff(s, s, time.Now()); len(events) != 0 {
		t.Fatalf("diff of a snapshot with itself = %v, want empty", events)
	}
}

func TestDiffEmptyPrevious(t *testing.T) {
	cur := snap(record(classify.LabSoCal, "Tier 1", "Papaya Punch", models.Grams(14), 0, 45))

	events := Diff(models.NewSnapshot(), cur, time.Now())
	if len(events) != 1 || events[0].Type != models.ChangeAdded {
		t.Fatalf("diff against empty previous = %v, want one NEW_ITEM", events)
	}
}

func TestDiffScenario(t *testing.T) {
	prev := snap(record(classify.LabSoCal, "Tier 1", "Papaya Punch", models.Grams(14), 0, 45))
	cur := snap(
		record(classify.LabSoCal, "Tier 1", "Papaya Punch", models.Unavailable(), 0, 45),
		record(classify.LabSoCal, "Tier 1", "Runtz", models.Grams(10), 0, 45),
	)

	events := Diff(prev, cur, time.Now())
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2: %v", len(events), events)
	}

	added := events[0]
	if added.Type != models.ChangeAdded || added.Name != "Runtz" {
		t.Errorf("first event = %+v, want NEW_ITEM for Runtz", added)
	}

	changed := events[1]
	if changed.Type != models.ChangeField || changed.Field != models.FieldQuantity {
		t.Fatalf("second event = %+v, want quantity FIELD_CHANGE", changed)
	}
	if changed.Old != "14" || changed.New != "SOLD OUT" {
		t.Errorf("quantity change %q -> %q, want \"14\" -> \"SOLD OUT\"", changed.Old, changed.New)
	}

	for _, ev := range events {
		if ev.Type == models.ChangeRemoved {
			t.Errorf("unexpected REMOVED event: %+v", ev)
		}
	}
}

func TestDiffRemoval(t *testing.T) {
	a := record(classify.LabSoCal, "Tier 1", "Papaya Punch", models.Grams(14), 0, 45)
	b := record(classify.LabSoCal, "Tier 1", "Runtz", models.Grams(10), 0, 45)

	events := Diff(snap(a, b), snap(a), time.Now())
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1: %v", len(events), events)
	}
	if events[0].Type != models.ChangeRemoved || events[0].Identity != b.Identity {
		t.Fatalf("event = %+v, want REMOVED for %s", events[0], b.Identity)
	}
	if events[0].Name != "Runtz" {
		t.Errorf("removal should carry the last known name, got %q", events[0].Name)
	}
}

func TestDiffPriceFormattingNoise(t *testing.T) {
	prev := snap(record(classify.LabSoCal, "Tier 1", "Papaya Punch", models.Grams(14), 0, 5))
	cur := snap(record(classify.LabSoCal, "Tier 1", "Papaya Punch", models.Grams(14), 0, 5.00))

	if events := Diff(prev, cur, time.Now()); len(events) != 0 {
		t.Fatalf("formatting-only price difference produced events: %v", events)
	}
}

func TestDiffOrderingAddsAndRemovesFirst(t *testing.T) {
	prev := snap(
		record(classify.LabSoCal, "Tier 1", "Apple Fritter", models.Grams(10), 0, 40),
		record(classify.LabSoCal, "Tier 1", "Zkittlez", models.Grams(10), 0, 40),
	)
	cur := snap(
		record(classify.LabSoCal, "Tier 1", "Apple Fritter", models.Grams(5), 0, 40),
		record(classify.LabSoCal, "Tier 1", "Biscotti", models.Grams(10), 0, 40),
	)

	events := Diff(prev, cur, time.Now())
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3: %v", len(events), events)
	}
	if events[0].Type != models.ChangeAdded {
		t.Errorf("event 0 = %v, want NEW_ITEM", events[0].Type)
	}
	if events[1].Type != models.ChangeRemoved {
		t.Errorf("event 1 = %v, want REMOVED", events[1].Type)
	}
	if events[2].Type != models.ChangeField {
		t.Errorf("event 2 = %v, want FIELD_CHANGE", events[2].Type)
	}
}

func TestDiffMultipleFieldChangesPerIdentity(t *testing.T) {
	prev := snap(record(classify.LabSoCal, "Tier 1", "Papaya Punch", models.Grams(14), 7, 45))
	cur := snap(record(classify.LabSoCal, "Tier 1", "Papaya Punch", models.Grams(7), 14, 40))

	events := Diff(prev, cur, time.Now())
	if len(events) != 3 {
		t.Fatalf("got %d events, want one per tracked field: %v", len(events), events)
	}
	wantFields := []string{models.FieldQuantity, models.FieldMinOrder, models.FieldPrice}
	for i, field := range wantFields {
		if events[i].Field != field {
			t.Errorf("event %d field = %q, want %q", i, events[i].Field, field)
		}
	}
}

func TestSnapshotCollision(t *testing.T) {
	s := models.NewSnapshot()
	first := record(classify.LabSoCal, "Tier 1", "Papaya Punch", models.Grams(14), 0, 45)
	second := record(classify.LabSoCal, "Tier 1", "Papaya Punch", models.Grams(7), 0, 40)

	if prev := s.Add(first); prev != nil {
		t.Fatalf("first add displaced %+v", prev)
	}
	prev := s.Add(second)
	if prev != first {
		t.Fatalf("second add should displace the first record")
	}
	if s.Len() != 1 {
		t.Fatalf("snapshot has %d records, want 1", s.Len())
	}
	if s.Records[second.Identity].Quantity != models.Grams(7) {
		t.Fatalf("last write should win within a run")
	}
}
