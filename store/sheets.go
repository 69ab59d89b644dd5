package store

import (
	"context"
	"fmt"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"menuwatch/models"
	"menuwatch/snapshot"
)

// Worksheet names match the original spreadsheet so existing dashboards
// keep working.
const (
	currentSheet   = "current_menu"
	changelogSheet = "changelog"
)

// SheetsStore persists snapshots in a Google Sheets spreadsheet: the
// current_menu worksheet holds the snapshot and is overwritten each
// run, the changelog worksheet only ever grows.
type SheetsStore struct {
	svc           *sheets.Service
	spreadsheetID string
}

// NewSheetsStore authenticates with a service-account credentials file
// and makes sure both worksheets exist.
func NewSheetsStore(ctx context.Context, spreadsheetID, credentialsFile string) (*SheetsStore, error) {
	svc, err := sheets.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(sheets.SpreadsheetsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("sheets: create service: %w", err)
	}

	s := &SheetsStore{svc: svc, spreadsheetID: spreadsheetID}
	if err := s.ensureWorksheets(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SheetsStore) ensureWorksheets(ctx context.Context) error {
	ss, err := s.svc.Spreadsheets.Get(s.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("sheets: get spreadsheet: %w", err)
	}

	existing := make(map[string]bool, len(ss.Sheets))
	for _, sheet := range ss.Sheets {
		if sheet.Properties != nil {
			existing[sheet.Properties.Title] = true
		}
	}

	var requests []*sheets.Request
	for _, title := range []string{changelogSheet, currentSheet} {
		if existing[title] {
			continue
		}
		requests = append(requests, &sheets.Request{
			AddSheet: &sheets.AddSheetRequest{
				Properties: &sheets.SheetProperties{Title: title},
			},
		})
	}
	if len(requests) == 0 {
		return nil
	}

	_, err = s.svc.Spreadsheets.BatchUpdate(s.spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: requests,
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("sheets: add worksheets: %w", err)
	}
	return nil
}

// ReadPrevious loads the snapshot from the current_menu worksheet,
// skipping the header row. An empty worksheet yields an empty
// snapshot.
func (s *SheetsStore) ReadPrevious(ctx context.Context) (*models.Snapshot, error) {
	resp, err := s.svc.Spreadsheets.Values.
		Get(s.spreadsheetID, currentSheet+"!A2:J").
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("sheets: read snapshot: %w", err)
	}

	snap := models.NewSnapshot()
	for _, row := range resp.Values {
		if rec, ok := parseRecordRow(stringCells(row)); ok {
			snap.Add(rec)
		}
	}
	return snap, nil
}

// WriteSnapshot clears the current_menu worksheet and rewrites it with
// the header and the records in presentation order.
func (s *SheetsStore) WriteSnapshot(ctx context.Context, snap *models.Snapshot) error {
	_, err := s.svc.Spreadsheets.Values.
		Clear(s.spreadsheetID, currentSheet, &sheets.ClearValuesRequest{}).
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("sheets: clear snapshot: %w", err)
	}

	values := [][]interface{}{interfaceCells(snapshotHeader)}
	for _, rec := range snapshot.Sorted(snap) {
		values = append(values, interfaceCells(recordRow(rec)))
	}

	_, err = s.svc.Spreadsheets.Values.
		Update(s.spreadsheetID, currentSheet+"!A1", &sheets.ValueRange{Values: values}).
		ValueInputOption("RAW").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("sheets: write snapshot: %w", err)
	}
	return nil
}

// AppendChanges appends events to the changelog worksheet, writing the
// header row first on an empty worksheet.
func (s *SheetsStore) AppendChanges(ctx context.Context, events []models.ChangeEvent) error {
	if len(events) == 0 {
		return nil
	}

	head, err := s.svc.Spreadsheets.Values.
		Get(s.spreadsheetID, changelogSheet+"!A1:A1").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("sheets: read changelog header: %w", err)
	}

	var values [][]interface{}
	if len(head.Values) == 0 {
		values = append(values, interfaceCells(changelogHeader))
	}
	for _, ev := range events {
		values = append(values, interfaceCells(changeRow(ev)))
	}

	_, err = s.svc.Spreadsheets.Values.
		Append(s.spreadsheetID, changelogSheet+"!A1", &sheets.ValueRange{Values: values}).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("sheets: append changes: %w", err)
	}
	return nil
}

func stringCells(row []interface{}) []string {
	out := make([]string, len(row))
	for i, cell := range row {
		out[i] = fmt.Sprint(cell)
	}
	return out
}

func interfaceCells(row []string) []interface{} {
	out := make([]interface{}, len(row))
	for i, cell := range row {
		out[i] = cell
	}
	return out
}
