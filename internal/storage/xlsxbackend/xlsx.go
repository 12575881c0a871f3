package xlsxbackend

import (
	"context"
	"fmt"
	"sync"

	"github.com/FranksOps/qparser/internal/session"
	"github.com/FranksOps/qparser/internal/storage"
	"github.com/xuri/excelize/v2"
)

const (
	ResultsSheet = "Results"
	DomainsSheet = "Domains"
)

var _ storage.Backend = (*xlsxBackend)(nil)

// xlsxBackend builds the workbook in memory and writes it on Close.
type xlsxBackend struct {
	mu      sync.Mutex
	path    string
	file    *excelize.File
	resRow  int
	statRow int
}

// New creates a workbook export written to filePath on Close. An existing
// file at filePath is replaced.
func New(filePath string) (storage.Backend, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", ResultsSheet); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("xlsx: rename sheet: %w", err)
	}
	if _, err := f.NewSheet(DomainsSheet); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("xlsx: new sheet: %w", err)
	}

	b := &xlsxBackend{path: filePath, file: f, resRow: 1, statRow: 1}
	if err := b.appendRow(ResultsSheet, &b.resRow, []any{"Session", "Query", "Created", "Title", "URI", "Domain", "Snippet"}); err != nil {
		_ = f.Close()
		return nil, err
	}
	if err := b.appendRow(DomainsSheet, &b.statRow, []any{"Session", "Query", "Domain", "Count"}); err != nil {
		_ = f.Close()
		return nil, err
	}
	_ = f.SetColWidth(ResultsSheet, "E", "E", 60)
	_ = f.SetPanes(ResultsSheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
	return b, nil
}

func (b *xlsxBackend) appendRow(sheet string, row *int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, *row)
	if err != nil {
		return fmt.Errorf("xlsx: cell name: %w", err)
	}
	if err := b.file.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("xlsx: write %s row %d: %w", sheet, *row, err)
	}
	*row++
	return nil
}

func (b *xlsxBackend) Save(ctx context.Context, s *session.Session) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	created := s.CreatedAt.UTC().Format("2006-01-02 15:04:05")
	for _, r := range s.Results {
		if err := b.appendRow(ResultsSheet, &b.resRow, []any{s.ID, s.Query, created, r.Title, r.URI, r.Domain, r.Snippet}); err != nil {
			return err
		}
	}
	for _, st := range s.DomainStats {
		if err := b.appendRow(DomainsSheet, &b.statRow, []any{s.ID, s.Query, st.Domain, st.Count}); err != nil {
			return err
		}
	}
	return nil
}

func (b *xlsxBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	saveErr := b.file.SaveAs(b.path)
	closeErr := b.file.Close()
	if saveErr != nil {
		return fmt.Errorf("xlsx: save %s: %w", b.path, saveErr)
	}
	return closeErr
}
