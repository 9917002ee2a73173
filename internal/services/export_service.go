package services

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"spendwise/internal/core"
	"spendwise/internal/storage"
)

// CSVTimeLayout renders instants in UTC with millisecond precision.
const CSVTimeLayout = "2006-01-02T15:04:05.000Z"

var csvHeader = []string{"date", "amount", "category", "description", "paymentMode"}

type ExportService struct {
	expenses storage.ExpenseRepository
	now      func() time.Time
}

func NewExportService(expenses storage.ExpenseRepository) *ExportService {
	return &ExportService{expenses: expenses, now: time.Now}
}

// Filename returns the attachment name for an export started now.
func (s *ExportService) Filename() string {
	return fmt.Sprintf("expenses_%d.csv", s.now().UnixMilli())
}

// WriteCSV writes the user's expenses in [from, to], newest first. Either
// bound may be nil.
func (s *ExportService) WriteCSV(ctx context.Context, w io.Writer, userID string, from, to *time.Time) error {
	f := core.ExpenseFilter{From: from, To: to}
	if err := f.Validate(); err != nil {
		return err
	}
	items, err := s.expenses.ListExpenses(ctx, userID, f)
	if err != nil {
		return fmt.Errorf("load expenses: %w", err)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, e := range items {
		record := []string{
			e.Date.UTC().Format(CSVTimeLayout),
			e.Amount.String(),
			e.Category,
			e.Description,
			string(e.PaymentMode),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}
