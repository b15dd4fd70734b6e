// Package export produces an XLSX summary of a run from the run store.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"invoicedigest/internal/extract"
	"invoicedigest/internal/repository"
)

// Service is a tiny façade over the run store that produces XLSX bytes.
type Service struct {
	jobsRepo repository.JobRepository
	logger   *slog.Logger
}

func NewService(jobsRepo repository.JobRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{jobsRepo: jobsRepo, logger: logger}
}

// SummaryXLSX returns an XLSX workbook with one row per successfully
// extracted document, using the well-known invoice members.
func (s *Service) SummaryXLSX(ctx context.Context) ([]byte, error) {
	start := time.Now()

	rows, err := s.jobsRepo.ListSucceeded(ctx)
	if err != nil {
		return nil, fmt.Errorf("query succeeded jobs: %w", err)
	}

	f := excelize.NewFile()
	const sheet = "Invoices"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)
	if index, _ := f.GetSheetIndex("Sheet1"); index != -1 {
		_ = f.DeleteSheet("Sheet1")
	}

	headers := []string{
		"Invoice Number",
		"Issue Date",
		"Due Date",
		"Issuing Company",
		"Receiving Company",
		"Currency",
		"Total Amount Due",
		"Line Items",
		"Source File",
		"Extracted At",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	rowNum := 2
	for _, jd := range rows {
		fields := extract.ParseInvoiceFields(jd.Job.ExtractedJSON)

		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, rowNum)
			_ = f.SetCellValue(sheet, cell, v)
		}
		write(1, fields.InvoiceNumber)
		write(2, fields.IssueDate)
		write(3, fields.DueDate)
		write(4, fields.IssuingCompanyName)
		write(5, fields.ReceivingCompanyName)
		write(6, fields.Currency)
		write(7, fields.TotalAmountDue)
		write(8, len(fields.LineItems))
		write(9, jd.Document.SourcePath)
		if jd.Job.FinishedAt != nil {
			write(10, jd.Job.FinishedAt.UTC().Format(time.RFC3339))
		}
		rowNum++
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("serialize workbook: %w", err)
	}

	s.logger.Info("export.summary_built",
		"rows", len(rows),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}
