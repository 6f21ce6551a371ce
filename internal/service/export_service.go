package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/asproject/assignment-portal-api/internal/models"
	appErrors "github.com/asproject/assignment-portal-api/pkg/errors"
	"github.com/asproject/assignment-portal-api/pkg/export"
)

// Export formats supported by the submissions export.
const (
	ExportFormatCSV = "csv"
	ExportFormatPDF = "pdf"
)

var submissionExportHeaders = []string{
	"Tracking ID", "Name", "ERP", "Branch", "Section", "Subject",
	"Submitted At", "Marks", "Remark", "Graded At",
}

type submissionLister interface {
	List(ctx context.Context) ([]models.Submission, error)
}

// ExportFile is a rendered export ready to be served as a download.
type ExportFile struct {
	Content     []byte
	Filename    string
	ContentType string
}

// ExportService renders the submissions listing into downloadable files.
type ExportService struct {
	submissions submissionLister
	csv         *export.CSVExporter
	pdf         *export.PDFExporter
	logger      *zap.Logger
}

// NewExportService constructs an ExportService.
func NewExportService(submissions submissionLister, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		submissions: submissions,
		csv:         export.NewCSVExporter(),
		pdf:         export.NewPDFExporter(),
		logger:      logger,
	}
}

// ExportSubmissions renders every submission into the requested format.
func (s *ExportService) ExportSubmissions(ctx context.Context, format string) (*ExportFile, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = ExportFormatCSV
	}
	if format != ExportFormatCSV && format != ExportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}

	subs, err := s.submissions.List(ctx)
	if err != nil {
		return nil, err
	}

	dataset := export.Dataset{
		Headers: submissionExportHeaders,
		Rows:    make([]map[string]string, 0, len(subs)),
	}
	for _, sub := range subs {
		dataset.Rows = append(dataset.Rows, submissionExportRow(sub))
	}

	stamp := time.Now().UTC().Format("20060102-150405")
	switch format {
	case ExportFormatPDF:
		content, err := s.pdf.Render(dataset, "Assignment Submissions")
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render PDF export")
		}
		return &ExportFile{
			Content:     content,
			Filename:    fmt.Sprintf("submissions-%s.pdf", stamp),
			ContentType: "application/pdf",
		}, nil
	default:
		content, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render CSV export")
		}
		return &ExportFile{
			Content:     content,
			Filename:    fmt.Sprintf("submissions-%s.csv", stamp),
			ContentType: "text/csv",
		}, nil
	}
}

func submissionExportRow(sub models.Submission) map[string]string {
	row := map[string]string{
		"Tracking ID":  sub.TrackingID,
		"Name":         sub.StudentName,
		"ERP":          sub.ERP,
		"Branch":       sub.Branch,
		"Section":      sub.Section,
		"Subject":      sub.Subject,
		"Submitted At": sub.SubmittedAt.Format(time.RFC3339),
	}
	if sub.Marks != nil {
		row["Marks"] = *sub.Marks
	}
	if sub.Remark != nil {
		row["Remark"] = *sub.Remark
	}
	if sub.GradedAt != nil {
		row["Graded At"] = sub.GradedAt.Format(time.RFC3339)
	}
	return row
}
