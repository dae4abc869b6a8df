package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/agrovault/trialbase/modules/ingest/domain/entities/observation"
	"github.com/agrovault/trialbase/modules/ingest/domain/validation"
	"github.com/agrovault/trialbase/pkg/excel"
)

// issueKindOrder fixes the export order of findings within a workbook:
// file first, then headers, then data.
var issueKindOrder = []validation.IssueKind{
	validation.KindParse,
	validation.KindEncoding,
	validation.KindIO,
	validation.KindHeaderMissing,
	validation.KindHeaderUnknown,
	validation.KindHeaderForbidden,
	validation.KindValue,
	validation.KindRange,
	validation.KindUnresolved,
	validation.KindAmbiguous,
}

// ReportService renders wizard state as downloadable xlsx workbooks: the
// validation report while a run is in flight, the inserted observations
// after it finished.
type ReportService struct {
	wizard       *WizardService
	observations observation.Repository
	exporter     excel.Exporter
}

func NewReportService(wizard *WizardService, observations observation.Repository, exporter excel.Exporter) *ReportService {
	return &ReportService{
		wizard:       wizard,
		observations: observations,
		exporter:     exporter,
	}
}

// IssueReport exports the current findings of a session, one row per
// finding, with merge gaps appended after the validation issues.
func (s *ReportService) IssueReport(ctx context.Context, id uuid.UUID) ([]byte, string, error) {
	res, err := s.wizard.Get(ctx, id)
	if err != nil {
		return nil, "", err
	}

	headers := []string{"kind", "row", "column", "message"}
	rows := make([][]any, 0)
	if res.Summary != nil {
		for _, kind := range issueKindOrder {
			for _, issue := range res.Summary.Issues[kind] {
				rows = append(rows, []any{string(kind), issue.Row, issue.Column, issue.Message})
			}
		}
	}
	for _, gap := range res.Gaps {
		rows = append(rows, []any{"gap", gap.Row, gap.Column, "required field is empty and no default fills it"})
	}

	content, err := s.exporter.Export(ctx, excel.NewSliceDataSource("Validation", headers, rows))
	if err != nil {
		return nil, "", err
	}
	return content, fmt.Sprintf("validation-%s.xlsx", res.Session.ID()), nil
}

// ObservationReport exports the observations a session inserted.
func (s *ReportService) ObservationReport(ctx context.Context, id uuid.UUID) ([]byte, string, error) {
	found, err := s.observations.FindBySession(ctx, id)
	if err != nil {
		return nil, "", err
	}

	headers := []string{
		"id", "kind", "trait", "value", "n", "SE",
		"site_id", "species_id", "citation_id", "cultivar_id", "treatment_id",
		"date", "access_level", "notes",
	}
	rows := make([][]any, 0, len(found))
	for _, obs := range found {
		rows = append(rows, []any{
			obs.ID(),
			string(obs.Kind()),
			obs.Trait(),
			obs.Value().String(),
			intCell(obs.N()),
			decimalCell(obs.StdErr()),
			obs.SiteID(),
			obs.SpeciesID(),
			obs.CitationID(),
			int64Cell(obs.CultivarID()),
			int64Cell(obs.TreatmentID()),
			dateCell(obs.Date()),
			obs.AccessLevel(),
			obs.Notes(),
		})
	}

	content, err := s.exporter.Export(ctx, excel.NewSliceDataSource("Observations", headers, rows))
	if err != nil {
		return nil, "", err
	}
	return content, fmt.Sprintf("observations-%s.xlsx", id), nil
}

func intCell(v *int) any {
	if v == nil {
		return ""
	}
	return *v
}

func int64Cell(v *int64) any {
	if v == nil {
		return ""
	}
	return *v
}

func decimalCell(v *decimal.Decimal) any {
	if v == nil {
		return ""
	}
	return v.String()
}

func dateCell(v *time.Time) any {
	if v == nil {
		return ""
	}
	return v.Format(validation.DefaultDateFormat)
}
