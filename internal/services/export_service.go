package services

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

type ExportStore interface {
	GetSurvey(ctx context.Context, id string) (*Survey, error)
	ListResponses(ctx context.Context, surveyID string) ([]*Response, error)
}

type ExportResult struct {
	Filename    string
	ContentType string
	Data        []byte
}

const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

type ExportService struct {
	store ExportStore
	log   *zap.Logger
}

func NewExportService(store ExportStore, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{store: store, log: logger}
}

// Export renders every response of a survey for its creator or an admin.
func (s *ExportService) Export(ctx context.Context, actor Actor, surveyID, format string) (*ExportResult, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = FormatCSV
	}
	if format != FormatCSV && format != FormatXLSX {
		return nil, NewInvalidError("unsupported format")
	}
	sv, err := loadReadableSurvey(ctx, s.store.GetSurvey, actor, surveyID)
	if err != nil {
		return nil, err
	}
	rs, err := s.store.ListResponses(ctx, surveyID)
	if err != nil {
		return nil, storeError("Failed to fetch responses", err)
	}
	table := BuildResponseTable(sv.Questions, rs)
	base := "survey-" + sv.ID
	switch format {
	case FormatXLSX:
		b, err := ExportXLSX(table, "Responses")
		if err != nil {
			return nil, NewInternalError("Failed to export responses", err)
		}
		s.log.Info("responses exported", zap.String("survey_id", sv.ID), zap.String("format", format), zap.Int("rows", len(rs)))
		return &ExportResult{
			Filename:    base + ".xlsx",
			ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
			Data:        b,
		}, nil
	default:
		b, err := ExportCSV(table)
		if err != nil {
			return nil, NewInternalError("Failed to export responses", err)
		}
		s.log.Info("responses exported", zap.String("survey_id", sv.ID), zap.String("format", format), zap.Int("rows", len(rs)))
		return &ExportResult{Filename: base + ".csv", ContentType: "text/csv; charset=utf-8", Data: b}, nil
	}
}
