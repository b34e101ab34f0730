// Package export renders audit reports.
package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/agent-orchestrator/internal/domain/entity"
)

const (
	SheetAssessments = "Assessments"
	SheetViolations  = "Violations"
)

var (
	assessmentHeader = []interface{}{
		"Assessment ID", "Timestamp (UTC)", "Agent", "Role", "Passed",
		"Violations", "Critical", "High", "Medium", "Low", "Content Digest", "Recommendations",
	}
	violationHeader = []interface{}{
		"Assessment ID", "Rule ID", "Category", "Severity", "Action", "Description", "Remediation",
	}
)

// ExcelExporter implements port.AssessmentExporter as an .xlsx workbook
// with one summary row per assessment and one row per violation
type ExcelExporter struct {
	logger *zap.Logger
}

// NewExcelExporter creates a new workbook exporter
func NewExcelExporter(logger *zap.Logger) *ExcelExporter {
	return &ExcelExporter{logger: logger}
}

// ContentType is the MIME type of the produced report
func (e *ExcelExporter) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// FileExtension is the report file suffix
func (e *ExcelExporter) FileExtension() string {
	return ".xlsx"
}

// Export writes the workbook to w
func (e *ExcelExporter) Export(assessments []*entity.Assessment, w io.Writer) error {
	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			e.logger.Warn("Failed to close workbook", zap.Error(err))
		}
	}()

	if err := f.SetSheetName("Sheet1", SheetAssessments); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}
	if _, err := f.NewSheet(SheetViolations); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	if err := writeHeader(f, SheetAssessments, assessmentHeader, headerStyle); err != nil {
		return err
	}
	if err := writeHeader(f, SheetViolations, violationHeader, headerStyle); err != nil {
		return err
	}

	vRow := 2
	for i, a := range assessments {
		row := []interface{}{
			a.AssessmentID,
			a.Timestamp.UTC().Format(time.RFC3339),
			a.AgentID,
			a.RoleID,
			a.Passed,
			a.Summary.Total,
			a.Summary.Critical,
			a.Summary.High,
			a.Summary.Medium,
			a.Summary.Low,
			a.ContentDigest,
			strings.Join(a.Recommendations, "; "),
		}
		if err := setRow(f, SheetAssessments, i+2, row); err != nil {
			return err
		}

		for _, v := range a.Violations {
			row := []interface{}{
				a.AssessmentID, v.RuleID, v.Category, string(v.Severity), string(v.Action), v.Description, v.Remediation,
			}
			if err := setRow(f, SheetViolations, vRow, row); err != nil {
				return err
			}
			vRow++
		}
	}

	_ = f.SetColWidth(SheetAssessments, "A", "B", 38)
	_ = f.SetColWidth(SheetAssessments, "K", "L", 66)
	_ = f.SetColWidth(SheetViolations, "A", "A", 38)
	_ = f.SetColWidth(SheetViolations, "F", "G", 60)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}

	e.logger.Info("Assessment report exported",
		zap.Int("assessments", len(assessments)),
		zap.Int("violations", vRow-2))
	return nil
}

func writeHeader(f *excelize.File, sheet string, header []interface{}, style int) error {
	if err := setRow(f, sheet, 1, header); err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, style); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}
	return f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
}

func setRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write %s row %d: %w", sheet, row, err)
	}
	return nil
}
