package services

import (
	"context"
	"fmt"
	"math"

	"github.com/SAP-F-2025/attempt-session-service/internal/models"
	"github.com/xuri/excelize/v2"
)

const timeSheet = "Time"

// TimeReport exports the time spent per question of an open attempt as a spreadsheet
func (s *attemptSessionService) TimeReport(ctx context.Context, attemptID, userID string) (data []byte, err error) {
	op := s.ops.WithOperation(ctx, "time_report", userID, attemptID)
	defer func() { op.LogResult(err) }()

	open, err := s.session(attemptID, userID, "report")
	if err != nil {
		return nil, err
	}
	return buildTimeReport(open.session.State())
}

func buildTimeReport(states []models.AnswerState) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(timeSheet)
	if err != nil {
		return nil, fmt.Errorf("failed to create Excel sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("failed to drop default sheet: %w", err)
	}

	headers := []string{"#", "Question", "Type", "Answered", "Review", "Seconds", "Formatted"}
	for i, header := range headers {
		cell := fmt.Sprintf("%c1", 'A'+i)
		f.SetCellValue(timeSheet, cell, header)
	}

	total := 0
	for i, state := range states {
		seconds := int(math.Round(state.TimeSpent))
		total += seconds

		row := []any{
			i + 1,
			state.LocalKey,
			string(state.Type),
			yesNo(state.Completed),
			yesNo(state.Review),
			seconds,
			formatDuration(seconds),
		}
		for col, value := range row {
			cell := fmt.Sprintf("%c%d", 'A'+col, i+2)
			f.SetCellValue(timeSheet, cell, value)
		}
	}

	totalRow := len(states) + 2
	f.SetCellValue(timeSheet, fmt.Sprintf("B%d", totalRow), "Total")
	f.SetCellValue(timeSheet, fmt.Sprintf("F%d", totalRow), total)
	f.SetCellValue(timeSheet, fmt.Sprintf("G%d", totalRow), formatDuration(total))

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write Excel file: %w", err)
	}
	return buf.Bytes(), nil
}

// formatDuration renders seconds as m:ss, or h:mm:ss from one hour on
func formatDuration(seconds int) string {
	h, m, s := seconds/3600, seconds%3600/60, seconds%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
