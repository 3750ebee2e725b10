package stats

import (
	"context"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/ehr/careflow/internal/domain/workload"
)

const (
	workloadSheet = "Workload"
	summarySheet  = "Facility"
)

var workloadHeader = []string{
	"Doctor",
	"Specialization",
	"Active",
	"Tier",
	"Total",
	"Completed",
	"Avg Stay (days)",
	"Last 7 Days",
	"Last 30 Days",
	"Last Admission",
}

var workloadColWidths = []float64{28, 20, 10, 10, 10, 12, 16, 12, 14, 16}

// ExportWorkload writes the facility statistics to w as an xlsx workbook:
// one row per doctor on the first sheet and the facility totals on the second.
func (s *Service) ExportWorkload(ctx context.Context, w io.Writer) error {
	fs, err := s.GetFacilityStats(ctx)
	if err != nil {
		return err
	}

	f, err := WorkloadWorkbook(fs)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workload workbook: %w", err)
	}
	return nil
}

// WorkloadWorkbook renders fs into a new workbook. The caller closes it.
func WorkloadWorkbook(fs *FacilityStats) (*excelize.File, error) {
	f := excelize.NewFile()

	index, err := f.NewSheet(workloadSheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	if _, err := f.NewSheet(summarySheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	_ = f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("create header style: %w", err)
	}

	for i, h := range workloadHeader {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(workloadSheet, cell, h); err != nil {
			f.Close()
			return nil, fmt.Errorf("set header cell %s: %w", cell, err)
		}
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(workloadSheet, col, col, workloadColWidths[i]); err != nil {
			f.Close()
			return nil, fmt.Errorf("set column width: %w", err)
		}
	}
	lastHeader, _ := excelize.CoordinatesToCellName(len(workloadHeader), 1)
	if err := f.SetCellStyle(workloadSheet, "A1", lastHeader, headerStyle); err != nil {
		f.Close()
		return nil, fmt.Errorf("set header style: %w", err)
	}

	for i, d := range fs.Doctors {
		last := ""
		if d.LastAdmissionDate != nil {
			last = *d.LastAdmissionDate
		}
		row := []interface{}{
			d.Name, d.Specialization, d.ActiveAssignments, string(d.Tier), d.TotalAssignments,
			d.CompletedAssignments, d.AverageStayDays, d.AssignmentsLast7, d.AssignmentsLast30, last,
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(workloadSheet, cell, &row); err != nil {
			f.Close()
			return nil, fmt.Errorf("write doctor row %d: %w", i+2, err)
		}
	}

	summary := [][]interface{}{
		{"As of", fs.AsOf},
		{"Doctors", fs.DoctorCount},
		{"Total assignments", fs.TotalAssignments},
		{"Active assignments", fs.ActiveAssignments},
		{"Completed assignments", fs.CompletedAssignments},
		{"Assignments last 7 days", fs.AssignmentsLast7},
		{"Assignments last 30 days", fs.AssignmentsLast30},
		{"Average assignments per doctor", fs.AverageAssignmentsPerDoc},
		{"Average stay (days)", fs.AverageStayDays},
	}
	for _, tier := range workload.Tiers {
		summary = append(summary, []interface{}{"Doctors " + string(tier), fs.TierDistribution[tier]})
	}
	for i, row := range summary {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			f.Close()
			return nil, fmt.Errorf("write summary row %d: %w", i+1, err)
		}
	}
	if err := f.SetColWidth(summarySheet, "A", "A", 32); err != nil {
		f.Close()
		return nil, fmt.Errorf("set column width: %w", err)
	}
	return f, nil
}
