package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// Sheet names of the workbook.
const (
	SheetUpdates   = "Updates"
	SheetFloors    = "Floors"
	SheetWorkTypes = "Work Types"
	SheetHeatmap   = "Heatmap"
)

// ContentTypeXLSX is the MIME type of the workbook.
const ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type styles struct {
	title, header, data int
}

func newStyles(f *excelize.File) (styles, error) {
	var s styles
	var err error
	s.title, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 16},
		Alignment: &excelize.Alignment{Horizontal: "left", Vertical: "center"},
	})
	if err != nil {
		return s, err
	}
	s.header, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return s, err
	}
	s.data, err = f.NewStyle(&excelize.Style{
		Border: []excelize.Border{
			{Type: "left", Color: "CCCCCC", Style: 1},
			{Type: "right", Color: "CCCCCC", Style: 1},
			{Type: "top", Color: "CCCCCC", Style: 1},
			{Type: "bottom", Color: "CCCCCC", Style: 1},
		},
	})
	return s, err
}

// sheet writes a titled table and keeps the first error.
type sheet struct {
	f    *excelize.File
	name string
	st   styles
	err  error
}

const headerRow = 4

func (s *sheet) set(col, row int, v any, style int) {
	if s.err != nil {
		return
	}
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		s.err = err
		return
	}
	if err := s.f.SetCellValue(s.name, cell, v); err != nil {
		s.err = err
		return
	}
	if style != 0 {
		s.err = s.f.SetCellStyle(s.name, cell, cell, style)
	}
}

func (s *sheet) title(title, subtitle string) {
	s.set(1, 1, title, s.st.title)
	s.set(1, 2, subtitle, 0)
	if s.err == nil {
		s.err = s.f.SetRowHeight(s.name, 1, 30)
	}
}

func (s *sheet) header(cols []string, width float64) {
	for i, c := range cols {
		s.set(i+1, headerRow, c, s.st.header)
		if s.err == nil {
			name, _ := excelize.ColumnNumberToName(i + 1)
			s.err = s.f.SetColWidth(s.name, name, name, width)
		}
	}
}

func (s *sheet) row(n int, values []any) {
	for i, v := range values {
		s.set(i+1, headerRow+1+n, v, s.st.data)
	}
}

// WriteWorkbook renders the report as an XLSX workbook.
func WriteWorkbook(w io.Writer, rep *Report) error {
	f, err := Workbook(rep)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Write(w)
}

// Workbook builds the four-sheet workbook.
func Workbook(rep *Report) (*excelize.File, error) {
	f := excelize.NewFile()
	st, err := newStyles(f)
	if err != nil {
		return nil, err
	}

	period := "All updates"
	if rep.Month != "" {
		period = "Month: " + rep.Month
	}
	subtitle := fmt.Sprintf("%s | Generated: %s", period, rep.GeneratedAt.Format("2006-01-02 15:04:05"))

	builders := []struct {
		name  string
		build func(*sheet, *Report)
	}{
		{SheetUpdates, updatesSheet},
		{SheetFloors, floorsSheet},
		{SheetWorkTypes, workTypesSheet},
		{SheetHeatmap, heatmapSheet},
	}
	for i, b := range builders {
		idx, err := f.NewSheet(b.name)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			f.SetActiveSheet(idx)
		}
		s := &sheet{f: f, name: b.name, st: st}
		s.title(fmt.Sprintf("%s - %s", rep.Site.Name, b.name), subtitle)
		b.build(s, rep)
		if s.err != nil {
			return nil, fmt.Errorf("sheet %s: %w", b.name, s.err)
		}
	}

	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, err
	}
	return f, nil
}

func updatesSheet(s *sheet, rep *Report) {
	s.header(Columns, 20)
	for i, r := range rep.rows() {
		vals := make([]any, len(r))
		for j, v := range r {
			vals[j] = v
		}
		s.row(i, vals)
	}
}

func floorsSheet(s *sheet, rep *Report) {
	s.header([]string{"Floor", "Updates", "Avg Progress %", "Latest Phase", "Work Types Count", "Last Updated"}, 18)
	for i, fs := range rep.Analytics.Floors {
		s.row(i, []any{
			fs.FloorLabel, fs.UpdateCount, fs.AverageFloorProgress, fs.MostRecentWorkPhase,
			fs.DistinctWorkTypeCount, fs.LastUpdated.Format("2006-01-02"),
		})
	}
}

func workTypesSheet(s *sheet, rep *Report) {
	s.header([]string{"Work Type", "Total Instances", "Completed", "In Progress", "Other", "Completion %", "Avg Progress %", "Latest Status"}, 18)
	for i, ws := range rep.Analytics.WorkTypes {
		rate := 0.0
		if ws.TotalOccurrences > 0 {
			rate = float64(ws.CompletedOccurrences) * 100 / float64(ws.TotalOccurrences)
		}
		s.row(i, []any{
			ws.WorkTypeName, ws.TotalOccurrences, ws.CompletedOccurrences, ws.InProgressOccurrences,
			ws.OtherOccurrences, fmt.Sprintf("%.1f%%", rate), optionalPercent(ws.AverageProgress), ws.LatestStatus,
		})
	}
}

// optionalPercent writes notAvailable for an average with no samples.
func optionalPercent(v *float64) any {
	if v == nil {
		return notAvailable
	}
	return *v
}

// heatmapSheet writes floors as rows and work types as columns. Cells with
// no data stay blank.
func heatmapSheet(s *sheet, rep *Report) {
	m := rep.Analytics.Matrix
	if m == nil || len(m.Cells) == 0 {
		s.set(1, headerRow, "No floor-wise progress recorded", 0)
		return
	}
	s.header(append([]string{"Floor"}, m.WorkTypes...), 16)
	for i, floor := range m.Floors {
		row := headerRow + 1 + i
		s.set(1, row, floor, s.st.data)
		for j, wt := range m.WorkTypes {
			if cell, ok := m.Cell(floor, wt); ok {
				s.set(j+2, row, cell.LatestProgress, s.st.data)
			}
		}
	}
	if s.err != nil {
		return
	}
	from, _ := excelize.CoordinatesToCellName(2, headerRow+1)
	to, _ := excelize.CoordinatesToCellName(len(m.WorkTypes)+1, headerRow+len(m.Floors))
	s.err = s.f.SetConditionalFormat(s.name, from+":"+to, []excelize.ConditionalFormatOptions{{
		Type:     "3_color_scale",
		Criteria: "=",
		MinType:  "num",
		MinValue: "0",
		MinColor: "#F8696B",
		MidType:  "num",
		MidValue: "50",
		MidColor: "#FFEB84",
		MaxType:  "num",
		MaxValue: "100",
		MaxColor: "#63BE7B",
	}})
}
