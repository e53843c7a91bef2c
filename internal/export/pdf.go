// Package export renders a district's Ramadan timetable as a PDF.
package export

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/go-pdf/fpdf"

	"github.com/Nixie-Tech-LLC/waqt/internal/model"
)

var ErrNoRamadanEntries = errors.New("no Ramadan calendar data available for this district")

const (
	title = "Daily Ramadan Schedule"

	marginX    = 20.0
	tableWidth = 170.0
	headerH    = 10.0
	rowH       = 7.0
	tableTop   = 42.0
	pageTop    = 20.0
	pageLimit  = 280.0
)

var (
	headers   = []string{"Ramadan Day", "Date", "Sehri Ends", "Iftar Time"}
	colWidths = []float64{30, 40, 40, 40}

	primary   = [3]int{12, 59, 46}
	secondary = [3]int{26, 92, 72}
	accent    = [3]int{255, 158, 109}
	stripe    = [3]int{248, 253, 250}
)

// FileName is the download name for district's calendar.
func FileName(district string, year int) string {
	return fmt.Sprintf("Ramadan_Calendar_%s_%d.pdf", strings.ReplaceAll(district, " ", "_"), year)
}

// Year returns the year of the first dated Ramadan entry, or fallback.
func Year(entries []model.ScheduleEntry, fallback int) int {
	for _, e := range entries {
		if e.IsRamadan() && !e.Date.IsZero() {
			return e.Date.Year
		}
	}
	return fallback
}

// RamadanCalendar writes the Ramadan-day rows of entries as a paginated table
// and returns the page count. Entries without a Ramadan day are skipped.
func RamadanCalendar(w io.Writer, district string, entries []model.ScheduleEntry) (int, error) {
	var rows [][]string
	for _, e := range entries {
		if !e.IsRamadan() {
			continue
		}
		rows = append(rows, []string{
			strconv.Itoa(*e.RamadanDay),
			orDash(e.DateKey),
			orDash(e.Sehri),
			orDash(e.Iftar),
		})
	}
	if len(rows) == 0 {
		return 0, ErrNoRamadanEntries
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetAutoPageBreak(false, 0)
	pdf.AliasNbPages("")
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFooterFunc(func() {
		pdf.SetFont("Helvetica", "", 9)
		pdf.SetTextColor(128, 128, 128)
		pdf.SetXY(marginX, 285)
		pdf.CellFormat(tableWidth, 10, fmt.Sprintf("Page %d of {nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 20)
	setText(pdf, primary)
	pdf.SetXY(marginX, 12)
	pdf.CellFormat(tableWidth, 10, title, "", 0, "C", false, 0, "")

	pdf.SetFont("Helvetica", "", 14)
	setText(pdf, secondary)
	pdf.SetXY(marginX, 24)
	pdf.CellFormat(tableWidth, 8, tr("District: "+district), "", 0, "C", false, 0, "")

	pdf.SetDrawColor(accent[0], accent[1], accent[2])
	pdf.SetLineWidth(0.5)
	pdf.Line(marginX, 35, marginX+tableWidth, 35)

	y := drawHeader(pdf, tableTop)
	for i, row := range rows {
		if y > pageLimit {
			pdf.AddPage()
			y = drawHeader(pdf, pageTop)
		}

		if i%2 == 0 {
			pdf.SetFillColor(stripe[0], stripe[1], stripe[2])
			pdf.Rect(marginX, y, tableWidth, rowH, "F")
		}

		x := marginX
		for c, cell := range row {
			if c == 0 {
				pdf.SetFont("Helvetica", "B", 10)
				setText(pdf, secondary)
			} else {
				pdf.SetFont("Helvetica", "", 10)
				pdf.SetTextColor(0, 0, 0)
			}
			pdf.SetXY(x, y)
			pdf.CellFormat(colWidths[c], rowH, tr(cell), "", 0, "C", false, 0, "")
			x += colWidths[c]
		}

		pdf.SetDrawColor(230, 230, 230)
		pdf.SetLineWidth(0.1)
		pdf.Line(marginX, y+rowH, marginX+tableWidth, y+rowH)
		y += rowH
	}

	pages := pdf.PageNo()
	if err := pdf.Output(w); err != nil {
		return 0, fmt.Errorf("render pdf: %w", err)
	}
	return pages, nil
}

func drawHeader(pdf *fpdf.Fpdf, y float64) float64 {
	pdf.SetFillColor(primary[0], primary[1], primary[2])
	pdf.Rect(marginX, y, tableWidth, headerH, "F")
	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont("Helvetica", "B", 11)

	x := marginX
	for i, h := range headers {
		pdf.SetXY(x, y)
		pdf.CellFormat(colWidths[i], headerH, h, "", 0, "C", false, 0, "")
		x += colWidths[i]
	}
	return y + headerH
}

func setText(pdf *fpdf.Fpdf, c [3]int) {
	pdf.SetTextColor(c[0], c[1], c[2])
}

func orDash(s string) string {
	if s == "" {
		return "--"
	}
	return s
}
