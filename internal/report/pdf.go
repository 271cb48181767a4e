package report

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/ShibagniBhattacharjee06/lifelinex/internal/domain"

	"github.com/google/uuid"
	"github.com/jung-kurt/gofpdf"
)

// IncidentSource is the read side the generator needs. Errors from it pass
// through unchanged so the caller keeps NotFound semantics.
type IncidentSource interface {
	GetPopulated(ctx context.Context, id uuid.UUID) (*domain.Incident, error)
}

type Generator struct {
	incidents IncidentSource
}

func NewGenerator(incidents IncidentSource) *Generator {
	return &Generator{incidents: incidents}
}

// Filename is the download name for an incident report.
func Filename(id uuid.UUID) string {
	return fmt.Sprintf("Report-LifeLineX-%s.pdf", id)
}

// Render produces the full incident report as PDF bytes.
func (g *Generator) Render(ctx context.Context, id uuid.UUID) ([]byte, error) {
	inc, err := g.incidents.GetPopulated(ctx, id)
	if err != nil {
		return nil, err
	}
	return render(inc)
}

func render(inc *domain.Incident) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddPage()

	header(pdf, inc)
	overview(pdf, inc)
	location(pdf, inc)
	timeline(pdf, inc)
	responders(pdf, inc)
	footer(pdf)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("report.Render: %w", err)
	}
	return buf.Bytes(), nil
}

func header(pdf *gofpdf.Fpdf, inc *domain.Incident) {
	pdf.SetFillColor(230, 57, 70)
	pdf.Rect(0, 0, 210, 28, "F")

	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont("Helvetica", "B", 20)
	pdf.SetXY(12, 7)
	pdf.CellFormat(0, 8, "LifeLineX", "", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	pdf.SetX(12)
	pdf.CellFormat(0, 6, "Emergency Incident Report", "", 1, "L", false, 0, "")

	pdf.SetTextColor(0, 0, 0)
	pdf.SetY(34)
	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(0, 5, "Case ID: "+inc.ID.String(), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 5, "Generated: "+time.Now().UTC().Format("2006-01-02 15:04 MST"), "", 1, "L", false, 0, "")
	pdf.Ln(4)
}

func overview(pdf *gofpdf.Fpdf, inc *domain.Incident) {
	sectionTitle(pdf, "Case Overview")

	rows := [][2]string{
		{"Type", string(inc.Type)},
		{"Status", string(inc.Status)},
		{"Priority Score", fmt.Sprintf("%d / 100", inc.PriorityScore)},
		{"Raised At", inc.CreatedAt.UTC().Format("2006-01-02 15:04 MST")},
	}
	if inc.BloodGroup != "" {
		rows = append(rows, [2]string{"Blood Group Needed", inc.BloodGroup})
	}
	if inc.Reporter != nil {
		rows = append(rows, [2]string{"Reporter", inc.Reporter.Name})
		if inc.Reporter.Phone != "" {
			rows = append(rows, [2]string{"Reporter Phone", inc.Reporter.Phone})
		}
	}
	if inc.IsFalseAlarm {
		rows = append(rows, [2]string{"False Alarm", "yes"})
	}

	pdf.SetFont("Helvetica", "", 10)
	for _, r := range rows {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(48, 7, r[0], "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.CellFormat(0, 7, r[1], "", 1, "L", false, 0, "")
	}

	if inc.Description != "" {
		pdf.Ln(2)
		pdf.SetFont("Helvetica", "I", 10)
		pdf.MultiCell(0, 5, inc.Description, "", "L", false)
	}
	pdf.Ln(4)
}

func location(pdf *gofpdf.Fpdf, inc *domain.Incident) {
	sectionTitle(pdf, "Location")

	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, fmt.Sprintf("Coordinates: %.6f, %.6f", inc.Lat, inc.Lng), "", 1, "L", false, 0, "")

	link := fmt.Sprintf("https://www.google.com/maps?q=%f,%f", inc.Lat, inc.Lng)
	pdf.SetTextColor(29, 53, 87)
	pdf.SetFont("Helvetica", "U", 10)
	pdf.WriteLinkString(6, "Open in Google Maps", link)
	pdf.SetTextColor(0, 0, 0)
	pdf.Ln(10)
}

func timeline(pdf *gofpdf.Fpdf, inc *domain.Incident) {
	sectionTitle(pdf, "Timeline")

	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(29, 53, 87)
	pdf.SetTextColor(255, 255, 255)
	pdf.CellFormat(40, 7, "Time (UTC)", "1", 0, "L", true, 0, "")
	pdf.CellFormat(35, 7, "Status", "1", 0, "L", true, 0, "")
	pdf.CellFormat(110, 7, "Details", "1", 1, "L", true, 0, "")
	pdf.SetTextColor(0, 0, 0)

	pdf.SetFont("Helvetica", "", 9)
	for i, ev := range inc.Timeline {
		fill := i%2 == 1
		pdf.SetFillColor(241, 245, 249)
		pdf.CellFormat(40, 7, ev.CreatedAt.UTC().Format("01-02 15:04:05"), "1", 0, "L", fill, 0, "")
		pdf.CellFormat(35, 7, ev.Status, "1", 0, "L", fill, 0, "")
		pdf.CellFormat(110, 7, truncate(ev.Details, 70), "1", 1, "L", fill, 0, "")
	}
	if len(inc.Timeline) == 0 {
		pdf.CellFormat(185, 7, "No timeline entries recorded.", "1", 1, "L", false, 0, "")
	}
	pdf.Ln(4)
}

func responders(pdf *gofpdf.Fpdf, inc *domain.Incident) {
	sectionTitle(pdf, "Responders")

	if len(inc.Responders) == 0 {
		pdf.SetFont("Helvetica", "I", 10)
		pdf.CellFormat(0, 6, "No responders recorded for this incident.", "", 1, "L", false, 0, "")
		pdf.Ln(4)
		return
	}

	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(29, 53, 87)
	pdf.SetTextColor(255, 255, 255)
	pdf.CellFormat(65, 7, "Name", "1", 0, "L", true, 0, "")
	pdf.CellFormat(30, 7, "Role", "1", 0, "L", true, 0, "")
	pdf.CellFormat(45, 7, "Phone", "1", 0, "L", true, 0, "")
	pdf.CellFormat(45, 7, "Status", "1", 1, "L", true, 0, "")
	pdf.SetTextColor(0, 0, 0)

	pdf.SetFont("Helvetica", "", 9)
	for i, r := range inc.Responders {
		fill := i%2 == 1
		pdf.SetFillColor(241, 245, 249)
		pdf.CellFormat(65, 7, r.Name, "1", 0, "L", fill, 0, "")
		pdf.CellFormat(30, 7, string(r.Role), "1", 0, "L", fill, 0, "")
		pdf.CellFormat(45, 7, r.Phone, "1", 0, "L", fill, 0, "")
		pdf.CellFormat(45, 7, string(r.Status), "1", 1, "L", fill, 0, "")
	}
	pdf.Ln(4)
}

func footer(pdf *gofpdf.Fpdf) {
	pdf.SetY(-24)
	pdf.SetDrawColor(200, 200, 200)
	pdf.Line(12, pdf.GetY(), 198, pdf.GetY())
	pdf.Ln(2)
	pdf.SetFont("Helvetica", "I", 8)
	pdf.SetTextColor(120, 120, 120)
	pdf.CellFormat(0, 5, "This document was generated automatically by the LifeLineX coordination platform.", "", 1, "C", false, 0, "")
	pdf.CellFormat(0, 5, "For verification contact the reporting authority.", "", 1, "C", false, 0, "")
}

func sectionTitle(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.SetTextColor(230, 57, 70)
	pdf.CellFormat(0, 8, title, "", 1, "L", false, 0, "")
	pdf.SetTextColor(0, 0, 0)
}

// truncate limits s to n runes; byte slicing could split a multi-byte rune.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-3]) + "..."
}
