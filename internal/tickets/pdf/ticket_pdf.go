package pdf

import (
	"bytes"
	"fmt"
	"strings"

	"ms-darshan/internal/models"

	"github.com/jung-kurt/gofpdf"
)

// TicketPDFData is everything printed on a darshan pass.
type TicketPDFData struct {
	Ticket         models.Ticket
	TempleName     string
	QRCodePngBytes []byte
}

// GenerateTicketPDF renders an A4 darshan pass with the QR code on top.
func GenerateTicketPDF(data TicketPDFData) ([]byte, error) {
	t := data.Ticket
	doc := gofpdf.New("P", "mm", "A4", "")
	doc.SetTitle(fmt.Sprintf("Darshan pass %s", t.TicketID), true)
	doc.AddPage()

	doc.SetFont("Arial", "B", 20)
	doc.CellFormat(0, 12, "DARSHAN PASS", "", 1, "C", false, 0, "")
	doc.Ln(4)

	if len(data.QRCodePngBytes) > 0 {
		opts := gofpdf.ImageOptions{ImageType: "PNG"}
		name := "qr_" + t.TicketID
		doc.RegisterImageOptionsReader(name, opts, bytes.NewReader(data.QRCodePngBytes))
		doc.ImageOptions(name, (210.0-80.0)/2, doc.GetY(), 80, 80, false, opts, 0, "")
		doc.Ln(84)
	}

	doc.SetDrawColor(200, 200, 200)
	doc.SetLineWidth(0.5)
	doc.Line(20, doc.GetY(), 190, doc.GetY())
	doc.Ln(6)

	temple := data.TempleName
	if temple == "" {
		temple = t.TempleID
	}
	rows := [][2]string{
		{"Temple", titleCase(temple)},
		{"Queue number", fmt.Sprintf("#%d", t.QueueNumber)},
		{"Slot", t.SlotTime.UTC().Format("Mon, 2 Jan 2006 15:04 MST")},
		{"Darshan type", titleCase(string(t.DarshanType))},
		{"People", fmt.Sprintf("%d", t.NumberOfPeople)},
		{"Status", titleCase(string(t.Status))},
	}
	if t.PriorityCategory != "" && t.PriorityCategory != models.PriorityNone {
		rows = append(rows, [2]string{"Priority", titleCase(string(t.PriorityCategory))})
	}
	for _, row := range rows {
		doc.SetX(30)
		doc.SetFont("Arial", "", 14)
		doc.CellFormat(50, 10, row[0]+":", "", 0, "L", false, 0, "")
		doc.SetFont("Arial", "B", 14)
		doc.CellFormat(100, 10, row[1], "", 1, "L", false, 0, "")
	}
	if t.SpecialRequirements != "" {
		doc.SetX(30)
		doc.SetFont("Arial", "I", 12)
		doc.MultiCell(150, 7, "Notes: "+t.SpecialRequirements, "", "L", false)
	}

	doc.Ln(8)
	doc.SetFont("Arial", "I", 11)
	doc.SetTextColor(100, 100, 100)
	doc.CellFormat(0, 8, "Ticket: "+t.TicketID, "", 1, "C", false, 0, "")
	doc.MultiCell(0, 6, "Show this pass at the temple gate.\nThe QR code is scanned for check-in.", "", "C", false)

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}
	return buf.Bytes(), nil
}

func titleCase(s string) string {
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == '-' || r == '_' || r == ' ' })
	for i, p := range parts {
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}
