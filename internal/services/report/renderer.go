// Package report renders inspection records as PDF reports and archives them.
package report

import (
	"bytes"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/skip2/go-qrcode"

	"github.com/xelth-com/spectraq/internal/inspection"
)

const (
	thaiFamily = "Sarabun"
	coreFamily = "Helvetica"

	regularFont = "Sarabun-Regular.ttf"
	boldFont    = "Sarabun-Bold.ttf"

	pageMargin   = 15.0
	contentWidth = 180.0
	labelWidth   = 54.0
)

// Image is the captured frame attached to a report
type Image struct {
	Data     []byte
	MimeType string
}

// Renderer draws the single page QA/QC report
type Renderer struct {
	fontDir string
	utf8    bool
	now     func() time.Time
}

// NewRenderer uses the Sarabun TTF pair from fontDir when both files exist.
// Without them the core Helvetica font is used and Thai text will not render.
func NewRenderer(fontDir string) *Renderer {
	r := &Renderer{fontDir: fontDir, now: time.Now}
	if fontDir != "" && fileExists(filepath.Join(fontDir, regularFont)) && fileExists(filepath.Join(fontDir, boldFont)) {
		r.utf8 = true
		log.Printf("✅ Report font %s loaded from %s", thaiFamily, fontDir)
	} else {
		log.Printf("⚠️ %s not found in %q, reports fall back to %s (Thai text will not render)", regularFont, fontDir, coreFamily)
	}
	return r
}

// page bundles the document with the helpers bound to the active font
type page struct {
	pdf    *gofpdf.Fpdf
	family string
	utf8   bool
	tr     func(string) string
}

// Render produces the PDF bytes for rec
func (r *Renderer) Render(rec inspection.Record, meta Meta, img *Image) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", r.fontDir)
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(true, pageMargin)

	p := &page{pdf: pdf, family: coreFamily, utf8: r.utf8}
	if r.utf8 {
		pdf.AddUTF8Font(thaiFamily, "", regularFont)
		pdf.AddUTF8Font(thaiFamily, "B", boldFont)
		p.family = thaiFamily
		p.tr = func(s string) string { return s }
	} else {
		p.tr = pdf.UnicodeTranslatorFromDescriptor("")
	}
	if pdf.Err() {
		return nil, fmt.Errorf("load report font: %w", pdf.Error())
	}

	now := r.now()
	reportID := rec.ID
	if reportID == "" {
		reportID = fmt.Sprintf("R-%d", now.UnixMilli())
	}

	token, err := FindingsOf(rec).encode()
	if err != nil {
		return nil, fmt.Errorf("encode findings: %w", err)
	}
	pdf.SetTitle("QA/QC INSPECTION REPORT", true)
	pdf.SetAuthor("Spectra-Q AI Agent", true)
	pdf.SetCreator("spectraq", false)
	pdf.SetSubject(subjectLine(rec), true)
	pdf.SetKeywords("QC "+token, false)
	pdf.SetCreationDate(now)

	pdf.AddPage()
	if err := p.header(rec, reportID); err != nil {
		return nil, err
	}

	p.section("1. PROJECT DETAILS & ACTIVITY", "รายละเอียดโครงการ")
	p.row("Project Name:", meta.Project)
	p.row("Location/Site:", meta.Location)
	p.row("Activity On-going:", meta.Activity)
	p.row("Materials Delivered:", meta.Materials)
	pdf.Ln(3)

	p.section("2. RESOURCES & SAFETY", "ทรัพยากรและความปลอดภัย")
	p.pair("Labor Hours:", meta.LaborHours, "Equipment:", meta.Equipment)
	p.pair("Accident Report:", meta.Accidents, "", "")
	pdf.Ln(3)

	p.section("3. AI INSPECTION FINDINGS", "ผลการตรวจสอบ AI")
	p.findings(rec)
	pdf.Ln(3)

	p.section("4. VISUAL EVIDENCE", "หลักฐานภาพถ่าย")
	p.evidence(img)

	p.signatures(meta.Inspector)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render report: %w", err)
	}
	return buf.Bytes(), nil
}

func subjectLine(rec inspection.Record) string {
	defects := "-"
	if len(rec.Defects) > 0 {
		defects = strings.Join(rec.Defects, ", ")
	}
	return fmt.Sprintf("%s %s: %s", rec.Status, rec.Severity, defects)
}

func (p *page) header(rec inspection.Record, reportID string) error {
	pdf := p.pdf
	ts := rec.Timestamp.Local()

	pdf.SetXY(pageMargin, pageMargin)
	pdf.SetFont(p.family, "B", 18)
	pdf.SetTextColor(17, 17, 17)
	pdf.CellFormat(110, 9, "QA/QC INSPECTION REPORT", "", 2, "L", false, 0, "")
	pdf.SetFont(p.family, "", 10)
	pdf.SetTextColor(102, 102, 102)
	pdf.CellFormat(110, 5, "Spectra-Q Automated Analysis System", "", 0, "L", false, 0, "")

	pdf.SetTextColor(17, 17, 17)
	pdf.SetXY(100, pageMargin)
	pdf.CellFormat(70, 5, "Date: "+ts.Format("02/01/2006"), "", 2, "R", false, 0, "")
	pdf.CellFormat(70, 5, "Time: "+ts.Format("15:04:05"), "", 2, "R", false, 0, "")
	pdf.CellFormat(70, 5, p.tr("Report ID: #"+reportID), "", 2, "R", false, 0, "")

	qrPng, err := qrcode.Encode(reportID, qrcode.Medium, 256)
	if err != nil {
		return fmt.Errorf("generate report qr: %w", err)
	}
	opts := gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: true}
	pdf.RegisterImageOptionsReader("report_qr", opts, bytes.NewReader(qrPng))
	pdf.ImageOptions("report_qr", 174, 12, 21, 21, false, opts, 0, "")

	pdf.SetDrawColor(17, 17, 17)
	pdf.SetLineWidth(0.6)
	pdf.Line(pageMargin, 36, pageMargin+contentWidth, 36)
	pdf.SetLineWidth(0.2)
	pdf.SetY(40)
	return nil
}

func (p *page) section(title, thai string) {
	if p.utf8 {
		title = fmt.Sprintf("%s (%s)", title, thai)
	}
	p.pdf.SetFont(p.family, "B", 12)
	p.pdf.SetFillColor(238, 238, 238)
	p.pdf.SetTextColor(17, 17, 17)
	p.pdf.CellFormat(0, 7, p.tr(title), "", 1, "L", true, 0, "")
	p.pdf.Ln(1)
}

func (p *page) row(label, value string) {
	p.pdf.SetFont(p.family, "B", 10)
	p.pdf.SetTextColor(68, 68, 68)
	p.pdf.CellFormat(labelWidth, 6, label, "", 0, "L", false, 0, "")
	p.pdf.SetFont(p.family, "", 10)
	p.pdf.SetTextColor(17, 17, 17)
	p.pdf.MultiCell(0, 6, p.tr(orDash(value)), "", "L", false)
}

func (p *page) pair(label1, value1, label2, value2 string) {
	half := contentWidth / 2
	for i, kv := range [][2]string{{label1, value1}, {label2, value2}} {
		ln := 0
		if i == 1 {
			ln = 1
		}
		if kv[0] == "" {
			p.pdf.CellFormat(half, 6, "", "", ln, "L", false, 0, "")
			continue
		}
		p.pdf.SetFont(p.family, "B", 10)
		p.pdf.SetTextColor(68, 68, 68)
		w := p.pdf.GetStringWidth(kv[0]) + 2
		p.pdf.CellFormat(w, 6, kv[0], "", 0, "L", false, 0, "")
		p.pdf.SetFont(p.family, "", 10)
		p.pdf.SetTextColor(17, 17, 17)
		p.pdf.CellFormat(half-w, 6, p.tr(orDash(kv[1])), "", ln, "L", false, 0, "")
	}
}

func (p *page) findings(rec inspection.Record) {
	pdf := p.pdf

	pdf.SetFont(p.family, "B", 10)
	pdf.SetTextColor(68, 68, 68)
	pdf.CellFormat(labelWidth, 6, "Overall Status:", "", 0, "L", false, 0, "")
	if rec.Status == inspection.StatusPass {
		pdf.SetTextColor(22, 128, 61)
	} else {
		pdf.SetTextColor(185, 28, 28)
	}
	pdf.CellFormat(0, 6, fmt.Sprintf("%s (Confidence: %.1f%%)", rec.Status, confidencePercent(rec.Confidence)), "", 1, "L", false, 0, "")
	pdf.Ln(1)

	defects := "-"
	if len(rec.Defects) > 0 {
		defects = strings.Join(rec.Defects, ", ")
	}
	p.card(p.label("Defects Found", "ข้อผิดพลาดที่พบ"), defects, [3]int{185, 28, 28}, rec.Severity)
	p.card(p.label("Root Cause", "สาเหตุ (Root Cause)"), orDash(rec.RootCause), [3]int{68, 68, 68}, "")
	p.card(p.label("Deep Analysis", "การวิเคราะห์/ตรวจสอบขั้นลึก"), orDash(rec.Reasoning), [3]int{68, 68, 68}, "")

	actions := "-"
	if len(rec.Solution.RecommendedActions) > 0 {
		lines := make([]string, 0, len(rec.Solution.RecommendedActions))
		for _, a := range rec.Solution.RecommendedActions {
			lines = append(lines, "- "+a)
		}
		actions = strings.Join(lines, "\n")
	}
	p.card(p.label("Recommended Actions", "คำแนะนำการแก้ไข"), actions, [3]int{22, 128, 61}, "")
}

func (p *page) label(en, thai string) string {
	if p.utf8 {
		return thai
	}
	return en
}

// card draws a titled text block with an outline; a severity badge is added
// to the title line when severity is set
func (p *page) card(title, body string, color [3]int, severity inspection.Severity) {
	pdf := p.pdf
	x, y := pageMargin, pdf.GetY()

	pdf.SetXY(x+3, y+2)
	pdf.SetFont(p.family, "B", 10)
	pdf.SetTextColor(color[0], color[1], color[2])
	pdf.CellFormat(contentWidth-40, 5, p.tr(title), "", 0, "L", false, 0, "")
	if severity != "" {
		p.badge(severity, x+contentWidth-28, y+2)
	}

	pdf.SetXY(x+3, y+8)
	pdf.SetFont(p.family, "", 9)
	pdf.SetTextColor(68, 68, 68)
	pdf.MultiCell(contentWidth-6, 4.5, p.tr(body), "", "L", false)

	end := pdf.GetY() + 2
	if end > y {
		pdf.SetDrawColor(color[0], color[1], color[2])
		pdf.Rect(x, y, contentWidth, end-y, "D")
	}
	pdf.SetXY(x, end+2)
}

func (p *page) badge(severity inspection.Severity, x, y float64) {
	r, g, b := badgeColor(severity)
	p.pdf.SetFillColor(r, g, b)
	p.pdf.RoundedRect(x, y, 25, 5, 2, "1234", "F")
	p.pdf.SetXY(x, y)
	p.pdf.SetFont(p.family, "B", 8)
	p.pdf.SetTextColor(255, 255, 255)
	p.pdf.CellFormat(25, 5, string(severity), "", 0, "C", false, 0, "")
}

func badgeColor(s inspection.Severity) (int, int, int) {
	switch s {
	case inspection.SeverityHigh:
		return 220, 38, 38
	case inspection.SeverityMedium:
		return 217, 119, 6
	default:
		return 22, 163, 74
	}
}

func (p *page) evidence(img *Image) {
	pdf := p.pdf
	if img == nil || len(img.Data) == 0 {
		pdf.SetFont(p.family, "", 9)
		pdf.SetTextColor(136, 136, 136)
		pdf.CellFormat(0, 6, "No image attached", "", 1, "L", false, 0, "")
		return
	}

	imageType := imageTypeOf(img)
	if imageType == "" {
		log.Printf("⚠️ Report image type %q is not supported, skipping", img.MimeType)
		pdf.SetFont(p.family, "", 9)
		pdf.SetTextColor(136, 136, 136)
		pdf.CellFormat(0, 6, "Image format not supported", "", 1, "L", false, 0, "")
		return
	}

	opts := gofpdf.ImageOptions{ImageType: imageType, ReadDpi: true}
	info := pdf.RegisterImageOptionsReader("evidence", opts, bytes.NewReader(img.Data))
	if pdf.Err() || info == nil {
		log.Printf("⚠️ Report image could not be embedded: %v", pdf.Error())
		pdf.ClearError()
		pdf.SetFont(p.family, "", 9)
		pdf.SetTextColor(136, 136, 136)
		pdf.CellFormat(0, 6, "Image could not be embedded", "", 1, "L", false, 0, "")
		return
	}

	const boxH = 70.0
	ratio := info.Width() / info.Height()
	h := boxH
	w := h * ratio
	if w > contentWidth {
		w = contentWidth
		h = w / ratio
	}
	if pdf.GetY()+h+8 > 297-pageMargin {
		pdf.AddPage()
	}
	y := pdf.GetY() + 2
	pdf.ImageOptions("evidence", pageMargin+(contentWidth-w)/2, y, w, h, false, opts, 0, "")
	pdf.SetY(y + h + 1)
	pdf.SetFont(p.family, "", 8)
	pdf.SetTextColor(136, 136, 136)
	pdf.CellFormat(0, 4, "Capture Source: Production Line Camera Feed", "", 1, "C", false, 0, "")
}

func (p *page) signatures(inspector string) {
	pdf := p.pdf
	y := pdf.GetY() + 16
	if y < 255 {
		y = 255
	}
	if y > 297-pageMargin-14 {
		pdf.AddPage()
		y = 40
	}

	pdf.SetDrawColor(0, 0, 0)
	for i, sig := range [][2]string{
		{orDash(inspector), "QC Inspector Signature"},
		{"Spectra-Q AI Agent", "Automated Verification"},
	} {
		x := pageMargin + 5 + float64(i)*100
		pdf.Line(x, y, x+70, y)
		pdf.SetXY(x, y+1)
		pdf.SetFont(p.family, "", 10)
		pdf.SetTextColor(17, 17, 17)
		pdf.CellFormat(70, 5, p.tr(sig[0]), "", 2, "C", false, 0, "")
		pdf.SetFont(p.family, "", 8)
		pdf.SetTextColor(136, 136, 136)
		pdf.CellFormat(70, 4, sig[1], "", 0, "C", false, 0, "")
	}
}

func imageTypeOf(img *Image) string {
	mimeType := strings.ToLower(img.MimeType)
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(img.Data)
	}
	switch mimeType {
	case "image/jpeg", "image/jpg":
		return "JPG"
	case "image/png":
		return "PNG"
	case "image/gif":
		return "GIF"
	default:
		return ""
	}
}

// confidencePercent scales a model confidence for display. Models sometimes
// answer 95 instead of 0.95; both print as 95%.
func confidencePercent(c float64) float64 {
	if c <= 1 {
		c *= 100
	}
	switch {
	case c < 0:
		return 0
	case c > 100:
		return 100
	}
	return c
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
