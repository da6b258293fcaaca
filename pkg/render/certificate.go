// Package render produces the completion certificate artifact for a closed
// project engagement.
package render

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/diligince/closeout/pkg/models"
)

// CertificateRenderer renders the completion certificate document.
type CertificateRenderer interface {
	Render(ctx context.Context, workflow *models.Workflow, certificateNo string, issuedAt time.Time) ([]byte, error)
}

// PDFRenderer writes a minimal single-page PDF certificate. It emits the PDF
// object structure by hand; the layout is a fixed text block.
type PDFRenderer struct{}

// NewPDFRenderer creates a certificate PDF renderer.
func NewPDFRenderer() *PDFRenderer {
	return &PDFRenderer{}
}

// Render produces the certificate PDF bytes.
func (r *PDFRenderer) Render(_ context.Context, workflow *models.Workflow, certificateNo string, issuedAt time.Time) ([]byte, error) {
	lines := []string{
		"CERTIFICATE OF COMPLETION",
		"",
		fmt.Sprintf("Certificate No: %s", certificateNo),
		fmt.Sprintf("Project: %s", workflow.ProjectTitle),
		fmt.Sprintf("Purchase Order: %s", workflow.PurchaseOrderID),
		fmt.Sprintf("Issued: %s", issuedAt.Format("02 Jan 2006")),
		"",
		"This certifies that the above engagement was completed and all",
		"closeout checklist requirements were verified by the buyer.",
	}

	var content bytes.Buffer

	content.WriteString("BT /F1 14 Tf 72 720 Td 18 TL\n")

	for _, line := range lines {
		fmt.Fprintf(&content, "(%s) Tj T*\n", escapePDFText(line))
	}

	content.WriteString("ET\n")

	return assemblePDF(content.Bytes()), nil
}

// escapePDFText escapes the characters with special meaning inside a PDF
// string literal.
func escapePDFText(s string) string {
	var out bytes.Buffer

	for _, c := range []byte(s) {
		switch c {
		case '(', ')', '\\':
			out.WriteByte('\\')
			out.WriteByte(c)
		default:
			out.WriteByte(c)
		}
	}

	return out.String()
}

// assemblePDF wraps a content stream in the fixed object skeleton of a
// one-page PDF 1.4 document with a correct cross-reference table.
func assemblePDF(contentStream []byte) []byte {
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 4 0 R >> >> /Contents 5 0 R >>",
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(contentStream), contentStream),
	}

	var (
		buf     bytes.Buffer
		offsets []int
	)

	buf.WriteString("%PDF-1.4\n")

	for i, obj := range objects {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xrefStart := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)

	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}

	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xrefStart)

	return buf.Bytes()
}
