// Package testpdf builds small, valid PDF files in memory for tests, so
// the repository does not need binary fixtures checked in.
package testpdf

import (
	"bytes"
	"fmt"
)

// MultiPage returns a well-formed PDF with n pages. Each page carries a
// one-line text stream naming its page number, which keeps the pages
// distinguishable after extraction.
//
// Object layout: 1 catalog, 2 page tree, 3 font, 4..3+n page objects,
// 4+n..3+2n content streams.
func MultiPage(n int) []byte {
	if n < 1 {
		panic("testpdf: page count must be >= 1")
	}

	var buf bytes.Buffer
	offsets := make([]int, 0, 3+2*n)

	writeObj := func(body string) {
		offsets = append(offsets, buf.Len())
		buf.WriteString(body)
	}

	buf.WriteString("%PDF-1.4\n")

	kids := ""
	for i := 0; i < n; i++ {
		kids += fmt.Sprintf("%d 0 R ", 4+i)
	}

	writeObj("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")
	writeObj(fmt.Sprintf("2 0 obj\n<< /Type /Pages /Kids [%s] /Count %d >>\nendobj\n", kids, n))
	writeObj("3 0 obj\n<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>\nendobj\n")

	for i := 0; i < n; i++ {
		writeObj(fmt.Sprintf(
			"%d 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>\nendobj\n",
			4+i, 4+n+i))
	}
	for i := 0; i < n; i++ {
		stream := fmt.Sprintf("BT /F1 24 Tf 72 720 Td (Page %d) Tj ET", i+1)
		writeObj(fmt.Sprintf(
			"%d 0 obj\n<< /Length %d >>\nstream\n%s\nendstream\nendobj\n",
			4+n+i, len(stream), stream))
	}

	xrefOffset := buf.Len()
	buf.WriteString(fmt.Sprintf("xref\n0 %d\n", len(offsets)+1))
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		buf.WriteString(fmt.Sprintf("%010d 00000 n \n", off))
	}
	buf.WriteString(fmt.Sprintf(
		"trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n",
		len(offsets)+1, xrefOffset))

	return buf.Bytes()
}

// Corrupt returns bytes that are not a parseable PDF.
func Corrupt() []byte {
	return []byte("%PDF-1.4\nthis is not a real pdf body\n%%EOF\n")
}
