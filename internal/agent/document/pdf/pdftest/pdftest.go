// Package pdftest builds small synthetic PDFs for tests.
package pdftest

import (
	"bytes"
	"fmt"
	"strings"
)

// Build writes a minimal PDF with one Helvetica text run per page.
// An empty string produces a page with no text objects, like a scanned page.
func Build(pages ...string) []byte {
	streams := make([]string, len(pages))
	for i, text := range pages {
		streams[i] = TextStream(text)
	}
	return BuildStreams(streams...)
}

// TextStream returns a content stream showing text with a single Tj.
func TextStream(text string) string {
	if text == "" {
		return "q Q"
	}
	return fmt.Sprintf("BT /F1 12 Tf 1 0 0 1 72 720 Tm (%s) Tj ET", escapePDFString(text))
}

// BuildStreams writes a PDF with one page per raw content stream.
// Font /F1 is Helvetica with WinAnsiEncoding.
func BuildStreams(streams ...string) []byte {
	return build(streams, "")
}

// BuildEncrypted writes a PDF protected by an RC4 user password that is not
// empty, so it cannot be opened without one.
func BuildEncrypted(pages ...string) []byte {
	streams := make([]string, len(pages))
	for i, text := range pages {
		streams[i] = TextStream(text)
	}
	id := strings.Repeat("5a", 16)
	encrypt := fmt.Sprintf(
		" /Encrypt << /Filter /Standard /V 1 /R 2 /Length 40 /P -4 /O <%s> /U <%s> >> /ID [<%s> <%s>]",
		strings.Repeat("41", 32), strings.Repeat("42", 32), id, id)
	return build(streams, encrypt)
}

func build(streams []string, trailerExtra string) []byte {
	var objects []string
	objects = append(objects, "<< /Type /Catalog /Pages 2 0 R >>")

	kids := make([]string, len(streams))
	for i := range streams {
		kids[i] = fmt.Sprintf("%d 0 R", 4+2*i)
	}
	objects = append(objects, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(streams)))
	objects = append(objects, "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>")

	for i, stream := range streams {
		contentID := 5 + 2*i
		objects = append(objects, fmt.Sprintf(
			"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>",
			contentID))
		objects = append(objects, fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream))
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R%s >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, trailerExtra, xref)
	return buf.Bytes()
}

func escapePDFString(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
	return r.Replace(s)
}
