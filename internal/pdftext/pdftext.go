// Package pdftext extracts plain text from statement PDFs. Extraction is
// bounded by a caller-supplied page limit and the output is validated for
// readability, so image-based or font-garbled documents fail loudly instead
// of producing junk downstream.
package pdftext

import (
	"bytes"
	"fmt"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"
)

// Extract returns the text of up to maxPages pages, joined by blank lines,
// together with the number of pages read. maxPages <= 0 means no limit.
func Extract(data []byte, maxPages int) (text string, pageCount int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf library crashed: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", 0, err
	}

	numPages := reader.NumPage()
	if numPages == 0 {
		return "", 0, fmt.Errorf("pdf has no pages")
	}
	if maxPages > 0 && numPages > maxPages {
		numPages = maxPages
	}

	pages := extractByRow(reader, numPages)
	if !IsReadableText(pages) {
		// Row extraction struggles with some font encodings; retry with the
		// plain-text path before giving up.
		pages = extractByPlainText(reader, numPages)
	}
	if !IsReadableText(pages) {
		return "", 0, fmt.Errorf("no readable text could be extracted; the document may be image-based or use custom font encodings")
	}

	return strings.Join(pages, "\n\n"), numPages, nil
}

func extractByRow(r *pdf.Reader, numPages int) []string {
	var pages []string
	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			continue
		}
		var lines []string
		for _, row := range rows {
			var parts []string
			for _, word := range row.Content {
				parts = append(parts, word.S)
			}
			line := strings.TrimSpace(strings.Join(parts, " "))
			if line != "" {
				lines = append(lines, line)
			}
		}
		pages = append(pages, strings.Join(lines, "\n"))
	}
	return pages
}

func extractByPlainText(r *pdf.Reader, numPages int) []string {
	var pages []string
	fonts := make(map[string]*pdf.Font)
	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(fonts)
		if err != nil {
			continue
		}
		pages = append(pages, strings.TrimSpace(text))
	}
	return pages
}

// statementWords appear in virtually all bank statements. Extracted text that
// contains none of them is treated as garbage.
var statementWords = []string{
	"bank", "account", "balance", "date", "payment", "statement",
	"total", "amount", "credit", "debit", "transaction",
	"opening", "closing", "transfer", "period",
}

// IsReadableText checks that pages contain enough text, that it is mostly
// readable ASCII rather than binary garbage, and that it contains at least
// one word expected in a bank statement.
func IsReadableText(pages []string) bool {
	if totalTextLen(pages) <= 50 {
		return false
	}
	if textQuality(pages) <= 0.6 {
		return false
	}
	return containsStatementWord(pages)
}

// textQuality returns the ratio of basic readable ASCII characters to total
// characters. A strict ASCII check is deliberate: unicode.IsLetter matches
// the accented garbage produced by identity-encoded fonts.
func textQuality(pages []string) float64 {
	total := 0
	readable := 0
	for _, page := range pages {
		for _, r := range page {
			total++
			if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
				(r >= '0' && r <= '9') || unicode.IsSpace(r) ||
				strings.ContainsRune(`.,-/:;()'"$%&@#!?+=*`, r) ||
				r == '£' || r == '€' || r == '฿' {
				readable++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(readable) / float64(total)
}

func containsStatementWord(pages []string) bool {
	combined := strings.ToLower(strings.Join(pages, " "))
	for _, word := range statementWords {
		if strings.Contains(combined, word) {
			return true
		}
	}
	return false
}

func totalTextLen(pages []string) int {
	n := 0
	for _, p := range pages {
		n += len(p)
	}
	return n
}
