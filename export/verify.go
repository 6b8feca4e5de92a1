package export

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"
)

var ErrVerification = errors.New("exported file failed verification")

// Expectation is text that must be readable on a page of an exported file.
type Expectation struct {
	PageIndex int
	Text      string
}

// Verify reads data with github.com/ledongthuc/pdf, an independent
// implementation, and checks the page count and every expected text.
// Whitespace is ignored when comparing.
func Verify(data []byte, pages int, want []Expectation) (err error) {
	defer func() {
		// The reader panics on some malformed input.
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: reader panic: %v", ErrVerification, r)
		}
	}()
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrVerification, err)
	}
	if n := r.NumPage(); n != pages {
		return fmt.Errorf("%w: %d pages, want %d", ErrVerification, n, pages)
	}
	texts := make(map[int]string)
	for _, w := range want {
		text, ok := texts[w.PageIndex]
		if !ok {
			page := r.Page(w.PageIndex + 1)
			if page.V.IsNull() {
				return fmt.Errorf("%w: page %d missing", ErrVerification, w.PageIndex+1)
			}
			plain, err := page.GetPlainText(nil)
			if err != nil {
				return fmt.Errorf("%w: page %d: %w", ErrVerification, w.PageIndex+1, err)
			}
			text = squash(plain)
			texts[w.PageIndex] = text
		}
		if !strings.Contains(text, squash(w.Text)) {
			return fmt.Errorf("%w: %q not found on page %d", ErrVerification, w.Text, w.PageIndex+1)
		}
	}
	return nil
}

func squash(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
