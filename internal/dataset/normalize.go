package dataset

import (
	"errors"
	"strings"
	"unicode/utf8"

	xunicode "golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var errInvalidUTF8 = errors.New("input is not valid UTF-8")

// LabelKey is the comparison key for labels: NFKC, trimmed, lowercased.
func LabelKey(s string) string {
	return strings.ToLower(strings.TrimSpace(norm.NFKC.String(s)))
}

// normalizeHeader lowercases a header cell and drops a stray BOM.
func normalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	return strings.ToLower(strings.TrimSpace(norm.NFKC.String(h)))
}

// decodeText strips a UTF-8 BOM, transcodes BOM-marked UTF-16, and rejects
// anything else that is not UTF-8.
func decodeText(data []byte) ([]byte, error) {
	out, _, err := transform.Bytes(xunicode.BOMOverride(transform.Nop), data)
	if err != nil {
		return nil, err
	}
	if !utf8.Valid(out) {
		return nil, errInvalidUTF8
	}
	return out, nil
}
