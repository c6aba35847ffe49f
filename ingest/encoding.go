/*
Package ingest reads the two source files of a report into immutable records.

PURPOSE:
  The budget export (CSV) and the timesheet export (XML) come from two
  different tools and neither is UTF-8 by default. This package detects the
  encoding, decodes the rows and hands bonus.BudgetRecord and bonus.Booking
  values to the engine. It does not normalize keys; that is the engine's job.

ENCODINGS:
  UTF-16 (LE/BE, with BOM)  - budget export from the project tool
  UTF-8 (with or without BOM)
  Windows-1252              - fallback when the bytes are not valid UTF-8

SEE ALSO:
  - csv.go: budget rows
  - xml.go: bookings
*/
package ingest

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/Brottuetchen/Quartalsreport/generic"
)

// Encoding names the detected source encoding.
type Encoding string

const (
	EncodingUTF16   Encoding = "utf-16"
	EncodingUTF8    Encoding = "utf-8"
	EncodingUTF8BOM Encoding = "utf-8-sig"
	EncodingCP1252  Encoding = "cp1252"
)

// MaxSourceBytes bounds how much of a source is read into memory.
const MaxSourceBytes = 64 << 20

// readAll reads r fully, failing with ErrMissingSource for empty or
// oversized inputs.
func readAll(r io.Reader, source string) ([]byte, error) {
	if r == nil {
		return nil, fmt.Errorf("%s: %w", source, generic.ErrMissingSource)
	}
	data, err := io.ReadAll(io.LimitReader(r, MaxSourceBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%s: read: %w", source, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%s is empty: %w", source, generic.ErrMissingSource)
	}
	if len(data) > MaxSourceBytes {
		return nil, fmt.Errorf("%s exceeds %d bytes: %w", source, MaxSourceBytes, generic.ErrMissingSource)
	}
	return data, nil
}

// DecodeText converts raw bytes to UTF-8 text and reports the encoding found.
func DecodeText(data []byte) (string, Encoding, error) {
	switch {
	case bytes.HasPrefix(data, []byte{0xFF, 0xFE}), bytes.HasPrefix(data, []byte{0xFE, 0xFF}):
		text, err := decodeWith(unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM), data)
		return text, EncodingUTF16, err
	case bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}):
		return string(data[3:]), EncodingUTF8BOM, nil
	case looksLikeUTF16LE(data):
		text, err := decodeWith(unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM), data)
		return text, EncodingUTF16, err
	case utf8.Valid(data):
		return string(data), EncodingUTF8, nil
	default:
		text, err := decodeWith(charmap.Windows1252, data)
		return text, EncodingCP1252, err
	}
}

func decodeWith(enc encoding.Encoding, data []byte) (string, error) {
	out, _, err := transform.Bytes(enc.NewDecoder(), data)
	if err != nil {
		return "", fmt.Errorf("decode: %w", err)
	}
	return string(out), nil
}

// looksLikeUTF16LE catches BOM-less UTF-16 exports: ASCII text with every
// second byte zero.
func looksLikeUTF16LE(data []byte) bool {
	n := len(data)
	if n < 4 {
		return false
	}
	if n > 64 {
		n = 64
	}
	zeros := 0
	for i := 1; i < n; i += 2 {
		if data[i] == 0 {
			zeros++
		}
	}
	return zeros*2 >= n/2
}

// charsetReader lets encoding/xml read documents declaring a non-UTF-8
// charset. Text already transcoded from UTF-16 is passed through.
func charsetReader(label string, input io.Reader) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "utf-8", "utf8", "utf-16", "utf16", "utf-16le", "utf-16be", "unicode":
		return input, nil
	}
	enc, err := ianaindex.IANA.Encoding(label)
	if err != nil || enc == nil {
		return nil, fmt.Errorf("unsupported charset %q", label)
	}
	return transform.NewReader(input, enc.NewDecoder()), nil
}
