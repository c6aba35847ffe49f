package ingest

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Brottuetchen/Quartalsreport/bonus"
	"github.com/Brottuetchen/Quartalsreport/generic"
)

// =============================================================================
// BOOKING XML
// =============================================================================

// Cell names of the timesheet export.
const (
	CellEmployee  = "staff_name"
	CellMilestone = "work_package_name"
	CellDate      = "date"
	CellHours     = "number"
	CellProject   = "project"
)

// xmlRow is one <row> element: a flat list of named cells.
type xmlRow struct {
	Cells []xmlCell `xml:"cell"`
}

type xmlCell struct {
	Name string `xml:"name,attr"`
	Text string `xml:",chardata"`
}

// BookingSource is the parsed timesheet plus bookkeeping about dropped rows.
type BookingSource struct {
	Records  []bonus.Booking
	Encoding Encoding
	Undated  int // rows with an empty date cell
}

// ReadBookingsXML reads the timesheet export and returns its bookings in
// document order.
func ReadBookingsXML(r io.Reader) ([]bonus.Booking, error) {
	src, err := ParseBookingsXML(r)
	if err != nil {
		return nil, err
	}
	return src.Records, nil
}

// ParseBookingsXML is ReadBookingsXML with detection details.
//
// Rows may sit at any depth. A row counts as a booking when it carries a
// staff_name, a work_package_name and a date cell. Rows with an empty date
// are counted in Undated and dropped. An empty number cell is zero hours.
func ParseBookingsXML(r io.Reader) (BookingSource, error) {
	data, err := readAll(r, "booking xml")
	if err != nil {
		return BookingSource{}, err
	}
	text, enc, err := DecodeText(data)
	if err != nil {
		return BookingSource{}, fmt.Errorf("booking xml: %w: %v", generic.ErrMissingSource, err)
	}
	if enc == EncodingCP1252 {
		// Bytes were already transcoded; drop the declaration so the
		// decoder does not transcode twice.
		text = xmlDeclaration.ReplaceAllString(text, "")
	}

	dec := xml.NewDecoder(bytes.NewBufferString(text))
	dec.CharsetReader = charsetReader

	src := BookingSource{Encoding: enc}
	seen := 0
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return BookingSource{}, fmt.Errorf("booking xml: %w: %v", generic.ErrMissingSource, err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "row" {
			continue
		}

		var row xmlRow
		if err := dec.DecodeElement(&row, &start); err != nil {
			return BookingSource{}, fmt.Errorf("booking xml: %w: %v", generic.ErrMissingSource, err)
		}
		cells, ok := row.fields()
		if !ok {
			continue
		}
		seen++

		rawDate := cells[CellDate]
		if rawDate == "" {
			src.Undated++
			continue
		}
		date, err := ParseBookingDate(rawDate)
		if err != nil {
			return BookingSource{}, &generic.RowError{Source: "xml", Row: seen, Err: err}
		}
		hours, err := parseBookingHours(cells[CellHours])
		if err != nil {
			return BookingSource{}, &generic.RowError{Source: "xml", Row: seen, Err: err}
		}

		src.Records = append(src.Records, bonus.Booking{
			Employee:     cells[CellEmployee],
			ProjectRaw:   cells[CellProject],
			MilestoneRaw: cells[CellMilestone],
			Date:         date,
			Hours:        hours,
		})
	}

	if seen == 0 {
		return BookingSource{}, fmt.Errorf("booking xml contains no bookings: %w", generic.ErrMissingSource)
	}
	return src, nil
}

// fields flattens the cells into a name -> trimmed text map and reports
// whether the row is a booking row.
func (r xmlRow) fields() (map[string]string, bool) {
	if len(r.Cells) == 0 {
		return nil, false
	}
	m := make(map[string]string, len(r.Cells))
	for _, c := range r.Cells {
		m[c.Name] = strings.TrimSpace(c.Text)
	}
	_, hasMilestone := m[CellMilestone]
	_, hasDate := m[CellDate]
	return m, m[CellEmployee] != "" && hasMilestone && hasDate
}

var xmlDeclaration = regexp.MustCompile(`^\s*<\?xml[^>]*\?>`)

// =============================================================================
// FIELD PARSING
// =============================================================================

// exportDate matches the "Mon, 06 Oct 2025" style used by the timesheet tool.
var exportDate = regexp.MustCompile(`(\d{1,2})\s+(\p{L}{3})\p{L}*\.?\s+(\d{4})`)

var monthAbbrev = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March, "mär": time.March,
	"apr": time.April, "may": time.May, "mai": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September, "oct": time.October,
	"okt": time.October, "nov": time.November, "dec": time.December, "dez": time.December,
}

// ParseBookingDate accepts the export's "06 Oct 2025" form as well as
// ISO "2025-10-06" and German "06.10.2025".
func ParseBookingDate(s string) (generic.Date, error) {
	s = strings.TrimSpace(s)
	if m := exportDate.FindStringSubmatch(s); m != nil {
		month, ok := monthAbbrev[strings.ToLower(m[2])]
		if ok {
			day, _ := strconv.Atoi(m[1])
			year, _ := strconv.Atoi(m[3])
			d := generic.NewDate(year, month, day)
			if d.Day() == day {
				return d, nil
			}
		}
	}
	for _, layout := range []string{"2006-01-02", "02.01.2006", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return generic.NewDate(t.Year(), t.Month(), t.Day()), nil
		}
	}
	return generic.Date{}, &generic.ValidationError{Field: CellDate, Value: s, Reason: "unrecognized date"}
}

// parseBookingHours reads the number cell. The export writes a dot decimal;
// a comma decimal is accepted for hand-edited files.
func parseBookingHours(s string) (generic.Hours, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return generic.ZeroHours(), nil
	}
	if d, err := decimal.NewFromString(s); err == nil {
		return generic.HoursOf(d), nil
	}
	if strings.Contains(s, ",") {
		if h, err := generic.ParseLocaleHours(s); err == nil {
			return h, nil
		}
	}
	return generic.Hours{}, &generic.ValidationError{
		Field: CellHours, Value: s, Reason: "not a decimal number", Err: generic.ErrInvalidNumber,
	}
}
