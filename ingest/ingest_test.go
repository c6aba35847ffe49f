package ingest_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	"github.com/Brottuetchen/Quartalsreport/generic"
	"github.com/Brottuetchen/Quartalsreport/ingest"
)

// =============================================================================
// BUDGET CSV
// =============================================================================

const budgetTSV = "Projekte\tArbeitspaket\tSollstunden Budget\tIststunden\n" +
	"1234 Neubau Halle\t-\t\t\n" +
	"\t• Planung\t1.200,50\t850,25\n" +
	"\tAusführung\t40\t\n" +
	"0000 Allgemein\t-\t\t\n" +
	"\tMesseauftritt (max. 4h/Quartal pro MA)\t0\t0\n"

func TestReadBudgetCSV_ForwardFillsProjects(t *testing.T) {
	// GIVEN: a tab-separated export with project header rows
	// WHEN: reading it
	// THEN: header rows are skipped and every milestone carries its project

	records, err := ingest.ReadBudgetCSV(strings.NewReader(budgetTSV))
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, "1234 Neubau Halle", records[0].ProjectRaw)
	assert.Equal(t, "• Planung", records[0].MilestoneRaw)
	assert.Equal(t, "1200.50", records[0].Planned.String())
	assert.Equal(t, "850.25", records[0].Consumed.String())

	assert.Equal(t, "1234 Neubau Halle", records[1].ProjectRaw)
	assert.True(t, records[1].Consumed.IsZero())

	assert.Equal(t, "0000 Allgemein", records[2].ProjectRaw)
	assert.False(t, records[2].HasValues())
}

func TestParseBudgetCSV_UTF16WithBOM(t *testing.T) {
	encoded, err := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder().String(budgetTSV)
	require.NoError(t, err)

	src, err := ingest.ParseBudgetCSV(strings.NewReader(encoded))
	require.NoError(t, err)
	assert.Equal(t, ingest.EncodingUTF16, src.Encoding)
	assert.Equal(t, '\t', src.Delimiter)
	assert.Len(t, src.Records, 3)
	assert.Equal(t, 2, src.Skipped)
	assert.Equal(t, "• Planung", src.Records[0].MilestoneRaw)
}

func TestParseBudgetCSV_Windows1252Semicolon(t *testing.T) {
	// GIVEN: the file re-saved by a spreadsheet: cp1252 and ';' separated
	doc := "Projekte;Arbeitspaket;Sollstunden Budget\r\n" +
		"5678 Prüfstand;Ausführung;12,5\r\n"
	encoded, err := charmap.Windows1252.NewEncoder().String(doc)
	require.NoError(t, err)

	src, err := ingest.ParseBudgetCSV(strings.NewReader(encoded))
	require.NoError(t, err)
	assert.Equal(t, ingest.EncodingCP1252, src.Encoding)
	assert.Equal(t, ';', src.Delimiter)
	require.Len(t, src.Records, 1)
	assert.Equal(t, "5678 Prüfstand", src.Records[0].ProjectRaw)
	assert.Equal(t, "12.50", src.Records[0].Planned.String())
}

func TestParseBudgetCSV_HeaderWithZeroWidthChars(t *testing.T) {
	doc := "\ufeffProjekte\t\u200bArbeitspaket \tSollstunden Budget\n1\tA\t2\n"
	src, err := ingest.ParseBudgetCSV(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, ingest.EncodingUTF8BOM, src.Encoding)
	assert.Len(t, src.Records, 1)
}

func TestReadBudgetCSV_Errors(t *testing.T) {
	t.Run("missing column", func(t *testing.T) {
		_, err := ingest.ReadBudgetCSV(strings.NewReader("Projekte\tIststunden\n1\t2\n"))
		require.Error(t, err)
		assert.ErrorIs(t, err, generic.ErrMissingSource)
		assert.Contains(t, err.Error(), "Arbeitspaket")
	})

	t.Run("bad number", func(t *testing.T) {
		doc := "Projekte\tArbeitspaket\tSollstunden Budget\n1\tA\tzwölf\n"
		_, err := ingest.ReadBudgetCSV(strings.NewReader(doc))
		require.Error(t, err)
		assert.ErrorIs(t, err, generic.ErrInvalidNumber)

		var rowErr *generic.RowError
		require.ErrorAs(t, err, &rowErr)
		assert.Equal(t, 1, rowErr.Row)
		assert.Contains(t, err.Error(), "Sollstunden Budget")
	})

	t.Run("empty", func(t *testing.T) {
		_, err := ingest.ReadBudgetCSV(strings.NewReader("  \n"))
		assert.ErrorIs(t, err, generic.ErrMissingSource)
	})
}

// =============================================================================
// BOOKING XML
// =============================================================================

const bookingsXML = `<?xml version="1.0" encoding="UTF-8"?>
<report>
  <table>
    <row>
      <cell name="staff_name">Anna Muster</cell>
      <cell name="project">1234 Neubau Halle</cell>
      <cell name="work_package_name">Planung</cell>
      <cell name="date">Mon, 06 Oct 2025</cell>
      <cell name="number">7.5</cell>
    </row>
    <row>
      <cell name="staff_name">Ben Beispiel</cell>
      <cell name="project">0000 Allgemein</cell>
      <cell name="work_package_name">• Messeauftritt</cell>
      <cell name="date">2025-11-03</cell>
      <cell name="number"></cell>
    </row>
    <row>
      <cell name="staff_name">Summe</cell>
      <cell name="number">7.5</cell>
    </row>
    <row>
      <cell name="staff_name">Anna Muster</cell>
      <cell name="work_package_name">Planung</cell>
      <cell name="date"> </cell>
      <cell name="number">1</cell>
    </row>
  </table>
</report>`

func TestReadBookingsXML(t *testing.T) {
	// GIVEN: a timesheet export with a booking row, a zero-hour row,
	// a totals row and an undated row
	// WHEN: reading it
	// THEN: only the two dated booking rows are returned

	src, err := ingest.ParseBookingsXML(strings.NewReader(bookingsXML))
	require.NoError(t, err)
	require.Len(t, src.Records, 2)
	assert.Equal(t, 1, src.Undated)

	first := src.Records[0]
	assert.Equal(t, "Anna Muster", first.Employee)
	assert.Equal(t, "1234 Neubau Halle", first.ProjectRaw)
	assert.Equal(t, "Planung", first.MilestoneRaw)
	assert.Equal(t, "2025-10-06", first.Date.String())
	assert.Equal(t, "7.50", first.Hours.String())

	second := src.Records[1]
	assert.Equal(t, "• Messeauftritt", second.MilestoneRaw)
	assert.True(t, second.Hours.IsZero())
}

func TestReadBookingsXML_DeclaredLatin1(t *testing.T) {
	doc := `<?xml version="1.0" encoding="ISO-8859-1"?><rows><row>` +
		`<cell name="staff_name">Jörg Ärger</cell><cell name="work_package_name">Prüfung</cell>` +
		`<cell name="date">06 Oct 2025</cell><cell name="number">2</cell></row></rows>`
	encoded, err := charmap.Windows1252.NewEncoder().String(doc)
	require.NoError(t, err)

	records, err := ingest.ReadBookingsXML(bytes.NewReader([]byte(encoded)))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Jörg Ärger", records[0].Employee)
	assert.Equal(t, "Prüfung", records[0].MilestoneRaw)
}

func TestReadBookingsXML_Errors(t *testing.T) {
	t.Run("no rows", func(t *testing.T) {
		_, err := ingest.ReadBookingsXML(strings.NewReader(`<report></report>`))
		assert.ErrorIs(t, err, generic.ErrMissingSource)
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := ingest.ReadBookingsXML(strings.NewReader(`<report><row>`))
		assert.ErrorIs(t, err, generic.ErrMissingSource)
	})

	t.Run("bad hours", func(t *testing.T) {
		doc := `<r><row><cell name="staff_name">A</cell><cell name="work_package_name">W</cell>` +
			`<cell name="date">06 Oct 2025</cell><cell name="number">acht</cell></row></r>`
		_, err := ingest.ReadBookingsXML(strings.NewReader(doc))
		assert.ErrorIs(t, err, generic.ErrInvalidNumber)
	})

	t.Run("bad date", func(t *testing.T) {
		doc := `<r><row><cell name="staff_name">A</cell><cell name="work_package_name">W</cell>` +
			`<cell name="date">gestern</cell><cell name="number">1</cell></row></r>`
		_, err := ingest.ReadBookingsXML(strings.NewReader(doc))
		var rowErr *generic.RowError
		require.ErrorAs(t, err, &rowErr)
		assert.Equal(t, "xml", rowErr.Source)
		assert.True(t, generic.IsClientError(err))
	})
}

func TestParseBookingDate(t *testing.T) {
	cases := map[string]string{
		"Mon, 06 Oct 2025":    "2025-10-06",
		"6 Okt. 2025":         "2025-10-06",
		"31 Dez 2025":         "2025-12-31",
		"2025-02-28":          "2025-02-28",
		"01.03.2025":          "2025-03-01",
		"2025-10-06T00:00:00": "2025-10-06",
	}
	for in, want := range cases {
		d, err := ingest.ParseBookingDate(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, d.String(), in)
	}

	_, err := ingest.ParseBookingDate("31 Feb 2025")
	assert.Error(t, err)
}

func TestDecodeText_UTF16WithoutBOM(t *testing.T) {
	encoded, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewEncoder().String("Projekte\tArbeitspaket")
	require.NoError(t, err)

	text, enc, err := ingest.DecodeText([]byte(encoded))
	require.NoError(t, err)
	assert.Equal(t, ingest.EncodingUTF16, enc)
	assert.Equal(t, "Projekte\tArbeitspaket", text)
}
