package generic_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Brottuetchen/Quartalsreport/generic"
)

func TestParseLocaleDecimal(t *testing.T) {
	cases := map[string]string{
		"8,00":     "8",
		"1.234,56": "1234.56",
		"0,5":      "0.5",
		"":         "0",
		"-":        "0",
		" 12 ":     "12",
		"1 000,25": "1000.25",
	}
	for in, want := range cases {
		got, err := generic.ParseLocaleDecimal(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got.String(), in)
	}
}

func TestParseLocaleDecimal_Invalid(t *testing.T) {
	_, err := generic.ParseLocaleDecimal("abc")
	require.Error(t, err)
	assert.ErrorIs(t, err, generic.ErrInvalidNumber)
	assert.True(t, generic.IsClientError(err))
}

func TestHours_RatioNeverDividesByZero(t *testing.T) {
	_, ok := generic.NewHours(5).Ratio(generic.ZeroHours())
	assert.False(t, ok)

	r, ok := generic.NewHours(3).Ratio(generic.NewHours(4))
	require.True(t, ok)
	assert.Equal(t, "0.75", r.String())

	p, ok := generic.NewHours(85).Percent(generic.NewHours(100))
	require.True(t, ok)
	assert.Equal(t, "85", p.String())
}

func TestHours_JSON(t *testing.T) {
	data, err := json.Marshal(generic.MustHours("1,5"))
	require.NoError(t, err)
	assert.Equal(t, "1.50", string(data))

	var h generic.Hours
	require.NoError(t, json.Unmarshal([]byte("2.25"), &h))
	assert.True(t, h.Equal(generic.NewHours(2.25)))
}

func TestDate_QuarterHelpers(t *testing.T) {
	d := generic.MustDate("2025-11-15")
	assert.Equal(t, 4, d.Quarter())
	assert.Equal(t, "2025Q4", d.QuarterKey())
	assert.Equal(t, "2025-10-01", generic.StartOfQuarter(d).String())
	assert.Equal(t, "2025-12-31", generic.EndOfQuarter(d).String())
	assert.Equal(t, 29, generic.DaysInMonth(2024, 2))
}
