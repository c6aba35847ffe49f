package bonus_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Brottuetchen/Quartalsreport/bonus"
)

func TestNormalizeText(t *testing.T) {
	cases := map[string]string{
		"• 1.1 Test":                "1.1 test",
		"● Item":                    "item",
		"  - LP 2   Entwurf ":       "lp 2 entwurf",
		"•Messeauftritt":            "messeauftritt",
		"0000 Allgemein":            "0000 allgemein",
		"Vorträge,  Repräsentation": "vorträge, repräsentation",
	}
	for in, want := range cases {
		assert.Equal(t, want, bonus.NormalizeText(in), in)
	}
}

func TestNormalizeText_KeepsDiacritics(t *testing.T) {
	// GIVEN: two milestones that differ only by an umlaut
	// WHEN: normalizing both
	// THEN: the keys stay distinct

	assert.NotEqual(t, bonus.NormalizeText("Übergabe"), bonus.NormalizeText("Ubergabe"))
	assert.Equal(t, bonus.NormalizeText("ÜBERGABE"), bonus.NormalizeText("übergabe"))
}

func TestNormalizeText_Stable(t *testing.T) {
	in := "•  Angebote-Ausschreibungen-Kalkulationen (max. 8h/Monat pro MA)"
	first := bonus.NormalizeText(in)
	assert.Equal(t, first, bonus.NormalizeText(in))
	assert.Equal(t, first, bonus.NormalizeText(first))
}

func TestFallbackKey(t *testing.T) {
	k := bonus.Normalize("1234 Neubau Halle", "LP2 Entwurf")
	fb := k.FallbackKey()
	assert.Equal(t, "1234", fb.Project)
	assert.Equal(t, "lp2", fb.Milestone)
}

func TestIsSpecialProject(t *testing.T) {
	assert.True(t, bonus.IsSpecialProject("0000 allgemein", "0000"))
	assert.False(t, bonus.IsSpecialProject("1234.01 testprojekt", "0000"))
	assert.False(t, bonus.IsSpecialProject("", "0000"))
}

func TestExtractBudgetFromName(t *testing.T) {
	hours, unit, ok := bonus.ExtractBudgetFromName("Einarbeitung (max. 8h/Monat pro MA)")
	require.True(t, ok)
	assert.Equal(t, "8.00", hours.String())
	assert.Equal(t, bonus.UnitMonth, unit)

	hours, unit, ok = bonus.ExtractBudgetFromName("Firmenveranstaltungen (max. 4h/Quartal pro MA)")
	require.True(t, ok)
	assert.Equal(t, "4.00", hours.String())
	assert.Equal(t, bonus.UnitQuarter, unit)

	hours, _, ok = bonus.ExtractBudgetFromName("Schulung 2,5 h pro Monat")
	require.True(t, ok)
	assert.Equal(t, "2.50", hours.String())

	_, _, ok = bonus.ExtractBudgetFromName("Messeauftritt")
	assert.False(t, ok)
}
