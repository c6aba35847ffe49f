package bonus

import (
	"strings"
	"unicode"
)

// =============================================================================
// NORMALIZER - Canonical comparable keys
// =============================================================================

// bulletReplacer removes list glyphs exported by the booking tool in front of
// milestone names ("• Messeauftritt", "● Angebote").
var bulletReplacer = strings.NewReplacer("•", " ", "●", " ", "▪", " ", "◦", " ")

// CleanText drops bullet glyphs and leading dashes, trims the result and
// collapses inner whitespace to single spaces. Case is kept, so the result
// is suitable for display.
func CleanText(raw string) string {
	s := bulletReplacer.Replace(raw)
	s = strings.TrimLeftFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || r == '-' || r == '–'
	})
	return strings.Join(strings.Fields(s), " ")
}

// NormalizeText is CleanText lower-cased. Accented characters are kept as
// they are: "Übergabe" and "Ubergabe" stay distinct keys.
func NormalizeText(raw string) string {
	return strings.ToLower(CleanText(raw))
}

// Normalize builds the full-string key for a (project, milestone) pair.
func Normalize(projectRaw, milestoneRaw string) NormalizedKey {
	return NormalizedKey{
		Project:   NormalizeText(projectRaw),
		Milestone: NormalizeText(milestoneRaw),
	}
}

// FirstToken returns the first whitespace-delimited token of a normalized string.
func FirstToken(normalized string) string {
	if i := strings.IndexByte(normalized, ' '); i >= 0 {
		return normalized[:i]
	}
	return normalized
}

// FallbackKey reduces a full key to the first token of each side.
// "1234 neubau halle" / "lp 2 entwurf" -> "1234" / "lp"
func (k NormalizedKey) FallbackKey() NormalizedKey {
	return NormalizedKey{Project: FirstToken(k.Project), Milestone: FirstToken(k.Milestone)}
}

// IsSpecialProject reports whether a normalized project key carries the
// special-project marker.
func IsSpecialProject(projectKey, marker string) bool {
	return marker != "" && strings.HasPrefix(projectKey, strings.ToLower(marker))
}
