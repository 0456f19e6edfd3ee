package taxonomy

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Variants are the four spellings a token is indexed and matched under.
type Variants struct {
	// Raw is lowercased with diacritics removed; spacing is preserved.
	Raw string
	// Kebab joins alphanumeric runs with "-".
	Kebab string
	// Snake joins alphanumeric runs with "_".
	Snake string
	// Compact keeps only letters and digits.
	Compact string
}

// All returns the variants in matching order, skipping empty and repeated ones.
func (v Variants) All() []string {
	out := make([]string, 0, 4)
	for _, s := range []string{v.Raw, v.Kebab, v.Snake, v.Compact} {
		if s == "" {
			continue
		}
		dup := false
		for _, seen := range out {
			if seen == s {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, s)
		}
	}
	return out
}

// Normalize folds s into its token variants. Normalizing any variant again
// yields the same Kebab, Snake and Compact forms.
func Normalize(s string) Variants {
	raw := strings.TrimSpace(strings.ToLower(stripAccents(s)))
	words := strings.FieldsFunc(raw, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return Variants{
		Raw:     raw,
		Kebab:   strings.Join(words, "-"),
		Snake:   strings.Join(words, "_"),
		Compact: strings.Join(words, ""),
	}
}

// stripAccents removes combining marks after canonical decomposition, so
// "Rocío" becomes "Rocio" and "Matalascañas" becomes "Matalascanas".
func stripAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
