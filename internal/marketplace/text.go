package marketplace

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// fold lowercases s and strips accents: "Impressão" becomes "impressao".
// NFKD also expands compatibility forms such as the ordinal "º".
func fold(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}

// words splits folded s on anything that is not a letter or digit.
func words(s string) []string {
	return strings.FieldsFunc(fold(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func normalizeHeader(s string) string {
	return strings.Join(words(s), " ")
}

// Sector rules are evaluated in order; the first match wins.
var sectorRules = []struct {
	sector   string
	keywords []string
}{
	{"molduraria", []string{"quadro", "moldura"}},
	{"espelhos", []string{"espelho"}},
	{"impressao", []string{"poster", "gravura", "impressao", "print"}},
	{"canvas", []string{"canvas", "tela"}},
}

// DefaultSector receives items no keyword rule matched.
const DefaultSector = "geral"

// DetectSector picks the production sector of an item from its title and
// variation. A keyword matches the start of a word, so "quadros" counts as
// "quadro".
func DetectSector(text string) string {
	ws := words(text)
	for _, rule := range sectorRules {
		for _, kw := range rule.keywords {
			for _, w := range ws {
				if strings.HasPrefix(w, kw) {
					return rule.sector
				}
			}
		}
	}
	return DefaultSector
}

var dimensionPattern = regexp.MustCompile(`(\d+(?:[.,]\d+)?)\s*(?:cm)?\s*[x×]\s*(\d+(?:[.,]\d+)?)`)

// Dimensions finds the first "HxW" pair in text, in centimeters.
func Dimensions(text string) (height, width decimal.Decimal, ok bool) {
	m := dimensionPattern.FindStringSubmatch(fold(text))
	if m == nil {
		return decimal.Zero, decimal.Zero, false
	}
	h, errH := decimal.NewFromString(strings.ReplaceAll(m[1], ",", "."))
	w, errW := decimal.NewFromString(strings.ReplaceAll(m[2], ",", "."))
	if errH != nil || errW != nil || !h.IsPositive() || !w.IsPositive() {
		return decimal.Zero, decimal.Zero, false
	}
	return h, w, true
}

// ParseNumber reads a number written the Brazilian way ("R$ 1.234,56") or
// the plain way ("1234.56"). When both separators appear the last one is the
// decimal separator. A lone dot is decimal unless it repeats.
func ParseNumber(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	reais := strings.HasPrefix(s, "R$")
	s = strings.TrimPrefix(s, "R$")
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)

	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")
	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(s, ",") > 1 {
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.Replace(s, ",", ".", 1)
		}
	case strings.Count(s, ".") > 1:
		s = strings.ReplaceAll(s, ".", "")
	case reais && lastDot >= 0 && len(s)-lastDot-1 == 3:
		// Reais are written with comma decimals, so "R$ 1.234" is a thousand.
		s = strings.Replace(s, ".", "", 1)
	}

	return decimal.NewFromString(s)
}
