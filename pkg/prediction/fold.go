package prediction

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// foldTransform strips combining marks after NFD decomposition, which
// turns Ü/Ö/Ç/Ş/Ğ and dotted İ into their plain ASCII base letters.
var foldTransform = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Fold normalizes a shorthand string for matching: Turkish letters are
// folded to ASCII, the result is uppercased (Go's case tables map the
// dotless ı to I), and runs of whitespace collapse to single spaces.
func Fold(s string) string {
	folded, _, err := transform.String(foldTransform, s)
	if err != nil {
		folded = s
	}
	folded = strings.ToUpper(folded)
	return strings.Join(strings.Fields(folded), " ")
}
