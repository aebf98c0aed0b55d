package filter

import (
	"strings"

	"github.com/siongui/gojianfan"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize canonicalizes message text for literal matching: NFKC unicode
// normalization (folds full-width forms), traditional-to-simplified Chinese
// conversion, and lower-casing. Pure, deterministic and total; characters the
// pipeline does not know pass through unchanged.
//
// Applied identically to literal rules at insert time and to message text at
// classify time, so script-variant spellings compare equal. Pattern rules are
// never normalized; patterns must be authored for the variants they intend to
// catch.
func Normalize(text string) string {
	folded, _, err := transform.String(norm.NFKC, text)
	if err != nil {
		folded = text
	}
	return strings.ToLower(gojianfan.T2S(folded))
}
