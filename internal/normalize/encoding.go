package normalize

import (
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// RepairEncoding reverses the upstream's known mis-encoding, where UTF-8
// bytes were decoded as Latin-1 (so "São Paulo" arrives as "SÃ£o Paulo").
// There is no flag distinguishing broken text from correct text, so the rule
// must be the identity on already-correct input: a value only changes when
// every rune fits in a single Latin-1 byte AND those bytes form valid UTF-8
// that differs from the original.
//
// Repair runs to a fixed point so it is idempotent even on doubly-garbled
// input; each pass collapses at least one multi-byte sequence, so the rune
// count strictly shrinks and the loop terminates.
func RepairEncoding(s string) string {
	for {
		repaired := repairOnce(s)
		if repaired == s {
			return s
		}
		s = repaired
	}
}

func repairOnce(s string) string {
	raw, err := charmap.ISO8859_1.NewEncoder().String(s)
	if err != nil {
		// Some rune is outside Latin-1; the text was never mis-decoded.
		return s
	}
	if !utf8.ValidString(raw) {
		return s
	}
	return raw
}
