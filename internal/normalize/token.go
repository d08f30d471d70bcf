package normalize

import (
	"hash/fnv"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NormalizeLookupToken lowercases text, strips diacritics and collapses
// whitespace. Used for fuzzy title and query matching.
func NormalizeLookupToken(text string) string {
	if text == "" {
		return ""
	}
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, text)
	if err != nil {
		folded = text
	}
	return strings.Join(strings.Fields(strings.ToLower(folded)), " ")
}

// CollapseText trims text and collapses internal whitespace runs to one space.
func CollapseText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// ToStableHash is a 32-bit FNV-1a hash. Only used to build memorable id
// suffixes, never for security.
func ToStableHash(text string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(text))
	return h.Sum32()
}

// StableHashString renders ToStableHash in base36.
func StableHashString(text string) string {
	return strconv.FormatUint(uint64(ToStableHash(text)), 36)
}
