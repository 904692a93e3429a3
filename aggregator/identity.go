package aggregator

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Name suffixes that carry no identity information. "Gyökeres", "Gyokeres"
// and "Gyokeres Jr" should all land on the same story.
var identitySuffixes = map[string]bool{
	"jr":  true,
	"jnr": true,
	"sr":  true,
	"snr": true,
	"fc":  true,
	"afc": true,
	"cf":  true,
	"sc":  true,
}

var diacriticStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeName canonicalizes an entity name for identity purposes: case
// folded, diacritics stripped, known suffix tokens trimmed. Returns "" when
// nothing identity-bearing remains.
func NormalizeName(name string) string {
	folded, _, err := transform.String(diacriticStripper, strings.ToLower(strings.TrimSpace(name)))
	if err != nil {
		folded = strings.ToLower(strings.TrimSpace(name))
	}

	kept := []string{}
	for _, token := range strings.Fields(folded) {
		token = strings.Trim(token, ".,!?:;'\"")
		if token == "" || identitySuffixes[token] {
			continue
		}
		kept = append(kept, token)
	}
	return strings.Join(kept, " ")
}

// NormalizeNames maps NormalizeName over a list, dropping empties and
// duplicates, preserving first-occurrence order.
func NormalizeNames(names []string) []string {
	seen := make(map[string]bool)
	normalized := []string{}
	for _, name := range names {
		n := NormalizeName(name)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		normalized = append(normalized, n)
	}
	return normalized
}

// IdentityHash derives the story identity from the normalized player set and
// the primary club pair. Order of mention must not matter, so both parts are
// sorted before hashing.
func IdentityHash(players []string, clubs []string) string {
	normalizedPlayers := NormalizeNames(players)
	sort.Strings(normalizedPlayers)

	normalizedClubs := NormalizeNames(clubs)
	if len(normalizedClubs) > 2 {
		normalizedClubs = normalizedClubs[:2]
	}
	sort.Strings(normalizedClubs)

	h := sha256.New()
	h.Write([]byte(strings.Join(normalizedPlayers, ",")))
	h.Write([]byte("|"))
	h.Write([]byte(strings.Join(normalizedClubs, ",")))
	return hex.EncodeToString(h.Sum(nil))
}

// TokenSimilarity is the Jaccard similarity between the token sets of two
// normalized name lists. Used by the fuzzy matching pass to catch
// transliteration variants that the exact hash misses.
func TokenSimilarity(a []string, b []string) float64 {
	tokensA := tokenSet(a)
	tokensB := tokenSet(b)
	if len(tokensA) == 0 || len(tokensB) == 0 {
		return 0
	}

	intersection := 0
	for token := range tokensA {
		if tokensB[token] {
			intersection++
		}
	}
	union := len(tokensA) + len(tokensB) - intersection
	return float64(intersection) / float64(union)
}

// ClubOverlap reports whether the two club lists share at least one
// normalized club.
func ClubOverlap(a []string, b []string) bool {
	setA := make(map[string]bool)
	for _, club := range NormalizeNames(a) {
		setA[club] = true
	}
	for _, club := range NormalizeNames(b) {
		if setA[club] {
			return true
		}
	}
	return false
}

func tokenSet(names []string) map[string]bool {
	tokens := make(map[string]bool)
	for _, name := range NormalizeNames(names) {
		for _, token := range strings.Fields(name) {
			tokens[token] = true
		}
	}
	return tokens
}
