// Package extractor turns one raw item's free text into a structured fact
// set: players, clubs, fee, transfer stage and the "here we go" confirmation
// signal. Extraction is a pure function over the text, safe to call many
// times with identical output, and does no I/O.
package extractor

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/Dean-Rough/transferjuice-sub005/model"
)

// SkipReason explains why a raw item was dropped before aggregation. Skips
// are counted in the cycle summary, never raised as hard errors.
type SkipReason string

const (
	SkipEmptyText       SkipReason = "EMPTY_TEXT"
	SkipNoEntitiesFound SkipReason = "NO_ENTITIES_FOUND"
)

var (
	// currency symbol + number + optional scale suffix, e.g. "£35m",
	// "€40 million", "$12.5m".
	feePattern = regexp.MustCompile(`([£€$])\s?(\d+(?:\.\d+)?)\s?((?i:million|bn|m|b|k))?`)

	// Maximal runs of capitalized words, the raw candidates for player and
	// club names. Allows diacritics, apostrophes and hyphens within a word.
	nameRunPattern = regexp.MustCompile(`[A-ZÀ-ÖØ-Þ][\p{L}'’\-]*(?:[ ][A-ZÀ-ÖØ-Þ][\p{L}'’\-]*)*`)
)

type Extractor struct {
	lexicon *Lexicon
}

func NewExtractor(lexicon *Lexicon) *Extractor {
	if lexicon == nil {
		lexicon = DefaultLexicon()
	}
	return &Extractor{lexicon: lexicon}
}

// ShouldSkip decides whether an item is worth aggregating at all. An item
// with no text, or whose facts name no player, can never match a story.
func ShouldSkip(text string, facts model.FactSet) (SkipReason, bool) {
	if strings.TrimSpace(text) == "" {
		return SkipEmptyText, true
	}
	if !facts.HasEntities() {
		return SkipNoEntitiesFound, true
	}
	return "", false
}

// Extract runs all lexicon matchers over the text and accumulates matches.
// The stage is resolved by priority order, the strongest signal found wins.
func (e *Extractor) Extract(text string) model.FactSet {
	facts := model.FactSet{}
	lower := strings.ToLower(text)
	matches := 0

	for _, phrase := range e.lexicon.ConfirmationPhrases {
		if strings.Contains(lower, strings.ToLower(phrase)) {
			facts.HereWeGo = true
			matches++
		}
	}

	for phrase, stage := range e.lexicon.stageByPhrase {
		if !strings.Contains(lower, phrase) {
			continue
		}
		matches++
		if stage.Priority() > facts.Stage.Priority() {
			facts.Stage = stage
		}
	}

	for _, keyword := range e.lexicon.Keywords {
		if strings.Contains(lower, strings.ToLower(keyword)) {
			facts.Keywords = append(facts.Keywords, keyword)
			matches++
		}
	}

	if fee, ok := extractFee(text); ok {
		facts.Fee = fee
		matches++
	}

	facts.Clubs = e.extractClubs(text)
	matches += len(facts.Clubs)

	facts.Players = e.extractPlayers(text, facts.Clubs)
	matches += len(facts.Players)

	facts.Confidence = math.Min(1, 0.15*float64(matches))
	return facts
}

// extractClubs finds known clubs in the text, ordered by first occurrence so
// that "from club, to club" phrasing keeps its direction.
func (e *Extractor) extractClubs(text string) []string {
	lower := strings.ToLower(text)

	type hit struct {
		index int
		club  string
	}
	hits := []hit{}
	for lowered, canonical := range e.lexicon.clubSet {
		idx := strings.Index(lower, lowered)
		if idx < 0 {
			continue
		}
		if !isWordBounded(lower, idx, len(lowered)) {
			continue
		}
		hits = append(hits, hit{index: idx, club: canonical})
	}

	sort.Slice(hits, func(i, j int) bool { return hits[i].index < hits[j].index })

	clubs := []string{}
	for _, h := range hits {
		clubs = append(clubs, h.club)
	}
	return clubs
}

// extractPlayers applies the capitalized-name-run heuristic: maximal runs of
// capitalized words that are neither known clubs nor stopwords are treated
// as player names. This is deliberately a heuristic, not NLU.
func (e *Extractor) extractPlayers(text string, clubs []string) []string {
	clubWords := make(map[string]bool)
	for _, club := range clubs {
		for _, word := range strings.Fields(strings.ToLower(club)) {
			clubWords[word] = true
		}
	}

	seen := make(map[string]bool)
	players := []string{}
	for _, run := range nameRunPattern.FindAllString(text, -1) {
		for _, candidate := range e.splitRun(run, clubWords) {
			key := strings.ToLower(candidate)
			if seen[key] {
				continue
			}
			seen[key] = true
			players = append(players, candidate)
		}
	}
	return players
}

// splitRun strips club words and stopwords out of one capitalized run and
// returns the remaining contiguous word groups that look like person names.
func (e *Extractor) splitRun(run string, clubWords map[string]bool) []string {
	if _, ok := e.lexicon.canonicalClub(run); ok {
		return nil
	}
	if e.lexicon.isStopword(run) {
		return nil
	}

	candidates := []string{}
	current := []string{}
	flush := func() {
		if len(current) == 0 {
			return
		}
		candidate := strings.Join(current, " ")
		current = nil
		if len(candidate) < 2 {
			return
		}
		if _, ok := e.lexicon.canonicalClub(candidate); ok {
			return
		}
		if e.lexicon.isStopword(candidate) {
			return
		}
		candidates = append(candidates, candidate)
	}

	for _, word := range strings.Fields(run) {
		lowered := strings.ToLower(word)
		if clubWords[lowered] || e.lexicon.isStopword(word) {
			flush()
			continue
		}
		current = append(current, word)
		if len(current) == 3 {
			flush()
		}
	}
	flush()
	return candidates
}

func extractFee(text string) (model.Fee, bool) {
	match := feePattern.FindStringSubmatch(text)
	if match == nil {
		return model.Fee{}, false
	}

	value, err := strconv.ParseFloat(match[2], 64)
	if err != nil {
		return model.Fee{}, false
	}

	scale := 1.0
	confidence := 0.6
	switch strings.ToLower(match[3]) {
	case "m", "million":
		scale = 1e6
		confidence = 0.9
	case "k":
		scale = 1e3
		confidence = 0.9
	case "b", "bn":
		scale = 1e9
		confidence = 0.9
	}

	currency := "GBP"
	switch match[1] {
	case "€":
		currency = "EUR"
	case "$":
		currency = "USD"
	}

	// Amounts are stored in the currency's smallest unit.
	return model.Fee{
		Amount:     int64(math.Round(value * scale * 100)),
		Currency:   currency,
		Confidence: confidence,
	}, true
}

// isWordBounded checks that text[idx:idx+length] is not embedded inside a
// longer word.
func isWordBounded(text string, idx, length int) bool {
	if idx > 0 && isWordChar(text[idx-1]) {
		return false
	}
	end := idx + length
	if end < len(text) && isWordChar(text[end]) {
		return false
	}
	return true
}

func isWordChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}
