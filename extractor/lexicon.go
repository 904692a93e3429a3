package extractor

import (
	_ "embed"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/Dean-Rough/transferjuice-sub005/model"
)

//go:embed lexicon.yaml
var defaultLexiconYAML []byte

// Lexicon holds the curated phrase lists the extractor matches against.
// All phrases are stored lowercased; matching is case-insensitive.
type Lexicon struct {
	ConfirmationPhrases []string            `yaml:"confirmation_phrases"`
	StagePhrases        map[string][]string `yaml:"stage_phrases"`
	Keywords            []string            `yaml:"keywords"`
	KnownClubs          []string            `yaml:"known_clubs"`
	NameStopwords       []string            `yaml:"name_stopwords"`

	// Derived at load time.
	stageByPhrase map[string]model.Stage
	clubSet       map[string]string
	stopwordSet   map[string]bool
}

// DefaultLexicon parses the embedded lexicon. Panics on a malformed embed
// since that is a build defect, not a runtime condition.
func DefaultLexicon() *Lexicon {
	lex, err := ParseLexicon(defaultLexiconYAML)
	if err != nil {
		panic(err)
	}
	return lex
}

func ParseLexicon(data []byte) (*Lexicon, error) {
	lex := &Lexicon{}
	if err := yaml.Unmarshal(data, lex); err != nil {
		return nil, errors.Wrap(err, "fail to parse lexicon yaml")
	}
	if err := lex.index(); err != nil {
		return nil, err
	}
	return lex, nil
}

func (l *Lexicon) index() error {
	l.stageByPhrase = make(map[string]model.Stage)
	for stageName, phrases := range l.StagePhrases {
		stage, err := model.ParseStage(stageName)
		if err != nil {
			return errors.Wrapf(err, "lexicon stage_phrases has unknown stage %s", stageName)
		}
		for _, phrase := range phrases {
			l.stageByPhrase[strings.ToLower(phrase)] = stage
		}
	}

	l.clubSet = make(map[string]string)
	for _, club := range l.KnownClubs {
		l.clubSet[strings.ToLower(club)] = club
	}

	l.stopwordSet = make(map[string]bool)
	for _, word := range l.NameStopwords {
		l.stopwordSet[strings.ToLower(word)] = true
	}
	return nil
}

func (l *Lexicon) isStopword(run string) bool {
	return l.stopwordSet[strings.ToLower(run)]
}

// canonicalClub returns the canonical club name when the candidate matches a
// known club, case-insensitively.
func (l *Lexicon) canonicalClub(candidate string) (string, bool) {
	club, ok := l.clubSet[strings.ToLower(candidate)]
	return club, ok
}
