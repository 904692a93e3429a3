package model

// Fee is a transfer fee as reported by a single source. Amount is kept in the
// smallest unit of the currency (pennies for GBP) to avoid float drift when
// comparing fees from different reports.
type Fee struct {
	Amount     int64
	Currency   string
	Confidence float64
}

func (f Fee) IsZero() bool {
	return f.Amount == 0 && f.Currency == ""
}

/*

FactSet is the structured interpretation of one RawItem's text.

It is derived and recomputable: we never persist a FactSet on its own, it is
carried alongside the RawItem into aggregation and merged into a Story there.

Players: player names in the order they appear in the text
Clubs: club names, ideally ordered "from" then "to"
Fee: reported fee, zero value when the text names no fee
Stage: the strongest stage signal found in the text
HereWeGo: true when a confirmation phrase was matched, treated as a DONE signal
Keywords: lexicon keywords that matched, kept for downstream filtering
Confidence: extraction confidence in [0,1], a function of match count
*/
type FactSet struct {
	Players    []string
	Clubs      []string
	Fee        Fee
	Stage      Stage
	HereWeGo   bool
	Keywords   []string
	Confidence float64
}

// HasEntities reports whether extraction found at least one player, which is
// the minimum we need to aggregate the item into a story.
func (f FactSet) HasEntities() bool {
	return len(f.Players) > 0
}

// EffectiveStage folds the here-we-go confirmation signal into the stage:
// a matched confirmation phrase is treated as a DONE-stage report even when
// no explicit stage phrase appears.
func (f FactSet) EffectiveStage() Stage {
	if f.HereWeGo && StageDone.Priority() > f.Stage.Priority() {
		return StageDone
	}
	return f.Stage
}
