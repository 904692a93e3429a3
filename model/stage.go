package model

import (
	"database/sql/driver"
	"fmt"
	"strings"
)

// Stage is how far along a transfer is according to the reports we have seen.
// The zero value means no stage signal was found in the text at all.
type Stage int

const (
	StageUnknown Stage = iota
	StageRumour
	StageTalks
	StageAgreed
	StageMedical
	StageDone
)

var stageNames = map[Stage]string{
	StageUnknown: "UNKNOWN",
	StageRumour:  "RUMOUR",
	StageTalks:   "TALKS",
	StageAgreed:  "AGREED",
	StageMedical: "MEDICAL",
	StageDone:    "DONE",
}

func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return "UNKNOWN"
}

func (s Stage) IsValid() bool {
	_, ok := stageNames[s]
	return ok
}

// Priority orders stages for conflict resolution: a DONE report always beats
// a MEDICAL report, which beats AGREED, and so on. Stages are declared in
// ascending priority so the int value doubles as the priority.
func (s Stage) Priority() int {
	return int(s)
}

func ParseStage(str string) (Stage, error) {
	for stage, name := range stageNames {
		if strings.EqualFold(str, name) {
			return stage, nil
		}
	}
	return StageUnknown, fmt.Errorf("%s is not a valid Stage", str)
}

// Value / Scan store the stage as its string name so that rows stay readable
// when queried by hand.
func (s Stage) Value() (driver.Value, error) {
	return s.String(), nil
}

func (s *Stage) Scan(value interface{}) error {
	switch v := value.(type) {
	case string:
		stage, err := ParseStage(v)
		if err != nil {
			return err
		}
		*s = stage
		return nil
	case []byte:
		stage, err := ParseStage(string(v))
		if err != nil {
			return err
		}
		*s = stage
		return nil
	default:
		return fmt.Errorf("cannot scan %T into Stage", value)
	}
}
