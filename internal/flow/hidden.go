package flow

import (
	"slices"
)

// Trigger is the branch currently chosen at a question.
type Trigger struct {
	MoveTo      int  `json:"moveTo,omitempty"`
	EndOfSurvey bool `json:"endOfSurvey,omitempty"`
}

// HiddenSet maps the number of a triggering question to the question numbers it hides.
type HiddenSet map[int][]int

// Contains reports whether any trigger hides question no.
func (h HiddenSet) Contains(no int) bool {
	for _, list := range h {
		if slices.Contains(list, no) {
			return true
		}
	}
	return false
}

// Numbers returns every hidden question number, ascending and without duplicates.
func (h HiddenSet) Numbers() []int {
	var out []int
	for _, list := range h {
		out = append(out, list...)
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// Hide folds triggers into a HiddenSet over the ascending question numbers. A forward branch at
// q hides the open range (q, MoveTo); end of survey hides everything after q. Triggers are
// applied in question order and a trigger on an already hidden question is ignored, so the
// result depends only on the trigger map.
func Hide(numbers []int, triggers map[int]Trigger) HiddenSet {
	keys := make([]int, 0, len(triggers))
	for q := range triggers {
		keys = append(keys, q)
	}
	slices.Sort(keys)

	hidden := make(map[int]bool)
	set := make(HiddenSet)
	for _, q := range keys {
		if hidden[q] {
			continue
		}
		t := triggers[q]
		var list []int
		for _, n := range numbers {
			if n <= q {
				continue
			}
			if t.EndOfSurvey || n < t.MoveTo {
				list = append(list, n)
				hidden[n] = true
			}
		}
		if len(list) > 0 {
			set[q] = list
		}
	}
	return set
}
