package model

import (
	"fmt"
	"sort"
)

// Outcome classifies a diagnostic.
type Outcome string

const (
	OutcomeSkipped  Outcome = "skipped"
	OutcomeReplaced Outcome = "replaced"
	OutcomeWarning  Outcome = "warning"
)

// Diagnostic records a non-fatal event in a batch: a skipped fit, a
// replaced observation, a dropped row.
type Diagnostic struct {
	Stage    string  `json:"stage"`
	Province string  `json:"province,omitempty"`
	Year     int     `json:"year,omitempty"`
	Scenario string  `json:"scenario,omitempty"`
	Outcome  Outcome `json:"outcome"`
	Reason   string  `json:"reason"`
}

func (d Diagnostic) String() string {
	s := fmt.Sprintf("%s %s", d.Stage, d.Outcome)
	if d.Province != "" {
		s += " province=" + d.Province
	}
	if d.Year != 0 {
		s += fmt.Sprintf(" year=%d", d.Year)
	}
	if d.Scenario != "" {
		s += " scenario=" + d.Scenario
	}
	return s + ": " + d.Reason
}

// Diagnostics is an ordered list of batch diagnostics.
type Diagnostics []Diagnostic

// Add appends a diagnostic.
func (ds *Diagnostics) Add(d Diagnostic) { *ds = append(*ds, d) }

// Extend appends every diagnostic of other.
func (ds *Diagnostics) Extend(other Diagnostics) { *ds = append(*ds, other...) }

// Count returns the number of diagnostics per "stage/outcome".
func (ds Diagnostics) Count() map[string]int {
	out := map[string]int{}
	for _, d := range ds {
		out[d.Stage+"/"+string(d.Outcome)]++
	}
	return out
}

// Sorted returns a copy ordered by stage, province, year, scenario. The sort
// is stable so equal entries keep their emission order.
func (ds Diagnostics) Sorted() Diagnostics {
	out := append(Diagnostics(nil), ds...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Stage != b.Stage {
			return a.Stage < b.Stage
		}
		if a.Province != b.Province {
			return a.Province < b.Province
		}
		if a.Year != b.Year {
			return a.Year < b.Year
		}
		return a.Scenario < b.Scenario
	})
	return out
}
