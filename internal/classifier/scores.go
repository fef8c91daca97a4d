// Package classifier assigns rubrics and relevancy decisions to news by
// retrieving similar reference articles. Strategies are pluggable behind one
// interface; the rubric and relevancy classifiers wrap whichever strategy
// configuration selects.
package classifier

import (
	"math"
	"sort"
)

// LabelScore is one (label, score) pair.
type LabelScore struct {
	Label string
	Score float64
}

// Scores is an ordered label→score mapping. Order is meaningful: after
// ranking it reflects descending score, and softmax keeps it intact.
type Scores []LabelScore

// Get returns the score for a label.
func (s Scores) Get(label string) (float64, bool) {
	for _, ls := range s {
		if ls.Label == label {
			return ls.Score, true
		}
	}
	return 0, false
}

// Top returns the highest-ranked entry.
func (s Scores) Top() (LabelScore, bool) {
	if len(s) == 0 {
		return LabelScore{}, false
	}
	return s[0], true
}

// sortDescending orders entries by score, highest first. The sort is stable
// so equal scores keep their original relative order.
func (s Scores) sortDescending() {
	sort.SliceStable(s, func(i, j int) bool {
		return s[i].Score > s[j].Score
	})
}

// softmax normalizes scores into probabilities in place, preserving entry
// order. The max is subtracted first for numerical stability.
func (s Scores) softmax() {
	if len(s) == 0 {
		return
	}

	max := s[0].Score
	for _, ls := range s[1:] {
		if ls.Score > max {
			max = ls.Score
		}
	}

	var sum float64
	exps := make([]float64, len(s))
	for i, ls := range s {
		exps[i] = math.Exp(ls.Score - max)
		sum += exps[i]
	}

	for i := range s {
		s[i].Score = exps[i] / sum
	}
}
