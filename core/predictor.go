package core

import "github.com/sarchlab/tritsim/trit"

// predictor keeps a bounded outcome history per branch PC and predicts the
// most frequent outcome. Ties go to the tied value seen most recently; an
// empty history predicts 0.
type predictor struct {
	depth   int
	history map[int][]trit.Trit
}

func newPredictor(depth int) predictor {
	return predictor{
		depth:   depth,
		history: make(map[int][]trit.Trit),
	}
}

func (p *predictor) predict(pc int) trit.Trit {
	h := p.history[pc]
	if len(h) == 0 {
		return trit.Zero
	}

	var counts [3]int

	best := 0
	for _, t := range h {
		counts[t+1]++
		best = max(best, counts[t+1])
	}

	for i := len(h) - 1; i >= 0; i-- {
		if counts[h[i]+1] == best {
			return h[i]
		}
	}

	return trit.Zero
}

func (p *predictor) update(pc int, outcome trit.Trit) {
	h := append(p.history[pc], outcome)
	if len(h) > p.depth {
		h = append([]trit.Trit(nil), h[len(h)-p.depth:]...)
	}

	p.history[pc] = h
}

func (p *predictor) reset() {
	clear(p.history)
}
