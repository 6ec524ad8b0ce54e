package classify

// Divergence weighting. Status disagreement dominates; confidence and risk
// spread split the remainder.
const (
	statusWeight     = 0.4
	confidenceWeight = 0.3
	riskWeight       = 0.3
)

// DefaultEscalationThreshold is the divergence score at or above which a
// case escalates to human review.
const DefaultEscalationThreshold = 0.4

// Divergence computes the disagreement score for a classification set.
// Returns ok=false when fewer than two classifications exist — the score is
// undefined, never zero.
//
// The status term is the maximum pairwise ordinal distance, so the result is
// identical for any submission order of the same set.
func Divergence(cs []*Classification) (score float64, ok bool) {
	if len(cs) < 2 {
		return 0, false
	}

	var statusDist float64
	for i := 0; i < len(cs); i++ {
		oi, _ := cs[i].Status.Ordinal()
		for j := i + 1; j < len(cs); j++ {
			oj, _ := cs[j].Status.Ordinal()
			if d := abs(oi - oj); d > statusDist {
				statusDist = d
			}
		}
	}

	minConf, maxConf := cs[0].Confidence, cs[0].Confidence
	minRisk, maxRisk := cs[0].Risk, cs[0].Risk
	for _, c := range cs[1:] {
		minConf = min(minConf, c.Confidence)
		maxConf = max(maxConf, c.Confidence)
		minRisk = min(minRisk, c.Risk)
		maxRisk = max(maxRisk, c.Risk)
	}

	score = statusWeight*statusDist +
		confidenceWeight*(maxConf-minConf) +
		riskWeight*(maxRisk-minRisk)
	return clamp01(score), true
}

// ShouldEscalate applies the escalation condition: divergence at or above
// the threshold, or any single unethical verdict.
func ShouldEscalate(cs []*Classification, threshold float64) bool {
	for _, c := range cs {
		if c.Status == StatusUnethical {
			return true
		}
	}
	score, ok := Divergence(cs)
	return ok && score >= threshold
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
