package risk

import (
	"math"

	"github.com/lungbuddy/lungbuddy/pkg/round"
)

// Damage holds the unrounded damage points of every domain.
type Damage struct {
	Biological    float64
	Behavioral    float64
	Environmental float64
	Sleep         float64
	Disease       float64
}

// Total returns the summed damage capped at MaxTotalDamage. There is no lower
// bound because the environmental domain may be negative.
func (d Damage) Total() float64 {
	sum := d.Biological + d.Behavioral + d.Environmental + d.Sleep + d.Disease
	return math.Min(sum, MaxTotalDamage)
}

// Assess runs the five domain calculators over a normalized questionnaire.
func Assess(q Questionnaire) Damage {
	return Damage{
		Biological:    Biological(q),
		Behavioral:    Behavioral(q),
		Environmental: Environmental(q),
		Sleep:         Sleep(q),
		Disease:       Disease(q),
	}
}

// ComputeRisk normalizes raw answers and scores them. It always returns a result.
func ComputeRisk(raw RawAnswers) Result {
	return Score(Normalize(raw))
}

// Score converts a normalized questionnaire into a score, label and breakdown.
func Score(q Questionnaire) Result {
	return Aggregate(Assess(q))
}

// Aggregate converts domain damage into a Result.
func Aggregate(d Damage) Result {
	total := d.Total()

	// The environmental domain can push total damage below zero; the score
	// itself never leaves [0, 100].
	score := int(math.Max(0, math.Min(100, math.Round(100-total))))

	return Result{
		Score: score,
		Label: LabelFor(score),
		Breakdown: Breakdown{
			Biological:    round.Fixed(d.Biological, 1),
			Behavioral:    round.Fixed(d.Behavioral, 1),
			Environmental: round.Fixed(d.Environmental, 1),
			Sleep:         round.Fixed(d.Sleep, 1),
			Disease:       round.Fixed(d.Disease, 1),
			TotalDamage:   round.Fixed(total, 1),
		},
	}
}

// LabelFor returns the risk label for a score.
func LabelFor(score int) Label {
	switch {
	case score >= 90:
		return LabelOptimal
	case score >= 75:
		return LabelGood
	case score >= 50:
		return LabelModerate
	case score >= 25:
		return LabelHigh
	default:
		return LabelCritical
	}
}
