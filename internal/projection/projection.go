// Package projection estimates lung capacity (FEV1) over the next ten years
// from a risk score and the habits that drive annual decline.
package projection

import (
	"math"

	"github.com/lungbuddy/lungbuddy/internal/risk"
	"github.com/lungbuddy/lungbuddy/pkg/round"
)

// Model constants. Declines are in mL per year, volumes in litres.
const (
	Years = 10

	ReferenceFEV1       = 4.0
	ReferenceAge        = 25.0
	AgeDeclinePerYear   = 0.030
	MinimumNormalFEV1   = 1.5
	FloorFEV1           = 0.3
	AgingDecline        = 30.0
	SmokingDeclinePer10 = 15.0
	ShortSleepDecline   = 5.0
	HighAQIDecline      = 12.0
	ExerciseRecovery    = 8.0

	shortSleepHours = 7.0
	highAQI         = 100.0
)

// Input holds the values the projection depends on.
type Input struct {
	Age              float64 `json:"age"`
	Score            int     `json:"score"`
	CigarettesPerDay float64 `json:"cigarettesPerDay"`
	AQI              float64 `json:"aqi"`
	SleepHours       float64 `json:"sleepHours"`
}

// InputFrom builds an Input from a normalized questionnaire and its score.
func InputFrom(q risk.Questionnaire, score int) Input {
	return Input{
		Age:              q.Age,
		Score:            score,
		CigarettesPerDay: q.CigarettesPerDay,
		AQI:              q.AQI,
		SleepHours:       q.SleepHours,
	}
}

// Interventions are the habit changes applied to the optimized trajectory.
type Interventions struct {
	QuitSmoking   bool `json:"quitSmoking"`
	WearN95       bool `json:"wearN95"`
	OptimizeSleep bool `json:"optimizeSleep"`
	Exercise      bool `json:"exercise"`
}

// Declines holds the annual decline components in mL per year.
type Declines struct {
	Aging   float64 `json:"aging"`
	Smoking float64 `json:"smoking"`
	Sleep   float64 `json:"sleep"`
	AQI     float64 `json:"aqi"`
}

// Point is one year of the projection.
type Point struct {
	Year      int     `json:"year"`
	Baseline  float64 `json:"baseline"`
	Optimized float64 `json:"optimized"`
}

// Projection is a ten-year FEV1 projection under current and improved habits.
type Projection struct {
	NormalFEV1       float64  `json:"normalFev1"`
	BaselineFEV1     float64  `json:"baselineFev1"`
	Declines         Declines `json:"declines"`
	BaselineDecline  float64  `json:"baselineDecline"`
	OptimizedDecline float64  `json:"optimizedDecline"`
	Points           []Point  `json:"points"`
	SavedML          int      `json:"savedMl"`
	PreservedPct     float64  `json:"preservedPct"`
}

// NormalFEV1 returns the predicted healthy FEV1 for an age.
func NormalFEV1(age float64) float64 {
	return math.Max(ReferenceFEV1-math.Max(age-ReferenceAge, 0)*AgeDeclinePerYear, MinimumNormalFEV1)
}

// DeclinesFor returns the annual decline components for the input.
func DeclinesFor(in Input) Declines {
	d := Declines{Aging: AgingDecline}
	if in.CigarettesPerDay > 0 {
		d.Smoking = (in.CigarettesPerDay / 10) * SmokingDeclinePer10
	}
	if in.SleepHours < shortSleepHours {
		d.Sleep = ShortSleepDecline
	}
	if in.AQI > highAQI {
		d.AQI = HighAQIDecline
	}
	return d
}

// Project computes the baseline and optimized trajectories for years 0 to 10.
func Project(in Input, iv Interventions) Projection {
	normal := NormalFEV1(in.Age)
	baseline := normal * (float64(in.Score) / 100)
	d := DeclinesFor(in)

	baselineDecline := d.Aging + d.Smoking + d.Sleep + d.AQI

	optimizedDecline := d.Aging
	if !iv.QuitSmoking {
		optimizedDecline += d.Smoking
	}
	if !iv.WearN95 {
		optimizedDecline += d.AQI
	}
	if !iv.OptimizeSleep {
		optimizedDecline += d.Sleep
	}
	if iv.Exercise {
		optimizedDecline = math.Max(optimizedDecline-ExerciseRecovery, 0)
	}

	points := make([]Point, 0, Years+1)
	for year := 0; year <= Years; year++ {
		y := float64(year)
		points = append(points, Point{
			Year:      year,
			Baseline:  round.Fixed(math.Max(baseline-baselineDecline*y/1000, FloorFEV1), 3),
			Optimized: round.Fixed(math.Max(baseline-(optimizedDecline*y)/1000, FloorFEV1), 3),
		})
	}

	last := points[Years]
	saved := math.Max((last.Optimized-last.Baseline)*1000, 0)

	var preserved float64
	if baseline > 0 {
		preserved = round.Fixed(round.Fixed(saved, 0)/(baseline*1000)*100, 1)
	}

	return Projection{
		NormalFEV1:       normal,
		BaselineFEV1:     baseline,
		Declines:         d,
		BaselineDecline:  baselineDecline,
		OptimizedDecline: optimizedDecline,
		Points:           points,
		SavedML:          int(round.Fixed(saved, 0)),
		PreservedPct:     preserved,
	}
}
