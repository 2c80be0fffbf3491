package projection_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lungbuddy/lungbuddy/internal/projection"
	"github.com/lungbuddy/lungbuddy/internal/risk"
)

func smokerInput() projection.Input {
	return projection.Input{
		Age:              45,
		Score:            80,
		CigarettesPerDay: 10,
		AQI:              150,
		SleepHours:       6,
	}
}

func TestNormalFEV1(t *testing.T) {
	assert.Equal(t, 4.0, projection.NormalFEV1(20))
	assert.Equal(t, 4.0, projection.NormalFEV1(25))
	assert.InDelta(t, 3.4, projection.NormalFEV1(45), 1e-9)
	assert.Equal(t, 1.5, projection.NormalFEV1(120))
}

func TestDeclinesFor(t *testing.T) {
	d := projection.DeclinesFor(smokerInput())
	assert.Equal(t, projection.Declines{Aging: 30, Smoking: 15, Sleep: 5, AQI: 12}, d)

	d = projection.DeclinesFor(projection.Input{Age: 30, Score: 90, AQI: 100, SleepHours: 7})
	assert.Equal(t, projection.Declines{Aging: 30}, d)
}

func TestProject_NoInterventions(t *testing.T) {
	p := projection.Project(smokerInput(), projection.Interventions{})

	require.Len(t, p.Points, projection.Years+1)
	assert.InDelta(t, 2.72, p.BaselineFEV1, 1e-9)
	assert.Equal(t, 62.0, p.BaselineDecline)
	assert.Equal(t, 62.0, p.OptimizedDecline)

	for i, point := range p.Points {
		assert.Equal(t, i, point.Year)
		assert.Equal(t, point.Baseline, point.Optimized)
	}
	assert.Equal(t, 2.72, p.Points[0].Baseline)
	assert.Equal(t, 2.1, p.Points[10].Baseline)
	assert.Equal(t, 0, p.SavedML)
	assert.Equal(t, 0.0, p.PreservedPct)
}

func TestProject_AllInterventions(t *testing.T) {
	p := projection.Project(smokerInput(), projection.Interventions{
		QuitSmoking:   true,
		WearN95:       true,
		OptimizeSleep: true,
		Exercise:      true,
	})

	assert.Equal(t, 22.0, p.OptimizedDecline)
	assert.Equal(t, 2.5, p.Points[10].Optimized)
	assert.Equal(t, 2.1, p.Points[10].Baseline)
	assert.Equal(t, 400, p.SavedML)
	assert.Equal(t, 14.7, p.PreservedPct)
}

func TestProject_QuitSmokingOnly(t *testing.T) {
	p := projection.Project(smokerInput(), projection.Interventions{QuitSmoking: true})

	assert.Equal(t, 47.0, p.OptimizedDecline)
	assert.Equal(t, 150, p.SavedML)
}

func TestProject_ExerciseNeverNegative(t *testing.T) {
	in := projection.Input{Age: 20, Score: 100, SleepHours: 8}
	p := projection.Project(in, projection.Interventions{Exercise: true})

	assert.Equal(t, 22.0, p.OptimizedDecline)
	assert.Equal(t, 4.0, p.Points[0].Optimized)
	assert.Equal(t, 3.78, p.Points[10].Optimized)
}

func TestProject_Floor(t *testing.T) {
	in := projection.Input{Age: 90, Score: 10, CigarettesPerDay: 100, AQI: 400, SleepHours: 3}
	p := projection.Project(in, projection.Interventions{})

	for _, point := range p.Points {
		assert.GreaterOrEqual(t, point.Baseline, projection.FloorFEV1)
	}
	assert.Equal(t, projection.FloorFEV1, p.Points[10].Baseline)
}

func TestInputFrom(t *testing.T) {
	q := risk.Normalize(risk.RawAnswers{
		"age":              52,
		"cigarettesPerDay": 12,
		"aqi":              88,
		"sleepHours":       6,
	})

	in := projection.InputFrom(q, 71)
	assert.Equal(t, projection.Input{Age: 52, Score: 71, CigarettesPerDay: 12, AQI: 88, SleepHours: 6}, in)
}
