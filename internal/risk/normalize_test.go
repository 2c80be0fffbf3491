package risk_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lungbuddy/lungbuddy/internal/risk"
)

func TestNormalize_Defaults(t *testing.T) {
	q := risk.Normalize(risk.RawAnswers{})

	assert.Equal(t, risk.SexMale, q.Sex)
	assert.Equal(t, risk.MinAge, q.Age)
	assert.Equal(t, risk.SmokingNever, q.Smoking)
	assert.Equal(t, risk.VapingNever, q.Vaping)
	assert.Equal(t, risk.AirQualityGood, q.IndoorAir)
	assert.Equal(t, risk.DefaultSleepHours, q.SleepHours)
	assert.Equal(t, risk.FrequencyNone, q.ExerciseFrequency)
	assert.Equal(t, risk.LocationOutdoor, q.ExerciseLocation)
	assert.Equal(t, risk.IntensityModerate, q.ExerciseIntensity)
	assert.Equal(t, risk.VentilationGood, q.GymVentilation)
	assert.Equal(t, risk.MaskNone, q.Mask)
	assert.Equal(t, risk.ExposureNone, q.Occupational)
	assert.Empty(t, q.Conditions)
	assert.Equal(t, risk.Symptoms{}, q.Symptoms)
}

func TestNormalize_Clamps(t *testing.T) {
	tests := []struct {
		name  string
		raw   risk.RawAnswers
		check func(t *testing.T, q risk.Questionnaire)
	}{
		{
			name: "age below minimum",
			raw:  risk.RawAnswers{"age": 3},
			check: func(t *testing.T, q risk.Questionnaire) {
				assert.Equal(t, 10.0, q.Age)
			},
		},
		{
			name: "age above maximum",
			raw:  risk.RawAnswers{"age": "200"},
			check: func(t *testing.T, q risk.Questionnaire) {
				assert.Equal(t, 120.0, q.Age)
			},
		},
		{
			name: "non numeric age",
			raw:  risk.RawAnswers{"age": "forty"},
			check: func(t *testing.T, q risk.Questionnaire) {
				assert.Equal(t, 10.0, q.Age)
			},
		},
		{
			name: "years smoked limited by age",
			raw:  risk.RawAnswers{"age": 30, "yearsSmoked": 80},
			check: func(t *testing.T, q risk.Questionnaire) {
				assert.Equal(t, 30.0, q.YearsSmoked)
			},
		},
		{
			name: "cigarettes limited",
			raw:  risk.RawAnswers{"cigarettesPerDay": 150},
			check: func(t *testing.T, q risk.Questionnaire) {
				assert.Equal(t, 100.0, q.CigarettesPerDay)
			},
		},
		{
			name: "negative cigarettes",
			raw:  risk.RawAnswers{"cigarettesPerDay": -4},
			check: func(t *testing.T, q risk.Questionnaire) {
				assert.Equal(t, 0.0, q.CigarettesPerDay)
			},
		},
		{
			name: "aqi bounds",
			raw:  risk.RawAnswers{"aqi": 900},
			check: func(t *testing.T, q risk.Questionnaire) {
				assert.Equal(t, 500.0, q.AQI)
			},
		},
		{
			name: "negative aqi",
			raw:  risk.RawAnswers{"aqi": -20},
			check: func(t *testing.T, q risk.Questionnaire) {
				assert.Equal(t, 0.0, q.AQI)
			},
		},
		{
			name: "outdoor and sleep hours",
			raw:  risk.RawAnswers{"outdoorDuration": 30, "sleepHours": 48},
			check: func(t *testing.T, q risk.Questionnaire) {
				assert.Equal(t, 24.0, q.OutdoorHours)
				assert.Equal(t, 24.0, q.SleepHours)
			},
		},
		{
			name: "blank sleep uses default",
			raw:  risk.RawAnswers{"sleepHours": ""},
			check: func(t *testing.T, q risk.Questionnaire) {
				assert.Equal(t, 7.0, q.SleepHours)
			},
		},
		{
			name: "json numbers",
			raw:  risk.RawAnswers{"age": json.Number("45"), "aqi": json.Number("87.5")},
			check: func(t *testing.T, q risk.Questionnaire) {
				assert.Equal(t, 45.0, q.Age)
				assert.Equal(t, 87.5, q.AQI)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, risk.Normalize(tt.raw))
		})
	}
}

func TestNormalize_Enumerations(t *testing.T) {
	q := risk.Normalize(risk.RawAnswers{
		"sex":                  " FEMALE ",
		"smoking":              "Yes",
		"vapingStatus":         "Current",
		"secondhandSmoke":      "yes",
		"medicalHistory":       []any{"Asthma", "ASTHMA", "flu", 12, "COPD"},
		"familyHistory":        "Mother - Lung Cancer",
		"asthmaOnset":          "Childhood",
		"indoorAirQuality":     "Poor",
		"exerciseFrequency":    "Daily",
		"exerciseLocation":     "Indoor Gym",
		"exerciseIntensity":    "Vigorous",
		"gymVentilation":       "Poor",
		"maskType":             "N95 / FFP2",
		"occupationalExposure": "High (construction)",
		"shortnessOfBreath":    true,
		"chronicCough":         "Yes",
		"wheezing":             "No",
		"chestTightness":       false,
		"recentInfection":      "yes",
	})

	assert.Equal(t, risk.SexFemale, q.Sex)
	assert.Equal(t, risk.SmokingCurrent, q.Smoking)
	assert.Equal(t, risk.VapingCurrent, q.Vaping)
	assert.True(t, q.SecondhandSmoke)
	assert.Equal(t, []risk.Condition{risk.ConditionAsthma, risk.ConditionCOPD}, q.Conditions)
	assert.Equal(t, "mother - lung cancer", q.FamilyHistory)
	assert.Equal(t, risk.AsthmaOnsetChildhood, q.AsthmaOnset)
	assert.Equal(t, risk.AirQualityPoor, q.IndoorAir)
	assert.Equal(t, risk.FrequencyDaily, q.ExerciseFrequency)
	assert.Equal(t, risk.LocationIndoorGym, q.ExerciseLocation)
	assert.Equal(t, risk.IntensityVigorous, q.ExerciseIntensity)
	assert.Equal(t, risk.VentilationPoor, q.GymVentilation)
	assert.Equal(t, risk.MaskN95, q.Mask)
	assert.Equal(t, risk.ExposureHigh, q.Occupational)
	assert.Equal(t, risk.Symptoms{
		ShortnessOfBreath: true,
		ChronicCough:      true,
		RecentInfection:   true,
	}, q.Symptoms)
}

func TestNormalize_FromJSON(t *testing.T) {
	body := `{
		"sex": "Female",
		"age": 34,
		"height": 165,
		"weight": 58,
		"smoking": "No",
		"medicalHistory": ["asthma"],
		"aqi": 112,
		"outdoorDuration": 2,
		"sleepHours": 6.5,
		"exerciseFrequency": "3-5x",
		"exerciseLocation": "outdoor",
		"exerciseIntensity": "light"
	}`

	var raw risk.RawAnswers
	require.NoError(t, json.Unmarshal([]byte(body), &raw))

	q := risk.Normalize(raw)
	assert.Equal(t, 34.0, q.Age)
	assert.Equal(t, 6.5, q.SleepHours)
	assert.Equal(t, risk.FrequencyFrequent, q.ExerciseFrequency)
	assert.Equal(t, risk.IntensityLight, q.ExerciseIntensity)
	assert.True(t, q.HasCondition(risk.ConditionAsthma))
	assert.False(t, q.HasCondition(risk.ConditionCOPD))
}

func TestParseExerciseFrequency(t *testing.T) {
	tests := map[string]risk.ExerciseFrequency{
		"":         risk.FrequencyNone,
		"None":     risk.FrequencyNone,
		"1-2x":     risk.FrequencyOccasional,
		"weekly":   risk.FrequencyOccasional,
		"3-5x":     risk.FrequencyFrequent,
		"frequent": risk.FrequencyFrequent,
		"Daily":    risk.FrequencyDaily,
	}

	for input, expected := range tests {
		assert.Equal(t, expected, risk.ParseExerciseFrequency(input), "input=%q", input)
	}
}
