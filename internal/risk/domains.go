package risk

import (
	"math"
	"strings"
)

// Biological scores age, BMI and family history.
func Biological(q Questionnaire) float64 {
	var raw float64

	if q.Age > 40 {
		raw += math.Min(9, (q.Age-40)*0.19)
	}

	switch bmi := q.BMI(); {
	case bmi < 18.5:
		raw += 4
	case bmi > 35:
		raw += 4
	case bmi >= 25 && bmi <= 30:
		// Mild obesity is scored as slightly protective.
		raw--
	}

	if family := strings.ToLower(q.FamilyHistory); family == "yes" || strings.Contains(family, "lung") {
		raw += 2
	}

	return clamp(raw, 0, MaxBiological)
}

// BMI returns weight / height² in kg/m², or a neutral 22 when height is unknown.
func (q Questionnaire) BMI() float64 {
	heightM := q.HeightCM / 100
	if heightM <= 0 {
		return 22
	}
	return q.WeightKG / (heightM * heightM)
}

// PackYears returns cigarettes per day / 20 × years smoked.
func (q Questionnaire) PackYears() float64 {
	return (q.CigarettesPerDay / 20) * q.YearsSmoked
}

// Behavioral scores smoking, vaping and secondhand smoke.
func Behavioral(q Questionnaire) float64 {
	var raw float64

	if packYears := q.PackYears(); packYears > 0 {
		raw += 6.5 * math.Log(packYears+1)
	}

	if q.Vaping == VapingCurrent {
		raw += 4
	}

	if q.Smoking == SmokingCurrent && q.Vaping == VapingCurrent {
		raw *= 1.5
	}

	if q.SecondhandSmoke && q.Smoking != SmokingCurrent {
		raw += 4
	}

	return math.Min(raw, MaxBehavioral)
}

var (
	occupationalMultiplier = map[Exposure]float64{
		ExposureNone:     1.0,
		ExposureModerate: 1.3,
		ExposureHigh:     1.6,
	}
	maskMultiplier = map[MaskType]float64{
		MaskNone:     1.0,
		MaskCloth:    0.9,
		MaskSurgical: 0.8,
		MaskN95:      0.5,
	}
	ventilationMultiplier = map[Intensity]float64{
		IntensityLight:    2,
		IntensityModerate: 4,
		IntensityVigorous: 8,
	}
	aerobicOffset = map[Intensity]float64{
		IntensityLight:    1,
		IntensityModerate: 3,
		IntensityVigorous: 5,
	}
	indoorAirPenalty = map[AirQuality]float64{
		AirQualityGood:     0,
		AirQualityModerate: 6,
		AirQualityPoor:     12,
	}
)

// Environmental scores outdoor exposure, exercise dose and indoor air.
// The result is capped at MaxEnvironmental but has no lower bound: a strong
// exercise benefit may drive it negative.
func Environmental(q Questionnaire) float64 {
	passive := q.OutdoorHours * (q.AQI / 50)
	passive *= multiplier(occupationalMultiplier, q.Occupational)
	passive *= multiplier(maskMultiplier, q.Mask)

	raw := (passive + ExerciseNet(q)) / 2.2
	raw += indoorAirPenalty[q.IndoorAir]

	return math.Min(raw, MaxEnvironmental)
}

// ExerciseNet returns the inhaled exercise dose minus the aerobic offset.
// It is zero when the subject does not exercise.
func ExerciseNet(q Questionnaire) float64 {
	if q.ExerciseFrequency == FrequencyNone {
		return 0
	}

	duration := 0.5
	switch q.ExerciseFrequency {
	case FrequencyDaily:
		duration = 1.0
	case FrequencyFrequent:
		duration = 0.7
	}

	intensity := q.ExerciseIntensity
	if _, ok := ventilationMultiplier[intensity]; !ok {
		intensity = IntensityLight
	}

	inhaled := duration * ventilationMultiplier[intensity] * (EffectiveConcentration(q) / 50)
	return inhaled - aerobicOffset[intensity]
}

// EffectiveConcentration returns the AQI-equivalent concentration breathed
// while exercising. A well ventilated gym is fixed at 20 regardless of outdoor air.
func EffectiveConcentration(q Questionnaire) float64 {
	if q.ExerciseLocation != LocationIndoorGym {
		return q.AQI
	}
	if q.GymVentilation == VentilationGood {
		return 20
	}
	return math.Max(q.AQI*0.9, 50)
}

// Sleep scores sleep duration, amplified for COPD and asthma.
func Sleep(q Questionnaire) float64 {
	var raw float64

	switch t := q.SleepHours; {
	case t < 5:
		raw = 10
	case t < 6:
		raw = 7
	case t < 7:
		raw = 3
	case t > 9:
		raw = 3
	}

	if raw > 0 && (q.HasCondition(ConditionCOPD) || q.HasCondition(ConditionAsthma)) {
		raw *= 1.3
	}

	return clamp(raw, 0, MaxSleep)
}

// Disease scores diagnosed conditions and symptoms. Symptoms already explained
// by a diagnosed condition are not counted again.
func Disease(q Questionnaire) float64 {
	copd := q.HasCondition(ConditionCOPD)
	asthma := q.HasCondition(ConditionAsthma)
	tb := q.HasCondition(ConditionTB)

	var raw float64
	switch {
	case copd:
		raw = 10
	case asthma:
		raw = 7
	case tb:
		raw = 8
	}

	s := q.Symptoms
	if s.ShortnessOfBreath && !(copd || asthma) {
		raw += 4
	}
	if s.ChronicCough && !(copd || tb) {
		raw += 3
	}
	if s.Wheezing && !asthma {
		raw += 3
	}
	if s.ChestTightness && !asthma {
		raw += 3
	}

	// Acute infections are never suppressed.
	if s.RecentInfection {
		raw += 5
	}

	if q.BreathHoldSeconds > 0 && q.BreathHoldSeconds < BreathHoldThreshold(q.Sex) {
		raw += 3
	}

	return clamp(raw, 0, MaxDisease)
}

// BreathHoldThreshold returns the breath-hold duration in seconds below which
// lung function is penalized.
func BreathHoldThreshold(sex Sex) float64 {
	if sex == SexFemale {
		return 20
	}
	return 25
}

func multiplier[K comparable](table map[K]float64, key K) float64 {
	if m, ok := table[key]; ok {
		return m
	}
	return 1
}
