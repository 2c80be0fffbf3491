package risk

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// RawAnswers is a loosely typed questionnaire as submitted by clients, keyed by
// field name. Values may be strings, numbers, booleans or lists.
type RawAnswers map[string]any

// Field names accepted in RawAnswers.
const (
	FieldSex                  = "sex"
	FieldAge                  = "age"
	FieldHeight               = "height"
	FieldWeight               = "weight"
	FieldSmoking              = "smoking"
	FieldCigarettesPerDay     = "cigarettesPerDay"
	FieldYearsSmoked          = "yearsSmoked"
	FieldVapingStatus         = "vapingStatus"
	FieldSecondhandSmoke      = "secondhandSmoke"
	FieldMedicalHistory       = "medicalHistory"
	FieldFamilyHistory        = "familyHistory"
	FieldAsthmaOnset          = "asthmaOnset"
	FieldIndoorAirQuality     = "indoorAirQuality"
	FieldAQI                  = "aqi"
	FieldOutdoorDuration      = "outdoorDuration"
	FieldSleepHours           = "sleepHours"
	FieldBreathHoldSeconds    = "breathHoldSeconds"
	FieldExerciseFrequency    = "exerciseFrequency"
	FieldExerciseLocation     = "exerciseLocation"
	FieldExerciseIntensity    = "exerciseIntensity"
	FieldGymVentilation       = "gymVentilation"
	FieldMaskType             = "maskType"
	FieldOccupationalExposure = "occupationalExposure"
	FieldShortnessOfBreath    = "shortnessOfBreath"
	FieldChronicCough         = "chronicCough"
	FieldWheezing             = "wheezing"
	FieldChestTightness       = "chestTightness"
	FieldRecentInfection      = "recentInfection"
)

// Clamp bounds applied during normalization.
const (
	MinAge              = 10.0
	MaxAge              = 120.0
	MaxCigarettesPerDay = 100.0
	MaxAQI              = 500.0
	MaxHoursPerDay      = 24.0
	DefaultSleepHours   = 7.0
)

// Normalize converts raw answers into a Questionnaire. It never fails: missing or
// malformed values fall back to defaults and numbers are clamped to range.
func Normalize(raw RawAnswers) Questionnaire {
	age := clamp(raw.number(FieldAge), MinAge, MaxAge)

	sleep := raw.number(FieldSleepHours)
	if sleep == 0 {
		// Zero is treated as unanswered.
		sleep = DefaultSleepHours
	}

	return Questionnaire{
		Sex:      ParseSex(raw.text(FieldSex)),
		Age:      age,
		HeightCM: raw.number(FieldHeight),
		WeightKG: raw.number(FieldWeight),

		Smoking:          parseSmoking(raw[FieldSmoking]),
		CigarettesPerDay: clamp(raw.number(FieldCigarettesPerDay), 0, MaxCigarettesPerDay),
		YearsSmoked:      clamp(raw.number(FieldYearsSmoked), 0, age),
		Vaping:           ParseVaping(raw.text(FieldVapingStatus)),
		SecondhandSmoke:  raw.flag(FieldSecondhandSmoke),

		Conditions:    parseConditions(raw[FieldMedicalHistory]),
		FamilyHistory: strings.ToLower(raw.text(FieldFamilyHistory)),
		AsthmaOnset:   ParseAsthmaOnset(raw.text(FieldAsthmaOnset)),

		IndoorAir:         ParseAirQuality(raw.text(FieldIndoorAirQuality)),
		AQI:               clamp(raw.number(FieldAQI), 0, MaxAQI),
		OutdoorHours:      clamp(raw.number(FieldOutdoorDuration), 0, MaxHoursPerDay),
		SleepHours:        clamp(sleep, 0, MaxHoursPerDay),
		BreathHoldSeconds: raw.number(FieldBreathHoldSeconds),

		ExerciseFrequency: ParseExerciseFrequency(raw.text(FieldExerciseFrequency)),
		ExerciseLocation:  ParseExerciseLocation(raw.text(FieldExerciseLocation)),
		ExerciseIntensity: ParseIntensity(raw.text(FieldExerciseIntensity)),
		GymVentilation:    ParseVentilation(raw.text(FieldGymVentilation)),

		Mask:         ParseMaskType(raw.text(FieldMaskType)),
		Occupational: ParseExposure(raw.text(FieldOccupationalExposure)),

		Symptoms: Symptoms{
			ShortnessOfBreath: raw.flag(FieldShortnessOfBreath),
			ChronicCough:      raw.flag(FieldChronicCough),
			Wheezing:          raw.flag(FieldWheezing),
			ChestTightness:    raw.flag(FieldChestTightness),
			RecentInfection:   raw.flag(FieldRecentInfection),
		},
	}
}

// ParseSex maps free text to a Sex, defaulting to male.
func ParseSex(s string) Sex {
	switch fold(s) {
	case "female":
		return SexFemale
	case "other":
		return SexOther
	default:
		return SexMale
	}
}

// ParseVaping maps free text to a VapingStatus.
func ParseVaping(s string) VapingStatus {
	if fold(s) == "current" {
		return VapingCurrent
	}
	return VapingNever
}

// ParseAsthmaOnset maps free text to an AsthmaOnset.
func ParseAsthmaOnset(s string) AsthmaOnset {
	switch fold(s) {
	case "childhood":
		return AsthmaOnsetChildhood
	case "late":
		return AsthmaOnsetLate
	default:
		return AsthmaOnsetUnknown
	}
}

// ParseAirQuality maps free text to an AirQuality, defaulting to good.
func ParseAirQuality(s string) AirQuality {
	switch fold(s) {
	case "poor":
		return AirQualityPoor
	case "moderate":
		return AirQualityModerate
	default:
		return AirQualityGood
	}
}

// ParseExerciseFrequency maps labels such as "None", "1-2x", "3-5x" or "Daily".
func ParseExerciseFrequency(s string) ExerciseFrequency {
	v := fold(s)
	switch {
	case v == "" || v == "none":
		return FrequencyNone
	case strings.Contains(v, "daily"):
		return FrequencyDaily
	case strings.Contains(v, "3-5") || v == string(FrequencyFrequent):
		return FrequencyFrequent
	default:
		return FrequencyOccasional
	}
}

// ParseExerciseLocation treats anything mentioning indoor or gym as an indoor gym.
func ParseExerciseLocation(s string) ExerciseLocation {
	v := fold(s)
	if strings.Contains(v, "indoor") || strings.Contains(v, "gym") {
		return LocationIndoorGym
	}
	return LocationOutdoor
}

// ParseIntensity maps free text to an Intensity, defaulting to moderate when empty.
func ParseIntensity(s string) Intensity {
	v := fold(s)
	switch {
	case v == "":
		return IntensityModerate
	case strings.Contains(v, "vigorous"):
		return IntensityVigorous
	case strings.Contains(v, "moderate"):
		return IntensityModerate
	default:
		return IntensityLight
	}
}

// ParseVentilation maps free text to a Ventilation, defaulting to good when empty.
func ParseVentilation(s string) Ventilation {
	switch fold(s) {
	case "", "good":
		return VentilationGood
	default:
		return VentilationPoor
	}
}

// ParseMaskType matches labels such as "N95 / FFP2" by substring.
func ParseMaskType(s string) MaskType {
	v := fold(s)
	switch {
	case strings.Contains(v, "n95"):
		return MaskN95
	case strings.Contains(v, "surgical"):
		return MaskSurgical
	case strings.Contains(v, "cloth"):
		return MaskCloth
	default:
		return MaskNone
	}
}

// ParseExposure matches occupational exposure labels by substring.
func ParseExposure(s string) Exposure {
	v := fold(s)
	switch {
	case strings.Contains(v, "high"):
		return ExposureHigh
	case strings.Contains(v, "moderate"):
		return ExposureModerate
	default:
		return ExposureNone
	}
}

func parseSmoking(v any) SmokingStatus {
	switch t := v.(type) {
	case bool:
		if t {
			return SmokingCurrent
		}
	case string:
		switch fold(t) {
		case "yes", "current":
			return SmokingCurrent
		}
	}
	return SmokingNever
}

func parseConditions(v any) []Condition {
	var items []string
	switch t := v.(type) {
	case []string:
		items = t
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok {
				items = append(items, s)
			}
		}
	}

	conditions := make([]Condition, 0, len(items))
	seen := make(map[Condition]bool, len(items))
	for _, item := range items {
		c := Condition(fold(item))
		switch c {
		case ConditionAsthma, ConditionTB, ConditionCOPD:
		default:
			continue
		}
		if seen[c] {
			continue
		}
		seen[c] = true
		conditions = append(conditions, c)
	}
	return conditions
}

func (r RawAnswers) text(key string) string {
	s, _ := r[key].(string)
	return s
}

// flag is true for boolean true or the answer "Yes".
func (r RawAnswers) flag(key string) bool {
	switch t := r[key].(type) {
	case bool:
		return t
	case string:
		return strings.EqualFold(strings.TrimSpace(t), "yes")
	}
	return false
}

// number coerces a value to a finite float64. Anything non-numeric is 0.
func (r RawAnswers) number(key string) float64 {
	var f float64
	switch t := r[key].(type) {
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int32:
		f = float64(t)
	case int64:
		f = float64(t)
	case json.Number:
		f, _ = t.Float64()
	case bool:
		if t {
			f = 1
		}
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0
		}
		f = parsed
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

func fold(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
