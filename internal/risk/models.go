// Package risk implements the lung health risk engine.
//
// A raw questionnaire is normalized into a Questionnaire, five independent domain
// calculators turn it into damage points and the aggregator converts the total
// damage into a 0-100 score with a label.
package risk

// Sex is the biological sex used for sex-specific thresholds.
type Sex string

const (
	SexMale   Sex = "male"
	SexFemale Sex = "female"
	SexOther  Sex = "other"
)

// SmokingStatus is the active smoking status.
type SmokingStatus string

const (
	SmokingNever   SmokingStatus = "never"
	SmokingCurrent SmokingStatus = "current"
)

// VapingStatus is the active vaping status.
type VapingStatus string

const (
	VapingNever   VapingStatus = "never"
	VapingCurrent VapingStatus = "current"
)

// Condition is a diagnosed respiratory condition.
type Condition string

const (
	ConditionAsthma Condition = "asthma"
	ConditionTB     Condition = "tb"
	ConditionCOPD   Condition = "copd"
)

// AsthmaOnset is informational and does not affect scoring.
type AsthmaOnset string

const (
	AsthmaOnsetUnknown   AsthmaOnset = ""
	AsthmaOnsetChildhood AsthmaOnset = "childhood"
	AsthmaOnsetLate      AsthmaOnset = "late"
)

// AirQuality is a coarse indoor air quality rating.
type AirQuality string

const (
	AirQualityGood     AirQuality = "good"
	AirQualityModerate AirQuality = "moderate"
	AirQualityPoor     AirQuality = "poor"
)

// ExerciseFrequency is how often the subject exercises.
type ExerciseFrequency string

const (
	FrequencyNone       ExerciseFrequency = "none"
	FrequencyOccasional ExerciseFrequency = "occasional"
	FrequencyFrequent   ExerciseFrequency = "frequent"
	FrequencyDaily      ExerciseFrequency = "daily"
)

// ExerciseLocation is where the subject exercises.
type ExerciseLocation string

const (
	LocationOutdoor   ExerciseLocation = "outdoor"
	LocationIndoorGym ExerciseLocation = "indoor_gym"
)

// Intensity is the exercise intensity.
type Intensity string

const (
	IntensityLight    Intensity = "light"
	IntensityModerate Intensity = "moderate"
	IntensityVigorous Intensity = "vigorous"
)

// Ventilation is the gym ventilation quality.
type Ventilation string

const (
	VentilationGood Ventilation = "good"
	VentilationPoor Ventilation = "poor"
)

// MaskType is the respiratory protection worn outdoors.
type MaskType string

const (
	MaskNone     MaskType = "none"
	MaskCloth    MaskType = "cloth"
	MaskSurgical MaskType = "surgical"
	MaskN95      MaskType = "n95"
)

// Exposure is the occupational dust or fume exposure level.
type Exposure string

const (
	ExposureNone     Exposure = "none"
	ExposureModerate Exposure = "moderate"
	ExposureHigh     Exposure = "high"
)

// Symptoms holds the self-reported respiratory symptoms.
type Symptoms struct {
	ShortnessOfBreath bool `json:"shortnessOfBreath"`
	ChronicCough      bool `json:"chronicCough"`
	Wheezing          bool `json:"wheezing"`
	ChestTightness    bool `json:"chestTightness"`
	RecentInfection   bool `json:"recentInfection"`
}

// Questionnaire is a normalized questionnaire. Every numeric field is already
// clamped to its valid range and every categorical field holds a known value.
type Questionnaire struct {
	Sex      Sex     `json:"sex"`
	Age      float64 `json:"age"`
	HeightCM float64 `json:"heightCm"`
	WeightKG float64 `json:"weightKg"`

	Smoking          SmokingStatus `json:"smoking"`
	CigarettesPerDay float64       `json:"cigarettesPerDay"`
	YearsSmoked      float64       `json:"yearsSmoked"`
	Vaping           VapingStatus  `json:"vapingStatus"`
	SecondhandSmoke  bool          `json:"secondhandSmoke"`

	Conditions    []Condition `json:"conditions"`
	FamilyHistory string      `json:"familyHistory"`
	AsthmaOnset   AsthmaOnset `json:"asthmaOnset,omitempty"`

	IndoorAir         AirQuality `json:"indoorAirQuality"`
	AQI               float64    `json:"aqi"`
	OutdoorHours      float64    `json:"outdoorDuration"`
	SleepHours        float64    `json:"sleepHours"`
	BreathHoldSeconds float64    `json:"breathHoldSeconds"`

	ExerciseFrequency ExerciseFrequency `json:"exerciseFrequency"`
	ExerciseLocation  ExerciseLocation  `json:"exerciseLocation"`
	ExerciseIntensity Intensity         `json:"exerciseIntensity"`
	GymVentilation    Ventilation       `json:"gymVentilation"`

	Mask         MaskType `json:"maskType"`
	Occupational Exposure `json:"occupationalExposure"`

	Symptoms Symptoms `json:"symptoms"`
}

// HasCondition reports whether the condition was diagnosed.
func (q Questionnaire) HasCondition(c Condition) bool {
	for _, have := range q.Conditions {
		if have == c {
			return true
		}
	}
	return false
}

// Label is the risk label derived from the score.
type Label string

const (
	LabelOptimal  Label = "Optimal"
	LabelGood     Label = "Good"
	LabelModerate Label = "Moderate"
	LabelHigh     Label = "High Risk"
	LabelCritical Label = "Critical"
)

// Domain maximums in damage points.
const (
	MaxBiological    = 15.0
	MaxBehavioral    = 25.0
	MaxEnvironmental = 35.0
	MaxSleep         = 10.0
	MaxDisease       = 15.0
	MaxTotalDamage   = 100.0
)

// Breakdown holds each domain's damage rounded to one decimal.
type Breakdown struct {
	Biological    float64 `json:"biological"`
	Behavioral    float64 `json:"behavioral"`
	Environmental float64 `json:"environmental"`
	Sleep         float64 `json:"sleep"`
	Disease       float64 `json:"disease"`
	TotalDamage   float64 `json:"totalDamage"`
}

// Result is the output of a single scoring call.
type Result struct {
	Score     int       `json:"score"`
	Label     Label     `json:"label"`
	Breakdown Breakdown `json:"breakdown"`
}
