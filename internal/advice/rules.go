// Package advice turns a scored questionnaire into recommendations, either
// from fixed rules or from a language model, and produces coaching insights
// for leaderboard rooms.
package advice

import (
	"fmt"
	"strconv"

	"github.com/lungbuddy/lungbuddy/internal/risk"
)

// Category groups recommendations.
type Category string

const (
	CategoryStatus      Category = "Status"
	CategoryUrgent      Category = "Urgent"
	CategoryProtection  Category = "Protection"
	CategoryLifestyle   Category = "Lifestyle"
	CategoryMedical     Category = "Medical"
	CategoryEnvironment Category = "Environment"
)

// Recommendation is a single piece of advice.
type Recommendation struct {
	Text     string   `json:"text"`
	Category Category `json:"category"`
	Priority int      `json:"priority,omitempty"`
}

// MinRecommendations is the minimum number of rule-based recommendations.
const MinRecommendations = 2

// Rules returns rule-based recommendations for a scored questionnaire. The
// first item always describes the overall status.
func Rules(q risk.Questionnaire, result risk.Result) []Recommendation {
	var recs []Recommendation
	add := func(c Category, text string) {
		recs = append(recs, Recommendation{Text: text, Category: c})
	}

	smoker := q.Smoking == risk.SmokingCurrent
	vaper := q.Vaping == risk.VapingCurrent

	switch {
	case result.Score >= 75:
		add(CategoryStatus, "Great work! Your lungs are in healthy condition, maintain your current habits")
	case result.Score >= 50:
		add(CategoryStatus, "Your lung health needs attention, monitor regularly and address key risk factors below")
	default:
		add(CategoryUrgent, "Consult a pulmonologist for a detailed checkup, your risk level is significant")
	}

	if smoker {
		add(CategoryUrgent, fmt.Sprintf("Quit smoking: at %s cigs/day, this is your most impactful reversible factor", num(q.CigarettesPerDay)))
	}
	if vaper {
		add(CategoryUrgent, "Stop vaping: e-cigarette aerosols cause airway inflammation and EVALI risk")
	}
	if q.SecondhandSmoke && !smoker {
		add(CategoryProtection, "Avoid secondhand smoke exposure, it contributes to passive lung damage")
	}

	switch {
	case q.AQI > 150:
		add(CategoryProtection, fmt.Sprintf("Your area AQI is %s (hazardous), always wear an N95 mask outdoors", num(q.AQI)))
	case q.AQI > 100 && q.Mask == risk.MaskNone:
		add(CategoryProtection, fmt.Sprintf("AQI %s is unhealthy, consider wearing a mask on high pollution days", num(q.AQI)))
	}
	if q.OutdoorHours > 6 && q.AQI > 100 {
		add(CategoryProtection, fmt.Sprintf("%sh outdoors at AQI %s is very high exposure, reduce outdoor time during peak hours", num(q.OutdoorHours), num(q.AQI)))
	}
	if q.IndoorAir == risk.AirQualityPoor {
		add(CategoryEnvironment, "Install an air purifier at home: poor indoor air causes 3.8M deaths/year (WHO)")
	}
	if q.Occupational == risk.ExposureHigh {
		add(CategoryProtection, "Use respiratory PPE at work, high occupational dust/fume exposure adds significant risk")
	}

	switch {
	case q.SleepHours < 6:
		add(CategoryLifestyle, fmt.Sprintf("You sleep %sh, aim for 7-8h. Short sleep increases respiratory infection risk by 4.2×", num(q.SleepHours)))
	case q.SleepHours > 9:
		add(CategoryLifestyle, fmt.Sprintf("%sh sleep is elevated, long sleep is linked to restrictive lung defects (OR 1.8)", num(q.SleepHours)))
	}

	if q.HasCondition(risk.ConditionCOPD) {
		add(CategoryMedical, "Schedule regular pulmonologist visits for COPD management and spirometry monitoring")
	}
	if q.HasCondition(risk.ConditionAsthma) {
		add(CategoryMedical, "Keep rescue inhaler accessible and track your asthma triggers consistently")
	}
	if q.HasCondition(risk.ConditionTB) {
		add(CategoryMedical, "Complete TB treatment protocol fully and watch for night sweats or weight loss (reactivation signs)")
	}

	switch {
	case q.ExerciseFrequency == risk.FrequencyNone:
		add(CategoryLifestyle, "Start light cardiovascular exercise, even 20 min of walking improves lung capacity")
	case q.AQI <= 80:
		add(CategoryLifestyle, "Your air quality supports outdoor exercise, keep up your routine for aerobic benefit")
	}

	b := result.Breakdown
	if b.Environmental > 15 {
		add(CategoryEnvironment, "Environmental exposure is your top risk driver, prioritize air quality improvements")
	}
	if b.Behavioral > 10 && !smoker && !vaper {
		add(CategoryLifestyle, "Behavioral factors are impacting your score, review secondhand smoke and lifestyle habits")
	}

	if len(recs) < MinRecommendations {
		add(CategoryLifestyle, "Continue your healthy habits and reassess periodically")
	}

	return recs
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
