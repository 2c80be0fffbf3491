package airquality

import "github.com/lungbuddy/lungbuddy/pkg/round"

type breakpoint struct {
	cLow, cHigh float64
	iLow, iHigh float64
}

// US EPA PM2.5 breakpoints in µg/m³.
var pm25Breakpoints = []breakpoint{
	{0.0, 12.0, 0, 50},
	{12.1, 35.4, 51, 100},
	{35.5, 55.4, 101, 150},
	{55.5, 150.4, 151, 200},
	{150.5, 250.4, 201, 300},
	{250.5, 350.4, 301, 400},
	{350.5, 500.4, 401, 500},
}

// MaxAQI is returned for concentrations beyond the last breakpoint.
const MaxAQI = 500

// FromPM25 converts a PM2.5 concentration to the US EPA AQI by linear
// interpolation within its breakpoint. Negative concentrations count as zero.
func FromPM25(pm25 float64) int {
	c := pm25
	if c < 0 {
		c = 0
	}
	for _, bp := range pm25Breakpoints {
		if c <= bp.cHigh {
			aqi := (bp.iHigh-bp.iLow)/(bp.cHigh-bp.cLow)*(c-bp.cLow) + bp.iLow
			return int(round.HalfUp(aqi))
		}
	}
	return MaxAQI
}

var indexAQI = map[int]int{1: 25, 2: 75, 3: 125, 4: 200, 5: 350}

// DefaultIndexAQI is used for provider index values outside 1-5.
const DefaultIndexAQI = 100

// FromIndex maps a provider 1-5 index to a representative AQI.
func FromIndex(index int) int {
	if aqi, ok := indexAQI[index]; ok {
		return aqi
	}
	return DefaultIndexAQI
}

// FromPollution derives the AQI from PM2.5 when present, otherwise from the index.
func FromPollution(p *Pollution) (int, Source) {
	if p.PM25 != nil {
		return FromPM25(*p.PM25), SourcePM25
	}
	return FromIndex(p.Index), SourceIndex
}

// Category returns the descriptive band of an AQI value.
func Category(aqi int) string {
	switch {
	case aqi <= 50:
		return "Good"
	case aqi <= 100:
		return "Moderate"
	case aqi <= 200:
		return "Unhealthy"
	case aqi <= 300:
		return "Very Unhealthy"
	default:
		return "Hazardous"
	}
}
