package leaderboard

import (
	"sort"
	"time"

	"github.com/lungbuddy/lungbuddy/pkg/round"
)

// ImprovementPct returns how much of the remaining headroom to a perfect score
// was gained between the first and latest score, as a percentage with one
// decimal. A member whose first score was already 100 has no headroom and gets 0.
func ImprovementPct(first, latest int) float64 {
	headroom := 100 - first
	if headroom <= 0 {
		return 0
	}
	pct := (float64(latest-first) / float64(headroom)) * 100
	return round.HalfUp(pct*10) / 10
}

// Streak counts consecutive calendar days with at least one submission. The
// streak is only alive when the latest submission day is today or yesterday.
func Streak(submittedAt []time.Time, now time.Time, loc *time.Location) int {
	if len(submittedAt) == 0 {
		return 0
	}
	if loc == nil {
		loc = time.UTC
	}

	seen := make(map[time.Time]bool, len(submittedAt))
	days := make([]time.Time, 0, len(submittedAt))
	for _, ts := range submittedAt {
		d := startOfDay(ts, loc)
		if !seen[d] {
			seen[d] = true
			days = append(days, d)
		}
	}
	sort.Slice(days, func(i, j int) bool { return days[i].After(days[j]) })

	today := startOfDay(now, loc)
	if days[0].Before(today.AddDate(0, 0, -1)) {
		return 0
	}

	streak := 1
	for i := 1; i < len(days); i++ {
		if !days[i].AddDate(0, 0, 1).Equal(days[i-1]) {
			break
		}
		streak++
	}
	return streak
}

// Rank orders members by improvement, highest first. Members without an
// improvement yet are placed last; ties keep their join order.
func Rank(members []*Member) []*Member {
	ranked := make([]*Member, len(members))
	copy(ranked, members)

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i].ImprovementPct, ranked[j].ImprovementPct
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return *a > *b
		}
	})
	return ranked
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
