package health

import (
	"math"
	"time"
)

// Weights of each sub-score in the overall score.
const (
	WeightMaintenance = 0.4
	WeightPopularity  = 0.2
	WeightActivity    = 0.2
	WeightSecurity    = 0.2
)

// NeutralMaintenance is used when the last-modified timestamp is missing.
const NeutralMaintenance = 50

var severityPenalty = map[Severity]int{
	SeverityCritical: 40,
	SeverityHigh:     25,
	SeverityModerate: 10,
	SeverityLow:      5,
}

// unknownSeverityPenalty applies to severities outside the known four.
const unknownSeverityPenalty = 5

// round rounds half up, so 0.5 -> 1 and -0.5 -> 0.
func round(x float64) int {
	return int(math.Floor(x + 0.5))
}

// GetLevel buckets an overall score. Zero means "no signal", not "worst".
func GetLevel(score int) Level {
	switch {
	case score >= 70:
		return LevelHealthy
	case score >= 40:
		return LevelWarning
	case score > 0:
		return LevelCritical
	default:
		return LevelUnknown
	}
}

// Overall combines a breakdown with the fixed weights.
func Overall(b Breakdown) int {
	return round(float64(b.Maintenance)*WeightMaintenance +
		float64(b.Popularity)*WeightPopularity +
		float64(b.Activity)*WeightActivity +
		float64(b.Security)*WeightSecurity)
}

// MaintenanceScore scores recency of the last publish, given whole days
// elapsed. Each band interpolates linearly:
//
//	<= 30d      100
//	30..90d     100 -> 80
//	90..180d     80 -> 50
//	180..365d    50 -> 20
//	> 365d       20 -> 0 over the following year, floored at 0
func MaintenanceScore(days int) int {
	d := float64(days)
	switch {
	case days <= 30:
		return 100
	case days <= 90:
		return round(100 - (d-30)/60*20)
	case days <= 180:
		return round(80 - (d-90)/90*30)
	case days <= 365:
		return round(50 - (d-180)/185*30)
	default:
		return max(0, round(20-(d-365)/365*20))
	}
}

// maintenanceFromModified scores an RFC 3339 last-modified timestamp.
// A missing or unparseable timestamp is neutral.
func maintenanceFromModified(modified string, now time.Time) int {
	if modified == "" {
		return NeutralMaintenance
	}
	t, err := time.Parse(time.RFC3339, modified)
	if err != nil {
		return NeutralMaintenance
	}
	days := int(math.Floor(now.Sub(t).Hours() / 24))
	return MaintenanceScore(days)
}

// PopularityScore maps weekly downloads onto a log scale: 100 downloads is
// 40, a million is 100.
func PopularityScore(weekly int64) int {
	switch {
	case weekly <= 0:
		return 0
	case weekly < 10:
		return 10
	default:
		return min(100, round(math.Log10(float64(weekly))*20))
	}
}

// ActivityScore rewards closing issues. Without repository data it falls
// back to the analysis API's own maintenance sub-score.
func ActivityScore(a AnalysisData) int {
	gh := a.GitHub
	if gh == nil {
		return round(a.Maintenance * 100)
	}
	if gh.Total == 0 {
		return 50
	}

	ratio := float64(gh.Total-gh.Open) / float64(gh.Total)
	bonus := 0.0
	if gh.Total > 10 {
		bonus = 10
	}
	return min(100, round(ratio*90+bonus))
}

// SecurityScore starts at 100 and subtracts a penalty per advisory.
func SecurityScore(vulns []Vulnerability) int {
	score := 100
	for _, v := range vulns {
		p, ok := severityPenalty[v.Severity]
		if !ok {
			p = unknownSeverityPenalty
		}
		score -= p
	}
	return max(0, score)
}

// Compute derives a Score from optional registry metadata fields and
// analysis data. modified is the package's last-modified timestamp, empty
// when metadata was unavailable.
func Compute(modified string, a AnalysisData, now time.Time) Score {
	b := Breakdown{
		Maintenance: maintenanceFromModified(modified, now),
		Popularity:  PopularityScore(a.WeeklyDownloads),
		Activity:    ActivityScore(a),
		Security:    SecurityScore(a.Vulnerabilities),
	}
	overall := Overall(b)

	s := Score{
		Overall:         overall,
		Level:           GetLevel(overall),
		Breakdown:       b,
		Vulnerabilities: a.Vulnerabilities,
		LastPublish:     modified,
		WeeklyDownloads: a.WeeklyDownloads,
	}
	if s.Vulnerabilities == nil {
		s.Vulnerabilities = []Vulnerability{}
	}
	if a.GitHub != nil {
		s.OpenIssues = a.GitHub.Open
		s.ClosedIssues = a.GitHub.Total - a.GitHub.Open
	}
	return s
}
