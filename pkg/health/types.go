package health

// Level buckets an overall score.
type Level string

const (
	LevelHealthy  Level = "healthy"
	LevelWarning  Level = "warning"
	LevelCritical Level = "critical"
	LevelUnknown  Level = "unknown"
)

// Levels lists every level, best first.
var Levels = []Level{LevelHealthy, LevelWarning, LevelCritical, LevelUnknown}

// Severity of a published advisory.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityModerate Severity = "moderate"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Vulnerability is one advisory affecting a package.
type Vulnerability struct {
	ID       string   `json:"id"`
	Severity Severity `json:"severity"`
	Title    string   `json:"title"`
	URL      string   `json:"url,omitempty"`
}

// Breakdown holds the four sub-scores, each in [0,100].
type Breakdown struct {
	Maintenance int `json:"maintenance"`
	Popularity  int `json:"popularity"`
	Activity    int `json:"activity"`
	Security    int `json:"security"`
}

// Score is the composite health of a package.
type Score struct {
	Overall         int             `json:"overall"`
	Level           Level           `json:"level"`
	Breakdown       Breakdown       `json:"breakdown"`
	Vulnerabilities []Vulnerability `json:"vulnerabilities"`
	LastPublish     string          `json:"lastPublish"`
	WeeklyDownloads int64           `json:"weeklyDownloads"`
	OpenIssues      int             `json:"openIssues"`
	ClosedIssues    int             `json:"closedIssues"`
}

// EmptyScore is the zero-signal score carried by circular and error nodes.
func EmptyScore() Score {
	return Score{
		Level:           LevelUnknown,
		Vulnerabilities: []Vulnerability{},
	}
}

// GitHubIssues are the repository issue counts the analysis API collected.
type GitHubIssues struct {
	Open  int `json:"openCount"`
	Total int `json:"totalCount"`
}

// AnalysisData are the signals the analysis API reports for one package.
// Score and the three sub-scores are in [0,1].
type AnalysisData struct {
	Score           float64         `json:"score"`
	Quality         float64         `json:"quality"`
	Popularity      float64         `json:"popularity"`
	Maintenance     float64         `json:"maintenance"`
	WeeklyDownloads int64           `json:"weeklyDownloads"`
	GitHub          *GitHubIssues   `json:"github,omitempty"`
	Vulnerabilities []Vulnerability `json:"vulnerabilities"`
}

// EmptyAnalysis is returned whenever the analysis API has nothing usable.
func EmptyAnalysis() AnalysisData {
	return AnalysisData{Vulnerabilities: []Vulnerability{}}
}
