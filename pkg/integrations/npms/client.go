// Package npms provides a client for the npms.io analysis API.
//
// The client never fails outward. Any transport error, non-2xx response or
// undecodable body yields [health.EmptyAnalysis] for the affected names, and
// the failure is logged. Successful lookups are cached under npms:{name}
// when a cache is supplied; fallbacks are never cached.
package npms

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/pkghealth/pkg/cache"
	"github.com/matzehuels/pkghealth/pkg/health"
	"github.com/matzehuels/pkghealth/pkg/integrations"
)

// DefaultURL is the public npms.io API.
const DefaultURL = "https://api.npms.io/v2"

// BatchSize is the most names sent in one mget request.
const BatchSize = 250

// Client fetches analysis data.
type Client struct {
	*integrations.Client
	baseURL string
	cache   cache.Cache
	logger  *log.Logger
	now     func() time.Time
}

// NewClient creates an analysis client. A nil cache disables caching and a
// nil logger uses log.Default().
func NewClient(baseURL string, c cache.Cache, logger *log.Logger, opts ...integrations.Option) *Client {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Client{
		Client:  integrations.NewClient(nil, opts...),
		baseURL: baseURL,
		cache:   c,
		logger:  logger,
		now:     time.Now,
	}
}

// FetchScore returns analysis data for one package.
func (c *Client) FetchScore(ctx context.Context, name string) health.AnalysisData {
	if data, ok := cache.Load[health.AnalysisData](ctx, c.cache, cache.NpmsKey(name)); ok {
		return data
	}

	var resp packageResponse
	if err := c.Get(ctx, c.baseURL+"/package/"+integrations.URLEncode(name), &resp); err != nil {
		c.logger.Debug("npms lookup failed, using empty analysis", "package", name, "error", err)
		return health.EmptyAnalysis()
	}

	data := resp.toAnalysis(c.now())
	_ = cache.Store(ctx, c.cache, cache.NpmsKey(name), data, cache.NpmsTTL)
	return data
}

// FetchScoresBatch returns analysis data for every name. Uncached names are
// requested in chunks of BatchSize; a failed chunk fills all its names with
// empty data and names missing from a response are filled individually.
func (c *Client) FetchScoresBatch(ctx context.Context, names []string) map[string]health.AnalysisData {
	results := make(map[string]health.AnalysisData, len(names))
	if len(names) == 0 {
		return results
	}

	var misses []string
	for _, name := range names {
		if _, seen := results[name]; seen {
			continue
		}
		if data, ok := cache.Load[health.AnalysisData](ctx, c.cache, cache.NpmsKey(name)); ok {
			results[name] = data
			continue
		}
		results[name] = health.EmptyAnalysis()
		misses = append(misses, name)
	}

	now := c.now()
	for start := 0; start < len(misses); start += BatchSize {
		chunk := misses[start:min(start+BatchSize, len(misses))]

		var resp map[string]*packageResponse
		if err := c.Post(ctx, c.baseURL+"/package/mget", chunk, &resp); err != nil {
			c.logger.Warn("npms batch failed, using empty analysis", "packages", len(chunk), "error", err)
			continue
		}

		for _, name := range chunk {
			pr := resp[name]
			if pr == nil {
				continue
			}
			data := pr.toAnalysis(now)
			results[name] = data
			_ = cache.Store(ctx, c.cache, cache.NpmsKey(name), data, cache.NpmsTTL)
		}
	}
	return results
}

type packageResponse struct {
	Score struct {
		Final  float64 `json:"final"`
		Detail struct {
			Quality     float64 `json:"quality"`
			Popularity  float64 `json:"popularity"`
			Maintenance float64 `json:"maintenance"`
		} `json:"detail"`
	} `json:"score"`
	Collected struct {
		Npm struct {
			Downloads []downloadBucket `json:"downloads"`
		} `json:"npm"`
		GitHub *struct {
			Issues struct {
				OpenCount int `json:"openCount"`
				Count     int `json:"count"`
			} `json:"issues"`
		} `json:"github"`
		Source struct {
			Vulnerabilities []health.Vulnerability `json:"vulnerabilities"`
		} `json:"source"`
	} `json:"collected"`
}

type downloadBucket struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Count int64  `json:"count"`
}

func (r *packageResponse) toAnalysis(now time.Time) health.AnalysisData {
	data := health.AnalysisData{
		Score:           r.Score.Final,
		Quality:         r.Score.Detail.Quality,
		Popularity:      r.Score.Detail.Popularity,
		Maintenance:     r.Score.Detail.Maintenance,
		WeeklyDownloads: weeklyDownloads(r.Collected.Npm.Downloads, now),
		Vulnerabilities: r.Collected.Source.Vulnerabilities,
	}
	if gh := r.Collected.GitHub; gh != nil {
		data.GitHub = &health.GitHubIssues{
			Open:  gh.Issues.OpenCount,
			Total: gh.Issues.Count,
		}
	}
	if data.Vulnerabilities == nil {
		data.Vulnerabilities = []health.Vulnerability{}
	}
	return data
}

// weeklyDownloads sums the buckets whose start date is no earlier than seven
// days before now. Buckets with an unparseable start date are skipped.
func weeklyDownloads(buckets []downloadBucket, now time.Time) int64 {
	cutoff := now.AddDate(0, 0, -7)
	var sum int64
	for _, b := range buckets {
		from, ok := parseDate(b.From)
		if !ok || from.Before(cutoff) {
			continue
		}
		sum += b.Count
	}
	return sum
}

func parseDate(s string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
