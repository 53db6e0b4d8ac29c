package npm

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strconv"
	"unicode/utf8"

	"github.com/Masterminds/semver/v3"
	"github.com/tidwall/gjson"

	pkgerrors "github.com/matzehuels/pkghealth/pkg/errors"
	"github.com/matzehuels/pkghealth/pkg/integrations"
	"github.com/matzehuels/pkghealth/pkg/packages"
)

// DefaultRegistryURL is the public npm registry.
const DefaultRegistryURL = "https://registry.npmjs.org"

const (
	apiRegistry = "npm registry"
	apiSearch   = "npm search"
)

// Client fetches package documents and search results from an npm registry.
type Client struct {
	*integrations.Client
	baseURL string
}

// NewClient creates a registry client for baseURL (DefaultRegistryURL when
// empty).
func NewClient(baseURL string, opts ...integrations.Option) *Client {
	if baseURL == "" {
		baseURL = DefaultRegistryURL
	}
	return &Client{
		Client:  integrations.NewClient(nil, opts...),
		baseURL: baseURL,
	}
}

// FetchPackage returns metadata for name at version. An empty version means
// "latest".
func (c *Client) FetchPackage(ctx context.Context, name, version string) (*packages.Metadata, error) {
	if version == "" {
		version = packages.DefaultVersion
	}

	var doc json.RawMessage
	if err := c.Get(ctx, c.baseURL+"/"+EncodeName(name), &doc); err != nil {
		if errors.Is(err, integrations.ErrNotFound) {
			return nil, pkgerrors.PackageNotFound(name, version)
		}
		return nil, upstreamError(apiRegistry, err)
	}
	return extractVersion(doc, name, version)
}

// SearchPackages runs a text search capped at limit results. Queries
// shorter than two characters return an empty slice without a request.
func (c *Client) SearchPackages(ctx context.Context, query string, limit int) ([]packages.SearchResult, error) {
	if utf8.RuneCountInString(query) < packages.MinQueryLength {
		return []packages.SearchResult{}, nil
	}

	params := url.Values{}
	params.Set("text", query)
	params.Set("size", strconv.Itoa(limit))

	var resp searchResponse
	if err := c.Get(ctx, c.baseURL+"/-/v1/search?"+params.Encode(), &resp); err != nil {
		return nil, upstreamError(apiSearch, err)
	}

	results := make([]packages.SearchResult, 0, len(resp.Objects))
	for _, obj := range resp.Objects {
		results = append(results, packages.SearchResult{
			Name:        obj.Package.Name,
			Version:     obj.Package.Version,
			Description: obj.Package.Description,
			Score:       obj.Score.Final,
		})
	}
	return results, nil
}

// EncodeName escapes name as one path segment, keeping a scope's "@" and
// encoding its "/".
func EncodeName(name string) string {
	return url.PathEscape(name)
}

// upstreamError maps any non-404 failure to EXTERNAL_API_ERROR. Responses
// keep their status in the message; transport failures wrap the cause.
func upstreamError(api string, err error) error {
	if status := integrations.StatusCode(err); status != 0 {
		e := pkgerrors.ExternalAPI(api, status)
		e.Cause = err
		return e
	}
	return pkgerrors.Wrap(pkgerrors.ErrCodeExternalAPI, err, "%s unreachable", api)
}

// extractVersion picks one version out of a full package document.
func extractVersion(doc []byte, name, version string) (*packages.Metadata, error) {
	root := gjson.ParseBytes(doc)

	tags := map[string]string{}
	root.Get("dist-tags").ForEach(func(k, v gjson.Result) bool {
		tags[k.String()] = v.String()
		return true
	})
	versions := map[string]string{}
	root.Get("versions").ForEach(func(k, v gjson.Result) bool {
		versions[k.String()] = v.Raw
		return true
	})

	resolved, ok := tags[version]
	if !ok {
		if _, exact := versions[version]; exact {
			resolved = version
		} else {
			resolved = matchRange(version, tags["latest"], versions)
		}
	}

	raw, ok := versions[resolved]
	if resolved == "" || !ok {
		return nil, pkgerrors.PackageNotFound(name, version)
	}

	var v versionDetails
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.ErrCodeExternalAPI, err, "%s returned an unreadable document for %s", apiRegistry, name)
	}

	m := &packages.Metadata{
		Name:            v.Name,
		Version:         v.Version,
		Description:     v.Description,
		License:         extractField(v.License, "type"),
		Dependencies:    v.Dependencies,
		DevDependencies: v.DevDependencies,
		Maintainers:     extractMaintainers(root.Get("maintainers")),
	}
	if m.Name == "" {
		m.Name = name
	}
	if m.Version == "" {
		m.Version = resolved
	}
	if m.Dependencies == nil {
		m.Dependencies = packages.Dependencies{}
	}
	if m.DevDependencies == nil {
		m.DevDependencies = packages.Dependencies{}
	}
	if u := extractField(v.Repository, "url"); u != "" {
		m.Repository = &packages.SourceRepo{URL: integrations.NormalizeRepoURL(u)}
		if obj, ok := v.Repository.(map[string]any); ok {
			m.Repository.Type, _ = obj["type"].(string)
		}
	}
	if t := root.Get("time"); t.IsObject() {
		m.Time = &packages.TimeInfo{
			Created:  t.Get("created").String(),
			Modified: t.Get("modified").String(),
		}
	}
	return m, nil
}

// matchRange returns the version a semver range maps to: latest when it
// satisfies the range, otherwise the highest satisfying version. Returns ""
// when spec is not a range or nothing satisfies it.
func matchRange(spec, latest string, versions map[string]string) string {
	constraint, err := semver.NewConstraint(spec)
	if err != nil {
		return ""
	}
	if lv, err := semver.NewVersion(latest); err == nil && constraint.Check(lv) {
		return latest
	}

	var best *semver.Version
	bestKey := ""
	for key := range versions {
		v, err := semver.NewVersion(key)
		if err != nil || !constraint.Check(v) {
			continue
		}
		if best == nil || v.GreaterThan(best) {
			best, bestKey = v, key
		}
	}
	return bestKey
}

// extractField reads a field that the registry sends either as a plain
// string or as an object (license: {"type": "MIT"}).
func extractField(v any, field string) string {
	switch val := v.(type) {
	case string:
		return val
	case map[string]any:
		if s, ok := val[field].(string); ok {
			return s
		}
	}
	return ""
}

func extractMaintainers(r gjson.Result) []packages.Maintainer {
	if !r.IsArray() {
		return nil
	}
	var out []packages.Maintainer
	r.ForEach(func(_, m gjson.Result) bool {
		switch {
		case m.IsObject():
			out = append(out, packages.Maintainer{
				Name:  m.Get("name").String(),
				Email: m.Get("email").String(),
			})
		case m.Type == gjson.String:
			out = append(out, packages.Maintainer{Name: m.String()})
		}
		return true
	})
	return out
}

type versionDetails struct {
	Name            string                `json:"name"`
	Version         string                `json:"version"`
	Description     string                `json:"description"`
	License         any                   `json:"license"`
	Repository      any                   `json:"repository"`
	Dependencies    packages.Dependencies `json:"dependencies"`
	DevDependencies packages.Dependencies `json:"devDependencies"`
}

type searchResponse struct {
	Objects []struct {
		Package struct {
			Name        string `json:"name"`
			Version     string `json:"version"`
			Description string `json:"description"`
		} `json:"package"`
		Score struct {
			Final float64 `json:"final"`
		} `json:"score"`
	} `json:"objects"`
}
