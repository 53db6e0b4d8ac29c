// Package packages defines npm package metadata and the cache-aside
// repository that serves it.
//
// [Metadata] is what the rest of the system knows about one concrete
// version of a package. It is immutable once fetched and identified by
// (Name, Version). The [Repository] sits between callers and any
// [Registry] implementation, caching metadata for [cache.PackageTTL] and
// search results for [cache.SearchTTL].
package packages

import (
	"bytes"
	"encoding/json"

	"github.com/tidwall/gjson"
)

// DefaultVersion is the dist-tag requested when no version is given.
const DefaultVersion = "latest"

// MinQueryLength is the shortest search query that reaches the registry.
const MinQueryLength = 2

// Metadata describes one concrete version of a package.
type Metadata struct {
	Name            string       `json:"name"`
	Version         string       `json:"version"`
	Description     string       `json:"description,omitempty"`
	License         string       `json:"license,omitempty"`
	Dependencies    Dependencies `json:"dependencies"`
	DevDependencies Dependencies `json:"devDependencies"`
	Repository      *SourceRepo  `json:"repository,omitempty"`
	Time            *TimeInfo    `json:"time,omitempty"`
	Maintainers     []Maintainer `json:"maintainers,omitempty"`
}

// SourceRepo points at the package's source repository.
type SourceRepo struct {
	Type string `json:"type,omitempty"`
	URL  string `json:"url"`
}

// TimeInfo holds the package document's creation and last-modified
// timestamps, as RFC 3339 strings exactly as the registry sent them.
type TimeInfo struct {
	Created  string `json:"created,omitempty"`
	Modified string `json:"modified,omitempty"`
}

// Maintainer is a registry account with publish rights.
type Maintainer struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// SearchResult is one hit from a registry text search.
type SearchResult struct {
	Name        string  `json:"name"`
	Version     string  `json:"version"`
	Description string  `json:"description"`
	Score       float64 `json:"score"`
}

// Dependency is one declared dependency: a package name and the range the
// manifest asks for.
type Dependency struct {
	Name  string
	Range string
}

// Dependencies is a name-to-range map that keeps manifest declaration
// order. It encodes as a JSON object.
type Dependencies []Dependency

// Names returns dependency names in declaration order.
func (d Dependencies) Names() []string {
	names := make([]string, len(d))
	for i, dep := range d {
		names[i] = dep.Name
	}
	return names
}

// Range returns the declared range for name.
func (d Dependencies) Range(name string) (string, bool) {
	for _, dep := range d {
		if dep.Name == name {
			return dep.Range, true
		}
	}
	return "", false
}

// MarshalJSON encodes the dependencies as an object in declaration order.
func (d Dependencies) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, dep := range d {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(dep.Name)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(dep.Range)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes an object while preserving key order. Anything other
// than an object (null, or the array form a few ancient manifests use)
// decodes as no dependencies.
func (d *Dependencies) UnmarshalJSON(data []byte) error {
	r := gjson.ParseBytes(data)
	if !r.IsObject() {
		*d = nil
		return nil
	}

	out := Dependencies{}
	r.ForEach(func(key, value gjson.Result) bool {
		out = append(out, Dependency{Name: key.String(), Range: value.String()})
		return true
	})
	*d = out
	return nil
}
