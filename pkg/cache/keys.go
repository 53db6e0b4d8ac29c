package cache

import (
	"strconv"
	"strings"
)

// Key namespaces. External tooling inspects these, so the formats are stable.
const (
	NamespacePackage = "pkg"
	NamespaceHealth  = "health"
	NamespaceTree    = "tree"
	NamespaceSearch  = "search"
	NamespaceNpms    = "npms"
)

// PackageKey returns "pkg:{name}:{version}".
func PackageKey(name, version string) string {
	return NamespacePackage + ":" + name + ":" + version
}

// HealthKey returns "health:{name}". Health is keyed by package identity,
// not version.
func HealthKey(name string) string {
	return NamespaceHealth + ":" + name
}

// TreeKey returns "tree:{name}:{version}:{depth}".
func TreeKey(name, version string, depth int) string {
	return NamespaceTree + ":" + name + ":" + version + ":" + strconv.Itoa(depth)
}

// SearchKey returns "search:{query}". The result limit is deliberately not
// part of the key.
func SearchKey(query string) string {
	return NamespaceSearch + ":" + query
}

// NpmsKey returns "npms:{name}".
func NpmsKey(name string) string {
	return NamespaceNpms + ":" + name
}

// KeyType returns the namespace of key, used as a metrics label.
func KeyType(key string) string {
	if i := strings.IndexByte(key, ':'); i > 0 {
		return key[:i]
	}
	return "other"
}
