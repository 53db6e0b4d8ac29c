// Package npm provides an HTTP client for the npm registry.
//
// # Usage
//
//	client := npm.NewClient(npm.DefaultRegistryURL)
//	meta, err := client.FetchPackage(ctx, "express", "latest")
//	hits, err := client.SearchPackages(ctx, "http server", 10)
//
// # Version Selection
//
// FetchPackage resolves the requested version in this order:
//
//  1. a dist-tag ("latest", "next", "beta")
//  2. an exact key in the document's versions map
//  3. a semver range ("^4.17.0"): dist-tags.latest when it satisfies the
//     range, otherwise the highest satisfying version
//
// Anything else fails with PACKAGE_NOT_FOUND. Only one concrete version is
// ever chosen per request; there is no install-plan solving.
//
// # Errors
//
// A 404 from the registry becomes PACKAGE_NOT_FOUND. Any other failure,
// including transport errors and an open circuit breaker, becomes
// EXTERNAL_API_ERROR.
//
// # Scoped Packages
//
// Scoped names are sent as a single path segment: "@babel/core" is requested
// as /@babel%2Fcore.
package npm
