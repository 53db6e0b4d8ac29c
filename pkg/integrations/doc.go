// Package integrations provides the HTTP plumbing shared by the upstream API
// clients.
//
// Each upstream has its own subpackage:
//
//   - [npm]: the npm registry (package documents and text search)
//   - [npms]: the npms.io analysis API (scores, downloads, issues, advisories)
//
// # Shared Infrastructure
//
// [Client] performs JSON requests with default headers, retries transient
// failures through [httputil.Retry], optionally throttles through a
// token-bucket limiter and a per-host circuit breaker, and reports every
// request to the registered [observability.HTTPHooks].
//
// Status handling is uniform: 2xx decodes the body, 404 yields an error
// matching [ErrNotFound], 429 and 5xx are retryable and match [ErrNetwork],
// and any other status is a non-retryable [*StatusError].
//
// [npm]: github.com/matzehuels/pkghealth/pkg/integrations/npm
// [npms]: github.com/matzehuels/pkghealth/pkg/integrations/npms
package integrations
