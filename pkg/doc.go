// Package pkg holds the pkghealth libraries.
//
// pkghealth resolves npm dependency trees and scores every package in them
// for health. The packages layer bottom-up:
//
//   - [errors]: coded errors shared by every layer and mapped to HTTP statuses
//   - [cache]: key/value backends with TTL (memory, Redis, MongoDB, file)
//   - [httputil] and [integrations]: retrying, rate-limited upstream clients
//     for the npm registry ([integrations/npm]) and npms.io ([integrations/npms])
//   - [packages]: cache-aside package metadata and search
//   - [health]: health scoring
//   - [deps]: dependency tree resolution
//   - [render]: terminal, DOT and SVG output
//   - [app]: the composition root used by the CLI and the HTTP server
//
// A typical flow:
//
//	cfg, _ := config.Load("")
//	a, _ := app.New(ctx, cfg, logger)
//	defer a.Close()
//	tree, err := a.ResolveDependencyTree(ctx, "express", "latest", 5)
//
// [errors]: github.com/matzehuels/pkghealth/pkg/errors
// [cache]: github.com/matzehuels/pkghealth/pkg/cache
// [httputil]: github.com/matzehuels/pkghealth/pkg/httputil
// [integrations]: github.com/matzehuels/pkghealth/pkg/integrations
// [integrations/npm]: github.com/matzehuels/pkghealth/pkg/integrations/npm
// [integrations/npms]: github.com/matzehuels/pkghealth/pkg/integrations/npms
// [packages]: github.com/matzehuels/pkghealth/pkg/packages
// [health]: github.com/matzehuels/pkghealth/pkg/health
// [deps]: github.com/matzehuels/pkghealth/pkg/deps
// [render]: github.com/matzehuels/pkghealth/pkg/render
// [app]: github.com/matzehuels/pkghealth/pkg/app
package pkg
