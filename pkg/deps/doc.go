// Package deps resolves npm dependency trees annotated with health scores.
//
// # Resolution
//
// [Resolver.Resolve] walks a package's runtime dependencies breadth by batch
// up to a depth limit, fetching metadata and a [health.Score] for every
// package it meets:
//
//	r := deps.NewResolver(repo, healthSvc, c, logger)
//	tree, err := r.Resolve(ctx, "express", "latest", 5)
//
// Depth is clamped to [MinDepth, MaxDepth]. Children of one node are resolved
// in batches of [BatchSize]: a batch runs concurrently, batches run in order,
// and results keep manifest declaration order.
//
// # Sentinel nodes
//
// Resolution never fails because of one dependency. A package that cannot
// be fetched becomes an error node (ID suffix ":error", HasError set), and a
// package already on the current path becomes a circular node (ID suffix
// ":circular", IsCircular set). Both carry [health.EmptyScore] and no
// children.
//
// # Deduplication
//
// Within one Resolve call, packages are memoized by name@resolvedVersion.
// A package reached again along another branch reuses the first subtree,
// with only its Parent reassigned. Memo and path state are created per call,
// so concurrent resolutions on one Resolver never share them.
//
// # Caching
//
// Whole trees are cached under [cache.TreeKey] for [cache.TreeTTL], unless
// the root itself failed.
package deps
