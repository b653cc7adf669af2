// Package pixcache is a two-tier cache for decoded visual assets. A
// bounded in-process memory tier (memcache) and a persistent disk tier
// (diskcache) are composed by Engine behind an asynchronous
// query/store/remove/clear contract with per-operation cancellation.
//
// The engine never fetches or decodes anything itself: byte fetching and
// asset decode/encode are collaborators composed by the caller, wired in
// through Options.Decode and Options.Cost where the engine needs them
// (promoting a disk hit into the memory tier).
package pixcache
