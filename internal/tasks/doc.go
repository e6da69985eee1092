// Package tasks orchestrates stream resolution.
//
// # Resolution Order
//
// [Engine.Stream] normalises the source reference, then tries the delegate resolver (when
// configured) and the local resolver, strictly in that order and once each. Delegate
// failures are logged and never surface to the caller. The first success has its direct URL
// registered with the short-ID cache, and the response carries both the direct URL and the
// relay path /stream/play?id=<cacheId>.
//
// Concurrent requests for the same source are coalesced with singleflight, so a burst of
// clients starts one resolution.
//
// # Attempt Log
//
// Every resolver call is recorded in an [AttemptLog], a ring of the last ten attempts
// served on GET /logs.
//
// # Batches
//
// [Engine.StreamMany] fans a list of sources out to a rate-limited worker pool and emits
// [ProgressUpdate] values on a non-blocking channel for the CLI.
package tasks
