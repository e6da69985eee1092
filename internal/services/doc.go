// Package services turns source references into playable media records.
//
// # Resolver Interface
//
// Every backend implements [Resolver]: given a source ID it returns a [models.MediaRecord]
// carrying a time-limited direct URL plus display metadata, or an error.
//
// # YouTube Backends
//
// [YTDLPResolver] runs the yt-dlp binary with --dump-single-json and parses its output.
// Concurrent processes are bounded by a weighted semaphore and each call by a timeout.
//
// [LibraryResolver] extracts in-process with github.com/kkdai/youtube/v2.
//
// # Delegate Backend
//
// [DelegateResolver] asks another deployment of this service (or any compatible API) for
// GET /api/stream/{id} and accepts directUrl, original_url or url in the response.
//
// # Spotify
//
// [SpotifyResolver] uses the client-credentials flow to read track metadata, searches YouTube
// for "<title> <artist>" and resolves the closest match by duration.
//
// # Composition
//
// [PlatformResolver] normalises raw references (ids, watch URLs, spotify URIs) and dispatches
// to the right backend. [CachingResolver] reuses results for a short window so repeated
// requests for the same source yield the same direct URL.
//
// # Error Handling
//
// Resolvers wrap sentinels from the shared package:
//   - [shared.ErrTrackNotFound] : the source does not exist or is not playable
//   - [shared.ErrTimeout] : the backend did not answer in time
//   - [shared.ErrAPIRequest] : an HTTP backend answered with an error
//   - [shared.ErrInvalidInput] : the reference could not be parsed
package services
