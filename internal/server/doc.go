// Package server provides HTTP routing, middleware, and the JSON endpoints of the relay service.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] method patterns. Unmatched requests
// reach the fallback, which answers {"error":"Endpoint not found"}.
//
// # Middleware
//
//   - [RequestID] : assigns or propagates X-Request-ID
//   - [Recover] : converts panics into a JSON 500
//   - [Logging] : one access log line per request, optionally counted in metrics
//   - [CORS] : permissive CORS headers and 204 preflight answers
//   - [ClientLimiter.Middleware] : per-client token buckets for resolve and search
//
// # Endpoints
//
//	GET|POST /stream/{sourceId}       resolve, cache and return the stream envelope
//	GET|POST /api/stream/{sourceId}   same as above
//	GET      /stream/play?id=|url=    relay (internal/relay)
//	GET      /api/search/youtube      YouTube search, q or query, limit <= 20
//	GET      /health                  liveness
//	GET      /logs                    last ten resolver attempts
//	GET      /api/status              runtime configuration summary
//	GET      /metrics                 Prometheus exposition
//	GET      /, /playground           playground page (internal/web)
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
