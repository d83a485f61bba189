// Package server exposes the aggregation pipeline over HTTP and WebSocket.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support. [ChiRouter] implements it on
// top of chi, which also supplies request ids, real-ip and panic recovery middleware. [RequestLogger]
// writes one structured log line per request.
//
// # Endpoints
//
//	GET /healthz            liveness check
//	GET /search?q=          one aggregation, JSON response
//	GET /search/stream?q=   one aggregation over a WebSocket with progress frames
//	GET /history?limit=     recent searches, when history is configured
//
// A search with no matches is a 200 with an empty track list. Suggestion and catalog outages map to
// 502 so callers can tell them apart from configuration errors, which are 500.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
// [StreamHandler] is registered this way.
package server
