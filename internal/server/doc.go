// Package server provides HTTP routing, middleware, and the local session surface served by `session serve`.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally and dispatches by method per path.
//
// # Session Endpoints
//
// [SessionHandler] drives a [SessionController] (normally a session.Manager):
//
//	GET  /api/session/status     → current status snapshot
//	POST /api/session/connect    → start a connection attempt
//	POST /api/session/disconnect → drop the connection
//	POST /api/session/extend     → record activity (409 unless connected)
//	POST /api/session/timeout    → {"minutes": n}, returns the clamped value
//
// # Session Stream
//
// [StreamHandler] serves GET /api/session/ws. Each websocket client is registered with a [Hub], which fans out
// status and event [Frame]s fed from a session subscription. The latest status frame is replayed to new clients.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
