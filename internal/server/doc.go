// Package server provides HTTP routing, middleware, and the sandbox backend used for local runs.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally and registers "METHOD /path" patterns,
// so the mux answers 405 for a known path with the wrong method.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
//
// # Sandbox
//
// [Sandbox] is an in-memory implementation of every backend endpoint the client uses: upload, create,
// roll, result images, credits, purchases, album, custom themes and telemetry. Result images stay
// not-ready for a configurable number of polls and then serve a deterministic placeholder JPEG.
//
// `multiverse sandbox` serves it with [Serve]; tests mount it on [net/http/httptest].
package server
