// Package server exposes the feed controller over a small HTTP control API.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] method patterns, so a request
// with the wrong method gets a 405 from the mux itself.
//
// # Control API
//
//	GET  /healthz     liveness and control loop responsiveness
//	GET  /metrics     prometheus collectors
//	GET  /state       controller snapshot (?format=json|text|markdown)
//	POST /scroll      {"state": "dragging", "offset": 1.5}
//	POST /settle      {"position": 3}
//	POST /interact    {"kind": "like", "position": 3}
//	POST /retry       {"position": 3}
//	POST /reset       leave degraded mode
//	POST /visibility  {"state": "visible|hidden|background"}
//
// Scroll and settle requests are applied on the control loop before the response is
// written, so a following GET /state observes them.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
