// Package handlers contains the health checking and middleware pieces of the
// analytics HTTP interface.
//
// # Health Checks
//
// Checks are registered by name and run in parallel. A failing required
// check makes the service unready; a failing optional check only marks it
// degraded. The shared view cache is optional because every cache failure
// already degrades to a miss:
//
//	checker := handlers.NewCompositeHealthChecker("v1.0.0")
//	checker.AddCheck("store", handlers.NewPingCheck(store))
//	checker.AddOptionalCheck("redis", handlers.NewPingCheck(viewCache))
//
//	status := checker.Check(ctx)
//	if !status.Ready {
//	    log.Printf("not ready: %s", status.Message)
//	}
//
// # Middleware
//
// NoCacheMiddleware, SecurityHeadersMiddleware and
// RequestSizeLimitMiddleware are plain func(http.Handler) http.Handler
// values and compose with chi's r.Use.
package handlers
