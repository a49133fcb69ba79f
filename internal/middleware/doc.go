// Package middleware provides HTTP middleware for the learnsync host.
//
// Chain composes middleware in order:
//
//	handler := middleware.Chain(mux,
//		middleware.RequestID,
//		middleware.Recovery,
//		middleware.Session(sessions.Current),
//		middleware.Logger(logger),
//		middleware.CORS(origins),
//	)
//
// Session stamps the signed-in identity into the request context; handlers
// read it with GetSession. RateLimit throttles a route per identity, falling
// back to the remote address for sessionless hosts.
package middleware
