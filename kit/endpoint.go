// Package kit holds the transport-neutral endpoint type shared by the HTTP
// and MCP surfaces, plus the context keys they agree on.
package kit

import "context"

// Endpoint is a single request/response operation independent of transport.
type Endpoint func(ctx context.Context, req any) (any, error)

// Middleware decorates an Endpoint.
type Middleware func(Endpoint) Endpoint

// Chain composes middlewares; the first one is outermost.
func Chain(outer Middleware, others ...Middleware) Middleware {
	return func(next Endpoint) Endpoint {
		for i := len(others) - 1; i >= 0; i-- {
			next = others[i](next)
		}
		return outer(next)
	}
}
