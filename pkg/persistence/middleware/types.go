package middleware

import "github.com/aretw0/scoserv/pkg/ports"

// Middleware allows wrapping a Collection to add behavior.
type Middleware func(ports.Collection) ports.Collection

// Chain applies mws to c; the first middleware is the outermost.
func Chain(c ports.Collection, mws ...Middleware) ports.Collection {
	for i := len(mws) - 1; i >= 0; i-- {
		c = mws[i](c)
	}
	return c
}
