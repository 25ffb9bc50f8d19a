// package server contains middleware & handlers for the local session surface
package server

import (
	"net/http"

	"github.com/desertthunder/mediasync/internal/session"
)

// Middleware wraps an http.Handler and returns a new http.Handler with additional behavior.
type Middleware func(http.Handler) http.Handler

// Handler defines the interface for HTTP request handlers that own their routes.
type Handler interface {
	http.Handler      // ServeHTTP handles the HTTP request and writes the response
	Routes() []string // Routes returns the path patterns this handler serves
}

// Router defines the interface for HTTP routing and middleware management.
type Router interface {
	Use(middleware ...Middleware)                     // Use adds middleware to the router's middleware stack
	Handle(method, path string, handler http.Handler) // Handle registers a handler for the specified method and path
	Handler(handler Handler)                          // Handler registers a custom Handler implementation
	ServeHTTP(w http.ResponseWriter, r *http.Request) // ServeHTTP implements http.Handler for the entire router
}

// SessionController is the part of [session.Manager] the HTTP surface drives.
type SessionController interface {
	Connect() error
	Disconnect() error
	ExtendSession() error
	SetTimeout(minutes int) (int, error)
	Status() session.Status
}
