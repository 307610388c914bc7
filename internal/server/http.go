package server

import (
	nethttp "net/http"

	"go-shortlink/internal/conf"

	"github.com/go-kratos/kratos/v2/transport/http"
	"github.com/google/wire"
)

// ProviderSet is server providers.
var ProviderSet = wire.NewSet(NewHTTPServer)

// NewHTTPServer new an HTTP server serving the edge router. kratos middleware
// only wraps kratos-routed handlers, so the router brings its own recovery.
func NewHTTPServer(c conf.Server, router nethttp.Handler) *http.Server {
	var opts []http.ServerOption
	if c.Addr != "" {
		opts = append(opts, http.Address(c.Addr))
	}
	if c.Timeout > 0 {
		opts = append(opts, http.Timeout(c.Timeout.Std()))
	}
	srv := http.NewServer(opts...)
	srv.HandlePrefix("/", router)
	return srv
}
