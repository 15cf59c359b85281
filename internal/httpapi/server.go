// Package httpapi is the HTTP surface shared by the api and receipt
// binaries: routing, middleware, health endpoints, metrics.
package httpapi

import (
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Server struct {
	Mux *mux.Router
}

func New() *Server {
	m := mux.NewRouter()
	m.Handle("/metrics", promhttp.Handler())
	return &Server{Mux: m}
}
