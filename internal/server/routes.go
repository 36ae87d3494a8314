package server

import "net/http"

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleHealth)
	mux.HandleFunc("POST /{$}", s.handlePrompt)
	mux.HandleFunc("/", s.handleFallback)
	return mux
}
