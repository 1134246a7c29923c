package httpapi

func (s *Server) setupRoutes() {
	s.router.Post("/validate", s.handleValidate)
	s.router.Post("/analyze-tool-execution", s.handleAnalyze)
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Handle("/metrics", s.metrics.Handler())
}
