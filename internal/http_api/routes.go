package http_api

// routes sets up the routes for the HTTP server.
func (s *HTTPServer) routes() {
	s.router.GET("/api/v1/health", s.health)

	s.router.POST("/api/v1/webhooks/:collection", s.webhook)
	s.router.GET("/api/v1/sync/:collection/last-update", s.lastUpdate)

	admin := s.router.Group("/api/v1/sync", s.adminAuth())
	admin.POST("/:collection/force", s.forceSync)
	admin.POST("/:collection/lock/reset", s.resetLock)
}
