package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/seldon-labs/psychohistory/pkg/version"
)

// health handles GET /health.
// The service has no stateful dependencies to probe; reachability plus the
// build version is the whole story.
func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"version": version.Full(),
	})
}
