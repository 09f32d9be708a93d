package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) health(c *gin.Context) {
	respondOK(c, gin.H{"status": "ok"}, "")
}

// ready additionally pings the database so load balancers can tell a booted
// process from a serving one.
func (s *Server) ready(c *gin.Context) {
	if s.pool != nil {
		if err := s.pool.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable,
				ApiResponse{Success: false, Error: "database unreachable"})
			return
		}
	}
	respondOK(c, gin.H{"status": "ready"}, "")
}
