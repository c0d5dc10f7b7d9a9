package handlers

import (
	"net/http"

	"fieldhand/utils"

	"github.com/gin-gonic/gin"
)

// Health reports liveness plus the last mongo/redis check.
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":       "ok",
		"message":      "Hi, I'm fieldhand",
		"dependencies": utils.GetHealthStatus(),
	})
}
