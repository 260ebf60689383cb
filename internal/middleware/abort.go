package middleware

import "github.com/gin-gonic/gin"

// abortJSON writes the standard error envelope and stops the chain. The
// errors package builds on this package, so middleware cannot import it.
func abortJSON(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"error": gin.H{
			"code":       code,
			"message":    message,
			"request_id": GetRequestID(c),
		},
	})
}
