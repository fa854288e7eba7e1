package middleware

import (
	"github.com/gin-gonic/gin"
)

// NoStore forbids browsers and proxies from keeping a copy of the response.
// Exam sessions carry live question content that must not outlive the exam.
func NoStore() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-store")
		c.Header("Pragma", "no-cache")
		c.Next()
	}
}
