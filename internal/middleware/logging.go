package middleware

import (
	"log"
	"time"

	"github.com/gin-gonic/gin"
)

// LoggingMiddleware 访问日志中间件
func LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if query := c.Request.URL.RawQuery; query != "" {
			path += "?" + query
		}

		c.Next()

		subject, _ := GetSubject(c)
		log.Printf("[HTTP] %s %s | Status: %d | Latency: %v | Client: %s | Subject: %s",
			c.Request.Method,
			path,
			c.Writer.Status(),
			time.Since(start),
			c.ClientIP(),
			subject,
		)
		for _, e := range c.Errors {
			log.Printf("Warning: %s %s: %v", c.Request.Method, path, e.Err)
		}
	}
}
