package middleware

import (
	"log"
	"net/http"

	"github.com/coredesk/coredesk-gateway/internal/response"
	"github.com/gin-gonic/gin"
)

func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				requestID := c.GetString("request_id")
				log.Printf("[%s] PANIC: %v", requestID, err)

				response.AbortError(c, http.StatusInternalServerError,
					response.CodeInternal, "Internal Server Error")
			}
		}()
		c.Next()
	}
}
