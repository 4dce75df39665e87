package util

import (
	"context"

	"github.com/gin-gonic/gin"
)

type clientIPKey struct{}

// IPMiddleware copies gin's resolved client address (which honours trusted
// proxy headers) into the request context, so services below the HTTP layer
// can attribute audit entries without depending on gin.
func IPMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request = c.Request.WithContext(WithClientIP(c.Request.Context(), c.ClientIP()))
		c.Next()
	}
}

func WithClientIP(ctx context.Context, ip string) context.Context {
	if ip == "" {
		return ctx
	}
	return context.WithValue(ctx, clientIPKey{}, ip)
}

// ClientIP returns the address stored by IPMiddleware, or "" when absent.
func ClientIP(ctx context.Context) string {
	if gc, ok := ctx.(*gin.Context); ok {
		return gc.ClientIP()
	}
	ip, _ := ctx.Value(clientIPKey{}).(string)
	return ip
}
