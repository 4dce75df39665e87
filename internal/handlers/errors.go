package handlers

import (
	"errors"
	"net/http"

	"github.com/go-authgate/mcpgate/internal/core"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RFC 6749 error codes used by more than one handler.
const (
	errInvalidRequest = "invalid_request"
	errInvalidClient  = "invalid_client"
	errInvalidGrant   = "invalid_grant"
	errServerError    = "server_error"
)

func oauthError(c *gin.Context, status int, code, description string) {
	body := gin.H{"error": code}
	if description != "" {
		body["error_description"] = description
	}
	c.JSON(status, body)
}

// respondError maps a service error to an HTTP response by its class.
// Unclassified errors are logged and hidden behind server_error.
func respondError(c *gin.Context, log *zap.Logger, err error) {
	var exchangeErr *core.OAuth2ExchangeError
	switch {
	case errors.As(err, &exchangeErr):
		body := gin.H{
			"error":             "upstream_error",
			"error_description": exchangeErr.Error(),
			"upstream_status":   exchangeErr.StatusCode,
		}
		if exchangeErr.Code != "" {
			body["upstream_error"] = exchangeErr.Code
		}
		c.JSON(http.StatusBadGateway, body)
	case errors.Is(err, core.ErrValidation):
		oauthError(c, http.StatusBadRequest, errInvalidRequest, err.Error())
	case errors.Is(err, core.ErrUnauthorized):
		oauthError(c, http.StatusUnauthorized, "unauthorized", err.Error())
	case errors.Is(err, core.ErrNotFound):
		oauthError(c, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, core.ErrDecryption):
		log.Error("connection value could not be decrypted", zap.String("path", c.FullPath()), zap.Error(err))
		oauthError(c, http.StatusInternalServerError, errServerError,
			"Stored credentials could not be decrypted; the connection was marked as error")
	default:
		log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		oauthError(c, http.StatusInternalServerError, errServerError, "")
	}
}
