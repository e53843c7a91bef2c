package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Nixie-Tech-LLC/waqt/internal/http/middleware"
	"github.com/Nixie-Tech-LLC/waqt/internal/session"
)

// Error is what a handler returns instead of a result; it is rendered as
// {"error": Message} with status Code.
type Error struct {
	Code    int
	Message string
}

func (e *Error) Error() string { return e.Message }

func BadRequest(err error) *Error {
	return &Error{Code: http.StatusBadRequest, Message: err.Error()}
}

func Internal(err error) *Error {
	return &Error{Code: http.StatusInternalServerError, Message: err.Error()}
}

type HandlerFuncWithSession func(ctx *gin.Context, s *session.Session) (any, *Error)
type HandlerFunc func(ctx *gin.Context) (any, *Error)

// ResolveEndpointWithSession loads the caller's session (set by
// middleware.SessionMiddleware) before calling h.
func ResolveEndpointWithSession(sessions *session.Manager, h HandlerFuncWithSession) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		id, ok := middleware.GetSessionID(ctx)
		if !ok {
			ctx.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		s, err := sessions.Get(id)
		if errors.Is(err, session.ErrNotFound) {
			ctx.JSON(http.StatusUnauthorized, gin.H{"error": "session expired"})
			return
		}

		result, apiErr := h(ctx, s)
		render(ctx, result, apiErr)
	}
}

func ResolveEndpoint(h HandlerFunc) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		result, apiErr := h(ctx)
		render(ctx, result, apiErr)
	}
}

func render(ctx *gin.Context, result any, apiErr *Error) {
	if apiErr != nil {
		ctx.JSON(apiErr.Code, gin.H{"error": apiErr.Message})
		return
	}
	if result == nil {
		ctx.Status(http.StatusNoContent)
		return
	}
	ctx.JSON(http.StatusOK, result)
}
