package errors

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const problemBaseURL = "https://api.troikatech.in/problems/"

// ProblemDetail represents an RFC 7807 Problem Details response
type ProblemDetail struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	TraceID  string `json:"trace_id,omitempty"`
	Instance string `json:"instance,omitempty"`
}

var problemSlugs = map[int]string{
	http.StatusBadRequest:          "bad-request",
	http.StatusUnauthorized:        "unauthorized",
	http.StatusForbidden:           "forbidden",
	http.StatusNotFound:            "not-found",
	http.StatusConflict:            "conflict",
	http.StatusTooManyRequests:     "rate-limit-exceeded",
	http.StatusInternalServerError: "internal-error",
	http.StatusBadGateway:          "upstream-error",
	http.StatusServiceUnavailable:  "unavailable",
}

// ErrorResponse sends a problem+json error response
func ErrorResponse(c *gin.Context, status int, title, detail string) {
	traceID := c.GetString("trace_id")
	if traceID == "" {
		traceID = c.GetString("request_id")
	}

	c.Header("Content-Type", "application/problem+json")
	c.JSON(status, ProblemDetail{
		Type:     problemType(status),
		Title:    title,
		Status:   status,
		Detail:   detail,
		TraceID:  traceID,
		Instance: c.Request.URL.Path,
	})
}

// respond uses the standard status text as the title
func respond(c *gin.Context, status int, detail string) {
	ErrorResponse(c, status, http.StatusText(status), detail)
}

// InternalError logs err and sends a 500 that does not reveal it
func InternalError(c *gin.Context, err error, logger *zap.Logger) {
	logger.Error("Internal server error",
		zap.Error(err),
		zap.String("path", c.Request.URL.Path),
		zap.String("method", c.Request.Method),
	)
	respond(c, http.StatusInternalServerError, "An unexpected error occurred. Please try again later.")
}

// Upstream logs err and sends a 502 with a caller-safe detail
func Upstream(c *gin.Context, err error, detail string, logger *zap.Logger) {
	logger.Warn("Upstream request failed",
		zap.Error(err),
		zap.String("path", c.Request.URL.Path),
	)
	respond(c, http.StatusBadGateway, detail)
}

func BadRequest(c *gin.Context, detail string) { respond(c, http.StatusBadRequest, detail) }
func Unauthorized(c *gin.Context, detail string) { respond(c, http.StatusUnauthorized, detail) }
func Forbidden(c *gin.Context, detail string) { respond(c, http.StatusForbidden, detail) }
func NotFound(c *gin.Context, detail string) { respond(c, http.StatusNotFound, detail) }
func Conflict(c *gin.Context, detail string) { respond(c, http.StatusConflict, detail) }

// BadGateway is for a carrier or provider that rejected the request
func BadGateway(c *gin.Context, detail string) { respond(c, http.StatusBadGateway, detail) }

// ServiceUnavailable is for a dependency that is not configured
func ServiceUnavailable(c *gin.Context, detail string) {
	respond(c, http.StatusServiceUnavailable, detail)
}

func TooManyRequests(c *gin.Context, detail string) { respond(c, http.StatusTooManyRequests, detail) }

func problemType(status int) string {
	if slug, ok := problemSlugs[status]; ok {
		return problemBaseURL + slug
	}
	return problemBaseURL + "error"
}
