package api

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/north-cloud/insights/infrastructure/logger"
	"github.com/jonesrussell/north-cloud/insights/internal/drilldown"
	"github.com/jonesrussell/north-cloud/insights/internal/period"
	"github.com/jonesrussell/north-cloud/insights/internal/taxonomy"
)

// Error codes returned in ErrorResponse.Code.
const (
	CodeInvalidRequest      = "INVALID_REQUEST"
	CodeUnknownEntity       = "UNKNOWN_ENTITY"
	CodeUpstreamUnavailable = "UPSTREAM_UNAVAILABLE"
	CodeUpstreamRejected    = "UPSTREAM_REJECTED"
	CodeCircuitOpen         = "CIRCUIT_OPEN"
	CodeRequestCancelled    = "REQUEST_CANCELLED"
	CodeNotFound            = "NOT_FOUND"
	CodeInternal            = "INTERNAL_ERROR"
)

// statusClientClosedRequest is the de facto status for a client that went away.
const statusClientClosedRequest = 499

// ErrorResponse is the error envelope of every endpoint.
type ErrorResponse struct {
	Error     string    `json:"error"`
	Code      string    `json:"code"`
	Timestamp time.Time `json:"timestamp"`
}

func respondError(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, ErrorResponse{
		Error:     msg,
		Code:      code,
		Timestamp: time.Now().UTC(),
	})
}

func badRequest(c *gin.Context, err error) {
	respondError(c, http.StatusBadRequest, CodeInvalidRequest, err.Error())
}

// respondServiceError maps a drilldown failure onto status and code.
func respondServiceError(c *gin.Context, err error) {
	log := logger.FromContext(c.Request.Context())

	derr, ok := drilldown.AsError(err)
	if !ok {
		switch {
		case errors.Is(err, period.ErrInvalidInput), errors.Is(err, taxonomy.ErrUnknownDimension):
			badRequest(c, err)
		default:
			log.Error("Unhandled request error", logger.Error(err))
			respondError(c, http.StatusInternalServerError, CodeInternal, "internal error")
		}
		return
	}

	switch derr.Kind {
	case drilldown.KindInvalidInput:
		badRequest(c, derr.Err)
	case drilldown.KindUnknownEntity:
		respondError(c, http.StatusNotFound, CodeUnknownEntity, derr.Err.Error())
	case drilldown.KindCircuitOpen:
		if derr.RetryAfter > 0 {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(derr.RetryAfter.Seconds()))))
		}
		respondError(c, http.StatusServiceUnavailable, CodeCircuitOpen, "upstream temporarily unavailable")
	case drilldown.KindUpstreamTransient:
		respondError(c, http.StatusBadGateway, CodeUpstreamUnavailable, "upstream unavailable after retries")
	case drilldown.KindUpstreamPermanent:
		respondError(c, http.StatusBadGateway, CodeUpstreamRejected, "upstream rejected the request")
	case drilldown.KindCancelled:
		log.Debug("Request cancelled", logger.Error(err))
		respondError(c, statusClientClosedRequest, CodeRequestCancelled, "request cancelled")
	default:
		respondError(c, http.StatusInternalServerError, CodeInternal, "internal error")
	}
}
