package api

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/wangxicoding/edl/pkg/cluster"
)

// statusOf maps topology errors to HTTP status codes.
func statusOf(err error) int {
	var he *echo.HTTPError
	switch {
	case errors.As(err, &he):
		return he.Code
	case errors.As(err, &cluster.MalformedSnapshotError{}),
		errors.As(err, &cluster.RankMismatchError{}),
		errors.As(err, &cluster.IncompletePodError{}):
		return http.StatusBadRequest
	case errors.As(err, &cluster.DuplicateEndpointError{}):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// JSONErrorHandler sends a JSON response with the error message.
func JSONErrorHandler(err error, c echo.Context) {
	code := statusOf(err)
	var msg interface{} = err
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg = he.Message
	}
	if code >= 500 {
		log.WithError(err).Error("request failed")
	}
	if !c.Response().Committed {
		// For the HEAD method, the server MUST NOT return a message-body in the response.
		if c.Request().Method == http.MethodHead {
			err = c.NoContent(code)
		} else {
			err = c.JSON(code, map[string]interface{}{"message": fmt.Sprint(msg)})
		}
		if err != nil {
			log.WithError(err).Error("writing error response")
		}
	}
}
