package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/waqedi/platform/pkg/faults"
)

// Problem is the RFC 7807 error body every endpoint returns on failure.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail"`
	Instance string `json:"instance,omitempty"`
}

// writeProblem maps a platform error to its problem document. Internal
// details never leave the process; the taxonomy code and title do.
func (s *Server) writeProblem(c *gin.Context, err error) {
	status := faults.HTTPStatus(err)
	detail := err.Error()
	if status >= http.StatusInternalServerError {
		s.logger.Error("Request failed",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"error", err)
		detail = "an internal error occurred"
	}

	c.Header("Content-Type", "application/problem+json")
	c.AbortWithStatusJSON(status, Problem{
		Type:     faults.TypeURI(err),
		Title:    faults.Title(err),
		Status:   status,
		Detail:   detail,
		Instance: c.Request.URL.Path,
	})
}
