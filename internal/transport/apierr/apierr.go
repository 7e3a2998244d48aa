// Package apierr maps service errors onto HTTP responses. Handlers call
// Write and never pick status codes for domain errors themselves.
package apierr

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/alanyang/lead-pipeline/internal/domain/gate"
	"github.com/alanyang/lead-pipeline/internal/domain/lead"
	"github.com/alanyang/lead-pipeline/internal/domain/pipeline"
	"github.com/alanyang/lead-pipeline/internal/domain/stage"
	"github.com/alanyang/lead-pipeline/internal/domain/tenant"
	leadsvc "github.com/alanyang/lead-pipeline/internal/service/lead"
)

var statusBySentinel = []struct {
	err    error
	status int
}{
	{lead.ErrNotFound, http.StatusNotFound},
	{stage.ErrNotFound, http.StatusNotFound},
	{tenant.ErrNotFound, http.StatusNotFound},
	{pipeline.ErrStageOccupied, http.StatusConflict},
	{pipeline.ErrStageNameTaken, http.StatusConflict},
	{leadsvc.ErrGateRequired, http.StatusConflict},
	{pipeline.ErrNoStagesSelected, http.StatusUnprocessableEntity},
	{pipeline.ErrStageNameRequired, http.StatusUnprocessableEntity},
	{pipeline.ErrGatedStageNeedsForm, http.StatusUnprocessableEntity},
	{pipeline.ErrUngatedStageHasForm, http.StatusUnprocessableEntity},
	{pipeline.ErrUnknownShape, http.StatusBadRequest},
	{gate.ErrInvalidPayload, http.StatusUnprocessableEntity},
	{gate.ErrFormMismatch, http.StatusUnprocessableEntity},
	{leadsvc.ErrNotGated, http.StatusUnprocessableEntity},
}

// Status returns the HTTP status for err; unknown errors are 500.
func Status(err error) int {
	for _, s := range statusBySentinel {
		if errors.Is(err, s.err) {
			return s.status
		}
	}
	return http.StatusInternalServerError
}

// Write sends {"error": ...}. A blocked stage delete also lists the
// occupied stage ids.
func Write(c *gin.Context, err error) {
	body := gin.H{"error": err.Error()}
	var blocked *pipeline.BlockedError
	if errors.As(err, &blocked) {
		body["blockingStageIds"] = blocked.StageIDs
	}
	c.JSON(Status(err), body)
}

// BadRequest reports a malformed request body or parameter.
func BadRequest(c *gin.Context, err error) {
	if errors.Is(err, gate.ErrInvalidPayload) {
		Write(c, err)
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
