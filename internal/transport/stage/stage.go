package stage

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/alanyang/lead-pipeline/internal/domain/pipeline"
	domainstage "github.com/alanyang/lead-pipeline/internal/domain/stage"
	stagesvc "github.com/alanyang/lead-pipeline/internal/service/stage"
	"github.com/alanyang/lead-pipeline/internal/transport/apierr"
	"github.com/alanyang/lead-pipeline/internal/transport/auth"
)

func Register(rg *gin.RouterGroup, svc *stagesvc.Service) {
	rg.GET("", listStages(svc))
	rg.POST("", createStage(svc))
	rg.DELETE("", deleteStages(svc))
}

func listStages(svc *stagesvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID, ok := auth.Require(c)
		if !ok {
			return
		}
		stages, err := svc.List(c.Request.Context(), tenantID)
		if err != nil {
			apierr.Write(c, err)
			return
		}
		if stages == nil {
			stages = []domainstage.Stage{}
		}
		c.JSON(http.StatusOK, stages)
	}
}

func createStage(svc *stagesvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID, ok := auth.Require(c)
		if !ok {
			return
		}
		var req pipeline.CreateStageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			apierr.BadRequest(c, err)
			return
		}

		s, err := svc.Create(c.Request.Context(), tenantID, req)
		if err != nil {
			apierr.Write(c, err)
			return
		}
		c.JSON(http.StatusCreated, s)
	}
}

type deleteStagesReq struct {
	StageIDs []domainstage.ID `json:"stageIds"`
}

// deleteStages removes the whole batch or nothing. A batch holding an
// occupied stage is rejected with 409 and the blocking ids.
func deleteStages(svc *stagesvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID, ok := auth.Require(c)
		if !ok {
			return
		}
		var req deleteStagesReq
		if err := c.ShouldBindJSON(&req); err != nil {
			apierr.BadRequest(c, err)
			return
		}

		if err := svc.Delete(c.Request.Context(), tenantID, req.StageIDs); err != nil {
			apierr.Write(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted": req.StageIDs})
	}
}
