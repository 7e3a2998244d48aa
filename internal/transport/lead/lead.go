package lead

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/alanyang/lead-pipeline/internal/domain/gate"
	domainlead "github.com/alanyang/lead-pipeline/internal/domain/lead"
	"github.com/alanyang/lead-pipeline/internal/domain/pipeline"
	domainstage "github.com/alanyang/lead-pipeline/internal/domain/stage"
	leadsvc "github.com/alanyang/lead-pipeline/internal/service/lead"
	"github.com/alanyang/lead-pipeline/internal/transport/apierr"
	"github.com/alanyang/lead-pipeline/internal/transport/auth"
)

func Register(rg *gin.RouterGroup, svc *leadsvc.Service) {
	rg.GET("", listLeads(svc))
	rg.POST("", createLead(svc))
	rg.GET("/:id", getLead(svc))
	rg.POST("/:id/move", moveLead(svc))
	rg.POST("/:id/gate", completeGate(svc))
}

// listLeads answers in the shape named by ?shape=, grouped by default.
func listLeads(svc *leadsvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID, ok := auth.Require(c)
		if !ok {
			return
		}
		shape := pipeline.Shape(c.DefaultQuery("shape", string(pipeline.ShapeGrouped)))

		payload, err := svc.List(c.Request.Context(), tenantID, shape)
		if err != nil {
			apierr.Write(c, err)
			return
		}
		c.JSON(http.StatusOK, payload)
	}
}

type createLeadReq struct {
	Name    string         `json:"name" binding:"required"`
	Email   string         `json:"email"`
	Phone   string         `json:"phone"`
	Company string         `json:"company"`
	Budget  float64        `json:"budget"`
	StageID domainstage.ID `json:"stageId"`
}

func createLead(svc *leadsvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID, ok := auth.Require(c)
		if !ok {
			return
		}
		var req createLeadReq
		if err := c.ShouldBindJSON(&req); err != nil {
			apierr.BadRequest(c, err)
			return
		}

		l, err := svc.Create(c.Request.Context(), tenantID, leadsvc.NewLead{
			Name:    req.Name,
			Email:   req.Email,
			Phone:   req.Phone,
			Company: req.Company,
			Budget:  req.Budget,
			StageID: req.StageID,
		})
		if err != nil {
			apierr.Write(c, err)
			return
		}
		c.JSON(http.StatusCreated, l)
	}
}

func getLead(svc *leadsvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID, ok := auth.Require(c)
		if !ok {
			return
		}
		l, err := svc.GetByID(c.Request.Context(), tenantID, domainlead.ID(c.Param("id")))
		if err != nil {
			apierr.Write(c, err)
			return
		}
		c.JSON(http.StatusOK, l)
	}
}

type moveLeadReq struct {
	StageID domainstage.ID `json:"stageId" binding:"required"`
}

func moveLead(svc *leadsvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID, ok := auth.Require(c)
		if !ok {
			return
		}
		var req moveLeadReq
		if err := c.ShouldBindJSON(&req); err != nil {
			apierr.BadRequest(c, err)
			return
		}

		l, err := svc.Move(c.Request.Context(), tenantID, domainlead.ID(c.Param("id")), req.StageID)
		if err != nil {
			apierr.Write(c, err)
			return
		}
		c.JSON(http.StatusOK, l)
	}
}

// completeGate applies a gated form and its stage change as one command.
// The lead in the response may sit in a redirect stage rather than the
// requested target.
func completeGate(svc *leadsvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID, ok := auth.Require(c)
		if !ok {
			return
		}
		var cmd gate.Command
		if err := c.ShouldBindJSON(&cmd); err != nil {
			apierr.BadRequest(c, err)
			return
		}
		cmd.LeadID = domainlead.ID(c.Param("id"))

		l, err := svc.CompleteGate(c.Request.Context(), tenantID, cmd)
		if err != nil {
			apierr.Write(c, err)
			return
		}
		c.JSON(http.StatusOK, l)
	}
}
