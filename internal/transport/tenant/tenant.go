package tenant

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/alanyang/lead-pipeline/internal/domain/pipeline"
	tenantsvc "github.com/alanyang/lead-pipeline/internal/service/tenant"
	"github.com/alanyang/lead-pipeline/internal/transport/apierr"
	"github.com/alanyang/lead-pipeline/internal/transport/auth"
)

// Register mounts tenant routes. Creating a tenant is the only
// unauthenticated call; it returns the bearer token for the new tenant.
func Register(rg *gin.RouterGroup, svc *tenantsvc.Service, tokens *auth.Issuer) {
	rg.POST("", createTenant(svc, tokens))
	rg.GET("/current", tokens.Middleware(), currentTenant(svc))
}

type createTenantReq struct {
	Name   string         `json:"name" binding:"required"`
	UserID string         `json:"user_id"`
	Gates  pipeline.Gates `json:"gates"`
}

func createTenant(svc *tenantsvc.Service, tokens *auth.Issuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createTenantReq
		if err := c.ShouldBindJSON(&req); err != nil {
			apierr.BadRequest(c, err)
			return
		}

		t, err := svc.Create(c.Request.Context(), req.Name, req.Gates)
		if err != nil {
			apierr.Write(c, err)
			return
		}
		token, err := tokens.Issue(t.ID, req.UserID)
		if err != nil {
			apierr.Write(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"tenant": t, "token": token})
	}
}

func currentTenant(svc *tenantsvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID, ok := auth.Require(c)
		if !ok {
			return
		}
		t, err := svc.GetByID(c.Request.Context(), tenantID)
		if err != nil {
			apierr.Write(c, err)
			return
		}
		c.JSON(http.StatusOK, t)
	}
}
