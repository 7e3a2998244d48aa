package tenant_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	domainstage "github.com/alanyang/lead-pipeline/internal/domain/stage"
	domaintenant "github.com/alanyang/lead-pipeline/internal/domain/tenant"
	"github.com/alanyang/lead-pipeline/internal/mocks"
	tenantsvc "github.com/alanyang/lead-pipeline/internal/service/tenant"
	"github.com/alanyang/lead-pipeline/internal/transport/auth"
	transporttenant "github.com/alanyang/lead-pipeline/internal/transport/tenant"
)

func init() { gin.SetMode(gin.TestMode) }

func newRouter(t *testing.T) (*gin.Engine, *mocks.MockTenantRepository, *auth.Issuer) {
	t.Helper()
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockTenantRepository(ctrl)
	tokens := auth.NewIssuer("test-secret", time.Hour)
	r := gin.New()
	transporttenant.Register(r.Group("/tenants"), tenantsvc.NewService(repo), tokens)
	return r, repo, tokens
}

// ── POST "" (createTenant) ────────────────────────────────────────────────────

func TestCreateTenant_ReturnsToken(t *testing.T) {
	r, repo, tokens := newRouter(t)

	repo.EXPECT().Create(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, tn domaintenant.Tenant) (domaintenant.Tenant, error) {
			return tn, nil
		})

	body := []byte(`{"name":"acme","gates":{"CONVERTED":{"redirectTo":"ONBOARDING"}}}`)
	w := httptest.NewRecorder()
	req, _ := http.NewRequestWithContext(context.Background(), http.MethodPost, "/tenants", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	var got struct {
		Tenant domaintenant.Tenant `json:"tenant"`
		Token  string              `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "acme", got.Tenant.Name)
	assert.Equal(t, domainstage.FormOnboarding, got.Tenant.Gates[domainstage.FormConverted].RedirectTo)

	claims, err := tokens.Parse(got.Token)
	require.NoError(t, err)
	assert.Equal(t, got.Tenant.ID, claims.TenantID)
}

func TestCreateTenant_BadBody(t *testing.T) {
	r, _, _ := newRouter(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequestWithContext(context.Background(), http.MethodPost, "/tenants", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// ── GET /current ─────────────────────────────────────────────────────────────

func TestCurrentTenant(t *testing.T) {
	t.Run("resolved from token", func(t *testing.T) {
		r, repo, tokens := newRouter(t)
		tenantID := uuid.New()
		tok, err := tokens.Issue(tenantID, "")
		require.NoError(t, err)
		repo.EXPECT().GetByID(gomock.Any(), tenantID).Return(domaintenant.Tenant{ID: tenantID, Name: "acme"}, nil)

		w := httptest.NewRecorder()
		req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, "/tenants/current", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("deleted tenant is 404", func(t *testing.T) {
		r, repo, tokens := newRouter(t)
		tenantID := uuid.New()
		tok, err := tokens.Issue(tenantID, "")
		require.NoError(t, err)
		repo.EXPECT().GetByID(gomock.Any(), tenantID).Return(domaintenant.Tenant{}, domaintenant.ErrNotFound)

		w := httptest.NewRecorder()
		req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, "/tenants/current", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("no token is 401", func(t *testing.T) {
		r, _, _ := newRouter(t)

		w := httptest.NewRecorder()
		req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, "/tenants/current", nil)
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("repository failure is 500", func(t *testing.T) {
		r, repo, tokens := newRouter(t)
		tenantID := uuid.New()
		tok, err := tokens.Issue(tenantID, "")
		require.NoError(t, err)
		repo.EXPECT().GetByID(gomock.Any(), tenantID).Return(domaintenant.Tenant{}, errors.New("db error"))

		w := httptest.NewRecorder()
		req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, "/tenants/current", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}
