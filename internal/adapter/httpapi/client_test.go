package httpapi_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyang/lead-pipeline/internal/adapter/httpapi"
	"github.com/alanyang/lead-pipeline/internal/domain/gate"
	"github.com/alanyang/lead-pipeline/internal/domain/lead"
	"github.com/alanyang/lead-pipeline/internal/domain/pipeline"
	"github.com/alanyang/lead-pipeline/internal/domain/stage"
)

func newClient(t *testing.T, h http.HandlerFunc, shape pipeline.Shape) *httpapi.Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return httpapi.New(httpapi.Config{BaseURL: srv.URL + "/", Token: "tok", Shape: shape, RateLimit: 1000, RateBurst: 100})
}

// ── fetch ────────────────────────────────────────────────────────────────────

func TestFetchStages_SendsTokenAndDecodesSynonyms(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "/api/stages", r.URL.Path)
		io.WriteString(w, `[{"pipelineId":7,"name":" New "},{"stageId":"s2","name":"Won","formType":"CONVERTED"}]`)
	}, "")

	got, err := c.FetchStages(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, stage.ID("7"), got[0].ID)
	assert.Equal(t, "New", got[0].Name)
	assert.Equal(t, 1, got[1].OrderIndex, "position fills a missing orderIndex")
	assert.Equal(t, stage.FormConverted, got[1].FormType)
}

func TestFetchLeads_Shapes(t *testing.T) {
	tests := []struct {
		name      string
		shape     pipeline.Shape
		body      string
		wantShape pipeline.Shape
		wantLeads int
	}{
		{"tagged grouped", pipeline.ShapeGrouped, `{"shape":"grouped","groups":[{"stageId":"s1","leads":[{"leadId":"a"}]}]}`, pipeline.ShapeGrouped, 1},
		{"legacy grouped array", "", `[{"pipelineId":"s1","leads":[{"id":"a"},{"id":"b"}]}]`, pipeline.ShapeGrouped, 2},
		{"legacy flat array", "", `[{"leadId":"a","stageId":"s1"}]`, pipeline.ShapeFlat, 1},
		{"empty body", pipeline.ShapeFlat, ``, pipeline.ShapeFlat, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, string(tt.shape), r.URL.Query().Get("shape"))
				io.WriteString(w, tt.body)
			}, tt.shape)

			got, err := c.FetchLeads(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.wantShape, got.Shape)
			assert.Len(t, got.AllLeads(), tt.wantLeads)
		})
	}
}

// ── commands ─────────────────────────────────────────────────────────────────

func TestMoveLead(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/leads/l1/move", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "s2", body["stageId"])
		io.WriteString(w, `{}`)
	}, "")

	require.NoError(t, c.MoveLead(context.Background(), "l1", "s2"))
}

func TestSubmitGate_SendsOneCommand(t *testing.T) {
	var got gate.Command
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/leads/l1/gate", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		io.WriteString(w, `{}`)
	}, "")

	cmd := gate.Command{LeadID: "l1", TargetStageID: "won", FormType: stage.FormConverted,
		Payload: gate.Conversion{Amount: 50, Currency: "EUR"}}
	require.NoError(t, c.SubmitGate(context.Background(), cmd))
	assert.Equal(t, cmd, got)
}

func TestCreateStage(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req pipeline.CreateStageRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Lost", req.Name)
		assert.True(t, req.Gated)
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"stageId":"s9","name":"Lost","orderIndex":4,"formType":"LOST"}`)
	}, "")

	got, err := c.CreateStage(context.Background(), pipeline.CreateStageRequest{Name: "Lost", Gated: true, FormType: stage.FormLost})
	require.NoError(t, err)
	assert.Equal(t, stage.ID("s9"), got.ID)
	assert.Equal(t, 4, got.OrderIndex)
}

// ── rejections ───────────────────────────────────────────────────────────────

func TestRejections(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		call   func(*httpapi.Client) error
		want   error
	}{
		{
			name: "occupied delete", status: http.StatusConflict,
			body: `{"error":"stage has leads: s1"}`,
			call: func(c *httpapi.Client) error { return c.DeleteStages(context.Background(), []stage.ID{"s1"}) },
			want: pipeline.ErrStageOccupied,
		},
		{
			name: "missing lead", status: http.StatusNotFound,
			body: `{"error":"get lead: lead not found: l1"}`,
			call: func(c *httpapi.Client) error { return c.MoveLead(context.Background(), "l1", "s1") },
			want: lead.ErrNotFound,
		},
		{
			name: "duplicate name", status: http.StatusConflict,
			body: `{"error":"stage name already exists: \"New\""}`,
			call: func(c *httpapi.Client) error {
				_, err := c.CreateStage(context.Background(), pipeline.CreateStageRequest{Name: "New"})
				return err
			},
			want: pipeline.ErrStageNameTaken,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}, "")

			err := tt.call(c)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, httpapi.IsReject(err))
			var re *httpapi.RejectError
			require.ErrorAs(t, err, &re)
			assert.Equal(t, tt.status, re.Status)
		})
	}
}

func TestRejection_PlainTextReason(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "stage has leads", http.StatusConflict)
	}, "")

	err := c.DeleteStages(context.Background(), []stage.ID{"s1"})
	assert.ErrorIs(t, err, pipeline.ErrStageOccupied)
}

func TestTransportFailureIsNotReject(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()
	c := httpapi.New(httpapi.Config{BaseURL: srv.URL})

	_, err := c.FetchStages(context.Background())
	require.Error(t, err)
	assert.False(t, httpapi.IsReject(err))
}
