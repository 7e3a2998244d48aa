package lead_test

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyang/lead-pipeline/internal/domain/lead"
	"github.com/alanyang/lead-pipeline/internal/domain/stage"
)

func TestNew(t *testing.T) {
	tenantID := uuid.New()
	l := lead.New(tenantID, "  Ada  ", "ada@example.com", "", "Analytical", 1200, "1")

	assert.NotEmpty(t, l.ID)
	assert.Equal(t, tenantID, l.TenantID)
	assert.Equal(t, "Ada", l.Name)
	assert.Equal(t, "new", l.Status)
	assert.Equal(t, stage.ID("1"), l.StageID)
	assert.True(t, l.HasStage())
	assert.False(t, l.Terminal())
	assert.Equal(t, l.CreatedAt, l.UpdatedAt)
}

func TestLead_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name      string
		in        string
		wantID    lead.ID
		wantStage stage.ID
	}{
		{name: "canonical", in: `{"leadId":"L1","stageId":"s1"}`, wantID: "L1", wantStage: "s1"},
		{name: "legacy id", in: `{"id":7,"stageId":"s1"}`, wantID: "7", wantStage: "s1"},
		{name: "leadId wins over id", in: `{"leadId":"L1","id":"L2"}`, wantID: "L1"},
		{name: "pipelineId numeric", in: `{"leadId":"L1","pipelineId":2}`, wantStage: "2", wantID: "L1"},
		{name: "pipelineId wins over stageId", in: `{"leadId":"L1","pipelineId":"p","stageId":"s"}`, wantID: "L1", wantStage: "p"},
		{name: "no stage", in: `{"leadId":"L1"}`, wantID: "L1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var l lead.Lead
			require.NoError(t, json.Unmarshal([]byte(tt.in), &l))
			assert.Equal(t, tt.wantID, l.ID)
			assert.Equal(t, tt.wantStage, l.StageID)
		})
	}
}

func TestLead_MarshalUsesSingleStageField(t *testing.T) {
	l := lead.Lead{ID: "L1", Name: "Ada", StageID: "3"}
	data, err := json.Marshal(l)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "3", raw["stageId"])
	assert.NotContains(t, raw, "pipelineId")
}

func TestLead_Terminal(t *testing.T) {
	tests := []struct {
		name string
		l    lead.Lead
		want bool
	}{
		{name: "fresh", l: lead.Lead{}, want: false},
		{name: "lost", l: lead.Lead{ReasonForLost: "price"}, want: true},
		{name: "junk", l: lead.Lead{ReasonForJunk: "spam"}, want: true},
		{name: "converted", l: lead.Lead{Conversion: &lead.Conversion{Amount: 1}}, want: true},
		{name: "custom form", l: lead.Lead{FormData: map[string]any{"k": "v"}}, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.l.Terminal())
		})
	}
}

func TestIDs(t *testing.T) {
	assert.Equal(t, []lead.ID{"a", "b"}, lead.IDs([]lead.Lead{{ID: "a"}, {ID: "b"}}))
	assert.Empty(t, lead.IDs(nil))
}
