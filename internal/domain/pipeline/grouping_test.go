package pipeline_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyang/lead-pipeline/internal/domain/lead"
	"github.com/alanyang/lead-pipeline/internal/domain/pipeline"
	"github.com/alanyang/lead-pipeline/internal/domain/stage"
)

// ── DecodePayload ─────────────────────────────────────────────────────────────

func TestDecodePayload(t *testing.T) {
	tests := []struct {
		name      string
		in        string
		wantShape pipeline.Shape
		wantLeads int
		wantErr   bool
	}{
		{name: "tagged grouped", in: `{"shape":"grouped","groups":[{"stageId":"1","leads":[{"leadId":"a"}]}]}`, wantShape: pipeline.ShapeGrouped, wantLeads: 1},
		{name: "tagged flat", in: `{"shape":"flat","leads":[{"leadId":"a"},{"leadId":"b"}]}`, wantShape: pipeline.ShapeFlat, wantLeads: 2},
		{name: "tagged flat ignores groups", in: `{"shape":"flat","leads":[],"groups":[{"stageId":"1","leads":[{"leadId":"x"}]}]}`, wantShape: pipeline.ShapeFlat, wantLeads: 0},
		{name: "tagged unknown", in: `{"shape":"tree"}`, wantErr: true},
		{name: "bare grouped", in: `[{"pipelineId":1,"leads":[{"id":1},{"id":2}]}]`, wantShape: pipeline.ShapeGrouped, wantLeads: 2},
		{name: "bare flat", in: `[{"leadId":"a","stageId":"1"}]`, wantShape: pipeline.ShapeFlat, wantLeads: 1},
		{name: "bare empty", in: `[]`, wantShape: pipeline.ShapeFlat},
		{name: "empty body", in: ``, wantShape: pipeline.ShapeFlat},
		{name: "scalar", in: `42`, wantErr: true},
		{name: "malformed", in: `[{"leadId":`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := pipeline.DecodePayload([]byte(tt.in))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantShape, p.Shape)
			assert.Len(t, p.AllLeads(), tt.wantLeads)
		})
	}
}

func TestDecodePayload_GroupSynonym(t *testing.T) {
	p, err := pipeline.DecodePayload([]byte(`[{"pipelineId":"p","stageId":"s","leads":[]}]`))
	require.NoError(t, err)
	require.Len(t, p.Groups, 1)
	assert.Equal(t, stage.ID("p"), p.Groups[0].StageID)
}

// ── Normalize ─────────────────────────────────────────────────────────────────

func TestNormalize_GroupedKnownStages(t *testing.T) {
	reg := stage.NewRegistry(boardStages())
	p := pipeline.Grouped([]pipeline.Group{
		{StageID: "2", Leads: []lead.Lead{{ID: "a"}, {ID: "b"}}},
		{StageID: "1", Leads: []lead.Lead{{ID: "c"}}},
	})

	g := pipeline.Normalize(p, reg)

	assert.Equal(t, []string{"New", "Contacted", "Won", "Onboarding", "Lost"}, g.StageNames())
	byName := g.ByName()
	assert.Equal(t, []lead.ID{"c"}, lead.IDs(byName["New"]))
	assert.Equal(t, []lead.ID{"a", "b"}, lead.IDs(byName["Contacted"]))
	assert.Empty(t, byName["Won"])
	assert.Equal(t, 3, g.Count())
}

func TestNormalize_GroupedUnknownStageGetsFallbackBucket(t *testing.T) {
	reg := stage.NewRegistry(boardStages())
	p := pipeline.Grouped([]pipeline.Group{
		{StageID: "deadbeef99", Leads: []lead.Lead{{ID: "a"}}},
		{StageID: "", Leads: []lead.Lead{{ID: "b"}}},
	})

	g := pipeline.Normalize(p, reg)

	require.Len(t, g.Buckets, 7)
	last := g.Buckets[len(g.Buckets)-2:]
	assert.Equal(t, "Stage ef99", last[0].Name)
	assert.True(t, last[0].Synthetic)
	assert.Equal(t, "Unknown stage", last[1].Name)
	assert.Equal(t, 2, g.Count())
}

func TestNormalize_FallbackLabelNeverMergesWithRealStage(t *testing.T) {
	reg := stage.NewRegistry([]stage.Stage{
		{ID: "1", Name: "New", OrderIndex: 0},
		{ID: "2", Name: "Stage 0042", OrderIndex: 1},
	})
	p := pipeline.Grouped([]pipeline.Group{
		{StageID: "2", Leads: []lead.Lead{{ID: "a"}}},
		{StageID: "x0042", Leads: []lead.Lead{{ID: "b"}}},
		{StageID: "y0042", Leads: []lead.Lead{{ID: "c"}}},
	})

	g := pipeline.Normalize(p, reg)

	require.Len(t, g.Buckets, 4)
	byName := g.ByName()
	assert.Len(t, byName, 4)
	assert.Equal(t, []lead.ID{"a"}, lead.IDs(byName["Stage 0042"]))
	assert.Equal(t, []lead.ID{"b"}, lead.IDs(byName["Stage 0042 (x0042)"]))
	assert.Equal(t, []lead.ID{"c"}, lead.IDs(byName["Stage 0042 (y0042)"]))
}

func TestNormalize_FlatResolvesByStageID(t *testing.T) {
	reg := stage.NewRegistry(boardStages())
	p := pipeline.Flat([]lead.Lead{
		{ID: "a", StageID: "3"},
		{ID: "b", StageID: "1"},
		{ID: "c", StageID: "missing"},
		{ID: "d"},
	})

	g := pipeline.Normalize(p, reg)

	byName := g.ByName()
	assert.Equal(t, []lead.ID{"a"}, lead.IDs(byName["Won"]))
	assert.Equal(t, []lead.ID{"b", "c", "d"}, lead.IDs(byName["New"]))
	assert.Empty(t, g.Unassigned)
}

func TestNormalize_FlatWithoutStagesIsUnassigned(t *testing.T) {
	g := pipeline.Normalize(pipeline.Flat([]lead.Lead{{ID: "a", StageID: "1"}}), stage.NewRegistry(nil))

	assert.Empty(t, g.Buckets)
	assert.Equal(t, []lead.ID{"a"}, lead.IDs(g.Unassigned))
	assert.Equal(t, 1, g.Count())
}

func TestNormalize_DuplicateLeadKeepsFirstPlacement(t *testing.T) {
	reg := stage.NewRegistry(boardStages())
	p := pipeline.Grouped([]pipeline.Group{
		{StageID: "1", Leads: []lead.Lead{{ID: "a"}}},
		{StageID: "2", Leads: []lead.Lead{{ID: "a"}}},
	})

	g := pipeline.Normalize(p, reg)

	_, bucket, ok := g.Find("a")
	require.True(t, ok)
	assert.Equal(t, "New", bucket.Name)
	assert.Equal(t, 1, g.Count())
}

func TestNormalize_ShapesAgree(t *testing.T) {
	reg := stage.NewRegistry(boardStages())
	grouped := pipeline.Grouped([]pipeline.Group{
		{StageID: "1", Leads: []lead.Lead{{ID: "a", StageID: "1"}}},
		{StageID: "5", Leads: []lead.Lead{{ID: "b", StageID: "5"}}},
	})
	flat := pipeline.Flat([]lead.Lead{{ID: "a", StageID: "1"}, {ID: "b", StageID: "5"}})

	assert.Equal(t, pipeline.Normalize(grouped, reg), pipeline.Normalize(flat, reg))
}

func TestGrouping_Find(t *testing.T) {
	g := pipeline.Grouping{
		Buckets:    []pipeline.Bucket{{StageID: "1", Name: "New", Leads: []lead.Lead{{ID: "a"}}}},
		Unassigned: []lead.Lead{{ID: "z"}},
	}

	_, b, ok := g.Find("a")
	require.True(t, ok)
	assert.Equal(t, stage.ID("1"), b.StageID)

	_, b, ok = g.Find("z")
	require.True(t, ok)
	assert.True(t, b.StageID.IsZero())

	_, _, ok = g.Find("missing")
	assert.False(t, ok)
}
