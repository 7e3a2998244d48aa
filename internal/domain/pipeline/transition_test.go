package pipeline_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/alanyang/lead-pipeline/internal/domain/lead"
	"github.com/alanyang/lead-pipeline/internal/domain/pipeline"
	"github.com/alanyang/lead-pipeline/internal/domain/stage"
)

func TestEvaluate(t *testing.T) {
	reg := stage.NewRegistry(boardStages())

	tests := []struct {
		name     string
		lead     lead.Lead
		target   string
		want     pipeline.Kind
		wantForm stage.FormType
		wantTo   stage.ID
		reason   string
	}{
		{name: "plain move commits", lead: lead.Lead{ID: "a", StageID: "1"}, target: "Contacted", want: pipeline.Commit, wantTo: "2"},
		{name: "unassigned lead commits", lead: lead.Lead{ID: "a"}, target: "New", want: pipeline.Commit, wantTo: "1"},
		{name: "same stage is noop", lead: lead.Lead{ID: "a", StageID: "2"}, target: "Contacted", want: pipeline.NoOp, wantTo: "2", reason: pipeline.ReasonSameStage},
		{name: "unknown target is noop", lead: lead.Lead{ID: "a", StageID: "1"}, target: "Nowhere", want: pipeline.NoOp, reason: pipeline.ReasonUnknownStage},
		{name: "name match is exact", lead: lead.Lead{ID: "a", StageID: "1"}, target: "contacted", want: pipeline.NoOp, reason: pipeline.ReasonUnknownStage},
		{name: "converted defers", lead: lead.Lead{ID: "a", StageID: "2"}, target: "Won", want: pipeline.Deferred, wantForm: stage.FormConverted, wantTo: "3"},
		{name: "lost defers", lead: lead.Lead{ID: "a", StageID: "2"}, target: "Lost", want: pipeline.Deferred, wantForm: stage.FormLost, wantTo: "5"},
		{name: "custom kind defers", lead: lead.Lead{ID: "a", StageID: "3"}, target: "Onboarding", want: pipeline.Deferred, wantForm: stage.FormOnboarding, wantTo: "4"},
		{name: "gated same stage is noop", lead: lead.Lead{ID: "a", StageID: "3"}, target: "Won", want: pipeline.NoOp, wantTo: "3", reason: pipeline.ReasonSameStage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := pipeline.Evaluate(tt.lead, tt.target, reg)
			assert.Equal(t, tt.want, d.Kind)
			assert.Equal(t, tt.wantForm, d.FormType)
			assert.Equal(t, tt.wantTo, d.TargetStageID)
			assert.Equal(t, tt.reason, d.Reason)
			assert.Equal(t, tt.lead.StageID, d.SourceStageID)
		})
	}
}

func TestEvaluate_DoesNotMutateLead(t *testing.T) {
	reg := stage.NewRegistry(boardStages())
	l := lead.Lead{ID: "a", StageID: "1"}
	_ = pipeline.Evaluate(l, "Won", reg)
	assert.Equal(t, stage.ID("1"), l.StageID)
}
