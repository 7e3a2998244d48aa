package pipeline_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/alanyang/lead-pipeline/internal/domain/pipeline"
	"github.com/alanyang/lead-pipeline/internal/domain/stage"
)

func boardStages() []stage.Stage {
	return []stage.Stage{
		{ID: "1", Name: "New", OrderIndex: 0},
		{ID: "2", Name: "Contacted", OrderIndex: 1},
		{ID: "3", Name: "Won", OrderIndex: 2, FormType: stage.FormConverted},
		{ID: "4", Name: "Onboarding", OrderIndex: 3, FormType: stage.FormOnboarding},
		{ID: "5", Name: "Lost", OrderIndex: 4, FormType: stage.FormLost},
	}
}

func TestGates_Destination(t *testing.T) {
	reg := stage.NewRegistry(boardStages())
	won, _ := reg.ByID("3")
	lost, _ := reg.ByID("5")

	tests := []struct {
		name   string
		gates  pipeline.Gates
		ft     stage.FormType
		target stage.Stage
		want   stage.ID
	}{
		{name: "defaults keep target", gates: pipeline.DefaultGates, ft: stage.FormConverted, target: won, want: "3"},
		{name: "nil gates keep target", gates: nil, ft: stage.FormLost, target: lost, want: "5"},
		{
			name:   "redirect conversions to onboarding",
			gates:  pipeline.Gates{stage.FormConverted: {RedirectTo: stage.FormOnboarding}},
			ft:     stage.FormConverted, target: won, want: "4",
		},
		{
			name:   "redirect to missing form type keeps target",
			gates:  pipeline.Gates{stage.FormLost: {RedirectTo: stage.FormJunk}},
			ft:     stage.FormLost, target: lost, want: "5",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.gates.Destination(tt.ft, tt.target, reg)
			assert.Equal(t, tt.want, got.ID)
		})
	}
}
