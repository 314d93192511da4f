package service

import (
	"context"
	"errors"
	"testing"

	"github.com/guardlog/guardlog/internal/extraction"
	"github.com/guardlog/guardlog/internal/model"
)

func TestInterpreter_Interpret(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		intent  *model.CommandIntent
		err     error
		wantErr error
	}{
		{
			name:   "edit",
			intent: &model.CommandIntent{Type: model.CommandEdit, EntryIndex: 1, Action: model.ActionAddRounds, Rounds: []string{"10:00"}},
		},
		{
			name:    "edit without index",
			intent:  &model.CommandIntent{Type: model.CommandEdit, Action: model.ActionAddRounds, Rounds: []string{"10:00"}},
			wantErr: ErrMalformedCommand,
		},
		{
			name:    "edit without action",
			intent:  &model.CommandIntent{Type: model.CommandEdit, EntryIndex: 1},
			wantErr: ErrMalformedCommand,
		},
		{
			name:    "add without payload",
			intent:  &model.CommandIntent{Type: model.CommandEdit, EntryIndex: 1, Action: model.ActionAddEvents},
			wantErr: ErrMalformedCommand,
		},
		{
			name:   "replace with empty payload clears",
			intent: &model.CommandIntent{Type: model.CommandEdit, EntryIndex: 1, Action: model.ActionReplaceEvents},
		},
		{
			name:   "delete",
			intent: &model.CommandIntent{Type: model.CommandDelete, EntryIndex: 3},
		},
		{
			name:    "delete without index",
			intent:  &model.CommandIntent{Type: model.CommandDelete},
			wantErr: ErrMalformedCommand,
		},
		{
			name:   "add journal",
			intent: &model.CommandIntent{Type: model.CommandAddJournal, Events: []model.Event{{Time: "10:00", Description: "x"}}},
		},
		{
			name:    "add journal empty",
			intent:  &model.CommandIntent{Type: model.CommandAddJournal},
			wantErr: ErrMalformedCommand,
		},
		{
			name:    "unknown type",
			intent:  &model.CommandIntent{Type: "rename"},
			wantErr: extraction.ErrExtractionFailed,
		},
		{
			name:    "extractor failure passes through",
			err:     extraction.ErrExtractionFailed,
			wantErr: extraction.ErrExtractionFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			interp := NewInterpreter(&fakeExtractor{intent: tt.intent, err: tt.err})
			got, err := interp.Interpret(context.Background(), "text")
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Interpret: %v", err)
			}
			if got != tt.intent {
				t.Errorf("intent = %+v, want %+v", got, tt.intent)
			}
		})
	}
}
