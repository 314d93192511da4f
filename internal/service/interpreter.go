package service

import (
	"context"
	"fmt"

	"github.com/guardlog/guardlog/internal/extraction"
	"github.com/guardlog/guardlog/internal/model"
)

// IntentExtractor classifies free text into a command intent.
type IntentExtractor interface {
	ExtractCommandIntent(ctx context.Context, text string) (*model.CommandIntent, error)
}

// Interpreter turns an edit-by-voice instruction into a validated intent.
// It holds no state of its own.
type Interpreter struct {
	extractor IntentExtractor
}

// NewInterpreter creates a new Interpreter.
func NewInterpreter(extractor IntentExtractor) *Interpreter {
	return &Interpreter{extractor: extractor}
}

// Interpret classifies text. A type outside the known set is an extraction
// failure; a known type missing what it needs is ErrMalformedCommand.
func (i *Interpreter) Interpret(ctx context.Context, text string) (*model.CommandIntent, error) {
	intent, err := i.extractor.ExtractCommandIntent(ctx, text)
	if err != nil {
		return nil, err
	}

	switch intent.Type {
	case model.CommandEdit:
		if intent.EntryIndex < 1 {
			return nil, fmt.Errorf("%w: edit needs an entry number", ErrMalformedCommand)
		}
		if !intent.Action.IsValid() {
			return nil, fmt.Errorf("%w: edit needs an action", ErrMalformedCommand)
		}
		if intent.Action.Field() == model.FieldRounds && len(intent.Rounds) == 0 && intent.Action != model.ActionReplaceRounds {
			return nil, fmt.Errorf("%w: no rounds given", ErrMalformedCommand)
		}
		if intent.Action.Field() == model.FieldEvents && len(intent.Events) == 0 && intent.Action != model.ActionReplaceEvents {
			return nil, fmt.Errorf("%w: no events given", ErrMalformedCommand)
		}
	case model.CommandDelete:
		if intent.EntryIndex < 1 {
			return nil, fmt.Errorf("%w: delete needs an entry number", ErrMalformedCommand)
		}
	case model.CommandAddJournal:
		if len(intent.Rounds) == 0 && len(intent.Events) == 0 {
			return nil, fmt.Errorf("%w: no rounds or events given", ErrMalformedCommand)
		}
	default:
		return nil, fmt.Errorf("%w: unknown command type %q", extraction.ErrExtractionFailed, intent.Type)
	}

	return intent, nil
}
