package model

// CommandType classifies a free-text instruction.
type CommandType string

const (
	CommandEdit       CommandType = "edit"
	CommandDelete     CommandType = "delete"
	CommandAddJournal CommandType = "add_journal"
)

// IsValid reports whether t is one of the known command types.
func (t CommandType) IsValid() bool {
	switch t {
	case CommandEdit, CommandDelete, CommandAddJournal:
		return true
	}
	return false
}

// EditAction is an operation on one field of an entry.
type EditAction string

const (
	ActionAddRounds     EditAction = "add_rounds"
	ActionRemoveRounds  EditAction = "remove_rounds"
	ActionReplaceRounds EditAction = "replace_rounds"
	ActionAddEvents     EditAction = "add_events"
	ActionRemoveEvents  EditAction = "remove_events"
	ActionReplaceEvents EditAction = "replace_events"
)

// EditActions lists every valid action in schema order.
var EditActions = []EditAction{
	ActionAddRounds, ActionRemoveRounds, ActionReplaceRounds,
	ActionAddEvents, ActionRemoveEvents, ActionReplaceEvents,
}

// IsValid reports whether a is a known action.
func (a EditAction) IsValid() bool {
	for _, known := range EditActions {
		if a == known {
			return true
		}
	}
	return false
}

// Field returns the entry field the action touches.
func (a EditAction) Field() Field {
	switch a {
	case ActionAddEvents, ActionRemoveEvents, ActionReplaceEvents:
		return FieldEvents
	default:
		return FieldRounds
	}
}

// CommandIntent is the structured form of an edit-by-voice instruction.
// EntryIndex is 1-based over the guard's entries, newest first.
type CommandIntent struct {
	Type       CommandType `json:"command_type"`
	EntryIndex int         `json:"entry_index,omitempty"`
	Action     EditAction  `json:"action,omitempty"`
	Rounds     []string    `json:"rounds,omitempty"`
	Events     []Event     `json:"events,omitempty"`
}
