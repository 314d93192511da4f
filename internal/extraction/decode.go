package extraction

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/guardlog/guardlog/internal/model"
)

var timePattern = regexp.MustCompile(`^([01]?[0-9]|2[0-3]):([0-5][0-9])$`)

type eventPayload struct {
	Time        *string `json:"time"`
	Description *string `json:"description"`
}

type journalPayload struct {
	Rounds *[]string       `json:"rounds"`
	Events *[]eventPayload `json:"events"`
}

type roundsPayload struct {
	Rounds *[]string `json:"rounds"`
}

type eventsPayload struct {
	Events *[]eventPayload `json:"events"`
}

type intentPayload struct {
	CommandType *string        `json:"command_type"`
	EntryIndex  *int           `json:"entry_index"`
	Action      *string        `json:"action"`
	Rounds      []string       `json:"rounds"`
	Events      []eventPayload `json:"events"`
}

func decodeJournal(raw string) (*model.JournalFields, error) {
	var p journalPayload
	if err := decodeStrict(raw, &p); err != nil {
		return nil, err
	}
	if p.Rounds == nil {
		return nil, missingField("rounds")
	}
	if p.Events == nil {
		return nil, missingField("events")
	}

	rounds, err := normalizeTimes(*p.Rounds)
	if err != nil {
		return nil, err
	}
	events, err := validateEvents(*p.Events)
	if err != nil {
		return nil, err
	}

	return &model.JournalFields{Rounds: rounds, Events: events}, nil
}

func decodeRounds(raw string) ([]string, error) {
	var p roundsPayload
	if err := decodeStrict(raw, &p); err != nil {
		return nil, err
	}
	if p.Rounds == nil {
		return nil, missingField("rounds")
	}
	return normalizeTimes(*p.Rounds)
}

func decodeEvents(raw string) ([]model.Event, error) {
	var p eventsPayload
	if err := decodeStrict(raw, &p); err != nil {
		return nil, err
	}
	if p.Events == nil {
		return nil, missingField("events")
	}
	return validateEvents(*p.Events)
}

func decodeIntent(raw string) (*model.CommandIntent, error) {
	var p intentPayload
	if err := decodeStrict(raw, &p); err != nil {
		return nil, err
	}
	if p.CommandType == nil {
		return nil, missingField("command_type")
	}

	intent := &model.CommandIntent{Type: model.CommandType(*p.CommandType)}
	if !intent.Type.IsValid() {
		return nil, fmt.Errorf("%w: unknown command_type %q", ErrExtractionFailed, *p.CommandType)
	}

	if p.EntryIndex != nil {
		intent.EntryIndex = *p.EntryIndex
	}
	if p.Action != nil && *p.Action != "" {
		intent.Action = model.EditAction(*p.Action)
		if !intent.Action.IsValid() {
			return nil, fmt.Errorf("%w: unknown action %q", ErrExtractionFailed, *p.Action)
		}
	}

	rounds, err := normalizeTimes(p.Rounds)
	if err != nil {
		return nil, err
	}
	validate := validateEvents
	if intent.Action == model.ActionRemoveEvents {
		validate = validateEventPatterns
	}
	events, err := validate(p.Events)
	if err != nil {
		return nil, err
	}
	intent.Rounds = rounds
	intent.Events = events

	return intent, nil
}

// decodeStrict decodes exactly one JSON object into v, rejecting unknown
// fields and trailing data. A surrounding markdown code fence is tolerated.
func decodeStrict(raw string, v any) error {
	dec := json.NewDecoder(strings.NewReader(stripCodeFence(raw)))
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: response is not valid JSON for the schema: %v", ErrExtractionFailed, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: trailing data after JSON object", ErrExtractionFailed)
	}

	return nil
}

func stripCodeFence(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// normalizeTime validates an H:MM or HH:MM time and zero-pads the hour.
func normalizeTime(s string) (string, error) {
	m := timePattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return "", fmt.Errorf("%w: invalid time %q", ErrExtractionFailed, s)
	}
	hour := m[1]
	if len(hour) == 1 {
		hour = "0" + hour
	}
	return hour + ":" + m[2], nil
}

func normalizeTimes(times []string) ([]string, error) {
	out := make([]string, 0, len(times))
	for _, t := range times {
		n, err := normalizeTime(t)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func validateEvents(events []eventPayload) ([]model.Event, error) {
	out := make([]model.Event, 0, len(events))
	for i, e := range events {
		if e.Time == nil {
			return nil, missingField(fmt.Sprintf("events[%d].time", i))
		}
		if e.Description == nil || strings.TrimSpace(*e.Description) == "" {
			return nil, missingField(fmt.Sprintf("events[%d].description", i))
		}
		t, err := normalizeTime(*e.Time)
		if err != nil {
			return nil, err
		}
		out = append(out, model.Event{Time: t, Description: strings.TrimSpace(*e.Description)})
	}
	return out, nil
}

// validateEventPatterns is validateEvents for remove targets: the
// description may be absent or empty, which matches by time only.
func validateEventPatterns(events []eventPayload) ([]model.Event, error) {
	out := make([]model.Event, 0, len(events))
	for i, e := range events {
		if e.Time == nil {
			return nil, missingField(fmt.Sprintf("events[%d].time", i))
		}
		t, err := normalizeTime(*e.Time)
		if err != nil {
			return nil, err
		}
		var description string
		if e.Description != nil {
			description = strings.TrimSpace(*e.Description)
		}
		out = append(out, model.Event{Time: t, Description: description})
	}
	return out, nil
}

func missingField(name string) error {
	return fmt.Errorf("%w: missing required field %q", ErrExtractionFailed, name)
}
