package extraction

import (
	"google.golang.org/genai"

	"github.com/guardlog/guardlog/internal/model"
)

const transcribeInstruction = `Transcribe this voice message from a security guard verbatim.
The speech is in Russian. Return only the transcription, with no comments.`

const journalInstruction = `You read a security guard's patrol report (Russian) and fill a journal.
"rounds" are the START times of patrol rounds in 24-hour HH:MM form. Never output end times or ranges:
for "обход с 10:10 до 10:20" output "10:10".
"events" are other occurrences, each with the HH:MM time and a short Russian description.
Return empty arrays when nothing matches.`

const roundsInstruction = `Extract the START times of security patrol rounds from the text (Russian).
Use 24-hour HH:MM. Never output end times or ranges.`

const eventsInstruction = `Extract the events from a security guard's text (Russian).
Each event has an HH:MM time and a short Russian description.`

const intentInstruction = `Classify a security guard's instruction about their journal (Russian).
Entries are numbered from 1, newest first, as in the guard's list.
- "edit": change entry number entry_index; set action and put the affected values in rounds (HH:MM start times) or events.
  For remove_events the description may be left empty to remove every event at that time.
- "delete": delete entry number entry_index.
- "add_journal": the text is a new report; put its rounds and events in rounds and events.`

func timeSchema() *genai.Schema {
	return &genai.Schema{
		Type:        genai.TypeString,
		Description: "24-hour time, HH:MM",
	}
}

func eventSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"time":        timeSchema(),
			"description": {Type: genai.TypeString},
		},
		Required: []string{"time", "description"},
	}
}

// intentEventSchema leaves description optional so that a remove can target
// an event by time alone.
func intentEventSchema() *genai.Schema {
	schema := eventSchema()
	schema.Required = []string{"time"}
	return schema
}

func roundsProperty() *genai.Schema {
	return &genai.Schema{Type: genai.TypeArray, Items: timeSchema()}
}

func eventsProperty() *genai.Schema {
	return &genai.Schema{Type: genai.TypeArray, Items: eventSchema()}
}

func journalSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"rounds": roundsProperty(),
			"events": eventsProperty(),
		},
		Required: []string{"rounds", "events"},
	}
}

func roundsSchema() *genai.Schema {
	return &genai.Schema{
		Type:       genai.TypeObject,
		Properties: map[string]*genai.Schema{"rounds": roundsProperty()},
		Required:   []string{"rounds"},
	}
}

func eventsSchema() *genai.Schema {
	return &genai.Schema{
		Type:       genai.TypeObject,
		Properties: map[string]*genai.Schema{"events": eventsProperty()},
		Required:   []string{"events"},
	}
}

func intentSchema() *genai.Schema {
	actions := make([]string, 0, len(model.EditActions))
	for _, a := range model.EditActions {
		actions = append(actions, string(a))
	}

	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"command_type": {
				Type:   genai.TypeString,
				Format: "enum",
				Enum: []string{
					string(model.CommandEdit),
					string(model.CommandDelete),
					string(model.CommandAddJournal),
				},
			},
			"entry_index": {Type: genai.TypeInteger},
			"action":      {Type: genai.TypeString, Format: "enum", Enum: actions},
			"rounds":      roundsProperty(),
			"events":      {Type: genai.TypeArray, Items: intentEventSchema()},
		},
		Required: []string{"command_type"},
	}
}
