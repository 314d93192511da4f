package model

import "time"

// DateLayout is the storage and API form of a journal date.
const DateLayout = "2006-01-02"

// DisplayDateLayout is how dates are shown to and typed by guards.
const DisplayDateLayout = "02.01.2006"

// Event is a timestamped occurrence logged alongside rounds.
type Event struct {
	Time        string `json:"time"`
	Description string `json:"description"`
}

// JournalEntry is one guard's journal for one calendar day.
// Surname is a snapshot of the owner's surname at write time and is not
// rewritten when the owner re-registers under a new name.
type JournalEntry struct {
	ID         string    `json:"id"`
	Identifier int64     `json:"identifier"`
	Surname    string    `json:"surname"`
	Date       string    `json:"date"`
	Rounds     []string  `json:"rounds"`
	Events     []Event   `json:"events"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// DisplayDate returns the entry date as DD.MM.YYYY, or the raw value if it
// cannot be parsed.
func (e *JournalEntry) DisplayDate() string {
	t, err := time.Parse(DateLayout, e.Date)
	if err != nil {
		return e.Date
	}
	return t.Format(DisplayDateLayout)
}

// JournalFields is the structured result of extracting a journal from text.
// Rounds hold start times ("HH:MM") only.
type JournalFields struct {
	Rounds []string `json:"rounds"`
	Events []Event  `json:"events"`
}

// Field names one replaceable part of a journal entry.
type Field string

const (
	FieldRounds Field = "rounds"
	FieldEvents Field = "events"
)

// IsValid reports whether f is a known field.
func (f Field) IsValid() bool {
	return f == FieldRounds || f == FieldEvents
}
