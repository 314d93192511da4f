// Package dto provides Data Transfer Objects for API responses.
package dto

import (
	"time"

	"github.com/guardlog/guardlog/internal/model"
)

// EventResponse is one journal event.
type EventResponse struct {
	Time        string `json:"time"`
	Description string `json:"description"`
}

// JournalEntryResponse is one entry as the dashboard reads it.
type JournalEntryResponse struct {
	Surname   string          `json:"surname"`
	Date      string          `json:"date"`
	Rounds    []string        `json:"rounds"`
	Events    []EventResponse `json:"events"`
	CreatedAt time.Time       `json:"created_at"`
}

// ErrorResponse represents an API error.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// ToJournalEntryResponse converts a JournalEntry model to its DTO.
// Empty fields are rendered as empty arrays, never null.
func ToJournalEntryResponse(entry *model.JournalEntry) JournalEntryResponse {
	rounds := entry.Rounds
	if rounds == nil {
		rounds = []string{}
	}

	events := make([]EventResponse, len(entry.Events))
	for i, ev := range entry.Events {
		events[i] = EventResponse{Time: ev.Time, Description: ev.Description}
	}

	return JournalEntryResponse{
		Surname:   entry.Surname,
		Date:      entry.Date,
		Rounds:    rounds,
		Events:    events,
		CreatedAt: entry.CreatedAt,
	}
}

// ToJournalListResponse converts entries, preserving their order.
func ToJournalListResponse(entries []*model.JournalEntry) []JournalEntryResponse {
	out := make([]JournalEntryResponse, len(entries))
	for i, entry := range entries {
		out[i] = ToJournalEntryResponse(entry)
	}
	return out
}
