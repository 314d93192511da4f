package bot

import (
	"fmt"
	"time"

	"github.com/guardlog/guardlog/internal/model"
	"github.com/guardlog/guardlog/internal/service"
)

// parseDisplayDate converts DD.MM.YYYY (single-digit day and month allowed)
// to the storage form.
func parseDisplayDate(s string) (string, error) {
	t, err := time.Parse("2.1.2006", s)
	if err != nil {
		return "", fmt.Errorf("%w: date must be DD.MM.YYYY, got %q", service.ErrMalformedCommand, s)
	}
	return t.Format(model.DateLayout), nil
}

// parseStorageDate validates a YYYY-MM-DD callback payload.
func parseStorageDate(s string) (string, error) {
	t, err := time.Parse(model.DateLayout, s)
	if err != nil {
		return "", fmt.Errorf("%w: bad date %q", service.ErrMalformedCommand, s)
	}
	return t.Format(model.DateLayout), nil
}

func displayDate(storage string) string {
	e := model.JournalEntry{Date: storage}
	return e.DisplayDate()
}
