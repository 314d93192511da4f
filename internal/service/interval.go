package service

import (
	"fmt"
	"strconv"
	"strings"
)

// RoundDuration is the fixed length of one patrol round, in minutes.
const RoundDuration = 10

// RoundInterval converts a round start "HH:MM" into "HH:MM-HH:MM", where the
// end is RoundDuration minutes later modulo 24h. Input is expected to be a
// well-formed time; it is not validated here.
func RoundInterval(start string) string {
	hh, mm, _ := strings.Cut(start, ":")
	h, _ := strconv.Atoi(hh)
	m, _ := strconv.Atoi(mm)

	total := (h*60 + m + RoundDuration) % (24 * 60)
	return fmt.Sprintf("%02d:%02d-%02d:%02d", h, m, total/60, total%60)
}

// NormalizeRounds maps RoundInterval over starts, preserving order.
func NormalizeRounds(starts []string) []string {
	out := make([]string, 0, len(starts))
	for _, s := range starts {
		out = append(out, RoundInterval(s))
	}
	return out
}

// roundStart returns the "HH:MM" start of a stored interval.
func roundStart(interval string) string {
	start, _, _ := strings.Cut(interval, "-")
	return start
}
