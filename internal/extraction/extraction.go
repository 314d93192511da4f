// Package extraction turns guard speech and text into structured journal
// data with a schema-constrained language model. Model output is treated as
// untrusted: anything that does not match the requested schema exactly is
// rejected with ErrExtractionFailed.
package extraction

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/guardlog/guardlog/internal/metrics"
	"github.com/guardlog/guardlog/internal/model"
)

// ErrExtractionFailed is returned when the model call fails or its response
// cannot be used.
var ErrExtractionFailed = errors.New("extraction failed")

// Operation names used for metrics.
const (
	OpTranscribe = "transcribe"
	OpJournal    = "journal"
	OpRounds     = "rounds"
	OpEvents     = "events"
	OpIntent     = "intent"
)

// Request is one model call. Audio is optional; Schema nil asks for free text.
type Request struct {
	Instruction   string
	Text          string
	Audio         []byte
	AudioMIMEType string
	Schema        *genai.Schema
}

// Generator performs a single model call and returns the candidate text.
type Generator interface {
	Generate(ctx context.Context, req *Request) (string, error)
}

// Client exposes the extraction operations used by the pipeline.
type Client struct {
	gen     Generator
	metrics metrics.Recorder
}

// NewClient creates a new Client.
func NewClient(gen Generator, recorder metrics.Recorder) *Client {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Client{gen: gen, metrics: recorder}
}

// Transcribe converts a voice message to text.
func (c *Client) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	if len(audio) == 0 {
		return "", fmt.Errorf("%w: empty audio", ErrExtractionFailed)
	}
	if mimeType == "" {
		mimeType = "audio/ogg"
	}

	raw, err := c.generate(ctx, OpTranscribe, &Request{
		Instruction:   transcribeInstruction,
		Audio:         audio,
		AudioMIMEType: mimeType,
	})
	if err != nil {
		return "", err
	}

	text := strings.TrimSpace(raw)
	if text == "" {
		c.metrics.IncExtractionFailure(OpTranscribe)
		return "", fmt.Errorf("%w: no text in transcription", ErrExtractionFailed)
	}

	return text, nil
}

// ExtractJournal extracts round start times and events from text.
func (c *Client) ExtractJournal(ctx context.Context, text string) (*model.JournalFields, error) {
	raw, err := c.generate(ctx, OpJournal, &Request{
		Instruction: journalInstruction,
		Text:        text,
		Schema:      journalSchema(),
	})
	if err != nil {
		return nil, err
	}

	fields, err := decodeJournal(raw)
	if err != nil {
		c.metrics.IncExtractionFailure(OpJournal)
		return nil, err
	}

	return fields, nil
}

// ExtractRounds extracts only round start times from text.
func (c *Client) ExtractRounds(ctx context.Context, text string) ([]string, error) {
	raw, err := c.generate(ctx, OpRounds, &Request{
		Instruction: roundsInstruction,
		Text:        text,
		Schema:      roundsSchema(),
	})
	if err != nil {
		return nil, err
	}

	rounds, err := decodeRounds(raw)
	if err != nil {
		c.metrics.IncExtractionFailure(OpRounds)
		return nil, err
	}

	return rounds, nil
}

// ExtractEvents extracts only events from text.
func (c *Client) ExtractEvents(ctx context.Context, text string) ([]model.Event, error) {
	raw, err := c.generate(ctx, OpEvents, &Request{
		Instruction: eventsInstruction,
		Text:        text,
		Schema:      eventsSchema(),
	})
	if err != nil {
		return nil, err
	}

	events, err := decodeEvents(raw)
	if err != nil {
		c.metrics.IncExtractionFailure(OpEvents)
		return nil, err
	}

	return events, nil
}

// ExtractCommandIntent classifies an edit-by-voice instruction.
func (c *Client) ExtractCommandIntent(ctx context.Context, text string) (*model.CommandIntent, error) {
	raw, err := c.generate(ctx, OpIntent, &Request{
		Instruction: intentInstruction,
		Text:        text,
		Schema:      intentSchema(),
	})
	if err != nil {
		return nil, err
	}

	intent, err := decodeIntent(raw)
	if err != nil {
		c.metrics.IncExtractionFailure(OpIntent)
		return nil, err
	}

	return intent, nil
}

func (c *Client) generate(ctx context.Context, op string, req *Request) (string, error) {
	start := time.Now()
	raw, err := c.gen.Generate(ctx, req)
	c.metrics.ObserveExtractionDuration(op, time.Since(start))
	if err != nil {
		c.metrics.IncExtractionFailure(op)
		if errors.Is(err, ErrExtractionFailed) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}
	return raw, nil
}
