package telegram

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type fakeAPI struct {
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
	fileURL  string
	sendErr  error
	reqErr   error
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, f.sendErr
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.requests = append(f.requests, c)
	if f.reqErr != nil {
		return nil, f.reqErr
	}
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) GetFileDirectURL(string) (string, error) {
	return f.fileURL, nil
}

func TestClient_SendText(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{}
	client := NewWithAPI(api, nil, 0)

	if err := client.SendText(context.Background(), 42, "привет"); err != nil {
		t.Fatalf("SendText: %v", err)
	}

	msg, ok := api.sent[0].(tgbotapi.MessageConfig)
	if !ok {
		t.Fatalf("expected MessageConfig, got %T", api.sent[0])
	}
	if msg.ChatID != 42 || msg.Text != "привет" {
		t.Errorf("unexpected message: %+v", msg)
	}
}

func TestClient_SendFailureIsTransport(t *testing.T) {
	t.Parallel()

	client := NewWithAPI(&fakeAPI{sendErr: errors.New("bad gateway")}, nil, 0)
	if err := client.SendText(context.Background(), 42, "x"); !errors.Is(err, ErrTransport) {
		t.Errorf("expected ErrTransport, got %v", err)
	}
}

func TestClient_ErrorsDoNotLeakToken(t *testing.T) {
	t.Parallel()

	sendErr := &url.Error{
		Op:  "Post",
		URL: "https://api.telegram.org/bot123456:SECRET-TOKEN/sendMessage",
		Err: errors.New("connection refused"),
	}
	client := NewWithAPI(&fakeAPI{sendErr: sendErr}, nil, 0)

	err := client.SendText(context.Background(), 42, "x")
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
	if strings.Contains(err.Error(), "SECRET-TOKEN") {
		t.Errorf("error leaks bot token: %v", err)
	}
	if !strings.Contains(err.Error(), "connection refused") {
		t.Errorf("cause lost: %v", err)
	}
}

func TestClient_SendKeyboard(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{}
	client := NewWithAPI(api, nil, 0)

	rows := [][]string{{"📋 Мои записи", "❓ Помощь"}}
	if err := client.SendKeyboard(context.Background(), 42, "меню", rows); err != nil {
		t.Fatal(err)
	}

	msg := api.sent[0].(tgbotapi.MessageConfig)
	keyboard, ok := msg.ReplyMarkup.(tgbotapi.ReplyKeyboardMarkup)
	if !ok {
		t.Fatalf("expected reply keyboard, got %T", msg.ReplyMarkup)
	}
	if !keyboard.ResizeKeyboard || keyboard.Keyboard[0][1].Text != "❓ Помощь" {
		t.Errorf("unexpected keyboard: %+v", keyboard)
	}
}

func TestClient_SendInline(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{}
	client := NewWithAPI(api, nil, 0)

	rows := [][]Button{{{Text: "🗑 02.01.2025", Data: "delete:2025-01-02"}}}
	if err := client.SendInline(context.Background(), 42, "удалить?", rows); err != nil {
		t.Fatal(err)
	}

	msg := api.sent[0].(tgbotapi.MessageConfig)
	markup, ok := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	if !ok {
		t.Fatalf("expected inline markup, got %T", msg.ReplyMarkup)
	}
	button := markup.InlineKeyboard[0][0]
	if button.CallbackData == nil || *button.CallbackData != "delete:2025-01-02" {
		t.Errorf("unexpected button: %+v", button)
	}
}

func TestClient_AnswerCallback(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{}
	client := NewWithAPI(api, nil, 0)

	if err := client.AnswerCallback(context.Background(), "cb-1", "Готово"); err != nil {
		t.Fatal(err)
	}

	cb, ok := api.requests[0].(tgbotapi.CallbackConfig)
	if !ok || cb.CallbackQueryID != "cb-1" || cb.Text != "Готово" {
		t.Errorf("unexpected callback answer: %+v", api.requests[0])
	}
}

func TestClient_DownloadFile(t *testing.T) {
	t.Parallel()

	payload := []byte("OggS-voice-data")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	client := NewWithAPI(&fakeAPI{fileURL: srv.URL + "/file/voice.oga"}, srv.Client(), 1024)

	data, err := client.DownloadFile(context.Background(), "file-1")
	if err != nil {
		t.Fatalf("DownloadFile: %v", err)
	}
	if !bytes.Equal(data, payload) {
		t.Errorf("data = %q", data)
	}
}

func TestClient_DownloadFileTooLarge(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write(bytes.Repeat([]byte("x"), 64))
	}))
	defer srv.Close()

	client := NewWithAPI(&fakeAPI{fileURL: srv.URL}, srv.Client(), 16)

	_, err := client.DownloadFile(context.Background(), "file-1")
	if !errors.Is(err, ErrFileTooLarge) {
		t.Fatalf("expected ErrFileTooLarge, got %v", err)
	}
	if hits.Load() != 1 {
		t.Errorf("oversized file should not be retried, got %d requests", hits.Load())
	}
}

func TestClient_DownloadFileRetriesServerErrors(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	client := NewWithAPI(&fakeAPI{fileURL: srv.URL}, srv.Client(), 1024)

	data, err := client.DownloadFile(context.Background(), "file-1")
	if err != nil {
		t.Fatalf("DownloadFile: %v", err)
	}
	if string(data) != "ok" || hits.Load() != 2 {
		t.Errorf("data=%q hits=%d", data, hits.Load())
	}
}

func TestClient_DownloadFileNotFound(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	client := NewWithAPI(&fakeAPI{fileURL: srv.URL}, srv.Client(), 1024)

	if _, err := client.DownloadFile(context.Background(), "file-1"); !errors.Is(err, ErrTransport) {
		t.Errorf("expected ErrTransport, got %v", err)
	}
}

func TestClient_RegisterWebhook(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{}
	client := NewWithAPI(api, nil, 0)

	if err := client.RegisterWebhook(context.Background(), "https://guards.example.com/webhook/s3cr3t"); err != nil {
		t.Fatalf("RegisterWebhook: %v", err)
	}

	wh, ok := api.requests[0].(tgbotapi.WebhookConfig)
	if !ok {
		t.Fatalf("expected WebhookConfig, got %T", api.requests[0])
	}
	if wh.URL.String() != "https://guards.example.com/webhook/s3cr3t" {
		t.Errorf("webhook url = %s", wh.URL)
	}
}
