// Package telegram is the outbound side of the Telegram Bot API: sending
// replies, acknowledging button presses, downloading voice files and
// registering the webhook.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/avast/retry-go/v4"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Transport errors.
var (
	ErrTransport    = errors.New("telegram transport failure")
	ErrFileTooLarge = errors.New("file too large")
)

const (
	// ClientTimeout is the total request timeout.
	ClientTimeout = 30 * time.Second
	// DialTimeout is the connection timeout.
	DialTimeout = 10 * time.Second
	// TLSHandshakeTimeout is the TLS negotiation timeout.
	TLSHandshakeTimeout = 10 * time.Second

	retryAttempts = 3
	retryDelay    = 500 * time.Millisecond
)

// API is the subset of *tgbotapi.BotAPI the client uses.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
}

// Button is one inline keyboard button carrying callback data.
type Button struct {
	Text string
	Data string
}

// Client sends messages through the Bot API.
type Client struct {
	api          API
	http         *http.Client
	maxFileBytes int64
}

// NewHTTPClient creates the HTTP client shared by Bot API calls and file
// downloads. It does not follow redirects.
func NewHTTPClient() *http.Client {
	return &http.Client{
		Timeout: ClientTimeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   DialTimeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout: TLSHandshakeTimeout,
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// New connects to the Bot API with token. maxFileBytes bounds downloads.
func New(token string, maxFileBytes int64) (*Client, error) {
	httpClient := NewHTTPClient()

	api, err := tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, httpClient)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to init bot: %v", ErrTransport, err)
	}

	return NewWithAPI(api, httpClient, maxFileBytes), nil
}

// NewWithAPI builds a Client over an existing API implementation.
func NewWithAPI(api API, httpClient *http.Client, maxFileBytes int64) *Client {
	if httpClient == nil {
		httpClient = NewHTTPClient()
	}
	return &Client{api: api, http: httpClient, maxFileBytes: maxFileBytes}
}

// SendText sends a plain message.
func (c *Client) SendText(ctx context.Context, chatID int64, text string) error {
	return c.send(ctx, tgbotapi.NewMessage(chatID, text))
}

// SendKeyboard sends a message and installs a persistent reply keyboard
// with the given button rows.
func (c *Client) SendKeyboard(ctx context.Context, chatID int64, text string, rows [][]string) error {
	keyboardRows := make([][]tgbotapi.KeyboardButton, 0, len(rows))
	for _, row := range rows {
		buttons := make([]tgbotapi.KeyboardButton, 0, len(row))
		for _, label := range row {
			buttons = append(buttons, tgbotapi.NewKeyboardButton(label))
		}
		keyboardRows = append(keyboardRows, tgbotapi.NewKeyboardButtonRow(buttons...))
	}

	keyboard := tgbotapi.NewReplyKeyboard(keyboardRows...)
	keyboard.ResizeKeyboard = true

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = keyboard
	return c.send(ctx, msg)
}

// SendInline sends a message with inline buttons.
func (c *Client) SendInline(ctx context.Context, chatID int64, text string, rows [][]Button) error {
	msg := tgbotapi.NewMessage(chatID, text)
	if len(rows) > 0 {
		msg.ReplyMarkup = inlineMarkup(rows)
	}
	return c.send(ctx, msg)
}

// AnswerCallback acknowledges a button press, optionally with a toast.
func (c *Client) AnswerCallback(ctx context.Context, callbackID, text string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	if _, err := c.api.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		return fmt.Errorf("%w: answer callback: %v", ErrTransport, stripURL(err))
	}
	return nil
}

// DownloadFile fetches a file by id. Files over the configured size are
// rejected with ErrFileTooLarge. Transient failures are retried.
func (c *Client) DownloadFile(ctx context.Context, fileID string) ([]byte, error) {
	data, err := retry.DoWithData(
		func() ([]byte, error) {
			return c.download(ctx, fileID)
		},
		retry.Context(ctx),
		retry.Attempts(retryAttempts),
		retry.Delay(retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		if errors.Is(err, ErrFileTooLarge) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: download file: %v", ErrTransport, err)
	}
	return data, nil
}

func (c *Client) download(ctx context.Context, fileID string) ([]byte, error) {
	fileURL, err := c.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("resolve file url: %w", stripURL(err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, retry.Unrecoverable(stripURL(err))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, stripURL(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("unexpected status %d", resp.StatusCode)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return nil, retry.Unrecoverable(err)
		}
		return nil, err
	}

	if c.maxFileBytes > 0 && resp.ContentLength > c.maxFileBytes {
		return nil, retry.Unrecoverable(ErrFileTooLarge)
	}

	reader := io.Reader(resp.Body)
	if c.maxFileBytes > 0 {
		reader = io.LimitReader(resp.Body, c.maxFileBytes+1)
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	if c.maxFileBytes > 0 && int64(len(data)) > c.maxFileBytes {
		return nil, retry.Unrecoverable(ErrFileTooLarge)
	}

	return data, nil
}

// RegisterWebhook points Telegram at url. Retried on failure since it runs
// once at startup.
func (c *Client) RegisterWebhook(ctx context.Context, webhookURL string) error {
	wh, err := tgbotapi.NewWebhook(webhookURL)
	if err != nil {
		return fmt.Errorf("invalid webhook url: %w", err)
	}
	wh.AllowedUpdates = []string{"message", "callback_query"}

	err = retry.Do(
		func() error {
			_, err := c.api.Request(wh)
			return stripURL(err)
		},
		retry.Context(ctx),
		retry.Attempts(retryAttempts),
		retry.Delay(retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return fmt.Errorf("%w: set webhook: %v", ErrTransport, err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, msg tgbotapi.MessageConfig) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	if _, err := c.api.Send(msg); err != nil {
		return fmt.Errorf("%w: send message: %v", ErrTransport, stripURL(err))
	}
	return nil
}

// stripURL drops the request URL from transport errors; Bot API URLs embed
// the token.
func stripURL(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Errorf("%s: %w", urlErr.Op, urlErr.Err)
	}
	return err
}

func inlineMarkup(rows [][]Button) tgbotapi.InlineKeyboardMarkup {
	markupRows := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data))
		}
		markupRows = append(markupRows, tgbotapi.NewInlineKeyboardRow(buttons...))
	}
	return tgbotapi.NewInlineKeyboardMarkup(markupRows...)
}
