package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/guardlog/guardlog/internal/cache"
	"github.com/guardlog/guardlog/internal/extraction"
	"github.com/guardlog/guardlog/internal/metrics"
	"github.com/guardlog/guardlog/internal/model"
	"github.com/guardlog/guardlog/internal/service"
	"github.com/guardlog/guardlog/internal/telegram"
)

// Messenger delivers replies and fetches voice files.
type Messenger interface {
	SendText(ctx context.Context, chatID int64, text string) error
	SendKeyboard(ctx context.Context, chatID int64, text string, rows [][]string) error
	SendInline(ctx context.Context, chatID int64, text string, rows [][]telegram.Button) error
	AnswerCallback(ctx context.Context, callbackID, text string) error
	DownloadFile(ctx context.Context, fileID string) ([]byte, error)
}

// RateLimiter gates requests per Telegram identifier.
type RateLimiter interface {
	CheckUserRateLimit(ctx context.Context, identifier int64, window time.Duration, limit int) (*cache.RateLimitResult, error)
}

// Users is the guard registry.
type Users interface {
	Get(ctx context.Context, identifier int64) (*model.User, error)
	Register(ctx context.Context, identifier int64, surname string) (*model.User, bool, error)
}

// Journal is the merge engine.
type Journal interface {
	UpsertEntry(ctx context.Context, in service.EntryInput) (*model.JournalEntry, service.UpsertOutcome, error)
	ApplyPartialEdit(ctx context.Context, identifier int64, date string, field model.Field, rawText string) (*model.JournalEntry, error)
	DeleteEntry(ctx context.Context, identifier int64, date string) (bool, error)
	ListEntries(ctx context.Context, identifier int64, limit int) ([]*model.JournalEntry, error)
	ApplyEdit(ctx context.Context, identifier int64, index int, action model.EditAction, rounds []string, events []model.Event) (*model.JournalEntry, error)
	DeleteByIndex(ctx context.Context, identifier int64, index int) (*model.JournalEntry, error)
}

// Extractor transcribes voice and extracts journal fields.
type Extractor interface {
	Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error)
	ExtractJournal(ctx context.Context, text string) (*model.JournalFields, error)
}

// Interpreter classifies /edit instructions.
type Interpreter interface {
	Interpret(ctx context.Context, text string) (*model.CommandIntent, error)
}

// Deps are the collaborators of a Dispatcher.
type Deps struct {
	Messenger   Messenger
	RateLimiter RateLimiter
	Users       Users
	Journal     Journal
	Extractor   Extractor
	Interpreter Interpreter
}

// Config tunes a Dispatcher.
type Config struct {
	// AllowedUserIDs, when non-empty, is the only set of identifiers served.
	AllowedUserIDs []int64
	RateWindow     time.Duration
	RateLimit      int
	// Location decides which calendar day "today" is.
	Location *time.Location
	// MaxVoiceBytes rejects voice messages whose reported size exceeds it
	// before anything is downloaded. Zero disables the check.
	MaxVoiceBytes int64
}

// Dispatcher runs one update through Received, RateChecked, Routed and
// ends in Handled or Failed. It keeps no state between updates.
type Dispatcher struct {
	deps    Deps
	cfg     Config
	allowed map[int64]struct{}
	logger  *slog.Logger
	metrics metrics.Recorder
	now     func() time.Time
}

// New creates a new Dispatcher.
func New(deps Deps, cfg Config, logger *slog.Logger, recorder metrics.Recorder) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}

	allowed := make(map[int64]struct{}, len(cfg.AllowedUserIDs))
	for _, id := range cfg.AllowedUserIDs {
		allowed[id] = struct{}{}
	}

	return &Dispatcher{
		deps:    deps,
		cfg:     cfg,
		allowed: allowed,
		logger:  logger,
		metrics: recorder,
		now:     time.Now,
	}
}

// Handle processes one update. User-visible failures are answered and are
// not returned; a non-nil error means routing itself failed (a recovered
// panic) and the caller should report it upstream.
func (d *Dispatcher) Handle(ctx context.Context, update tgbotapi.Update) (err error) {
	cmd := Classify(update)
	if cmd.Kind == KindIgnored {
		d.logger.Debug("ignoring update without sender", slog.Int("update_id", update.UpdateID))
		return nil
	}

	logger := d.logger.With(
		slog.Int("update_id", update.UpdateID),
		slog.Int64("identifier", cmd.UserID),
		slog.String("route", cmd.Kind.String()),
	)
	d.metrics.IncUpdateHandled(cmd.Kind.String())

	reply := func() (reply Reply) {
		defer func() {
			if rvr := recover(); rvr != nil {
				logger.Error("panic recovered",
					slog.Any("panic", rvr),
					slog.String("stack", string(debug.Stack())),
				)
				err = fmt.Errorf("dispatcher panic: %v", rvr)
				reply = Reply{Text: textGenericFailure}
			}
		}()
		return d.route(ctx, logger, cmd)
	}()

	d.deliver(ctx, logger, cmd, reply)
	return err
}

func (d *Dispatcher) route(ctx context.Context, logger *slog.Logger, cmd Command) Reply {
	if !d.isAllowed(cmd.UserID) {
		logger.Warn("identifier not in allow-list")
		return Reply{Text: textAccessDenied}
	}

	// Registration stays reachable while throttled.
	if cmd.Kind != KindRegister {
		res, err := d.deps.RateLimiter.CheckUserRateLimit(ctx, cmd.UserID, d.cfg.RateWindow, d.cfg.RateLimit)
		if err != nil {
			return d.failure(logger, err)
		}
		if !res.Allowed {
			d.metrics.IncRateLimited()
			logger.Info("rate limited", slog.Int("retry_after_minutes", res.RetryAfterMinutes()))
			return retryReply(res.RetryAfterMinutes())
		}
	}

	user, err := d.deps.Users.Get(ctx, cmd.UserID)
	if err != nil {
		if !errors.Is(err, service.ErrUserNotFound) {
			return d.failure(logger, err)
		}
		user = nil
	}

	switch {
	case cmd.Kind == KindRegister:
		return d.handleRegister(ctx, logger, cmd, user)
	case user == nil && cmd.Kind == KindPlainText && cmd.Arg != "":
		return d.handleRegister(ctx, logger, cmd, nil)
	case user == nil:
		return Reply{Text: textNeedRegistration}
	}

	switch cmd.Kind {
	case KindCallback:
		return d.handleCallback(ctx, logger, cmd)
	case KindVoice:
		return d.handleVoice(ctx, logger, cmd, user)
	case KindHelp, KindMenuHelp:
		return withMenu(helpText)
	case KindList, KindMenuList:
		return d.handleList(ctx, logger, cmd)
	case KindDelete:
		return d.handleDelete(ctx, logger, cmd)
	case KindMenuDelete:
		return d.handleDeleteMenu(ctx, logger, cmd)
	case KindEdit:
		return d.handleEdit(ctx, logger, cmd, user)
	case KindMenuEdit:
		return d.handleEditMenu(ctx, logger, cmd)
	case KindFieldEdit:
		return d.handleFieldEdit(ctx, logger, cmd)
	case KindPlainText:
		return d.handleText(ctx, logger, cmd, user, cmd.Arg)
	case KindUnknownCommand:
		return Reply{Text: fmt.Sprintf("Неизвестная команда /%s. Список команд: /help", cmd.Arg)}
	}

	return Reply{Text: textMalformedFallback}
}

func (d *Dispatcher) handleRegister(ctx context.Context, logger *slog.Logger, cmd Command, existing *model.User) Reply {
	if cmd.Arg == "" {
		if existing != nil {
			return withMenu(fmt.Sprintf("👋 %s, вы уже зарегистрированы.\n\n%s", existing.Surname, helpText))
		}
		return Reply{Text: textAskSurname}
	}

	user, created, err := d.deps.Users.Register(ctx, cmd.UserID, cmd.Arg)
	if err != nil {
		return d.failure(logger, err)
	}

	if created {
		logger.Info("guard registered")
		return withMenu(fmt.Sprintf("✅ Вы зарегистрированы как %s.\n\n%s", user.Surname, helpText))
	}
	return withMenu(fmt.Sprintf("✅ Фамилия сохранена: %s.", user.Surname))
}

func (d *Dispatcher) handleVoice(ctx context.Context, logger *slog.Logger, cmd Command, user *model.User) Reply {
	if d.cfg.MaxVoiceBytes > 0 && int64(cmd.FileSize) > d.cfg.MaxVoiceBytes {
		return d.failure(logger, telegram.ErrFileTooLarge)
	}

	audio, err := d.deps.Messenger.DownloadFile(ctx, cmd.FileID)
	if err != nil {
		return d.failure(logger, err)
	}

	text, err := d.deps.Extractor.Transcribe(ctx, audio, cmd.MIMEType)
	if err != nil {
		return d.failure(logger, err)
	}

	reply := d.handleText(ctx, logger, cmd, user, text)
	reply.Text = fmt.Sprintf("🎙 Распознано: «%s»\n\n%s", text, reply.Text)
	return reply
}

// handleText extracts a full journal from text and upserts today's entry.
func (d *Dispatcher) handleText(ctx context.Context, logger *slog.Logger, cmd Command, user *model.User, text string) Reply {
	if strings.TrimSpace(text) == "" {
		return Reply{Text: textEmptyMessage}
	}

	fields, err := d.deps.Extractor.ExtractJournal(ctx, text)
	if err != nil {
		return d.failure(logger, err)
	}

	return d.upsert(ctx, logger, user, fields.Rounds, fields.Events)
}

func (d *Dispatcher) upsert(ctx context.Context, logger *slog.Logger, user *model.User, rounds []string, events []model.Event) Reply {
	entry, outcome, err := d.deps.Journal.UpsertEntry(ctx, service.EntryInput{
		Identifier: user.Identifier,
		Surname:    user.Surname,
		Date:       d.today(),
		Rounds:     rounds,
		Events:     events,
	})
	if err != nil {
		return d.failure(logger, err)
	}

	logger.Info("journal entry saved", slog.String("date", entry.Date), slog.String("outcome", outcome.String()))

	header := "✅ Запись создана"
	if outcome == service.UpsertUpdated {
		header = "✅ Запись за сегодня обновлена"
	}
	return withMenu(header + "\n\n" + formatEntry(entry))
}

func (d *Dispatcher) handleList(ctx context.Context, logger *slog.Logger, cmd Command) Reply {
	entries, err := d.deps.Journal.ListEntries(ctx, cmd.UserID, 0)
	if err != nil {
		return d.failure(logger, err)
	}
	if len(entries) == 0 {
		return withMenu(textNoEntries)
	}
	return Reply{Text: formatList(entries), Inline: listButtons(entries)}
}

func (d *Dispatcher) handleDelete(ctx context.Context, logger *slog.Logger, cmd Command) Reply {
	if cmd.Arg == "" {
		return d.handleDeleteMenu(ctx, logger, cmd)
	}

	date, err := parseDisplayDate(cmd.Arg)
	if err != nil {
		return d.failure(logger, err)
	}
	return d.deleteByDate(ctx, logger, cmd, date)
}

func (d *Dispatcher) deleteByDate(ctx context.Context, logger *slog.Logger, cmd Command, date string) Reply {
	deleted, err := d.deps.Journal.DeleteEntry(ctx, cmd.UserID, date)
	if err != nil {
		return d.failure(logger, err)
	}
	if !deleted {
		return Reply{Text: fmt.Sprintf("Запись за %s не найдена, удалять нечего.", displayDate(date)), Toast: "Не найдено"}
	}

	logger.Info("journal entry deleted", slog.String("date", date))
	return Reply{Text: fmt.Sprintf("🗑 Запись за %s удалена.", displayDate(date)), Toast: "Удалено"}
}

func (d *Dispatcher) handleDeleteMenu(ctx context.Context, logger *slog.Logger, cmd Command) Reply {
	entries, err := d.deps.Journal.ListEntries(ctx, cmd.UserID, 0)
	if err != nil {
		return d.failure(logger, err)
	}
	if len(entries) == 0 {
		return withMenu(textNoEntries)
	}
	return Reply{Text: textChooseDelete, Inline: deleteButtons(entries)}
}

func (d *Dispatcher) handleEditMenu(ctx context.Context, logger *slog.Logger, cmd Command) Reply {
	entries, err := d.deps.Journal.ListEntries(ctx, cmd.UserID, 0)
	if err != nil {
		return d.failure(logger, err)
	}
	if len(entries) == 0 {
		return withMenu(textNoEntries)
	}
	return Reply{Text: textChooseEditHeader, Inline: editButtons(entries)}
}

// handleEdit interprets a free-text /edit instruction.
func (d *Dispatcher) handleEdit(ctx context.Context, logger *slog.Logger, cmd Command, user *model.User) Reply {
	if cmd.Arg == "" {
		return d.handleEditMenu(ctx, logger, cmd)
	}

	intent, err := d.deps.Interpreter.Interpret(ctx, cmd.Arg)
	if err != nil {
		return d.failure(logger, err)
	}

	switch intent.Type {
	case model.CommandEdit:
		entry, err := d.deps.Journal.ApplyEdit(ctx, cmd.UserID, intent.EntryIndex, intent.Action, intent.Rounds, intent.Events)
		if err != nil {
			return d.failure(logger, err)
		}
		return withMenu("✏️ Запись изменена\n\n" + formatEntry(entry))
	case model.CommandDelete:
		entry, err := d.deps.Journal.DeleteByIndex(ctx, cmd.UserID, intent.EntryIndex)
		if err != nil {
			return d.failure(logger, err)
		}
		return withMenu(fmt.Sprintf("🗑 Запись за %s удалена.", entry.DisplayDate()))
	default:
		return d.upsert(ctx, logger, user, intent.Rounds, intent.Events)
	}
}

func (d *Dispatcher) handleFieldEdit(ctx context.Context, logger *slog.Logger, cmd Command) Reply {
	date := d.today()
	if cmd.Date != "" {
		parsed, err := parseDisplayDate(cmd.Date)
		if err != nil {
			return d.failure(logger, err)
		}
		date = parsed
	}
	if cmd.Arg == "" {
		return malformedReply("после двоеточия нет данных")
	}

	entry, err := d.deps.Journal.ApplyPartialEdit(ctx, cmd.UserID, date, cmd.Field, cmd.Arg)
	if err != nil {
		if errors.Is(err, service.ErrEntryNotFound) {
			return Reply{Text: fmt.Sprintf("Запись за %s не найдена. Сначала отправьте отчёт за этот день.", displayDate(date))}
		}
		return d.failure(logger, err)
	}

	label := "Обходы"
	if cmd.Field == model.FieldEvents {
		label = "События"
	}
	return withMenu(fmt.Sprintf("✏️ %s обновлены\n\n%s", label, formatEntry(entry)))
}

func (d *Dispatcher) handleCallback(ctx context.Context, logger *slog.Logger, cmd Command) Reply {
	data := cmd.Arg
	switch {
	case data == CallbackList:
		return d.handleList(ctx, logger, cmd)
	case data == CallbackHelp:
		return withMenu(helpText)
	case strings.HasPrefix(data, CallbackDeletePrefix):
		date, err := parseStorageDate(strings.TrimPrefix(data, CallbackDeletePrefix))
		if err != nil {
			return Reply{Text: textUnknownButton}
		}
		return d.deleteByDate(ctx, logger, cmd, date)
	case strings.HasPrefix(data, CallbackEditPrefix):
		date, err := parseStorageDate(strings.TrimPrefix(data, CallbackEditPrefix))
		if err != nil {
			return Reply{Text: textUnknownButton}
		}
		return Reply{Text: editPrompt(displayDate(date))}
	}

	logger.Warn("unknown callback data", slog.String("data", data))
	return Reply{Text: textUnknownButton}
}

// failure converts a pipeline error into the user-facing reply.
func (d *Dispatcher) failure(logger *slog.Logger, err error) Reply {
	switch {
	case errors.Is(err, service.ErrRegistrationClosed):
		logger.Info("registration rejected: cap reached")
		return Reply{Text: textRegistrationShut}
	case errors.Is(err, service.ErrInvalidSurname):
		return Reply{Text: textInvalidSurname}
	case errors.Is(err, service.ErrEntryNotFound):
		return Reply{Text: textEntryNotFound, Toast: "Не найдено"}
	case errors.Is(err, service.ErrNothingExtracted):
		return Reply{Text: textNothingExtracted}
	case errors.Is(err, service.ErrNothingToRemove):
		return Reply{Text: textNothingToRemove}
	case errors.Is(err, service.ErrMalformedCommand):
		return malformedReply(strings.TrimPrefix(err.Error(), service.ErrMalformedCommand.Error()+": "))
	case errors.Is(err, telegram.ErrFileTooLarge):
		return Reply{Text: textVoiceTooLarge}
	case errors.Is(err, extraction.ErrExtractionFailed):
		logger.Warn("extraction failed", slog.String("error", err.Error()))
		return Reply{Text: fmt.Sprintf("⚠️ Не удалось распознать сообщение: %v", err)}
	}

	logger.Error("update handling failed", slog.String("error", err.Error()))
	return Reply{Text: textGenericFailure}
}

// deliver sends the reply, shortened to the message size limit. Delivery is
// best effort: failures are logged.
func (d *Dispatcher) deliver(ctx context.Context, logger *slog.Logger, cmd Command, reply Reply) {
	reply.Text = telegram.TruncateText(reply.Text)

	if cmd.CallbackID != "" {
		if err := d.deps.Messenger.AnswerCallback(ctx, cmd.CallbackID, reply.Toast); err != nil {
			logger.Warn("failed to answer callback", slog.String("error", err.Error()))
		}
	}

	var err error
	switch {
	case len(reply.Inline) > 0:
		err = d.deps.Messenger.SendInline(ctx, cmd.ChatID, reply.Text, reply.Inline)
	case len(reply.Keyboard) > 0:
		err = d.deps.Messenger.SendKeyboard(ctx, cmd.ChatID, reply.Text, reply.Keyboard)
	default:
		err = d.deps.Messenger.SendText(ctx, cmd.ChatID, reply.Text)
	}
	if err != nil {
		logger.Warn("failed to deliver reply", slog.String("error", err.Error()))
	}
}

func (d *Dispatcher) isAllowed(identifier int64) bool {
	if len(d.allowed) == 0 {
		return true
	}
	_, ok := d.allowed[identifier]
	return ok
}

func (d *Dispatcher) today() string {
	return d.now().In(d.cfg.Location).Format(model.DateLayout)
}
