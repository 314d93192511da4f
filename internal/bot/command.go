// Package bot routes inbound Telegram updates through the journal pipeline.
// Each update is classified once into a Command and then dispatched on its
// Kind; every dispatched update produces exactly one Reply.
package bot

import (
	"regexp"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/guardlog/guardlog/internal/model"
)

// Kind tags a classified update.
type Kind int

const (
	// KindIgnored is an update with no sender or chat; nothing is replied.
	KindIgnored Kind = iota
	KindCallback
	KindVoice
	KindRegister
	KindHelp
	KindList
	KindDelete
	KindEdit
	KindUnknownCommand
	KindMenuList
	KindMenuDelete
	KindMenuEdit
	KindMenuHelp
	KindFieldEdit
	KindPlainText
)

var kindNames = map[Kind]string{
	KindIgnored:        "ignored",
	KindCallback:       "callback",
	KindVoice:          "voice",
	KindRegister:       "register",
	KindHelp:           "help",
	KindList:           "list",
	KindDelete:         "delete",
	KindEdit:           "edit",
	KindUnknownCommand: "unknown_command",
	KindMenuList:       "menu_list",
	KindMenuDelete:     "menu_delete",
	KindMenuEdit:       "menu_edit",
	KindMenuHelp:       "menu_help",
	KindFieldEdit:      "field_edit",
	KindPlainText:      "plain_text",
}

// String returns the route name used in logs and metrics.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Menu button labels of the persistent keyboard.
const (
	MenuList   = "📋 Мои записи"
	MenuDelete = "🗑 Удалить запись"
	MenuEdit   = "✏️ Редактировать"
	MenuHelp   = "❓ Помощь"
)

// Callback data values. Date-carrying callbacks use "<prefix>:YYYY-MM-DD".
const (
	CallbackList         = "list"
	CallbackHelp         = "help"
	CallbackDeletePrefix = "delete:"
	CallbackEditPrefix   = "edit:"
)

// Command is the tagged union produced by Classify. Which fields are set
// depends on Kind:
//   - Callback: CallbackID, Arg (callback data)
//   - Voice: FileID, MIMEType, FileSize
//   - Register, Delete, Edit, UnknownCommand: Arg (command arguments;
//     the command name for UnknownCommand)
//   - FieldEdit: Field, Date (raw DD.MM.YYYY, may be empty), Arg (payload)
//   - PlainText: Arg (the text)
type Command struct {
	Kind   Kind
	ChatID int64
	UserID int64

	Arg        string
	CallbackID string

	FileID   string
	MIMEType string
	FileSize int

	Field model.Field
	Date  string
}

// fieldEditPattern matches "rounds: ..." and "events 02.01.2025: ...".
var fieldEditPattern = regexp.MustCompile(`(?is)^(rounds|events)(?:\s+(\d{1,2}\.\d{1,2}\.\d{4}))?\s*:\s*(.*)$`)

// fieldLabelPattern finds a field label inside an edit payload. A payload
// naming both fields is a full report, not a single-field edit.
var fieldLabelPattern = regexp.MustCompile(`(?i)\b(rounds|events)(?:\s+\d{1,2}\.\d{1,2}\.\d{4})?\s*:`)

var fieldAliases = map[string]model.Field{
	"rounds": model.FieldRounds,
	"events": model.FieldEvents,
}

// Classify turns an update into a Command. Precedence: callback, voice,
// command keyword, menu button, field-prefixed edit, plain text.
func Classify(update tgbotapi.Update) Command {
	if cq := update.CallbackQuery; cq != nil {
		if cq.From == nil {
			return Command{Kind: KindIgnored}
		}
		chatID := cq.From.ID
		if cq.Message != nil && cq.Message.Chat != nil {
			chatID = cq.Message.Chat.ID
		}
		return Command{
			Kind:       KindCallback,
			ChatID:     chatID,
			UserID:     cq.From.ID,
			CallbackID: cq.ID,
			Arg:        cq.Data,
		}
	}

	msg := update.Message
	if msg == nil || msg.From == nil || msg.Chat == nil {
		return Command{Kind: KindIgnored}
	}

	cmd := Command{ChatID: msg.Chat.ID, UserID: msg.From.ID}

	if msg.Voice != nil {
		cmd.Kind = KindVoice
		cmd.FileID = msg.Voice.FileID
		cmd.MIMEType = msg.Voice.MimeType
		cmd.FileSize = msg.Voice.FileSize
		return cmd
	}

	if msg.IsCommand() {
		cmd.Arg = strings.TrimSpace(msg.CommandArguments())
		switch strings.ToLower(msg.Command()) {
		case "start":
			cmd.Kind = KindRegister
		case "help":
			cmd.Kind = KindHelp
		case "list":
			cmd.Kind = KindList
		case "delete":
			cmd.Kind = KindDelete
		case "edit":
			cmd.Kind = KindEdit
		default:
			cmd.Kind = KindUnknownCommand
			cmd.Arg = msg.Command()
		}
		return cmd
	}

	text := strings.TrimSpace(msg.Text)

	switch text {
	case MenuList:
		cmd.Kind = KindMenuList
		return cmd
	case MenuDelete:
		cmd.Kind = KindMenuDelete
		return cmd
	case MenuEdit:
		cmd.Kind = KindMenuEdit
		return cmd
	case MenuHelp:
		cmd.Kind = KindMenuHelp
		return cmd
	}

	if m := fieldEditPattern.FindStringSubmatch(text); m != nil && !fieldLabelPattern.MatchString(m[3]) {
		cmd.Kind = KindFieldEdit
		cmd.Field = fieldAliases[strings.ToLower(m[1])]
		cmd.Date = m[2]
		cmd.Arg = strings.TrimSpace(m[3])
		return cmd
	}

	// Stickers and photos arrive here with an empty Arg.
	cmd.Kind = KindPlainText
	cmd.Arg = text
	return cmd
}
