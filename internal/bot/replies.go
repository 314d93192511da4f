package bot

import (
	"fmt"
	"strings"

	"github.com/guardlog/guardlog/internal/model"
	"github.com/guardlog/guardlog/internal/telegram"
)

// Reply is the single outbound message produced for an update.
// At most one of Keyboard and Inline is set. Toast is shown when the
// update was a button press.
type Reply struct {
	Text     string
	Keyboard [][]string
	Inline   [][]telegram.Button
	Toast    string
}

// menuKeyboard is the persistent reply keyboard.
var menuKeyboard = [][]string{
	{MenuList, MenuEdit},
	{MenuDelete, MenuHelp},
}

const (
	textAccessDenied      = "⛔ Доступ запрещён. Обратитесь к администратору."
	textAskSurname        = "👋 Добро пожаловать! Для регистрации отправьте свою фамилию или команду /start Фамилия."
	textNeedRegistration  = "Сначала зарегистрируйтесь: отправьте /start Фамилия."
	textRegistrationShut  = "⛔ Регистрация закрыта: все места заняты."
	textInvalidSurname    = "Фамилия должна быть непустой и не длиннее 64 символов."
	textGenericFailure    = "⚠️ Произошла ошибка. Попробуйте ещё раз позже."
	textEntryNotFound     = "Запись не найдена."
	textNoEntries         = "Записей пока нет."
	textNothingExtracted  = "Не нашёл в сообщении ни обходов, ни событий. Пример: «Обходы 10:10, 12:25; в 11:00 проверил ворота»."
	textNothingToRemove   = "В записи нет ничего подходящего для удаления. Запись не изменена."
	textEmptyMessage      = "Отправьте текст или голосовое сообщение с обходами и событиями."
	textVoiceTooLarge     = "Голосовое сообщение слишком большое."
	textUnknownButton     = "Эта кнопка больше не работает. Откройте список заново: /list"
	textChooseDelete      = "Выберите запись для удаления:"
	textChooseEditHeader  = "Выберите запись для редактирования или отправьте команду:\n" + editUsage
	textMalformedFallback = "Не понял команду.\n" + helpText
)

const editUsage = `• rounds: 09:00, 15:00 (заменить обходы за сегодня)
• events 02.01.2025: 23:40 открыты ворота (заменить события за дату)
• /edit 1 добавь обход 14:00 (правка записи №1 из /list)`

const helpText = `📘 Журнал обходов

Просто отправьте текст или голосовое сообщение, например:
«Обходы 10:10, 12:25. В 11:00 проверил ворота».
Запись за сегодня создаётся или заменяется целиком.

Команды:
/list - мои записи
/delete ДД.ММ.ГГГГ - удалить запись за дату
/delete - выбрать запись для удаления
/edit инструкция - правка записи голосом или текстом
/start Фамилия - регистрация или смена фамилии

Частичная правка:
` + editUsage

func withMenu(text string) Reply {
	return Reply{Text: text, Keyboard: menuKeyboard}
}

func retryReply(minutes int) Reply {
	return Reply{Text: fmt.Sprintf("⏳ Слишком много запросов. Попробуйте через %d мин.", minutes)}
}

func malformedReply(detail string) Reply {
	return Reply{Text: fmt.Sprintf("Не понял команду: %s.\n\nПримеры:\n%s\n/delete 02.01.2025", detail, editUsage)}
}

// formatEntry renders one entry for chat.
func formatEntry(e *model.JournalEntry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📅 %s, %s\n", e.DisplayDate(), e.Surname)

	if len(e.Rounds) == 0 {
		b.WriteString("Обходы: нет\n")
	} else {
		fmt.Fprintf(&b, "Обходы: %s\n", strings.Join(e.Rounds, ", "))
	}

	if len(e.Events) == 0 {
		b.WriteString("События: нет")
	} else {
		b.WriteString("События:")
		for _, ev := range e.Events {
			fmt.Fprintf(&b, "\n• %s %s", ev.Time, ev.Description)
		}
	}

	return b.String()
}

// formatList renders numbered entries; numbers are the indexes /edit uses.
func formatList(entries []*model.JournalEntry) string {
	var b strings.Builder
	b.WriteString("📋 Ваши записи:")
	for i, e := range entries {
		fmt.Fprintf(&b, "\n\n%d. %s", i+1, formatEntry(e))
	}
	return b.String()
}

func deleteButtons(entries []*model.JournalEntry) [][]telegram.Button {
	rows := make([][]telegram.Button, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []telegram.Button{{
			Text: "🗑 " + e.DisplayDate(),
			Data: CallbackDeletePrefix + e.Date,
		}})
	}
	return rows
}

func editButtons(entries []*model.JournalEntry) [][]telegram.Button {
	rows := make([][]telegram.Button, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []telegram.Button{{
			Text: "✏️ " + e.DisplayDate(),
			Data: CallbackEditPrefix + e.Date,
		}})
	}
	return rows
}

func listButtons(entries []*model.JournalEntry) [][]telegram.Button {
	rows := make([][]telegram.Button, 0, len(entries))
	for i, e := range entries {
		rows = append(rows, []telegram.Button{
			{Text: fmt.Sprintf("✏️ %d", i+1), Data: CallbackEditPrefix + e.Date},
			{Text: fmt.Sprintf("🗑 %d", i+1), Data: CallbackDeletePrefix + e.Date},
		})
	}
	return rows
}

func editPrompt(displayDate string) string {
	return fmt.Sprintf("✏️ Запись за %s. Отправьте новые данные:\n• rounds %s: 09:00, 15:00\n• events %s: 23:40 открыты ворота",
		displayDate, displayDate, displayDate)
}
