package bot

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"clearfocus/internal/model"
	"clearfocus/internal/service"
)

const buttonTitleRunes = 24

func mainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelFocus),
			tgbotapi.NewKeyboardButton(menuLabelRefocus),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelTasks),
			tgbotapi.NewKeyboardButton(menuLabelHelp),
		),
	)
	kb.ResizeKeyboard = true
	return kb
}

// focusKeyboard has one row per visible focus task plus the avoided task.
func focusKeyboard(view *service.FocusView) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, task := range view.Top() {
		if task != nil {
			rows = append(rows, taskRow(*task))
		}
	}
	if view.AvoidedTask != nil {
		rows = append(rows, taskRow(*view.AvoidedTask))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func taskListKeyboard(tasks []model.Task) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(tasks))
	for _, task := range tasks {
		rows = append(rows, taskRow(task))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// taskRow offers done (or undo once done), touched and archive.
func taskRow(task model.Task) []tgbotapi.InlineKeyboardButton {
	title := shortTitle(task.CanonicalText, buttonTitleRunes)
	var row []tgbotapi.InlineKeyboardButton
	if task.Status == model.TaskDone {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData("↩️ "+title, cbUndoPrefix+task.ID))
	} else {
		row = append(row,
			tgbotapi.NewInlineKeyboardButtonData("✅ "+title, cbDonePrefix+task.ID),
			tgbotapi.NewInlineKeyboardButtonData("👀", cbTouchPrefix+task.ID),
		)
	}
	return append(row, tgbotapi.NewInlineKeyboardButtonData("🗑", cbArchivePrefix+task.ID))
}

func confirmKeyboard(taskID string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Archive", cbConfirmPrefix+taskID),
			tgbotapi.NewInlineKeyboardButtonData("↩️ Keep", cbCancelPrefix+taskID),
		),
	)
}

func shortTitle(title string, maxLen int) string {
	runes := []rune(title)
	if len(runes) <= maxLen {
		return title
	}
	return string(runes[:maxLen-1]) + "…"
}
