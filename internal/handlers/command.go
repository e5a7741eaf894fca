package handlers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"rasta-market-bot/internal/locales"
	"rasta-market-bot/pkg/telegoapi"
)

// HandleStart handles the /start command.
// It registers the bot commands, records the user, and sends the welcome
// message with the role selection keyboard.
func (h *MessageHandler) HandleStart(ctx context.Context, bot telegoapi.BotAPI, message telego.Message) error {
	if err := h.setupCommands(ctx, bot); err != nil {
		return h.sendError(ctx, bot, message.Chat.ID, fmt.Errorf("failed to set up commands: %w", err))
	}

	localizer := h.getLocalizer(message.From)
	isAdmin, _ := h.adminChecker.IsAdmin(ctx, message.From.ID)

	h.RecordUserActivity(ctx, message.From, ActionCommandStart, isAdmin, map[string]interface{}{
		"chat_id": message.Chat.ID,
	})

	startMsg := locales.GetMessage(localizer, "MsgStart", nil, nil)
	keyboard := &telego.InlineKeyboardMarkup{
		InlineKeyboard: [][]telego.InlineKeyboardButton{
			tu.InlineKeyboardRow(
				tu.InlineKeyboardButton(locales.GetMessage(localizer, "BtnSeller", nil, nil)).WithCallbackData("role:seller"),
				tu.InlineKeyboardButton(locales.GetMessage(localizer, "BtnBuyer", nil, nil)).WithCallbackData("role:buyer"),
			),
			tu.InlineKeyboardRow(
				tu.InlineKeyboardButton(locales.GetMessage(localizer, "BtnRules", nil, nil)).WithCallbackData("rules"),
			),
		},
	}

	_, err := bot.SendMessage(ctx, tu.Message(tu.ID(message.Chat.ID), startMsg).WithReplyMarkup(keyboard))
	if err != nil {
		log.Printf("[Cmd:start User:%d] Error sending welcome message: %v", message.From.ID, err)
	}
	return err
}

// HandleHelp handles the /help command. The command list is filtered by
// admin status: moderators additionally see /status.
func (h *MessageHandler) HandleHelp(ctx context.Context, bot telegoapi.BotAPI, message telego.Message) error {
	userID := message.From.ID
	localizer := h.getLocalizer(message.From)

	isAdmin, _ := h.adminChecker.IsAdmin(ctx, userID)

	var helpText strings.Builder
	helpText.WriteString(locales.GetMessage(localizer, "MsgHelpHeader", nil, nil) + "\n")

	for _, cmd := range h.commands {
		if cmd.Command == "status" && !isAdmin {
			continue
		}
		localizedDesc := locales.GetMessage(localizer, cmd.Description, nil, nil)
		helpText.WriteString(fmt.Sprintf("/%s - %s\n", cmd.Command, localizedDesc))
	}

	footerKey := "MsgHelpFooterUser"
	if isAdmin {
		footerKey = "MsgHelpFooterAdmin"
	}
	helpText.WriteString(locales.GetMessage(localizer, footerKey, nil, nil))

	h.RecordUserActivity(ctx, message.From, ActionCommandHelp, isAdmin, map[string]interface{}{
		"chat_id": message.Chat.ID,
	})

	return h.sendSuccess(ctx, bot, message.Chat.ID, helpText.String())
}

// HandleSell handles the /sell command by delegating to the submission
// manager, which starts (or restarts) the seller's listing session.
func (h *MessageHandler) HandleSell(ctx context.Context, bot telegoapi.BotAPI, message telego.Message) error {
	userID := message.From.ID

	h.RecordUserActivity(ctx, message.From, ActionCommandSell, false, map[string]interface{}{
		"chat_id": message.Chat.ID,
	})

	update := telego.Update{Message: &message}
	if err := h.submissionMgr.HandleSellCommand(ctx, update); err != nil {
		// The manager handles user feedback itself; just log here.
		log.Printf("[Cmd:sell User:%d] Error from submission manager: %v", userID, err)
	}
	return nil
}

// HandleRules handles the /rules command.
func (h *MessageHandler) HandleRules(ctx context.Context, bot telegoapi.BotAPI, message telego.Message) error {
	localizer := h.getLocalizer(message.From)

	h.RecordUserActivity(ctx, message.From, ActionCommandRules, false, map[string]interface{}{
		"chat_id": message.Chat.ID,
	})

	return h.sendSuccess(ctx, bot, message.Chat.ID, locales.GetMessage(localizer, "MsgRules", nil, nil))
}

// HandleStatus handles the /status command. Moderators only.
func (h *MessageHandler) HandleStatus(ctx context.Context, bot telegoapi.BotAPI, message telego.Message) error {
	userID := message.From.ID
	localizer := h.getLocalizer(message.From)

	isAdmin, err := h.adminChecker.IsAdmin(ctx, userID)
	if err != nil {
		log.Printf("[Cmd:status User:%d] Error checking admin status: %v. Assuming non-admin.", userID, err)
		isAdmin = false
	}
	if !isAdmin {
		log.Printf("[Cmd:status User:%d] Non-admin user attempted to use /status.", userID)
		msg := locales.GetMessage(localizer, "MsgErrorRequiresAdmin", nil, nil)
		return h.sendError(ctx, bot, message.Chat.ID, errors.New(msg))
	}

	collecting, pending := h.submissionMgr.ActiveCounts()
	statusText := locales.GetMessage(localizer, "MsgStatus", map[string]interface{}{
		"GroupID": h.groupID,
		"Active":  collecting,
		"Pending": pending,
	}, nil)

	h.RecordUserActivity(ctx, message.From, ActionCommandStatus, isAdmin, map[string]interface{}{
		"chat_id":    message.Chat.ID,
		"collecting": collecting,
		"pending":    pending,
	})

	return h.sendSuccess(ctx, bot, message.Chat.ID, statusText)
}

// HandleVersion handles the /version command.
func (h *MessageHandler) HandleVersion(ctx context.Context, bot telegoapi.BotAPI, message telego.Message) error {
	localizer := h.getLocalizer(message.From)

	versionText := locales.GetMessage(localizer, "MsgVersion", map[string]interface{}{
		"Version": h.version,
	}, nil)

	isAdmin, _ := h.adminChecker.IsAdmin(ctx, message.From.ID)
	h.RecordUserActivity(ctx, message.From, ActionCommandVersion, isAdmin, map[string]interface{}{
		"chat_id": message.Chat.ID,
		"version": h.version,
	})

	return h.sendSuccess(ctx, bot, message.Chat.ID, versionText)
}

// setupCommands registers the bot's command list with Telegram, with
// descriptions localized in the default language.
func (h *MessageHandler) setupCommands(ctx context.Context, bot telegoapi.BotAPI) error {
	if len(h.commands) == 0 {
		return nil
	}

	localizer := locales.NewLocalizer(locales.GetDefaultLanguageTag().String())

	commands := make([]telego.BotCommand, 0, len(h.commands))
	for _, cmd := range h.commands {
		commands = append(commands, telego.BotCommand{
			Command:     cmd.Command,
			Description: locales.GetMessage(localizer, cmd.Description, nil, nil),
		})
	}

	if err := bot.SetMyCommands(ctx, &telego.SetMyCommandsParams{Commands: commands}); err != nil {
		return fmt.Errorf("failed to set bot commands: %w", err)
	}
	return nil
}
