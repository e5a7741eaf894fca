package handlers

import (
	"context"
	"log"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	"github.com/nicksnyder/go-i18n/v2/i18n"

	"rasta-market-bot/internal/locales"
	"rasta-market-bot/pkg/telegoapi"
)

// sendSuccess sends a message to the user. Send failures are logged, not
// propagated.
func (h *MessageHandler) sendSuccess(ctx context.Context, bot telegoapi.BotAPI, chatID int64, text string) error {
	_, err := bot.SendMessage(ctx, tu.Message(tu.ID(chatID), text))
	if err != nil {
		log.Printf("Error sending message to chat %d: %v", chatID, err)
	}
	return nil
}

// sendError sends a localized error notice to the user and returns the
// original error for the caller's error path.
func (h *MessageHandler) sendError(ctx context.Context, bot telegoapi.BotAPI, chatID int64, originalErr error) error {
	log.Printf("Error for user in chat %d: %v", chatID, originalErr)

	localizer := locales.NewLocalizer(locales.GetDefaultLanguageTag().String())
	errMsg := locales.GetMessage(localizer, "MsgErrorGeneral", nil, nil)

	if _, sendErr := bot.SendMessage(ctx, tu.Message(tu.ID(chatID), errMsg)); sendErr != nil {
		log.Printf("Error sending error message to chat %d: %v", chatID, sendErr)
	}
	return originalErr
}

// getLocalizer builds a localizer preferring the user's Telegram language,
// falling back to the configured default.
func (h *MessageHandler) getLocalizer(user *telego.User) *i18n.Localizer {
	lang := locales.GetDefaultLanguageTag().String()
	if user != nil && user.LanguageCode != "" {
		return locales.NewLocalizer(user.LanguageCode, lang)
	}
	return locales.NewLocalizer(lang)
}

// RecordUserActivity updates the user record and logs the action. Database
// failures never block handling.
func (h *MessageHandler) RecordUserActivity(ctx context.Context, user *telego.User, action string, isAdmin bool, details map[string]interface{}) {
	if user == nil {
		log.Printf("Attempted to record activity for nil user, action: %s", action)
		return
	}

	if err := h.userRepo.UpdateUser(ctx, user.ID, user.Username, user.FirstName, user.LastName, isAdmin, action); err != nil {
		log.Printf("Error updating user %d (%s) in DB during action %s: %v", user.ID, user.Username, action, err)
	}
	if err := h.actionLogger.LogUserAction(user.ID, action, details); err != nil {
		log.Printf("Error logging action %s for user %d (%s): %v", action, user.ID, user.Username, err)
	}
}

// HandleCallbackQuery processes the welcome-menu callbacks (role selection
// and rules). Moderation callbacks are routed to the submission manager
// before this handler runs.
func (h *MessageHandler) HandleCallbackQuery(ctx context.Context, bot telegoapi.BotAPI, query telego.CallbackQuery) error {
	localizer := h.getLocalizer(&query.From)

	ack := func(text string) {
		params := &telego.AnswerCallbackQueryParams{CallbackQueryID: query.ID, Text: text}
		if err := bot.AnswerCallbackQuery(ctx, params); err != nil {
			log.Printf("Error answering callback query %s: %v", query.ID, err)
		}
	}

	message, accessible := query.Message.(*telego.Message)
	if !accessible || message == nil {
		log.Printf("Callback query %s has no accessible message. Data: %s", query.ID, query.Data)
		ack("")
		return nil
	}
	chatID := message.Chat.ID

	switch query.Data {
	case "role:seller":
		ack("")
		h.RecordUserActivity(ctx, &query.From, ActionSellerButton, false, map[string]interface{}{
			"chat_id": chatID,
		})
		if err := h.submissionMgr.StartSubmission(ctx, chatID, &query.From); err != nil {
			log.Printf("[Callback User:%d] Error starting submission: %v", query.From.ID, err)
		}
		return nil
	case "role:buyer":
		ack("")
		h.RecordUserActivity(ctx, &query.From, ActionBuyerButton, false, map[string]interface{}{
			"chat_id": chatID,
		})
		return h.sendSuccess(ctx, bot, chatID, locales.GetMessage(localizer, "MsgBuyerComingSoon", nil, nil))
	case "rules":
		ack("")
		h.RecordUserActivity(ctx, &query.From, ActionRulesButton, false, map[string]interface{}{
			"chat_id": chatID,
		})
		return h.sendSuccess(ctx, bot, chatID, locales.GetMessage(localizer, "MsgRules", nil, nil))
	default:
		log.Printf("Callback query %s not handled. Data: %s", query.ID, query.Data)
		ack(locales.GetMessage(localizer, "MsgCallbackNotHandled", nil, nil))
		return nil
	}
}
