package submission

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	"github.com/nicksnyder/go-i18n/v2/i18n"

	"rasta-market-bot/internal/database/models"
	"rasta-market-bot/internal/locales"
)

const reviewCallbackPrefix = "review:"

// HandleCallbackQuery processes moderation decision callbacks of the form
// "review:<listingID>:<approve|reject>". It returns processed=true when the
// callback belonged to the moderation workflow.
func (m *Manager) HandleCallbackQuery(ctx context.Context, query telego.CallbackQuery) (processed bool, err error) {
	if !strings.HasPrefix(query.Data, reviewCallbackPrefix) {
		return false, nil
	}
	localizer := locales.NewLocalizer(locales.GetDefaultLanguageTag().String())

	parts := strings.Split(query.Data, ":")
	if len(parts) != 3 {
		m.answerCallbackQuery(ctx, query.ID, locales.GetMessage(localizer, "MsgErrorGeneral", nil, nil), true)
		return true, fmt.Errorf("invalid review callback data format: %q", query.Data)
	}
	listingID, action := parts[1], parts[2]
	moderatorID := query.From.ID

	isAdmin, err := m.adminChecker.IsAdmin(ctx, moderatorID)
	if err != nil {
		log.Printf("[Review Listing:%s] Error checking admin status for user %d: %v", listingID, moderatorID, err)
		sentry.CaptureException(fmt.Errorf("failed to check admin status for review callback: %w", err))
		m.answerCallbackQuery(ctx, query.ID, locales.GetMessage(localizer, "MsgErrorGeneral", nil, nil), true)
		return true, err
	}
	if !isAdmin {
		// Non-admin presses never touch the pending record.
		m.answerCallbackQuery(ctx, query.ID, locales.GetMessage(localizer, "MsgErrorRequiresAdmin", nil, nil), true)
		return true, nil
	}

	if action != "approve" && action != "reject" {
		m.answerCallbackQuery(ctx, query.ID, locales.GetMessage(localizer, "MsgErrorGeneral", nil, nil), true)
		return true, fmt.Errorf("unknown review action %q for listing %s", action, listingID)
	}

	sess, ok := m.store.Resolve(listingID)
	if !ok {
		// Already decided, or never existed.
		m.answerCallbackQuery(ctx, query.ID, locales.GetMessage(localizer, "MsgReviewNotFound", nil, nil), true)
		return true, nil
	}

	if action == "approve" {
		return true, m.approveListing(ctx, localizer, query, sess, moderatorID)
	}
	return true, m.rejectListing(ctx, localizer, query, sess, moderatorID)
}

// approveListing publishes the listing to the public group, notifies the
// seller, stamps the decision message and archives the outcome.
func (m *Manager) approveListing(ctx context.Context, localizer *i18n.Localizer, query telego.CallbackQuery, sess *Session, moderatorID int64) error {
	card := locales.GetMessage(localizer, "MsgListingCardCaption", map[string]interface{}{
		"ListingID": sess.ListingID,
		"Condition": sess.Condition,
		"City":      sess.City,
		"Price":     formatPrice(sess.Price),
	}, nil)

	if _, err := m.bot.SendPhoto(ctx, &telego.SendPhotoParams{
		ChatID:  tu.ID(m.groupID),
		Photo:   telego.InputFile{FileID: sess.Photos[0]},
		Caption: card,
	}); err != nil {
		log.Printf("[Review Listing:%s] Failed to publish listing card: %v", sess.ListingID, err)
		sentry.CaptureException(fmt.Errorf("failed to publish listing %s: %w", sess.ListingID, err))
		m.answerCallbackQuery(ctx, query.ID, locales.GetMessage(localizer, "MsgReviewErrorDuringPublishing", nil, nil), true)
		return err
	}

	videoCaption := locales.GetMessage(localizer, "MsgListingVideoCaption", map[string]interface{}{
		"ListingID": sess.ListingID,
	}, nil)
	if _, err := m.bot.SendVideo(ctx, &telego.SendVideoParams{
		ChatID:  tu.ID(m.groupID),
		Video:   telego.InputFile{FileID: sess.Video},
		Caption: videoCaption,
	}); err != nil {
		// The card is already out; log and keep going.
		log.Printf("[Review Listing:%s] Failed to publish listing video: %v", sess.ListingID, err)
		sentry.CaptureException(fmt.Errorf("failed to publish video for listing %s: %w", sess.ListingID, err))
	}

	m.notifySeller(ctx, sess, "MsgUserApproved")
	m.stampDecisionMessage(ctx, localizer, query, "MsgReviewPublishedEdit", sess.ListingID)
	m.archiveDecision(ctx, sess, models.ListingStatusApproved, moderatorID)
	m.answerCallbackQuery(ctx, query.ID, locales.GetMessage(localizer, "MsgReviewApprovedAnswer", nil, nil), false)

	log.Printf("[Review Listing:%s] Approved by %d, published to group %d", sess.ListingID, moderatorID, m.groupID)
	return nil
}

// rejectListing notifies the seller, stamps the decision message and
// archives the outcome. Nothing reaches the public group.
func (m *Manager) rejectListing(ctx context.Context, localizer *i18n.Localizer, query telego.CallbackQuery, sess *Session, moderatorID int64) error {
	m.notifySeller(ctx, sess, "MsgUserRejected")
	m.stampDecisionMessage(ctx, localizer, query, "MsgReviewRejectedEdit", sess.ListingID)
	m.archiveDecision(ctx, sess, models.ListingStatusRejected, moderatorID)
	m.answerCallbackQuery(ctx, query.ID, locales.GetMessage(localizer, "MsgReviewRejectedAnswer", nil, nil), false)

	log.Printf("[Review Listing:%s] Rejected by %d", sess.ListingID, moderatorID)
	return nil
}

// notifySeller tells the seller about the decision. Failures are logged;
// the decision itself already happened.
func (m *Manager) notifySeller(ctx context.Context, sess *Session, msgID string) {
	if err := m.reply(ctx, sess.ChatID, msgID, nil); err != nil {
		sentry.CaptureException(fmt.Errorf("failed to notify seller %d about listing %s: %w", sess.UserID, sess.ListingID, err))
	}
}

// stampDecisionMessage rewrites the decision-request message so the buttons
// disappear and the outcome is visible in the moderation chat.
func (m *Manager) stampDecisionMessage(ctx context.Context, localizer *i18n.Localizer, query telego.CallbackQuery, msgID, listingID string) {
	message, ok := query.Message.(*telego.Message)
	if !ok || message == nil {
		log.Printf("[Review Listing:%s] Decision message is inaccessible, cannot edit", listingID)
		return
	}

	text := locales.GetMessage(localizer, msgID, map[string]interface{}{
		"ListingID": listingID,
	}, nil)
	if _, err := m.bot.EditMessageText(ctx, &telego.EditMessageTextParams{
		ChatID:    tu.ID(message.Chat.ID),
		MessageID: message.MessageID,
		Text:      text,
	}); err != nil {
		log.Printf("[Review Listing:%s] Failed to edit decision message: %v", listingID, err)
	}
}

// archiveDecision records the resolved listing in the database. Archive
// failures never undo the decision.
func (m *Manager) archiveDecision(ctx context.Context, sess *Session, status string, moderatorID int64) {
	entry := models.ListingLog{
		ListingID:      sess.ListingID,
		SellerID:       sess.UserID,
		SellerUsername: sess.Username,
		City:           sess.City,
		Price:          sess.Price,
		Condition:      sess.Condition,
		PhotoIDs:       sess.Photos,
		VideoID:        sess.Video,
		Status:         status,
		ReviewedBy:     moderatorID,
		SubmittedAt:    sess.CreatedAt,
		ReviewedAt:     time.Now(),
	}
	if status == models.ListingStatusApproved {
		entry.GroupID = m.groupID
	}

	if err := m.listingLog.LogListingDecision(ctx, entry); err != nil {
		log.Printf("[Review Listing:%s] Failed to archive decision: %v", sess.ListingID, err)
		sentry.CaptureException(fmt.Errorf("failed to archive decision for listing %s: %w", sess.ListingID, err))
	}
}

// answerCallbackQuery acknowledges the button press, optionally as an alert.
func (m *Manager) answerCallbackQuery(ctx context.Context, queryID, text string, showAlert bool) {
	if err := m.bot.AnswerCallbackQuery(ctx, &telego.AnswerCallbackQueryParams{
		CallbackQueryID: queryID,
		Text:            text,
		ShowAlert:       showAlert,
	}); err != nil {
		log.Printf("[Review] Error answering callback query %s: %v", queryID, err)
	}
}
