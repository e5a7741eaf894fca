package submission

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/getsentry/sentry-go"
	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"rasta-market-bot/internal/auth"
	"rasta-market-bot/internal/database"
	"rasta-market-bot/internal/locales"
	"rasta-market-bot/pkg/telegoapi"
)

// sellerKeyword starts a submission when it appears in a plain text message,
// mirroring the "I'm a seller" trigger of the welcome keyboard.
const sellerKeyword = "فروشنده"

// Manager drives the listing submission workflow: it collects the photos,
// video, city, price and condition from a seller, hands the completed
// listing to the moderation chat, and resolves the moderator's decision
// into a publication or a rejection notice.
type Manager struct {
	bot          telegoapi.BotAPI
	store        *Store
	seq          *Sequence
	groupID      int64 // public group approved listings are published to
	adminChatID  int64 // moderation chat receiving previews and buttons
	adminChecker auth.AdminCheckerInterface
	listingLog   database.ListingLogger
	albums       *albumCollector
}

// NewManager creates a new submission manager.
func NewManager(
	bot telegoapi.BotAPI,
	store *Store,
	seq *Sequence,
	groupID int64,
	adminChatID int64,
	adminChecker auth.AdminCheckerInterface,
	listingLog database.ListingLogger,
) *Manager {
	if bot == nil {
		log.Fatal("Submission Manager: BotAPI instance is nil")
	}
	if store == nil {
		log.Fatal("Submission Manager: session store is nil")
	}
	if seq == nil {
		log.Fatal("Submission Manager: listing sequence is nil")
	}
	if groupID == 0 {
		log.Fatal("Submission Manager: publish group ID is not set")
	}
	if adminChatID == 0 {
		log.Fatal("Submission Manager: moderation chat ID is not set")
	}
	if adminChecker == nil {
		log.Fatal("Submission Manager: admin checker is nil")
	}
	if listingLog == nil {
		log.Fatal("Submission Manager: listing logger is nil")
	}

	return &Manager{
		bot:          bot,
		store:        store,
		seq:          seq,
		groupID:      groupID,
		adminChatID:  adminChatID,
		adminChecker: adminChecker,
		listingLog:   listingLog,
		albums:       newAlbumCollector(),
	}
}

// HandleSellCommand handles the /sell command (and the seller button).
func (m *Manager) HandleSellCommand(ctx context.Context, update telego.Update) error {
	if update.Message == nil || update.Message.From == nil {
		return fmt.Errorf("invalid update received for sell command")
	}
	return m.StartSubmission(ctx, update.Message.Chat.ID, update.Message.From)
}

// StartSubmission creates a fresh session for the user, replacing any
// submission already in progress, and prompts for the photos.
func (m *Manager) StartSubmission(ctx context.Context, chatID int64, from *telego.User) error {
	sess := &Session{
		UserID:    from.ID,
		ChatID:    chatID,
		Username:  from.Username,
		FirstName: from.FirstName,
		ListingID: m.seq.Next(),
		Photos:    make([]string, 0, RequiredPhotos),
	}
	m.store.Create(sess)
	log.Printf("[Submission User:%d] Started listing %s", from.ID, sess.ListingID)

	return m.reply(ctx, chatID, "MsgSellFlowStarted", nil)
}

// ActiveCounts reports the number of collecting and pending sessions.
func (m *Manager) ActiveCounts() (collecting, pending int) {
	return m.store.Counts()
}

// HandleMessage processes an incoming message against the sender's session.
// It returns processed=true when the message belonged to the submission
// workflow, whether or not it advanced the session.
func (m *Manager) HandleMessage(ctx context.Context, update telego.Update) (processed bool, err error) {
	if update.Message == nil || update.Message.From == nil {
		return false, nil
	}
	message := update.Message
	userID := message.From.ID

	sess := m.store.Get(userID)
	if sess == nil {
		// No session: only the seller keyword starts one.
		if message.Text != "" && strings.Contains(message.Text, sellerKeyword) {
			return true, m.StartSubmission(ctx, message.Chat.ID, message.From)
		}
		return false, nil
	}

	sess.mu.Lock()
	stage := sess.Stage
	sess.mu.Unlock()

	switch stage {
	case StageWaitingPhotos:
		return m.handlePhotoStage(ctx, sess, message)
	case StageWaitingVideo:
		return m.handleVideoStage(ctx, sess, message)
	case StageWaitingCity:
		return m.handleCityStage(ctx, sess, message)
	case StageWaitingPrice:
		return m.handlePriceStage(ctx, sess, message)
	case StageWaitingCondition:
		return m.handleConditionStage(ctx, sess, message)
	default:
		log.Printf("[Submission User:%d] Session in unexpected stage %q", userID, stage)
		return true, nil
	}
}

// handlePhotoStage accepts single photos and photo albums while the session
// is collecting photos. Anything else is ignored without a prompt.
func (m *Manager) handlePhotoStage(ctx context.Context, sess *Session, message *telego.Message) (bool, error) {
	if len(message.Photo) == 0 {
		return true, nil
	}

	if message.MediaGroupID != "" {
		m.albums.Add(*message, albumProcessDelay, maxAlbumSize, func(groupID string, messages []telego.Message) {
			m.processPhotoAlbum(sess, groupID, messages)
		})
		return true, nil
	}

	fileID := message.Photo[len(message.Photo)-1].FileID
	return true, m.addPhotos(ctx, sess, []string{fileID})
}

// processPhotoAlbum feeds a collected photo album into the session it was
// sent against. It runs from the album collector's timer, hence the
// background context.
func (m *Manager) processPhotoAlbum(sess *Session, groupID string, messages []telego.Message) {
	if len(messages) == 0 {
		return
	}
	userID := messages[0].From.ID

	// The seller may have restarted while the album was buffering; the
	// buffered photos belong to the replaced session, not the fresh one.
	if m.store.Get(userID) != sess {
		log.Printf("[Submission Group:%s User:%d] Session replaced while album was buffering, dropping it", groupID, userID)
		return
	}

	fileIDs := make([]string, 0, len(messages))
	for _, msg := range messages {
		if len(msg.Photo) > 0 {
			fileIDs = append(fileIDs, msg.Photo[len(msg.Photo)-1].FileID)
		}
	}
	if len(fileIDs) == 0 {
		return
	}

	if err := m.addPhotos(context.Background(), sess, fileIDs); err != nil {
		log.Printf("[Submission Group:%s User:%d] Error adding album photos: %v", groupID, userID, err)
	}
}

// addPhotos appends photos up to the required count and advances the stage
// once the fourth photo is stored. Extra photos beyond the fourth are
// dropped; the stage has already moved on by then.
func (m *Manager) addPhotos(ctx context.Context, sess *Session, fileIDs []string) error {
	sess.mu.Lock()
	if sess.Stage != StageWaitingPhotos {
		sess.mu.Unlock()
		return nil
	}
	added := 0
	for _, id := range fileIDs {
		if len(sess.Photos) >= RequiredPhotos {
			break
		}
		sess.Photos = append(sess.Photos, id)
		added++
	}
	count := len(sess.Photos)
	if count == RequiredPhotos {
		sess.Stage = StageWaitingVideo
	}
	advanced := sess.Stage == StageWaitingVideo
	sess.mu.Unlock()

	if added == 0 {
		return nil
	}

	if err := m.reply(ctx, sess.ChatID, "MsgPhotoSaved", map[string]interface{}{
		"Count": count,
		"Total": RequiredPhotos,
	}); err != nil {
		return err
	}
	if advanced {
		return m.reply(ctx, sess.ChatID, "MsgAskVideo", nil)
	}
	return nil
}

// handleVideoStage accepts the single test video.
func (m *Manager) handleVideoStage(ctx context.Context, sess *Session, message *telego.Message) (bool, error) {
	if message.Video == nil {
		return true, nil
	}

	sess.mu.Lock()
	if sess.Stage != StageWaitingVideo {
		sess.mu.Unlock()
		return true, nil
	}
	sess.Video = message.Video.FileID
	sess.Stage = StageWaitingCity
	sess.mu.Unlock()

	return true, m.reply(ctx, sess.ChatID, "MsgAskCity", nil)
}

// handleCityStage accepts a non-empty city name.
func (m *Manager) handleCityStage(ctx context.Context, sess *Session, message *telego.Message) (bool, error) {
	if message.Text == "" {
		return true, nil
	}

	city := strings.TrimSpace(message.Text)
	if city == "" {
		return true, m.reply(ctx, sess.ChatID, "MsgInvalidCity", nil)
	}

	sess.mu.Lock()
	if sess.Stage != StageWaitingCity {
		sess.mu.Unlock()
		return true, nil
	}
	sess.City = city
	sess.Stage = StageWaitingPrice
	sess.mu.Unlock()

	return true, m.reply(ctx, sess.ChatID, "MsgAskPrice", nil)
}

// handlePriceStage normalizes and validates the price. An invalid price
// keeps the stage unchanged and asks the seller to resend.
func (m *Manager) handlePriceStage(ctx context.Context, sess *Session, message *telego.Message) (bool, error) {
	if message.Text == "" {
		return true, nil
	}

	price := normalizePrice(message.Text)
	if price <= 0 {
		return true, m.reply(ctx, sess.ChatID, "MsgInvalidPrice", nil)
	}

	sess.mu.Lock()
	if sess.Stage != StageWaitingPrice {
		sess.mu.Unlock()
		return true, nil
	}
	sess.Price = price
	sess.Stage = StageWaitingCondition
	sess.mu.Unlock()

	return true, m.reply(ctx, sess.ChatID, "MsgAskCondition", nil)
}

// handleConditionStage accepts the final field and hands the completed
// session over to moderation.
func (m *Manager) handleConditionStage(ctx context.Context, sess *Session, message *telego.Message) (bool, error) {
	if message.Text == "" {
		return true, nil
	}

	grade, ok := parseCondition(message.Text)
	if !ok {
		return true, m.reply(ctx, sess.ChatID, "MsgInvalidCondition", nil)
	}

	sess.mu.Lock()
	if sess.Stage != StageWaitingCondition || sess.Condition != "" {
		sess.mu.Unlock()
		return true, nil
	}
	sess.Condition = grade
	sess.mu.Unlock()

	completed := m.store.Complete(sess.UserID, sess)
	if completed == nil {
		return true, nil
	}
	return true, m.finishSubmission(ctx, completed)
}

// finishSubmission sends the moderation preview and decision request for a
// completed session and confirms the hand-off to the seller. The session is
// already pending by the time this runs; no locks are held across sends.
func (m *Manager) finishSubmission(ctx context.Context, sess *Session) error {
	localizer := locales.NewLocalizer(locales.GetDefaultLanguageTag().String())

	submitter := "@" + sess.Username
	if sess.Username == "" {
		submitter = strconv.FormatInt(sess.UserID, 10)
	}
	caption := locales.GetMessage(localizer, "MsgReviewPreviewCaption", map[string]interface{}{
		"ListingID": sess.ListingID,
		"City":      sess.City,
		"Price":     formatPrice(sess.Price),
		"Condition": sess.Condition,
		"Submitter": submitter,
	}, nil)

	media := make([]telego.InputMedia, 0, len(sess.Photos))
	for i, fileID := range sess.Photos {
		photo := &telego.InputMediaPhoto{
			Type:  "photo",
			Media: telego.InputFile{FileID: fileID},
		}
		if i == 0 {
			photo.Caption = caption
		}
		media = append(media, photo)
	}

	if _, err := m.bot.SendMediaGroup(ctx, &telego.SendMediaGroupParams{
		ChatID: tu.ID(m.adminChatID),
		Media:  media,
	}); err != nil {
		log.Printf("[Submission Listing:%s] Failed to send moderation preview: %v", sess.ListingID, err)
		sentry.CaptureException(fmt.Errorf("failed to send moderation preview for listing %s: %w", sess.ListingID, err))
		_ = m.reply(ctx, sess.ChatID, "MsgErrorGeneral", nil)
		return err
	}

	btnApprove := locales.GetMessage(localizer, "BtnApprove", nil, nil)
	btnReject := locales.GetMessage(localizer, "BtnReject", nil, nil)
	keyboard := &telego.InlineKeyboardMarkup{
		InlineKeyboard: [][]telego.InlineKeyboardButton{
			tu.InlineKeyboardRow(
				tu.InlineKeyboardButton(btnApprove).WithCallbackData("review:"+sess.ListingID+":approve"),
				tu.InlineKeyboardButton(btnReject).WithCallbackData("review:"+sess.ListingID+":reject"),
			),
		},
	}
	prompt := locales.GetMessage(localizer, "MsgReviewDecisionPrompt", map[string]interface{}{
		"ListingID": sess.ListingID,
	}, nil)

	if _, err := m.bot.SendMessage(ctx, tu.Message(tu.ID(m.adminChatID), prompt).WithReplyMarkup(keyboard)); err != nil {
		log.Printf("[Submission Listing:%s] Failed to send decision request: %v", sess.ListingID, err)
		sentry.CaptureException(fmt.Errorf("failed to send decision request for listing %s: %w", sess.ListingID, err))
		return err
	}

	log.Printf("[Submission Listing:%s] Sent for moderation (user %d)", sess.ListingID, sess.UserID)
	return m.reply(ctx, sess.ChatID, "MsgSubmissionSentForReview", nil)
}

// reply sends a localized message to a chat.
func (m *Manager) reply(ctx context.Context, chatID int64, msgID string, data map[string]interface{}) error {
	localizer := locales.NewLocalizer(locales.GetDefaultLanguageTag().String())
	text := locales.GetMessage(localizer, msgID, data, nil)
	_, err := m.bot.SendMessage(ctx, tu.Message(tu.ID(chatID), text))
	if err != nil {
		log.Printf("[Submission] Error sending %s to chat %d: %v", msgID, chatID, err)
	}
	return err
}
