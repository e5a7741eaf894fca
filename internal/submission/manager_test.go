package submission

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/mymmrac/telego"
	"github.com/mymmrac/telego/telegoutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"rasta-market-bot/internal/database/models"
	"rasta-market-bot/internal/locales"
)

// --- Mocks ---

// MockBot is a mock implementing the telegoapi.BotAPI interface
type MockBot struct {
	mock.Mock
}

func (m *MockBot) SendMessage(ctx context.Context, params *telego.SendMessageParams) (*telego.Message, error) {
	args := m.Called(ctx, params)
	if msg, ok := args.Get(0).(*telego.Message); ok {
		return msg, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockBot) SendPhoto(ctx context.Context, params *telego.SendPhotoParams) (*telego.Message, error) {
	args := m.Called(ctx, params)
	if msg, ok := args.Get(0).(*telego.Message); ok {
		return msg, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockBot) SendVideo(ctx context.Context, params *telego.SendVideoParams) (*telego.Message, error) {
	args := m.Called(ctx, params)
	if msg, ok := args.Get(0).(*telego.Message); ok {
		return msg, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockBot) SendMediaGroup(ctx context.Context, params *telego.SendMediaGroupParams) ([]telego.Message, error) {
	args := m.Called(ctx, params)
	if msgs, ok := args.Get(0).([]telego.Message); ok {
		return msgs, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockBot) EditMessageText(ctx context.Context, params *telego.EditMessageTextParams) (*telego.Message, error) {
	args := m.Called(ctx, params)
	if msg, ok := args.Get(0).(*telego.Message); ok {
		return msg, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockBot) AnswerCallbackQuery(ctx context.Context, params *telego.AnswerCallbackQueryParams) error {
	args := m.Called(ctx, params)
	return args.Error(0)
}

func (m *MockBot) SetMyCommands(ctx context.Context, params *telego.SetMyCommandsParams) error {
	args := m.Called(ctx, params)
	return args.Error(0)
}

func (m *MockBot) GetChatMember(ctx context.Context, params *telego.GetChatMemberParams) (telego.ChatMember, error) {
	args := m.Called(ctx, params)
	if member, ok := args.Get(0).(telego.ChatMember); ok {
		return member, args.Error(1)
	}
	return nil, args.Error(1)
}

// MockAdminChecker is a mock implementing the auth.AdminCheckerInterface
type MockAdminChecker struct {
	mock.Mock
}

func (m *MockAdminChecker) IsAdmin(ctx context.Context, userID int64) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}

// MockListingLogger is a mock implementing database.ListingLogger
type MockListingLogger struct {
	mock.Mock
}

func (m *MockListingLogger) LogListingDecision(ctx context.Context, entry models.ListingLog) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

// --- Test Suite Setup ---

const (
	testGroupID     = int64(-100200)
	testAdminChatID = int64(-100300)
	testSellerID    = int64(777)
	testSellerChat  = int64(777)
	testModeratorID = int64(555)
)

type testManagerSuite struct {
	mockBot          *MockBot
	mockAdminChecker *MockAdminChecker
	mockListingLog   *MockListingLogger
	store            *Store
	manager          *Manager
}

func setupTestManagerSuite(t *testing.T) *testManagerSuite {
	t.Helper()
	locales.Init("en")

	mockBot := new(MockBot)
	mockAdminChecker := new(MockAdminChecker)
	mockListingLog := new(MockListingLogger)
	store := NewStore()

	manager := NewManager(
		mockBot,
		store,
		NewSequence(ListingSequenceStart),
		testGroupID,
		testAdminChatID,
		mockAdminChecker,
		mockListingLog,
	)

	return &testManagerSuite{
		mockBot:          mockBot,
		mockAdminChecker: mockAdminChecker,
		mockListingLog:   mockListingLog,
		store:            store,
		manager:          manager,
	}
}

func sellerUser() *telego.User {
	return &telego.User{ID: testSellerID, Username: "seller", FirstName: "Seller"}
}

func photoUpdate(fileID string, messageID int) telego.Update {
	return telego.Update{Message: &telego.Message{
		MessageID: messageID,
		From:      sellerUser(),
		Chat:      telego.Chat{ID: testSellerChat},
		Photo: []telego.PhotoSize{
			{FileID: fileID + "-small"},
			{FileID: fileID},
		},
	}}
}

func videoUpdate(fileID string) telego.Update {
	return telego.Update{Message: &telego.Message{
		MessageID: 50,
		From:      sellerUser(),
		Chat:      telego.Chat{ID: testSellerChat},
		Video:     &telego.Video{FileID: fileID},
	}}
}

func textUpdate(text string) telego.Update {
	return telego.Update{Message: &telego.Message{
		MessageID: 60,
		From:      sellerUser(),
		Chat:      telego.Chat{ID: testSellerChat},
		Text:      text,
	}}
}

// pendingSession creates a completed session waiting for moderation.
func (s *testManagerSuite) pendingSession(t *testing.T) *Session {
	t.Helper()
	sess := &Session{
		UserID:    testSellerID,
		ChatID:    testSellerChat,
		Username:  "seller",
		ListingID: "1001",
		Photos:    []string{"p1", "p2", "p3", "p4"},
		Video:     "v1",
		City:      "Tehran",
		Price:     1500000,
		Condition: "B",
	}
	s.store.Create(sess)
	require.NotNil(t, s.store.Complete(testSellerID, sess))
	return sess
}

func approveQuery(data string) telego.CallbackQuery {
	return telego.CallbackQuery{
		ID:   "query-1",
		From: telego.User{ID: testModeratorID, Username: "mod"},
		Message: &telego.Message{
			MessageID: 88,
			Chat:      telego.Chat{ID: testAdminChatID},
		},
		Data: data,
	}
}

// --- Tests ---

func TestSubmissionFullFlow(t *testing.T) {
	s := setupTestManagerSuite(t)
	ctx := context.Background()

	var sentTexts []string
	s.mockBot.On("SendMessage", mock.Anything, mock.AnythingOfType("*telego.SendMessageParams")).
		Run(func(args mock.Arguments) {
			sentTexts = append(sentTexts, args.Get(1).(*telego.SendMessageParams).Text)
		}).
		Return(&telego.Message{}, nil)

	var previewParams *telego.SendMediaGroupParams
	s.mockBot.On("SendMediaGroup", mock.Anything, mock.AnythingOfType("*telego.SendMediaGroupParams")).
		Run(func(args mock.Arguments) {
			previewParams = args.Get(1).(*telego.SendMediaGroupParams)
		}).
		Return([]telego.Message{}, nil).Once()

	// Start via /sell
	require.NoError(t, s.manager.HandleSellCommand(ctx, textUpdate("/sell")))
	require.NotNil(t, s.store.Get(testSellerID))

	// Four photos, one by one
	for i, fileID := range []string{"p1", "p2", "p3", "p4"} {
		processed, err := s.manager.HandleMessage(ctx, photoUpdate(fileID, 10+i))
		require.NoError(t, err)
		assert.True(t, processed)
	}
	sess := s.store.Get(testSellerID)
	require.NotNil(t, sess)
	assert.Equal(t, StageWaitingVideo, sess.Stage)
	assert.Equal(t, []string{"p1", "p2", "p3", "p4"}, sess.Photos)

	// A fifth photo is ignored; the stage already moved on.
	processed, err := s.manager.HandleMessage(ctx, photoUpdate("p5", 15))
	require.NoError(t, err)
	assert.True(t, processed)
	assert.Equal(t, []string{"p1", "p2", "p3", "p4"}, s.store.Get(testSellerID).Photos)

	// Text during the video stage is ignored silently.
	processed, err = s.manager.HandleMessage(ctx, textUpdate("hello"))
	require.NoError(t, err)
	assert.True(t, processed)
	assert.Equal(t, StageWaitingVideo, s.store.Get(testSellerID).Stage)

	// Video
	processed, err = s.manager.HandleMessage(ctx, videoUpdate("v1"))
	require.NoError(t, err)
	assert.True(t, processed)
	assert.Equal(t, StageWaitingCity, s.store.Get(testSellerID).Stage)

	// City
	processed, err = s.manager.HandleMessage(ctx, textUpdate("  Tehran "))
	require.NoError(t, err)
	assert.True(t, processed)
	assert.Equal(t, "Tehran", s.store.Get(testSellerID).City)
	assert.Equal(t, StageWaitingPrice, s.store.Get(testSellerID).Stage)

	// Invalid price keeps the stage
	processed, err = s.manager.HandleMessage(ctx, textUpdate("cheap"))
	require.NoError(t, err)
	assert.True(t, processed)
	assert.Equal(t, StageWaitingPrice, s.store.Get(testSellerID).Stage)

	// Valid price
	processed, err = s.manager.HandleMessage(ctx, textUpdate("1,500,000 تومان"))
	require.NoError(t, err)
	assert.True(t, processed)
	assert.Equal(t, int64(1500000), s.store.Get(testSellerID).Price)
	assert.Equal(t, StageWaitingCondition, s.store.Get(testSellerID).Stage)

	// Invalid condition keeps the stage
	processed, err = s.manager.HandleMessage(ctx, textUpdate("E"))
	require.NoError(t, err)
	assert.True(t, processed)
	assert.Equal(t, StageWaitingCondition, s.store.Get(testSellerID).Stage)

	// Valid condition completes the submission
	processed, err = s.manager.HandleMessage(ctx, textUpdate("b"))
	require.NoError(t, err)
	assert.True(t, processed)

	// The session left the user index and is pending moderation
	assert.Nil(t, s.store.Get(testSellerID))
	collecting, pending := s.manager.ActiveCounts()
	assert.Equal(t, 0, collecting)
	assert.Equal(t, 1, pending)

	// The preview carried all four photos with the caption on the first
	require.NotNil(t, previewParams)
	assert.Equal(t, telegoutil.ID(testAdminChatID), previewParams.ChatID)
	require.Len(t, previewParams.Media, 4)
	first, ok := previewParams.Media[0].(*telego.InputMediaPhoto)
	require.True(t, ok)
	assert.Equal(t, "p1", first.Media.FileID)
	assert.Contains(t, first.Caption, "1001")
	assert.Contains(t, first.Caption, "Tehran")
	assert.Contains(t, first.Caption, "1,500,000")
	assert.Contains(t, first.Caption, "B")
	assert.Contains(t, first.Caption, "@seller")
	for _, item := range previewParams.Media[1:] {
		photo, ok := item.(*telego.InputMediaPhoto)
		require.True(t, ok)
		assert.Empty(t, photo.Caption)
	}

	// The decision request carried approve/reject buttons for the listing
	var decisionParams *telego.SendMessageParams
	for _, call := range s.mockBot.Calls {
		if call.Method != "SendMessage" {
			continue
		}
		params := call.Arguments.Get(1).(*telego.SendMessageParams)
		if params.ReplyMarkup != nil {
			decisionParams = params
		}
	}
	require.NotNil(t, decisionParams, "decision request with buttons was not sent")
	assert.Equal(t, telegoutil.ID(testAdminChatID), decisionParams.ChatID)
	markup, ok := decisionParams.ReplyMarkup.(*telego.InlineKeyboardMarkup)
	require.True(t, ok)
	require.Len(t, markup.InlineKeyboard, 1)
	require.Len(t, markup.InlineKeyboard[0], 2)
	assert.Equal(t, "review:1001:approve", markup.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, "review:1001:reject", markup.InlineKeyboard[0][1].CallbackData)

	assert.NotEmpty(t, sentTexts)
	s.mockBot.AssertExpectations(t)
}

func TestSubmissionPhotoAlbum(t *testing.T) {
	s := setupTestManagerSuite(t)
	ctx := context.Background()

	s.mockBot.On("SendMessage", mock.Anything, mock.Anything).Return(&telego.Message{}, nil)

	require.NoError(t, s.manager.StartSubmission(ctx, testSellerChat, sellerUser()))
	sess := s.store.Get(testSellerID)
	require.NotNil(t, sess)

	// Feed a collected album directly, as the collector timer would.
	messages := []telego.Message{
		*photoUpdate("p1", 11).Message,
		*photoUpdate("p2", 12).Message,
		*photoUpdate("p3", 13).Message,
	}
	s.manager.processPhotoAlbum(sess, "album-1", messages)

	assert.Equal(t, []string{"p1", "p2", "p3"}, sess.Photos)
	assert.Equal(t, StageWaitingPhotos, sess.Stage)

	// One more photo completes the set.
	processed, err := s.manager.HandleMessage(ctx, photoUpdate("p4", 14))
	require.NoError(t, err)
	assert.True(t, processed)
	assert.Equal(t, StageWaitingVideo, sess.Stage)
}

func TestSellRestartDiscardsProgress(t *testing.T) {
	s := setupTestManagerSuite(t)
	ctx := context.Background()

	s.mockBot.On("SendMessage", mock.Anything, mock.Anything).Return(&telego.Message{}, nil)

	require.NoError(t, s.manager.StartSubmission(ctx, testSellerChat, sellerUser()))
	_, err := s.manager.HandleMessage(ctx, photoUpdate("p1", 10))
	require.NoError(t, err)

	require.NoError(t, s.manager.StartSubmission(ctx, testSellerChat, sellerUser()))

	sess := s.store.Get(testSellerID)
	require.NotNil(t, sess)
	assert.Equal(t, "1002", sess.ListingID)
	assert.Empty(t, sess.Photos)
	assert.Equal(t, StageWaitingPhotos, sess.Stage)
}

func TestRestartDuringCompletionKeepsFreshSession(t *testing.T) {
	s := setupTestManagerSuite(t)
	ctx := context.Background()

	s.mockBot.On("SendMessage", mock.Anything, mock.Anything).Return(&telego.Message{}, nil)

	require.NoError(t, s.manager.StartSubmission(ctx, testSellerChat, sellerUser()))
	stale := s.store.Get(testSellerID)
	require.NotNil(t, stale)
	stale.Photos = []string{"p1", "p2", "p3", "p4"}
	stale.Video = "v1"
	stale.City = "Tehran"
	stale.Price = 1000
	stale.Stage = StageWaitingCondition

	// The seller restarts while the final grade is still being processed
	// against the old session.
	require.NoError(t, s.manager.StartSubmission(ctx, testSellerChat, sellerUser()))

	processed, err := s.manager.handleConditionStage(ctx, stale, textUpdate("a").Message)
	require.NoError(t, err)
	assert.True(t, processed)

	// The fresh session is untouched and nothing reached moderation.
	fresh := s.store.Get(testSellerID)
	require.NotNil(t, fresh)
	assert.Equal(t, "1002", fresh.ListingID)
	assert.Equal(t, StageWaitingPhotos, fresh.Stage)

	collecting, pending := s.manager.ActiveCounts()
	assert.Equal(t, 1, collecting)
	assert.Equal(t, 0, pending)
	s.mockBot.AssertNotCalled(t, "SendMediaGroup", mock.Anything, mock.Anything)
}

func TestAlbumBufferedAcrossRestartIsDropped(t *testing.T) {
	s := setupTestManagerSuite(t)
	ctx := context.Background()

	s.mockBot.On("SendMessage", mock.Anything, mock.Anything).Return(&telego.Message{}, nil)

	require.NoError(t, s.manager.StartSubmission(ctx, testSellerChat, sellerUser()))
	stale := s.store.Get(testSellerID)
	require.NotNil(t, stale)

	// The seller restarts while the album is still buffering.
	require.NoError(t, s.manager.StartSubmission(ctx, testSellerChat, sellerUser()))
	fresh := s.store.Get(testSellerID)
	require.NotNil(t, fresh)

	messages := []telego.Message{
		*photoUpdate("p1", 11).Message,
		*photoUpdate("p2", 12).Message,
	}
	s.manager.processPhotoAlbum(stale, "album-old", messages)

	// Neither the replaced nor the fresh session took the photos.
	assert.Empty(t, stale.Photos)
	assert.Empty(t, fresh.Photos)
}

func TestFivePhotoAlbumKeepsFirstFour(t *testing.T) {
	s := setupTestManagerSuite(t)
	ctx := context.Background()

	s.mockBot.On("SendMessage", mock.Anything, mock.Anything).Return(&telego.Message{}, nil)

	require.NoError(t, s.manager.StartSubmission(ctx, testSellerChat, sellerUser()))
	sess := s.store.Get(testSellerID)
	require.NotNil(t, sess)

	messages := []telego.Message{
		*photoUpdate("p1", 11).Message,
		*photoUpdate("p2", 12).Message,
		*photoUpdate("p3", 13).Message,
		*photoUpdate("p4", 14).Message,
		*photoUpdate("p5", 15).Message,
	}
	s.manager.processPhotoAlbum(sess, "album-5", messages)

	assert.Equal(t, []string{"p1", "p2", "p3", "p4"}, sess.Photos)
	assert.Equal(t, StageWaitingVideo, sess.Stage)
}

func TestConcurrentPhotoUploadsNeverExceedRequired(t *testing.T) {
	s := setupTestManagerSuite(t)
	ctx := context.Background()

	s.mockBot.On("SendMessage", mock.Anything, mock.Anything).Return(&telego.Message{}, nil)

	require.NoError(t, s.manager.StartSubmission(ctx, testSellerChat, sellerUser()))
	sess := s.store.Get(testSellerID)
	require.NotNil(t, sess)

	const uploads = 10
	var wg sync.WaitGroup
	for i := 0; i < uploads; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_ = s.manager.addPhotos(ctx, sess, []string{fmt.Sprintf("p%d", n)})
		}(i)
	}
	wg.Wait()

	sess.mu.Lock()
	count := len(sess.Photos)
	stage := sess.Stage
	sess.mu.Unlock()

	assert.Equal(t, RequiredPhotos, count)
	assert.Equal(t, StageWaitingVideo, stage)
}

func TestSellerKeywordStartsSubmission(t *testing.T) {
	s := setupTestManagerSuite(t)
	ctx := context.Background()

	s.mockBot.On("SendMessage", mock.Anything, mock.Anything).Return(&telego.Message{}, nil)

	processed, err := s.manager.HandleMessage(ctx, textUpdate("من فروشنده هستم"))
	require.NoError(t, err)
	assert.True(t, processed)
	assert.NotNil(t, s.store.Get(testSellerID))
}

func TestMessageWithoutSessionIgnored(t *testing.T) {
	s := setupTestManagerSuite(t)

	processed, err := s.manager.HandleMessage(context.Background(), textUpdate("hello"))
	require.NoError(t, err)
	assert.False(t, processed)
	s.mockBot.AssertNotCalled(t, "SendMessage", mock.Anything, mock.Anything)
}

func TestApprovePublishesListing(t *testing.T) {
	s := setupTestManagerSuite(t)
	ctx := context.Background()
	s.pendingSession(t)

	s.mockAdminChecker.On("IsAdmin", mock.Anything, testModeratorID).Return(true, nil).Once()

	var photoParams *telego.SendPhotoParams
	s.mockBot.On("SendPhoto", mock.Anything, mock.AnythingOfType("*telego.SendPhotoParams")).
		Run(func(args mock.Arguments) {
			photoParams = args.Get(1).(*telego.SendPhotoParams)
		}).
		Return(&telego.Message{}, nil).Once()

	var videoParams *telego.SendVideoParams
	s.mockBot.On("SendVideo", mock.Anything, mock.AnythingOfType("*telego.SendVideoParams")).
		Run(func(args mock.Arguments) {
			videoParams = args.Get(1).(*telego.SendVideoParams)
		}).
		Return(&telego.Message{}, nil).Once()

	var notifyParams *telego.SendMessageParams
	s.mockBot.On("SendMessage", mock.Anything, mock.AnythingOfType("*telego.SendMessageParams")).
		Run(func(args mock.Arguments) {
			notifyParams = args.Get(1).(*telego.SendMessageParams)
		}).
		Return(&telego.Message{}, nil).Once()

	var editParams *telego.EditMessageTextParams
	s.mockBot.On("EditMessageText", mock.Anything, mock.AnythingOfType("*telego.EditMessageTextParams")).
		Run(func(args mock.Arguments) {
			editParams = args.Get(1).(*telego.EditMessageTextParams)
		}).
		Return(&telego.Message{}, nil).Once()

	s.mockBot.On("AnswerCallbackQuery", mock.Anything, mock.AnythingOfType("*telego.AnswerCallbackQueryParams")).
		Return(nil).Once()

	var archived models.ListingLog
	s.mockListingLog.On("LogListingDecision", mock.Anything, mock.AnythingOfType("models.ListingLog")).
		Run(func(args mock.Arguments) {
			archived = args.Get(1).(models.ListingLog)
		}).
		Return(nil).Once()

	processed, err := s.manager.HandleCallbackQuery(ctx, approveQuery("review:1001:approve"))
	require.NoError(t, err)
	assert.True(t, processed)

	// The card went to the public group with the first photo
	require.NotNil(t, photoParams)
	assert.Equal(t, telegoutil.ID(testGroupID), photoParams.ChatID)
	assert.Equal(t, "p1", photoParams.Photo.FileID)
	assert.Contains(t, photoParams.Caption, "1001")
	assert.Contains(t, photoParams.Caption, "Tehran")
	assert.Contains(t, photoParams.Caption, "1,500,000")

	// The video followed
	require.NotNil(t, videoParams)
	assert.Equal(t, telegoutil.ID(testGroupID), videoParams.ChatID)
	assert.Equal(t, "v1", videoParams.Video.FileID)

	// The seller was notified
	require.NotNil(t, notifyParams)
	assert.Equal(t, telegoutil.ID(testSellerChat), notifyParams.ChatID)

	// The decision message was stamped
	require.NotNil(t, editParams)
	assert.Equal(t, telegoutil.ID(testAdminChatID), editParams.ChatID)
	assert.Equal(t, 88, editParams.MessageID)
	assert.Contains(t, editParams.Text, "1001")

	// The decision was archived
	assert.Equal(t, "1001", archived.ListingID)
	assert.Equal(t, models.ListingStatusApproved, archived.Status)
	assert.Equal(t, testModeratorID, archived.ReviewedBy)
	assert.Equal(t, testGroupID, archived.GroupID)

	// The listing cannot be resolved again
	_, ok := s.store.Resolve("1001")
	assert.False(t, ok)

	s.mockBot.AssertExpectations(t)
	s.mockAdminChecker.AssertExpectations(t)
	s.mockListingLog.AssertExpectations(t)
}

func TestRejectNotifiesSellerWithoutPublishing(t *testing.T) {
	s := setupTestManagerSuite(t)
	ctx := context.Background()
	s.pendingSession(t)

	s.mockAdminChecker.On("IsAdmin", mock.Anything, testModeratorID).Return(true, nil).Once()
	s.mockBot.On("SendMessage", mock.Anything, mock.Anything).Return(&telego.Message{}, nil).Once()
	s.mockBot.On("EditMessageText", mock.Anything, mock.Anything).Return(&telego.Message{}, nil).Once()
	s.mockBot.On("AnswerCallbackQuery", mock.Anything, mock.Anything).Return(nil).Once()

	var archived models.ListingLog
	s.mockListingLog.On("LogListingDecision", mock.Anything, mock.AnythingOfType("models.ListingLog")).
		Run(func(args mock.Arguments) {
			archived = args.Get(1).(models.ListingLog)
		}).
		Return(nil).Once()

	processed, err := s.manager.HandleCallbackQuery(ctx, approveQuery("review:1001:reject"))
	require.NoError(t, err)
	assert.True(t, processed)

	s.mockBot.AssertNotCalled(t, "SendPhoto", mock.Anything, mock.Anything)
	s.mockBot.AssertNotCalled(t, "SendVideo", mock.Anything, mock.Anything)
	assert.Equal(t, models.ListingStatusRejected, archived.Status)
	assert.Equal(t, int64(0), archived.GroupID)

	s.mockBot.AssertExpectations(t)
	s.mockListingLog.AssertExpectations(t)
}

func TestSecondDecisionMisses(t *testing.T) {
	s := setupTestManagerSuite(t)
	ctx := context.Background()
	s.pendingSession(t)

	s.mockAdminChecker.On("IsAdmin", mock.Anything, testModeratorID).Return(true, nil)
	s.mockBot.On("SendMessage", mock.Anything, mock.Anything).Return(&telego.Message{}, nil)
	s.mockBot.On("EditMessageText", mock.Anything, mock.Anything).Return(&telego.Message{}, nil)

	var answers []*telego.AnswerCallbackQueryParams
	s.mockBot.On("AnswerCallbackQuery", mock.Anything, mock.AnythingOfType("*telego.AnswerCallbackQueryParams")).
		Run(func(args mock.Arguments) {
			answers = append(answers, args.Get(1).(*telego.AnswerCallbackQueryParams))
		}).
		Return(nil)
	s.mockListingLog.On("LogListingDecision", mock.Anything, mock.Anything).Return(nil)

	processed, err := s.manager.HandleCallbackQuery(ctx, approveQuery("review:1001:reject"))
	require.NoError(t, err)
	assert.True(t, processed)

	// A second press on the stale buttons reports the miss as an alert.
	processed, err = s.manager.HandleCallbackQuery(ctx, approveQuery("review:1001:approve"))
	require.NoError(t, err)
	assert.True(t, processed)

	require.Len(t, answers, 2)
	assert.True(t, answers[1].ShowAlert)
	s.mockBot.AssertNotCalled(t, "SendPhoto", mock.Anything, mock.Anything)
}

func TestUnknownListingAnswersAlert(t *testing.T) {
	s := setupTestManagerSuite(t)
	ctx := context.Background()

	s.mockAdminChecker.On("IsAdmin", mock.Anything, testModeratorID).Return(true, nil).Once()

	var answer *telego.AnswerCallbackQueryParams
	s.mockBot.On("AnswerCallbackQuery", mock.Anything, mock.AnythingOfType("*telego.AnswerCallbackQueryParams")).
		Run(func(args mock.Arguments) {
			answer = args.Get(1).(*telego.AnswerCallbackQueryParams)
		}).
		Return(nil).Once()

	processed, err := s.manager.HandleCallbackQuery(ctx, approveQuery("review:9999:approve"))
	require.NoError(t, err)
	assert.True(t, processed)

	require.NotNil(t, answer)
	assert.True(t, answer.ShowAlert)
	s.mockBot.AssertExpectations(t)
}

func TestNonAdminDecisionDenied(t *testing.T) {
	s := setupTestManagerSuite(t)
	ctx := context.Background()
	s.pendingSession(t)

	s.mockAdminChecker.On("IsAdmin", mock.Anything, testModeratorID).Return(false, nil).Once()

	var answer *telego.AnswerCallbackQueryParams
	s.mockBot.On("AnswerCallbackQuery", mock.Anything, mock.AnythingOfType("*telego.AnswerCallbackQueryParams")).
		Run(func(args mock.Arguments) {
			answer = args.Get(1).(*telego.AnswerCallbackQueryParams)
		}).
		Return(nil).Once()

	processed, err := s.manager.HandleCallbackQuery(ctx, approveQuery("review:1001:approve"))
	require.NoError(t, err)
	assert.True(t, processed)

	require.NotNil(t, answer)
	assert.True(t, answer.ShowAlert)

	// The pending record survived for a real moderator.
	_, ok := s.store.Resolve("1001")
	assert.True(t, ok)

	s.mockBot.AssertNotCalled(t, "SendPhoto", mock.Anything, mock.Anything)
	s.mockBot.AssertNotCalled(t, "SendMessage", mock.Anything, mock.Anything)
}

func TestForeignCallbackNotProcessed(t *testing.T) {
	s := setupTestManagerSuite(t)

	processed, err := s.manager.HandleCallbackQuery(context.Background(), approveQuery("role:seller"))
	require.NoError(t, err)
	assert.False(t, processed)
}

func TestAlbumCollectorOrdersAndDeduplicates(t *testing.T) {
	collector := newAlbumCollector()

	var got []telego.Message
	done := make(chan struct{})
	process := func(groupID string, messages []telego.Message) {
		got = messages
		close(done)
	}

	album := func(id int) telego.Message {
		return telego.Message{
			MessageID:    id,
			MediaGroupID: "g1",
			From:         sellerUser(),
			Photo:        []telego.PhotoSize{{FileID: "p"}},
		}
	}

	collector.Add(album(3), 50*time.Millisecond, maxAlbumSize, process)
	collector.Add(album(1), 50*time.Millisecond, maxAlbumSize, process)
	collector.Add(album(1), 50*time.Millisecond, maxAlbumSize, process) // duplicate
	collector.Add(album(2), 50*time.Millisecond, maxAlbumSize, process)

	<-done

	require.Len(t, got, 3)
	ids := []int{got[0].MessageID, got[1].MessageID, got[2].MessageID}
	assert.Equal(t, []int{1, 2, 3}, ids)

	// The group is gone after processing.
	assert.Nil(t, collector.take("g1"))
}

func TestPreviewCaptionFallsBackToUserID(t *testing.T) {
	s := setupTestManagerSuite(t)
	ctx := context.Background()

	sess := &Session{
		UserID:    testSellerID,
		ChatID:    testSellerChat,
		ListingID: "1001",
		Photos:    []string{"p1", "p2", "p3", "p4"},
		Video:     "v1",
		City:      "Tehran",
		Price:     1000,
		Condition: "A",
		Status:    StatusPending,
	}

	var previewParams *telego.SendMediaGroupParams
	s.mockBot.On("SendMediaGroup", mock.Anything, mock.AnythingOfType("*telego.SendMediaGroupParams")).
		Run(func(args mock.Arguments) {
			previewParams = args.Get(1).(*telego.SendMediaGroupParams)
		}).
		Return([]telego.Message{}, nil).Once()
	s.mockBot.On("SendMessage", mock.Anything, mock.Anything).Return(&telego.Message{}, nil)

	require.NoError(t, s.manager.finishSubmission(ctx, sess))

	require.NotNil(t, previewParams)
	first := previewParams.Media[0].(*telego.InputMediaPhoto)
	assert.Contains(t, first.Caption, "777")
	assert.NotContains(t, first.Caption, "@")
}
