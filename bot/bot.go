package bot

import (
	"context"
	"fmt"
	"log"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	"go.uber.org/ratelimit"

	"rasta-market-bot/internal/handlers"
	"rasta-market-bot/internal/locales"
	"rasta-market-bot/pkg/telegoapi"
)

// Bot runs the update loop: it receives Telegram updates and routes them
// to the command handlers and the submission workflow.
type Bot struct {
	bot           telegoapi.BotAPI
	updatesChan   <-chan telego.Update
	debug         bool
	handler       *handlers.MessageHandler
	submissionMgr handlers.SubmissionManagerInterface
	ratelimiter   ratelimit.Limiter
}

// BotDeps holds the dependencies required by the Bot.
type BotDeps struct {
	Bot           telegoapi.BotAPI
	UpdatesChan   <-chan telego.Update
	Debug         bool
	Handler       *handlers.MessageHandler
	SubmissionMgr handlers.SubmissionManagerInterface
}

// New creates a new Bot instance from its dependencies.
func New(deps BotDeps) (*Bot, error) {
	if deps.Bot == nil {
		return nil, fmt.Errorf("telego bot (BotAPI) instance cannot be nil")
	}
	if deps.UpdatesChan == nil {
		return nil, fmt.Errorf("updates channel cannot be nil")
	}
	if deps.Handler == nil {
		return nil, fmt.Errorf("message handler cannot be nil")
	}
	if deps.SubmissionMgr == nil {
		return nil, fmt.Errorf("submission manager cannot be nil")
	}

	return &Bot{
		bot:           deps.Bot,
		updatesChan:   deps.UpdatesChan,
		debug:         deps.Debug,
		handler:       deps.Handler,
		submissionMgr: deps.SubmissionMgr,
		ratelimiter:   ratelimit.New(20),
	}, nil
}

// handleCommandUpdate processes a message identified as a command.
func (b *Bot) handleCommandUpdate(ctx context.Context, message telego.Message) {
	command := "unknown"
	if len(message.Text) > 1 && strings.HasPrefix(message.Text, "/") {
		command = strings.Split(message.Text, " ")[0][1:]
	}
	logPrefix := fmt.Sprintf("[Cmd:%s User:%d]", command, message.From.ID)

	handlerFunc := b.handler.GetCommandHandler(command)
	if handlerFunc == nil {
		log.Printf("%s No handler found", logPrefix)
		localizer := locales.NewLocalizer(locales.GetDefaultLanguageTag().String())
		unknownCmdMsg := locales.GetMessage(localizer, "MsgErrorUnknownCommand", nil, nil)
		if _, err := b.bot.SendMessage(ctx, tu.Message(tu.ID(message.Chat.ID), unknownCmdMsg)); err != nil {
			log.Printf("%s Failed to send unknown command message: %v", logPrefix, err)
		}
		return
	}

	if b.debug {
		log.Printf("%s Executing handler", logPrefix)
	}
	if err := handlerFunc(ctx, b.bot, message); err != nil {
		log.Printf("%s Handler error: %v", logPrefix, err)
		sentry.CaptureException(fmt.Errorf("%s handler error: %w", logPrefix, err))
	}
}

// handleCallbackQuery routes a callback query: moderation decisions go to
// the submission manager, everything else to the message handler.
func (b *Bot) handleCallbackQuery(ctx context.Context, query telego.CallbackQuery) {
	logPrefix := fmt.Sprintf("[Callback User:%d QueryID:%s]", query.From.ID, query.ID)
	if b.debug {
		log.Printf("%s Received callback query with data: %q", logPrefix, query.Data)
	}

	processed, err := b.submissionMgr.HandleCallbackQuery(ctx, query)
	if err != nil {
		log.Printf("%s Moderation callback handler error: %v", logPrefix, err)
		sentry.CaptureException(fmt.Errorf("%s moderation callback handler error: %w", logPrefix, err))
		return
	}
	if processed {
		return
	}

	if err := b.handler.HandleCallbackQuery(ctx, b.bot, query); err != nil {
		log.Printf("%s Callback handler error: %v", logPrefix, err)
		sentry.CaptureException(fmt.Errorf("%s callback handler error: %w", logPrefix, err))
	}
}

// processUpdate routes one incoming update.
func (b *Bot) processUpdate(ctx context.Context, update telego.Update) {
	b.ratelimiter.Take()

	defer func() {
		if r := recover(); r != nil {
			log.Printf("PANIC recovered in processUpdate: %v\n%s", r, debug.Stack())
			sentry.CurrentHub().Recover(r)
			sentry.Flush(time.Second * 2)
		}
	}()

	processingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	switch {
	case update.Message != nil:
		message := *update.Message
		if message.From == nil {
			log.Printf("Ignoring message %d from chat %d without sender", message.MessageID, message.Chat.ID)
			return
		}

		// Commands always win, even mid-submission.
		if strings.HasPrefix(message.Text, "/") {
			b.handleCommandUpdate(processingCtx, message)
			return
		}

		processed, err := b.submissionMgr.HandleMessage(processingCtx, update)
		if err != nil {
			log.Printf("Error processing message %d via submission manager: %v", message.MessageID, err)
			sentry.CaptureException(fmt.Errorf("submission message handler error: %w", err))
			return
		}
		if !processed && b.debug {
			log.Printf("Ignoring message %d outside any submission (User: %d)", message.MessageID, message.From.ID)
		}

	case update.CallbackQuery != nil:
		b.handleCallbackQuery(processingCtx, *update.CallbackQuery)

	default:
		if b.debug {
			log.Printf("Ignoring unhandled update type: %+v", update)
		}
	}
}

// Start begins the bot's update processing loop. Each update is processed
// in its own goroutine; Start returns after the context is cancelled and
// all in-flight updates have finished.
func (b *Bot) Start(ctx context.Context) {
	if b.updatesChan == nil {
		log.Fatal("Bot updates channel is nil, cannot start")
	}
	log.Println("Listening for updates...")

	var wg sync.WaitGroup

	for {
		select {
		case <-ctx.Done():
			log.Println("Context done, stopping update processing...")
			wg.Wait()
			log.Println("All update processing finished.")
			return
		case update, ok := <-b.updatesChan:
			if !ok {
				log.Println("Updates channel closed.")
				wg.Wait()
				return
			}
			wg.Add(1)
			go func(up telego.Update) {
				defer wg.Done()
				b.processUpdate(ctx, up)
			}(update)
		}
	}
}

// Stop is a placeholder for cleanup; the actual stop is triggered by
// cancelling the context passed to Start.
func (b *Bot) Stop() {
	log.Println("Bot stopping; waiting on context cancellation.")
}
