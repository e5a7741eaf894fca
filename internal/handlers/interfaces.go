package handlers

import (
	"context"

	"github.com/mymmrac/telego"
)

// SubmissionManagerInterface is the slice of the submission manager the
// command handlers need. Narrowed for mocking in tests.
type SubmissionManagerInterface interface {
	HandleSellCommand(ctx context.Context, update telego.Update) error
	HandleMessage(ctx context.Context, update telego.Update) (processed bool, err error)
	HandleCallbackQuery(ctx context.Context, query telego.CallbackQuery) (processed bool, err error)
	StartSubmission(ctx context.Context, chatID int64, from *telego.User) error
	ActiveCounts() (collecting, pending int)
}
