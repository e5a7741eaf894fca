package auth

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/mymmrac/telego"

	"rasta-market-bot/pkg/telegoapi"
)

// AdminCheckerInterface abstracts the moderator check for handlers and tests.
type AdminCheckerInterface interface {
	IsAdmin(ctx context.Context, userID int64) (bool, error)
}

// AdminChecker checks whether a user administers the moderation chat.
type AdminChecker struct {
	bot        telegoapi.BotAPI
	targetChat int64
}

// NewAdminChecker creates a new AdminChecker.
// It requires a non-nil bot instance and a non-zero moderation chat ID.
func NewAdminChecker(bot telegoapi.BotAPI, chatID int64) (*AdminChecker, error) {
	if bot == nil {
		return nil, fmt.Errorf("bot instance cannot be nil")
	}
	if chatID == 0 {
		return nil, fmt.Errorf("moderation chat ID cannot be zero")
	}
	return &AdminChecker{
		bot:        bot,
		targetChat: chatID,
	}, nil
}

// IsAdmin reports whether the user is a creator or administrator of the
// moderation chat.
func (ac *AdminChecker) IsAdmin(ctx context.Context, userID int64) (bool, error) {
	member, err := ac.bot.GetChatMember(ctx, &telego.GetChatMemberParams{
		ChatID: telego.ChatID{ID: ac.targetChat},
		UserID: userID,
	})
	if err != nil {
		// A user not found in the chat is simply not an admin.
		// API errors (network, permissions) should be returned.
		if strings.Contains(strings.ToLower(err.Error()), "user not found") {
			return false, nil
		}
		log.Printf("[AdminCheck User:%d Chat:%d] Error checking chat member: %v", userID, ac.targetChat, err)
		return false, fmt.Errorf("failed to get chat member info: %w", err)
	}

	status := member.MemberStatus()
	return status == telego.MemberStatusCreator || status == telego.MemberStatusAdministrator, nil
}
