package handlers

import (
	"context"
	"log"

	"github.com/mymmrac/telego"

	"rasta-market-bot/internal/auth"
	"rasta-market-bot/internal/database"
	"rasta-market-bot/pkg/telegoapi"
)

// Action types for logging and user updates
const (
	ActionCommandStart   = "command_start"
	ActionCommandHelp    = "command_help"
	ActionCommandSell    = "command_sell"
	ActionCommandRules   = "command_rules"
	ActionCommandStatus  = "command_status"
	ActionCommandVersion = "command_version"
	ActionSellerButton   = "seller_button"
	ActionBuyerButton    = "buyer_button"
	ActionRulesButton    = "rules_button"
)

// Command maps a command string to its description key and handler function.
type Command struct {
	Command     string // the command string, e.g. "sell"
	Description string // message ID of the localized description for /help
	Handler     func(context.Context, telegoapi.BotAPI, telego.Message) error
}

// MessageHandler handles incoming Telegram commands and the welcome-menu
// callbacks. The submission workflow itself lives in the submission manager;
// this type routes into it and covers everything around it.
type MessageHandler struct {
	groupID int64  // public group approved listings are published to
	version string // application version reported by /version

	// commands holds the list of available bot commands.
	commands []Command

	actionLogger  database.UserActionLogger
	userRepo      database.UserRepository
	submissionMgr SubmissionManagerInterface
	adminChecker  auth.AdminCheckerInterface
}

// NewMessageHandler creates and initializes a new MessageHandler instance.
func NewMessageHandler(
	groupID int64,
	version string,
	actionLogger database.UserActionLogger,
	userRepo database.UserRepository,
	submissionMgr SubmissionManagerInterface,
	adminChecker auth.AdminCheckerInterface,
) *MessageHandler {
	if submissionMgr == nil {
		log.Fatal("MessageHandler: submission manager dependency is nil")
	}
	if adminChecker == nil {
		log.Fatal("MessageHandler: admin checker dependency is nil")
	}
	h := &MessageHandler{
		groupID:       groupID,
		version:       version,
		actionLogger:  actionLogger,
		userRepo:      userRepo,
		submissionMgr: submissionMgr,
		adminChecker:  adminChecker,
	}
	h.commands = []Command{
		{Command: "start", Description: "CmdStartDescription", Handler: h.HandleStart},
		{Command: "help", Description: "CmdHelpDescription", Handler: h.HandleHelp},
		{Command: "sell", Description: "CmdSellDescription", Handler: h.HandleSell},
		{Command: "rules", Description: "CmdRulesDescription", Handler: h.HandleRules},
		{Command: "status", Description: "CmdStatusDescription", Handler: h.HandleStatus},
		{Command: "version", Description: "CmdVersionDescription", Handler: h.HandleVersion},
	}
	return h
}

// GetCommandHandler retrieves the handler function for a command string
// such as "sell". It returns nil if the command is not known.
func (h *MessageHandler) GetCommandHandler(command string) func(context.Context, telegoapi.BotAPI, telego.Message) error {
	for _, cmd := range h.commands {
		if cmd.Command == command {
			return cmd.Handler
		}
	}
	return nil
}
