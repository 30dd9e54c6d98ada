package telegram

import (
	"context"
	"errors"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/ping-media/ai-career-counselor-api/internal/domain"
	"github.com/ping-media/ai-career-counselor-api/internal/infra/logging"
)

type commandHandler func(ctx context.Context, message *tgbotapi.Message) error

// commandRoutes defines all available bot commands and their handlers.
func (r *RealTelegramBotAdapter) commandRoutes() map[string]commandHandler {
	return map[string]commandHandler{
		"start":   r.handleStartCommand,
		"new":     r.handleStartCommand,
		"profile": r.handleProfileCommand,
		"stop":    r.handleStopCommand,
		"help":    r.handleHelpCommand,
	}
}

// handleStartCommand supersedes the chat's session and greets the user.
func (r *RealTelegramBotAdapter) handleStartCommand(ctx context.Context, message *tgbotapi.Message) error {
	chatID := message.Chat.ID
	previous, err := r.bindings.SessionFor(ctx, chatID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		logging.With(ctx, r.log).Warn().Err(err).Msg("binding lookup failed")
	}

	sess, err := r.uc.NewSession(ctx, previous)
	if err != nil {
		logging.With(ctx, r.log).Error().Err(err).Msg("failed to start session")
		return r.SendMessage(ctx, chatID, r.userFacingError(err))
	}
	if err := r.bindings.Bind(ctx, chatID, sess.ID); err != nil {
		logging.With(ctx, r.log).Error().Err(err).Msg("failed to bind session")
		return r.SendMessage(ctx, chatID, r.userFacingError(err))
	}
	return r.SendMessage(ctx, chatID, r.uc.Welcome())
}

func (r *RealTelegramBotAdapter) handleProfileCommand(ctx context.Context, message *tgbotapi.Message) error {
	chatID := message.Chat.ID
	sessionID, err := r.bindings.SessionFor(ctx, chatID)
	if err != nil {
		return r.SendMessage(ctx, chatID, r.tr.T("no_session"))
	}
	view, err := r.uc.History(ctx, sessionID)
	if err != nil {
		return r.SendMessage(ctx, chatID, r.userFacingError(err))
	}
	if view.SessionID == "" {
		return r.SendMessage(ctx, chatID, r.tr.T("no_session"))
	}

	lines := []string{
		r.tr.T("profile_header"),
		r.tr.T("profile_name", r.orMissing(view.Profile.Name)),
		r.tr.T("profile_stream", r.orMissing(view.Profile.Stream)),
		r.tr.T("profile_role", r.orMissing(view.Profile.SelectedRole)),
	}
	return r.SendMessage(ctx, chatID, strings.Join(lines, "\n"))
}

// handleStopCommand forgets the chat's session. The session itself is kept.
func (r *RealTelegramBotAdapter) handleStopCommand(ctx context.Context, message *tgbotapi.Message) error {
	if err := r.bindings.Unbind(ctx, message.Chat.ID); err != nil {
		logging.With(ctx, r.log).Error().Err(err).Msg("failed to unbind session")
		return r.SendMessage(ctx, message.Chat.ID, r.userFacingError(err))
	}
	return r.SendMessage(ctx, message.Chat.ID, r.tr.T("stopped"))
}

func (r *RealTelegramBotAdapter) handleHelpCommand(ctx context.Context, message *tgbotapi.Message) error {
	return r.SendMessage(ctx, message.Chat.ID, r.tr.T("help"))
}

func (r *RealTelegramBotAdapter) orMissing(s string) string {
	if s == "" {
		return r.tr.T("profile_missing")
	}
	return s
}
