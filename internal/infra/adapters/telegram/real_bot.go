package telegram

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/ping-media/ai-career-counselor-api/internal/domain"
	"github.com/ping-media/ai-career-counselor-api/internal/domain/ports/adapter"
	"github.com/ping-media/ai-career-counselor-api/internal/domain/ports/repository"
	"github.com/ping-media/ai-career-counselor-api/internal/infra/i18n"
	"github.com/ping-media/ai-career-counselor-api/internal/infra/logging"
	"github.com/ping-media/ai-career-counselor-api/internal/infra/worker"
	"github.com/ping-media/ai-career-counselor-api/internal/usecase"
)

var _ adapter.TelegramBotAdapter = (*RealTelegramBotAdapter)(nil)

// telegram rejects longer texts
const maxMessageRunes = 4096

// sender is the part of tgbotapi.BotAPI the adapter needs.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Options tunes the bot. Zero values fall back to defaults.
type Options struct {
	Workers          int
	MaxMessageLength int
	Translator       *i18n.Translator
	Dev              bool
}

// RealTelegramBotAdapter polls updates and runs every text message as a
// counselor turn. Each chat is bound to one session at a time.
type RealTelegramBotAdapter struct {
	api      *tgbotapi.BotAPI
	send     sender
	uc       usecase.CareerUseCase
	bindings repository.ChatBindingRepository
	tr       *i18n.Translator
	opts     Options
	log      *zerolog.Logger
}

func NewRealTelegramBotAdapter(
	token string,
	uc usecase.CareerUseCase,
	bindings repository.ChatBindingRepository,
	opts Options,
	logger *zerolog.Logger,
) (*RealTelegramBotAdapter, error) {
	if token == "" {
		return nil, errors.New("bot token is empty")
	}
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	r := newAdapter(api, uc, bindings, opts, logger)
	r.api = api
	return r, nil
}

func newAdapter(
	s sender,
	uc usecase.CareerUseCase,
	bindings repository.ChatBindingRepository,
	opts Options,
	logger *zerolog.Logger,
) *RealTelegramBotAdapter {
	if opts.Workers <= 0 {
		opts.Workers = 5
	}
	if opts.MaxMessageLength <= 0 {
		opts.MaxMessageLength = 1000
	}
	if opts.Translator == nil {
		opts.Translator = i18n.Default()
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &RealTelegramBotAdapter{
		send:     s,
		uc:       uc,
		bindings: bindings,
		tr:       opts.Translator,
		opts:     opts,
		log:      logger,
	}
}

// StartPolling blocks until ctx is done.
func (r *RealTelegramBotAdapter) StartPolling(ctx context.Context) error {
	if r.api == nil {
		return errors.New("telegram api not initialised")
	}
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := r.api.GetUpdatesChan(u)
	defer r.api.StopReceivingUpdates()

	pool := worker.NewPool(r.opts.Workers, r.log)
	pool.Start(ctx)
	defer pool.Stop()

	r.log.Info().Str("bot", r.api.Self.UserName).Int("workers", r.opts.Workers).Msg("telegram polling started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			if err := pool.Submit(func(ctx context.Context) error { return r.handleUpdate(ctx, up) }); err != nil {
				r.log.Warn().Err(err).Int("update_id", up.UpdateID).Msg("update dropped")
				if up.Message != nil && up.Message.Chat != nil {
					_ = r.SendMessage(ctx, up.Message.Chat.ID, r.tr.T("overwhelmed"))
				}
			}
		}
	}
}

// SendMessage splits long texts on rune boundaries.
func (r *RealTelegramBotAdapter) SendMessage(ctx context.Context, chatID int64, text string) error {
	for _, part := range splitText(text, maxMessageRunes) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := r.send.Send(tgbotapi.NewMessage(chatID, part)); err != nil {
			return err
		}
	}
	return nil
}

func (r *RealTelegramBotAdapter) handleUpdate(ctx context.Context, update tgbotapi.Update) error {
	msg := update.Message
	if msg == nil || msg.Chat == nil {
		return nil
	}
	ctx = logging.WithChatID(ctx, msg.Chat.ID)

	if msg.IsCommand() {
		if h, ok := r.commandRoutes()[msg.Command()]; ok {
			return h(ctx, msg)
		}
		return r.SendMessage(ctx, msg.Chat.ID, r.tr.T("unknown_command"))
	}
	if strings.TrimSpace(msg.Text) == "" {
		return r.SendMessage(ctx, msg.Chat.ID, r.tr.T("text_only"))
	}
	return r.handleText(ctx, msg)
}

func (r *RealTelegramBotAdapter) handleText(ctx context.Context, msg *tgbotapi.Message) error {
	chatID := msg.Chat.ID
	sessionID, err := r.bindings.SessionFor(ctx, chatID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		logging.With(ctx, r.log).Warn().Err(err).Msg("binding lookup failed")
	}

	res, err := r.uc.SendMessage(ctx, sessionID, msg.Text)
	if err != nil {
		logging.With(ctx, r.log).Error().Err(err).Msg("turn failed")
		return r.SendMessage(ctx, chatID, r.userFacingError(err))
	}
	if res.SessionID != sessionID {
		if err := r.bindings.Bind(ctx, chatID, res.SessionID); err != nil {
			logging.With(ctx, r.log).Error().Err(err).Msg("failed to bind session")
		}
	}
	logging.With(logging.WithSessID(ctx, res.SessionID), r.log).Debug().
		Str("state", string(res.State)).
		Str("text", logging.Redact(msg.Text, r.opts.Dev)).
		Msg("telegram turn")
	return r.SendMessage(ctx, chatID, res.Reply)
}

func (r *RealTelegramBotAdapter) userFacingError(err error) string {
	var me *domain.ModelInvocationError
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		return r.tr.T("err_invalid_message", r.opts.MaxMessageLength)
	case errors.Is(err, domain.ErrSessionBusy), errors.Is(err, domain.ErrConflict):
		return r.tr.T("err_busy")
	case errors.As(err, &me):
		return r.tr.T("err_model")
	default:
		return r.tr.T("err_generic")
	}
}

func splitText(text string, limit int) []string {
	if utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}
	var out []string
	runes := []rune(text)
	for len(runes) > 0 {
		n := limit
		if n > len(runes) {
			n = len(runes)
		} else if i := lastNewline(runes[:n]); i > limit/2 {
			n = i + 1
		}
		out = append(out, string(runes[:n]))
		runes = runes[n:]
	}
	return out
}

func lastNewline(rs []rune) int {
	for i := len(rs) - 1; i >= 0; i-- {
		if rs[i] == '\n' {
			return i
		}
	}
	return -1
}
