// File: internal/usecase/career_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ping-media/ai-career-counselor-api/internal/domain"
	"github.com/ping-media/ai-career-counselor-api/internal/domain/catalog"
	"github.com/ping-media/ai-career-counselor-api/internal/domain/intake"
	"github.com/ping-media/ai-career-counselor-api/internal/domain/model"
	"github.com/ping-media/ai-career-counselor-api/internal/domain/ports/adapter"
	"github.com/ping-media/ai-career-counselor-api/internal/domain/ports/repository"
	"github.com/ping-media/ai-career-counselor-api/internal/domain/prompt"
	"github.com/ping-media/ai-career-counselor-api/internal/infra/logging"
	"github.com/ping-media/ai-career-counselor-api/internal/infra/metrics"
)

// Compile-time check
var _ CareerUseCase = (*careerUC)(nil)

// CareerUseCase runs counselor conversations. It is the only component that
// mutates sessions.
type CareerUseCase interface {
	// SendMessage runs one turn. An empty or unknown sessionID starts a new
	// session whose reply is the welcome text.
	SendMessage(ctx context.Context, sessionID, message string) (*TurnResult, error)
	// History returns the client-visible log. Unknown ids yield an empty view.
	History(ctx context.Context, sessionID string) (*HistoryView, error)
	// FullHistory returns the raw session including system instructions.
	FullHistory(ctx context.Context, sessionID string) (*model.CareerSession, error)
	// UpdateProfile fills unset profile fields and moves the state forward.
	UpdateProfile(ctx context.Context, sessionID string, patch model.Profile) (*model.CareerSession, error)
	// NewSession starts a fresh session, superseding previousID when given.
	NewSession(ctx context.Context, previousID string) (*model.CareerSession, error)
	// Converse is a stateless turn over caller-held context.
	Converse(ctx context.Context, message string, history []adapter.Message) (string, []adapter.Message, error)
	Welcome() string
}

type TurnResult struct {
	Reply      string
	SessionID  string
	State      model.State
	Profile    model.Profile
	NewSession bool
}

type HistoryView struct {
	SessionID string // empty when no session exists
	Messages  []model.Message
	Profile   model.Profile
}

// Sampling is the per-call model configuration. Temperature is always sent,
// zero included.
type Sampling struct {
	Temperature float64
	MaxTokens   int
}

func (s Sampling) temperature() *float64 {
	t := s.Temperature
	return &t
}

type CareerOptions struct {
	Model            string
	Sampling         Sampling
	Stateless        Sampling
	Timeout          time.Duration // bound on a single model call
	MaxMessageLength int
	DeleteSuperseded bool
	Dev              bool
	// Tokens sizes stored messages. Nil records zero.
	Tokens adapter.TokenCounter
}

type careerUC struct {
	sessions repository.CareerSessionRepository
	locks    repository.SessionLocker
	ai       adapter.AIServiceAdapter
	cat      *catalog.Catalog
	machine  *intake.Machine
	prompts  *prompt.Composer
	opts     CareerOptions
	log      *zerolog.Logger
}

func NewCareerUseCase(
	sessions repository.CareerSessionRepository,
	locks repository.SessionLocker,
	ai adapter.AIServiceAdapter,
	cat *catalog.Catalog,
	opts CareerOptions,
	logger *zerolog.Logger,
) *careerUC {
	if opts.MaxMessageLength <= 0 {
		opts.MaxMessageLength = 1000
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &careerUC{
		sessions: sessions,
		locks:    locks,
		ai:       ai,
		cat:      cat,
		machine:  intake.NewMachine(cat),
		prompts:  prompt.NewComposer(cat),
		opts:     opts,
		log:      logger,
	}
}

func (c *careerUC) Welcome() string { return c.prompts.Welcome() }

func (c *careerUC) SendMessage(ctx context.Context, sessionID, message string) (*TurnResult, error) {
	log := logging.With(ctx, c.log)
	defer logging.TraceDuration(log, "CareerUC.SendMessage")()

	if err := c.validate(message); err != nil {
		metrics.IncTurn("invalid")
		return nil, err
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return c.startWithWelcome(ctx, message)
	}

	unlock, err := c.lock(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	s, err := c.sessions.FindByID(ctx, sessionID)
	if errors.Is(err, domain.ErrNotFound) {
		unlock()
		log.Debug().Str("session_id", sessionID).Msg("unknown session, starting a new one")
		return c.startWithWelcome(ctx, message)
	}
	if err != nil {
		metrics.IncTurn("store_error")
		return nil, &domain.PersistenceError{Op: "find", Err: err}
	}
	log = logging.With(logging.WithSessID(ctx, s.ID), c.log)

	out := c.machine.Advance(s, message)
	if out.Changed() {
		metrics.IncTransition(string(out.From), string(out.To))
		log.Info().
			Str("from", string(out.From)).
			Str("to", string(out.To)).
			Str("field", string(out.Signal)).
			Str("value", logging.Redact(out.Value, c.opts.Dev)).
			Msg("intake transition")
	}

	s.AddMessage(model.RoleUser, message, c.countTokens(model.RoleUser, message))

	req := adapter.ChatRequest{
		Model:       c.opts.Model,
		System:      c.prompts.Compose(s.State, s.Profile),
		History:     toAdapterMessages(s.Conversation()),
		Temperature: c.opts.Sampling.temperature(),
		MaxTokens:   c.opts.Sampling.MaxTokens,
	}
	reply, usage, err := c.invoke(ctx, req)
	if err != nil {
		metrics.IncTurn("model_error")
		log.Error().Err(err).Str("state", string(s.State)).Msg("model call failed")
		// keep the user message and any captured field so a retry is safe
		if serr := c.save(ctx, s); serr != nil {
			log.Error().Err(serr).Msg("failed to persist session after model error")
		}
		return nil, err
	}

	s.AddMessage(model.RoleAssistant, reply, usage.CompletionTokens)
	if err := c.save(ctx, s); err != nil {
		metrics.IncTurn("store_error")
		return nil, err
	}
	metrics.IncTurn("reply")
	log.Debug().
		Str("state", string(s.State)).
		Int("prompt_tokens", usage.PromptTokens).
		Int("completion_tokens", usage.CompletionTokens).
		Msg("turn completed")

	return &TurnResult{
		Reply:     reply,
		SessionID: s.ID,
		State:     s.State,
		Profile:   s.Profile,
	}, nil
}

// startWithWelcome creates a session seeded with the initial instruction and
// the welcome text, records the utterance and answers it with the welcome,
// leaving [system, welcome, user, welcome]. No adapter is called and the
// utterance is not evaluated for intake.
func (c *careerUC) startWithWelcome(ctx context.Context, message string) (*TurnResult, error) {
	s := model.NewCareerSession(uuid.NewString(), c.prompts.Initial())
	welcome := c.prompts.Welcome()
	welcomeTokens := c.countTokens(model.RoleAssistant, welcome)
	s.AddMessage(model.RoleAssistant, welcome, welcomeTokens)
	s.AddMessage(model.RoleUser, message, c.countTokens(model.RoleUser, message))
	s.AddMessage(model.RoleAssistant, welcome, welcomeTokens)

	if err := c.save(ctx, s); err != nil {
		metrics.IncTurn("store_error")
		return nil, err
	}
	metrics.IncTurn("welcome")
	logging.With(logging.WithSessID(ctx, s.ID), c.log).Info().Msg("session started")

	return &TurnResult{
		Reply:      welcome,
		SessionID:  s.ID,
		State:      s.State,
		Profile:    s.Profile,
		NewSession: true,
	}, nil
}

func (c *careerUC) History(ctx context.Context, sessionID string) (*HistoryView, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return &HistoryView{Messages: []model.Message{}}, nil
	}
	s, err := c.sessions.FindByID(ctx, sessionID)
	if errors.Is(err, domain.ErrNotFound) {
		return &HistoryView{Messages: []model.Message{}}, nil
	}
	if err != nil {
		return nil, &domain.PersistenceError{Op: "find", Err: err}
	}
	return &HistoryView{
		SessionID: s.ID,
		Messages:  s.VisibleMessages(c.prompts.Welcome()),
		Profile:   s.Profile,
	}, nil
}

func (c *careerUC) FullHistory(ctx context.Context, sessionID string) (*model.CareerSession, error) {
	s, err := c.sessions.FindByID(ctx, strings.TrimSpace(sessionID))
	if errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, &domain.PersistenceError{Op: "find", Err: err}
	}
	return s, nil
}

func (c *careerUC) UpdateProfile(ctx context.Context, sessionID string, patch model.Profile) (*model.CareerSession, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, &domain.ValidationError{Field: "sessionId", Reason: "session id is required"}
	}
	patch, err := c.canonicalProfile(patch)
	if err != nil {
		return nil, err
	}

	unlock, err := c.lock(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	s, err := c.sessions.FindByID(ctx, sessionID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, &domain.PersistenceError{Op: "find", Err: err}
	}

	if field, needs, bad := intake.OutOfOrder(s.Profile, patch); bad {
		return nil, &domain.ValidationError{Field: string(field), Reason: fmt.Sprintf("%s must be set first", needs)}
	}

	before := s.State
	applied := intake.Apply(s, patch)
	if before != s.State {
		metrics.IncTransition(string(before), string(s.State))
	}
	if len(applied) == 0 && before == s.State {
		return s, nil
	}
	s.Touch()
	if err := c.save(ctx, s); err != nil {
		return nil, err
	}
	logging.With(logging.WithSessID(ctx, s.ID), c.log).Info().
		Int("fields", len(applied)).
		Str("state", string(s.State)).
		Msg("profile updated")
	return s, nil
}

func (c *careerUC) canonicalProfile(p model.Profile) (model.Profile, error) {
	out := model.Profile{Name: strings.TrimSpace(p.Name)}
	if v := strings.TrimSpace(p.Stream); v != "" {
		stream, ok := c.cat.Stream(v)
		if !ok {
			return out, &domain.ValidationError{Field: "stream", Reason: fmt.Sprintf("unknown stream %q", v)}
		}
		out.Stream = stream
	}
	if v := strings.TrimSpace(p.SelectedRole); v != "" {
		role, ok := c.cat.Role(v)
		if !ok {
			return out, &domain.ValidationError{Field: "selectedRole", Reason: fmt.Sprintf("unknown role %q", v)}
		}
		out.SelectedRole = role
	}
	return out, nil
}

func (c *careerUC) NewSession(ctx context.Context, previousID string) (*model.CareerSession, error) {
	s := model.NewCareerSession(uuid.NewString(), c.prompts.Initial())
	if err := c.save(ctx, s); err != nil {
		return nil, err
	}

	log := logging.With(logging.WithSessID(ctx, s.ID), c.log)
	previousID = strings.TrimSpace(previousID)
	if previousID != "" && c.opts.DeleteSuperseded {
		if err := c.sessions.Delete(ctx, previousID); err != nil && !errors.Is(err, domain.ErrNotFound) {
			log.Warn().Err(err).Str("previous", previousID).Msg("failed to delete superseded session")
		}
	}
	log.Info().Msg("new session created")
	return s, nil
}

func (c *careerUC) Converse(ctx context.Context, message string, history []adapter.Message) (string, []adapter.Message, error) {
	if err := c.validate(message); err != nil {
		return "", nil, err
	}
	msgs := make([]adapter.Message, 0, len(history)+2)
	for _, m := range history {
		r, err := model.ParseRole(m.Role)
		if err != nil {
			return "", nil, &domain.ValidationError{Field: "context", Reason: err.Error()}
		}
		if r == model.RoleSystem {
			continue
		}
		msgs = append(msgs, adapter.Message{Role: string(r), Content: m.Content})
	}
	msgs = append(msgs, adapter.Message{Role: string(model.RoleUser), Content: message})

	reply, _, err := c.invoke(ctx, adapter.ChatRequest{
		Model:       c.opts.Model,
		System:      c.prompts.Initial(),
		History:     msgs,
		Temperature: c.opts.Stateless.temperature(),
		MaxTokens:   c.opts.Stateless.MaxTokens,
	})
	if err != nil {
		return "", nil, err
	}
	return reply, append(msgs, adapter.Message{Role: string(model.RoleAssistant), Content: reply}), nil
}

func (c *careerUC) validate(message string) error {
	if strings.TrimSpace(message) == "" {
		return &domain.ValidationError{Field: "message", Reason: "message is required"}
	}
	if utf8.RuneCountInString(message) > c.opts.MaxMessageLength {
		return &domain.ValidationError{
			Field:  "message",
			Reason: fmt.Sprintf("message exceeds %d characters", c.opts.MaxMessageLength),
		}
	}
	return nil
}

func (c *careerUC) lock(ctx context.Context, sessionID string) (func(), error) {
	start := time.Now()
	unlock, err := c.locks.Lock(ctx, sessionID)
	metrics.ObserveLockWait(time.Since(start).Milliseconds())
	if err != nil {
		metrics.IncTurn("busy")
		if errors.Is(err, domain.ErrSessionBusy) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrSessionBusy, err)
	}
	return unlock, nil
}

func (c *careerUC) invoke(ctx context.Context, req adapter.ChatRequest) (string, adapter.Usage, error) {
	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}
	reply, usage, err := c.ai.Chat(ctx, req)
	if err != nil {
		return "", usage, &domain.ModelInvocationError{Model: req.Model, Err: err}
	}
	if strings.TrimSpace(reply) == "" {
		return "", usage, &domain.ModelInvocationError{Model: req.Model, Err: errors.New("empty completion")}
	}
	return reply, usage, nil
}

func (c *careerUC) save(ctx context.Context, s *model.CareerSession) error {
	err := c.sessions.Save(ctx, s)
	if err == nil || errors.Is(err, domain.ErrConflict) {
		return err
	}
	return &domain.PersistenceError{Op: "save", Err: err}
}

func (c *careerUC) countTokens(role model.Role, content string) int {
	if c.opts.Tokens == nil {
		return 0
	}
	return c.opts.Tokens.Count(c.opts.Model, []adapter.Message{{Role: string(role), Content: content}})
}

func toAdapterMessages(msgs []model.Message) []adapter.Message {
	out := make([]adapter.Message, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case model.RoleUser, model.RoleAssistant:
			out = append(out, adapter.Message{Role: string(m.Role), Content: m.Content})
		case model.RoleSystem:
			// only the leading instruction is a system message; it is replaced by the composed one
		}
	}
	return out
}
