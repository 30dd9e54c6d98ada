package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/ping-media/ai-career-counselor-api/internal/domain"
	"github.com/ping-media/ai-career-counselor-api/internal/domain/model"
	"github.com/ping-media/ai-career-counselor-api/internal/domain/ports/adapter"
	"github.com/ping-media/ai-career-counselor-api/internal/usecase"
)

const maxBodyBytes = 64 << 10

// Server exposes the counselor use case over JSON/HTTP.
type Server struct {
	uc   usecase.CareerUseCase
	auth *AuthManager
	log  *zerolog.Logger
	dev  bool
}

func NewServer(uc usecase.CareerUseCase, auth *AuthManager, logger *zerolog.Logger, dev bool) *Server {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Server{uc: uc, auth: auth, log: logger, dev: dev}
}

type RouterOptions struct {
	AllowedOrigins []string
	RequestTimeout time.Duration
	Limiter        Limiter
	RatePerMinute  int
	RateKey        func(ip string) string
}

// NewRouter mounts every route behind the shared middleware stack.
func NewRouter(s *Server, opts RouterOptions) chi.Router {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 60 * time.Second
	}
	if opts.RateKey == nil {
		opts.RateKey = func(ip string) string { return "rate_limit:" + ip }
	}

	r := chi.NewRouter()
	r.Use(
		TraceID(s.log),
		RequestLog(s.log),
		Recover(s.log),
		Metrics(),
		CORS(opts.AllowedOrigins),
	)

	r.Get("/", s.handleRoot)
	r.Get("/api/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(
			RateLimit(opts.Limiter, opts.RatePerMinute, opts.RateKey, s.log),
			Timeout(opts.RequestTimeout),
		)
		r.Post("/api/chat", s.handleChat)
		r.Get("/api/chat/history", s.handleHistory)
		r.Post("/api/chat/user-info", s.handleUserInfo)
		r.Post("/api/chat/new-session", s.handleNewSession)
		r.Post("/api/conversation", s.handleConversation)
		r.With(s.auth.RequireAdmin).Get("/api/chat/history/{sessionId}", s.handleFullHistory)
	})
	return r
}

type chatRequest struct {
	Message json.RawMessage `json:"message"`
}

type chatResponse struct {
	Response  string        `json:"response"`
	SessionID string        `json:"sessionId"`
	State     model.State   `json:"state"`
	UserInfo  model.Profile `json:"userInfo"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !s.decode(w, r, &req) {
		return
	}
	msg, ok := s.message(w, r, req.Message)
	if !ok {
		return
	}

	res, err := s.uc.SendMessage(r.Context(), r.Header.Get(headerSessionID), msg)
	if err != nil {
		s.writeError(w, r, err, "Failed to process request")
		return
	}
	w.Header().Set(headerSessionID, res.SessionID)
	writeJSON(w, http.StatusOK, chatResponse{
		Response:  res.Reply,
		SessionID: res.SessionID,
		State:     res.State,
		UserInfo:  res.Profile,
	})
}

type historyResponse struct {
	Messages  []model.Message `json:"messages"`
	UserInfo  model.Profile   `json:"userInfo"`
	SessionID *string         `json:"sessionId"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	view, err := s.uc.History(r.Context(), r.Header.Get(headerSessionID))
	if err != nil {
		s.writeError(w, r, err, "Failed to fetch chat history")
		return
	}
	resp := historyResponse{Messages: view.Messages, UserInfo: view.Profile}
	if view.SessionID != "" {
		resp.SessionID = &view.SessionID
	}
	writeJSON(w, http.StatusOK, resp)
}

type fullHistoryResponse struct {
	Messages  []model.Message `json:"messages"`
	UserInfo  *model.Profile  `json:"userInfo,omitempty"`
	State     model.State     `json:"state,omitempty"`
	SessionID *string         `json:"sessionId"`
}

func (s *Server) handleFullHistory(w http.ResponseWriter, r *http.Request) {
	sess, err := s.uc.FullHistory(r.Context(), chi.URLParam(r, "sessionId"))
	if errors.Is(err, domain.ErrNotFound) {
		writeJSON(w, http.StatusOK, fullHistoryResponse{Messages: []model.Message{}})
		return
	}
	if err != nil {
		s.writeError(w, r, err, "Failed to fetch chat history")
		return
	}
	writeJSON(w, http.StatusOK, fullHistoryResponse{
		Messages:  sess.Messages,
		UserInfo:  &sess.Profile,
		State:     sess.State,
		SessionID: &sess.ID,
	})
}

type userInfoRequest struct {
	Name         string `json:"name"`
	Stream       string `json:"stream"`
	SelectedRole string `json:"selectedRole"`
}

type userInfoResponse struct {
	Success  bool          `json:"success"`
	UserInfo model.Profile `json:"userInfo"`
	State    model.State   `json:"state"`
}

func (s *Server) handleUserInfo(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.Header.Get(headerSessionID))
	if sessionID == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Session ID is required"})
		return
	}
	var req userInfoRequest
	if !s.decode(w, r, &req) {
		return
	}
	sess, err := s.uc.UpdateProfile(r.Context(), sessionID, model.Profile{
		Name:         req.Name,
		Stream:       req.Stream,
		SelectedRole: req.SelectedRole,
	})
	if err != nil {
		s.writeError(w, r, err, "Failed to update user info")
		return
	}
	writeJSON(w, http.StatusOK, userInfoResponse{Success: true, UserInfo: sess.Profile, State: sess.State})
}

type newSessionResponse struct {
	Success   bool            `json:"success"`
	Message   string          `json:"message"`
	SessionID string          `json:"sessionId"`
	Messages  []model.Message `json:"messages"`
	UserInfo  model.Profile   `json:"userInfo"`
}

func (s *Server) handleNewSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.uc.NewSession(r.Context(), r.Header.Get(headerSessionID))
	if err != nil {
		s.writeError(w, r, err, "Failed to start new session")
		return
	}
	w.Header().Set(headerSessionID, sess.ID)
	writeJSON(w, http.StatusOK, newSessionResponse{
		Success:   true,
		Message:   "New session created successfully",
		SessionID: sess.ID,
		Messages:  sess.Messages,
		UserInfo:  sess.Profile,
	})
}

type conversationRequest struct {
	Message json.RawMessage   `json:"message"`
	Context []adapter.Message `json:"context"`
}

type conversationResponse struct {
	Response string            `json:"response"`
	Context  []adapter.Message `json:"context"`
}

func (s *Server) handleConversation(w http.ResponseWriter, r *http.Request) {
	var req conversationRequest
	if !s.decode(w, r, &req) {
		return
	}
	msg, ok := s.message(w, r, req.Message)
	if !ok {
		return
	}
	reply, history, err := s.uc.Converse(r.Context(), msg, req.Context)
	if err != nil {
		s.writeError(w, r, err, "Failed to process request")
		return
	}
	writeJSON(w, http.StatusOK, conversationResponse{Response: reply, Context: history})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Welcome to CareerVerse API"})
}

// decode reads a JSON body. An empty body decodes to the zero value.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: "Request body too large"})
		return false
	}
	writeJSON(w, http.StatusBadRequest, errorBody{Error: "Invalid JSON body"})
	return false
}

// message extracts the utterance. Length and blank checks belong to the use case.
func (s *Server) message(w http.ResponseWriter, r *http.Request, raw json.RawMessage) (string, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Message is required"})
		return "", false
	}
	var msg string
	if err := json.Unmarshal(raw, &msg); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Message must be a string"})
		return "", false
	}
	return msg, true
}
