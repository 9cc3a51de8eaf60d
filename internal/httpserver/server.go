package httpserver

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"

	"github.com/blackmichael/listing-bot/internal/config"
	"github.com/blackmichael/listing-bot/internal/domain"
	"github.com/blackmichael/listing-bot/internal/telegram"
)

const (
	secretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"
	requestIDHeader   = "X-Request-Id"

	maxBodyBytes = 1 << 20

	defaultPostsLimit = 20
	maxPostsLimit     = 100
)

// Server is the HTTP server for channel posting, the Telegram webhook and
// Mini App launch data.
type Server struct {
	cfg            *config.Config
	channelService *domain.ChannelService
	callbacks      *domain.CallbackHandler
	logger         *slog.Logger
	httpServer     *http.Server
	now            func() time.Time
}

// NewServer creates a new HTTP server.
func NewServer(cfg *config.Config, channelService *domain.ChannelService, callbacks *domain.CallbackHandler, logger *slog.Logger) *Server {
	s := &Server{
		cfg:            cfg,
		channelService: channelService,
		callbacks:      callbacks,
		logger:         logger,
		now:            time.Now,
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      withLogging(logger, s.routes()),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/telegram/post-listing", s.handlePostListing)
	mux.HandleFunc("POST /api/telegram/webhook", s.handleWebhook)
	mux.HandleFunc("GET /api/telegram/webhook", s.handleWebhookStatus)
	mux.HandleFunc("POST /api/telegram/init-data", s.handleInitData)
	mux.HandleFunc("GET /api/telegram/posts", s.handleRecentPosts)
	mux.HandleFunc("GET /health", s.handleHealth)
	return mux
}

// Handler returns the server's root handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins listening for HTTP requests. It blocks until the server is
// shut down or an error occurs.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":              "ok",
		"telegram_configured": s.channelService.Configured(),
		"post_log_enabled":    s.channelService.PostLogEnabled(),
	})
}

type postListingResponse struct {
	Success   bool   `json:"success"`
	MessageID int    `json:"messageId,omitempty"`
	Error     string `json:"error,omitempty"`
	Skipped   bool   `json:"skipped,omitempty"`
}

func (s *Server) handlePostListing(w http.ResponseWriter, r *http.Request) {
	var listing domain.Listing
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&listing); err != nil {
		s.logger.Warn("invalid post-listing body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if err := listing.Validate(); err != nil {
		s.logger.Warn("rejecting listing", "listing_id", listing.ID, "error", err)
		writeError(w, http.StatusBadRequest, "Missing required fields")
		return
	}

	result := s.channelService.PostListing(r.Context(), &listing)
	switch {
	case result.Skipped():
		writeJSON(w, http.StatusOK, postListingResponse{Error: result.Error, Skipped: true})
	case result.Success():
		writeJSON(w, http.StatusOK, postListingResponse{Success: true, MessageID: result.MessageID})
	default:
		writeJSON(w, http.StatusInternalServerError, postListingResponse{Error: result.Error})
	}
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if v := recover(); v != nil {
			s.logger.Error("webhook handler panicked", "panic", fmt.Sprint(v))
			writeError(w, http.StatusInternalServerError, "Internal server error")
		}
	}()

	if s.cfg.WebhookSecret != "" {
		got := r.Header.Get(secretTokenHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.cfg.WebhookSecret)) != 1 {
			s.logger.Warn("webhook request with bad secret token")
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
	}

	var update tgbotapi.Update
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&update); err != nil {
		s.logger.Warn("invalid webhook body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	if q := telegram.CallbackQuery(&update); q != nil {
		s.callbacks.Handle(r.Context(), q)
	} else {
		s.logger.Info("ignoring webhook update", "update_id", update.UpdateID)
	}

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleWebhookStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"message": "Telegram webhook endpoint is active",
	})
}

type initDataRequest struct {
	InitData string `json:"init_data"`
}

type initDataResponse struct {
	Valid      bool                 `json:"valid"`
	User       *telegram.WebAppUser `json:"user,omitempty"`
	StartParam string               `json:"start_param,omitempty"`
	Route      string               `json:"route"`
}

func (s *Server) handleInitData(w http.ResponseWriter, r *http.Request) {
	var req initDataRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil || req.InitData == "" {
		writeError(w, http.StatusBadRequest, "init_data is required")
		return
	}

	data, err := telegram.ValidateInitData(req.InitData, s.cfg.BotToken, s.cfg.InitDataMaxAge, s.now())
	if err != nil {
		s.logger.Warn("init data rejected", "error", err)
		writeJSON(w, http.StatusUnauthorized, initDataResponse{Route: "/"})
		return
	}

	resp := initDataResponse{
		Valid:      true,
		User:       data.User,
		StartParam: data.StartParam,
		Route:      "/",
	}
	if data.StartParam != "" {
		link, err := domain.ParseDeepLink(data.StartParam)
		if err != nil {
			s.logger.Info("unrecognized start parameter", "start_param", data.StartParam, "error", err)
		} else {
			resp.Route = link.Route()
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type postRecordResponse struct {
	ID         string    `json:"id"`
	ListingID  string    `json:"listing_id"`
	Status     string    `json:"status"`
	MessageID  int       `json:"message_id,omitempty"`
	PhotoCount int       `json:"photo_count"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

func (s *Server) handleRecentPosts(w http.ResponseWriter, r *http.Request) {
	if !s.channelService.PostLogEnabled() {
		writeError(w, http.StatusNotFound, "Post log is disabled")
		return
	}

	limit := defaultPostsLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 || parsed > maxPostsLimit {
			s.logger.Warn("invalid limit parameter", "limit", l, "error", err)
			writeError(w, http.StatusBadRequest, fmt.Sprintf("limit must be between 1 and %d", maxPostsLimit))
			return
		}
		limit = parsed
	}

	posts, err := s.channelService.RecentPosts(r.Context(), limit)
	if err != nil {
		s.logger.Error("failed to list recent posts", "limit", limit, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	resp := make([]postRecordResponse, len(posts))
	for i, p := range posts {
		resp[i] = postRecordResponse{
			ID:         p.ID,
			ListingID:  string(p.ListingID),
			Status:     p.Status.String(),
			MessageID:  p.MessageID,
			PhotoCount: p.PhotoCount,
			Error:      p.Error,
			CreatedAt:  p.CreatedAt,
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"posts": resp})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func withLogging(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := r.Header.Get(requestIDHeader)
		if _, err := uuid.Parse(requestID); err != nil {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)

		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		logger.Info("http request",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.status,
			"duration", time.Since(start),
		)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
