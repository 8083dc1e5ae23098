package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"bhasha/internal/catalog"
	"bhasha/internal/config"
	"bhasha/internal/ingest"
	"bhasha/internal/language"
	"bhasha/internal/logging"
	"bhasha/internal/services"
	"bhasha/internal/services/assistant"
)

const maxMultipartMemory = 8 << 20

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon
	mux    *http.ServeMux

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	if cfg == nil || d == nil {
		return nil, nil
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, nil
	}

	srv := &apiServer{
		bind:   bind,
		logger: logging.WithComponent(logger, "api-server"),
		daemon: d,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", srv.handleStatus)
	mux.HandleFunc("/api/content", srv.handleContent)
	mux.HandleFunc("/api/contribute", srv.handleContribute)
	mux.HandleFunc("/api/upload", srv.handleUpload)
	mux.HandleFunc("/api/media", srv.handleMedia)
	mux.HandleFunc("/api/analytics", srv.handleAnalytics)
	mux.HandleFunc("/api/chat", srv.handleChat)
	srv.mux = mux
	return srv, nil
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	// A shut-down http.Server cannot serve again, so each start gets a
	// fresh one over the shared mux.
	server := &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	s.server = server

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
		s.server = nil
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) address() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Handler exposes the mux for tests.
func (s *apiServer) handler() http.Handler {
	return s.mux
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, s.daemon.Status())
}

type contentItem struct {
	ID           int64    `json:"id"`
	Type         string   `json:"type"`
	Title        string   `json:"title"`
	Body         string   `json:"content"`
	Language     string   `json:"language"`
	Region       string   `json:"region,omitempty"`
	Category     string   `json:"category,omitempty"`
	Tags         []string `json:"tags"`
	ContentRef   string   `json:"contentRef,omitempty"`
	ContentType  string   `json:"contentType,omitempty"`
	Size         int64    `json:"size,omitempty"`
	LikesCount   int64    `json:"likesCount"`
	CreatedAt    string   `json:"createdAt"`
	LanguageName string   `json:"languageName"`
}

func (s *apiServer) handleContent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	query := r.URL.Query()
	limit := s.daemon.cfg.Upload.ListLimit
	if value := strings.TrimSpace(query.Get("limit")); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed < 0 {
			s.writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	records, err := s.daemon.store.Query(r.Context(), catalog.Filters{
		Language:   query.Get("language"),
		Category:   query.Get("category"),
		Region:     query.Get("region"),
		SearchText: query.Get("search"),
		Limit:      limit,
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	items := make([]contentItem, 0, len(records))
	for _, rec := range records {
		items = append(items, contentItem{
			ID:           rec.ID,
			Type:         string(rec.Type),
			Title:        rec.Title,
			Body:         rec.Body,
			Language:     rec.LanguageCode,
			Region:       rec.Region,
			Category:     rec.Category,
			Tags:         rec.Tags,
			ContentRef:   rec.ContentRef,
			ContentType:  rec.ContentType,
			Size:         rec.Size,
			LikesCount:   rec.LikesCount,
			CreatedAt:    rec.CreatedAt.Format(time.RFC3339),
			LanguageName: language.DisplayName(rec.LanguageCode),
		})
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

type contributeRequest struct {
	Type          string   `json:"type"`
	Title         string   `json:"title"`
	Content       string   `json:"content"`
	Language      string   `json:"language"`
	Region        string   `json:"region"`
	Category      string   `json:"category"`
	Tags          []string `json:"tags"`
	ContributorID int64    `json:"contributorId"`
}

func (s *apiServer) handleContribute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req contributeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	category := strings.TrimSpace(req.Category)
	switch strings.TrimSpace(req.Type) {
	case "cultural":
		if category == "" {
			category = "cultural"
		}
	case "language-data":
		if category == "" {
			category = "language-data"
		}
	default:
		s.writeError(w, http.StatusBadRequest, "type must be cultural or language-data")
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		s.writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	if strings.TrimSpace(req.Language) == "" {
		s.writeError(w, http.StatusBadRequest, "language is required")
		return
	}

	contributorID := req.ContributorID
	if contributorID == 0 {
		contributorID = anonymousContributorID
	}

	rec, err := s.daemon.ingest.PublishText(r.Context(), ingest.Meta{
		Title:         req.Title,
		Body:          req.Content,
		LanguageCode:  req.Language,
		Region:        req.Region,
		Category:      category,
		Tags:          req.Tags,
		ContributorID: contributorID,
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	_ = s.daemon.notifier.NotifyContributionPublished(r.Context(), rec.Title, language.DisplayName(rec.LanguageCode))
	s.writeJSON(w, http.StatusOK, map[string]any{"id": rec.ID})
}

func (s *apiServer) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "no file provided")
		return
	}
	defer file.Close()

	contributionType, ok := catalog.ParseType(r.FormValue("type"))
	if !ok {
		s.writeError(w, http.StatusBadRequest, "unknown contribution type")
		return
	}
	contributorID, _ := strconv.ParseInt(r.FormValue("contributorId"), 10, 64)
	if contributorID == 0 {
		contributorID = anonymousContributorID
	}

	contentType := header.Header.Get("Content-Type")
	rec, err := s.daemon.ingest.PublishFile(r.Context(), file, header.Size, contentType, ingest.Meta{
		Type:          contributionType,
		Title:         r.FormValue("title"),
		LanguageCode:  r.FormValue("languageCode"),
		ContentID:     r.FormValue("contentId"),
		Filename:      header.Filename,
		ContributorID: contributorID,
	})
	if err != nil {
		if errors.Is(err, services.ErrTransferFailure) || errors.Is(err, services.ErrTimeout) {
			_ = s.daemon.notifier.NotifyError(r.Context(), err, "upload "+header.Filename)
		}
		s.writeServiceError(w, err)
		return
	}

	_ = s.daemon.notifier.NotifyContributionPublished(r.Context(), rec.Title, language.DisplayName(rec.LanguageCode))
	s.writeJSON(w, http.StatusOK, map[string]any{
		"id":          rec.ID,
		"url":         rec.ContentRef,
		"pathname":    strings.TrimPrefix(rec.ContentRef, "file://"+s.daemon.blobs.Root()+"/"),
		"contentType": rec.ContentType,
		"size":        rec.Size,
	})
}

func (s *apiServer) handleMedia(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		query := r.URL.Query()
		limit := s.daemon.cfg.Upload.ListLimit
		if value := strings.TrimSpace(query.Get("limit")); value != "" {
			parsed, err := strconv.Atoi(value)
			if err != nil || parsed < 0 {
				s.writeError(w, http.StatusBadRequest, "invalid limit")
				return
			}
			limit = parsed
		}
		objects, err := s.daemon.blobs.List(r.Context(), query.Get("prefix"), limit)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]any{"objects": objects})
	case http.MethodDelete:
		var req struct {
			URL string `json:"url"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.URL) == "" {
			s.writeError(w, http.StatusBadRequest, "url is required")
			return
		}
		if err := s.daemon.blobs.Delete(r.Context(), req.URL); err != nil {
			s.writeServiceError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]any{"deleted": true})
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *apiServer) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	now := time.Now().UTC()
	summary, err := s.daemon.aggregator.Summary(r.Context(), now)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	trend, err := s.daemon.aggregator.MonthlyTrend(r.Context(), now)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	languages, err := s.daemon.aggregator.LanguagePerformance(r.Context(), now)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"summary":   summary,
		"trend":     trend,
		"languages": languages,
	})
}

type chatRequest struct {
	Language string              `json:"language"`
	Messages []assistant.Message `json:"messages"`
}

func (s *apiServer) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	stream, err := s.daemon.assistant.Chat(r.Context(), req.Language, req.Messages)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	defer stream.Close()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, stream); err != nil {
		s.logger.Warn("chat stream interrupted", logging.Error(err))
	}
}

const anonymousContributorID = 1

func (s *apiServer) writeServiceError(w http.ResponseWriter, err error) {
	status := services.HTTPStatus(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal error"
		s.logger.Error("request failed", logging.Error(err))
	}
	s.writeError(w, status, message)
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
