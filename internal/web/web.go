package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"daybook/internal/config"
	appLog "daybook/internal/log"
	"daybook/internal/metrics"
	"daybook/internal/schedule"
)

const (
	bookCacheTTL    = 30 * time.Second
	shutdownTimeout = 10 * time.Second
	maxDays         = 62
)

// Books is what the server needs from the rendering pipeline.
type Books interface {
	Config() *config.Config
	Book(ctx context.Context, days, backfill int) (*schedule.Book, error)
	HTML(book *schedule.Book) ([]byte, error)
	PDF(ctx context.Context, book *schedule.Book) ([]byte, error)
	Preview(ctx context.Context, book *schedule.Book) ([]byte, error)
}

// Server exposes the laid-out book over HTTP: JSON layout, HTML, PDF and a
// PNG preview, plus health and Prometheus metrics.
type Server struct {
	books   Books
	metrics *metrics.Recorder
	mux     *http.ServeMux

	// In-memory cache of assembled books keyed by window, to avoid
	// refetching calendars on every request.
	bookMu    sync.Mutex
	bookCache map[window]cachedBook
}

type window struct {
	days, backfill int
}

type cachedBook struct {
	book      *schedule.Book
	updatedAt time.Time
}

// NewServer constructs a new Server.
func NewServer(books Books, rec *metrics.Recorder) *Server {
	s := &Server{
		books:     books,
		metrics:   rec,
		mux:       http.NewServeMux(),
		bookCache: make(map[window]cachedBook),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server, wrapped in
// basic auth when configured. Credentials are read per request so a config
// reload takes effect immediately.
func (s *Server) Handler() http.Handler {
	return s.basicAuthMiddleware(s.mux)
}

// Invalidate drops cached books, e.g. after a config reload.
func (s *Server) Invalidate() {
	s.bookMu.Lock()
	clear(s.bookCache)
	s.bookMu.Unlock()
}

// basicAuth returns the configured credentials, or ok=false when auth is
// disabled. Empty username or password disables it.
func (s *Server) basicAuth() (user, pass string, ok bool) {
	cfg := s.books.Config()
	if cfg == nil || cfg.BasicAuth == nil {
		return "", "", false
	}
	if cfg.BasicAuth.Username == "" || cfg.BasicAuth.Password == "" {
		return "", "", false
	}
	return cfg.BasicAuth.Username, cfg.BasicAuth.Password, true
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username, password, enabled := s.basicAuth()
		if !enabled || r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="Daybook", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// StartServer serves on addr until ctx is cancelled, then shuts down
// gracefully.
func StartServer(ctx context.Context, addr string, s *Server) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		appLog.Info("shutting down HTTP server")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/days", s.handleDays)
	s.mux.HandleFunc("GET /book.html", s.handleHTML)
	s.mux.HandleFunc("GET /book.pdf", s.handlePDF)
	s.mux.HandleFunc("GET /preview.png", s.handlePreview)
	s.mux.Handle("GET /metrics", s.metrics.Handler())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// book returns the book for the request's window, from cache when fresh.
//
// GET ...?days=7&backfill=1
//   - days:     how many days from today (default: config)
//   - backfill: how many past days to include (default: config)
func (s *Server) book(r *http.Request) (*schedule.Book, error) {
	cfg := s.books.Config()
	q := r.URL.Query()
	win := window{
		days:     parseIntDefault(q.Get("days"), cfg.Days),
		backfill: parseIntDefault(q.Get("backfill"), cfg.Backfill),
	}
	if win.days <= 0 || win.days > maxDays {
		return nil, fmt.Errorf("%w: days must be between 1 and %d", errBadRequest, maxDays)
	}
	if win.backfill < 0 || win.backfill > maxDays {
		return nil, fmt.Errorf("%w: backfill must be between 0 and %d", errBadRequest, maxDays)
	}

	s.bookMu.Lock()
	cached, ok := s.bookCache[win]
	s.bookMu.Unlock()
	if ok && time.Since(cached.updatedAt) < bookCacheTTL {
		return cached.book, nil
	}

	book, err := s.books.Book(r.Context(), win.days, win.backfill)
	if err != nil {
		return nil, err
	}

	s.bookMu.Lock()
	s.bookCache[win] = cachedBook{book: book, updatedAt: time.Now()}
	s.bookMu.Unlock()
	return book, nil
}

var errBadRequest = errors.New("bad request")

// bookOrError writes the error response itself and returns nil on failure.
func (s *Server) bookOrError(w http.ResponseWriter, r *http.Request) *schedule.Book {
	book, err := s.book(r)
	if err == nil {
		return book
	}
	if errors.Is(err, errBadRequest) {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil
	}
	appLog.Error("book assembly failed", err, "path", r.URL.Path)
	writeError(w, http.StatusBadGateway, "failed to assemble book")
	return nil
}

// handleDays returns the computed layout as JSON.
func (s *Server) handleDays(w http.ResponseWriter, r *http.Request) {
	book := s.bookOrError(w, r)
	if book == nil {
		return
	}
	writeJSON(w, http.StatusOK, book)
}

func (s *Server) handleHTML(w http.ResponseWriter, r *http.Request) {
	book := s.bookOrError(w, r)
	if book == nil {
		return
	}
	html, err := s.books.HTML(book)
	if err != nil {
		appLog.Error("render html failed", err)
		writeError(w, http.StatusInternalServerError, "failed to render")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(html)
}

func (s *Server) handlePDF(w http.ResponseWriter, r *http.Request) {
	book := s.bookOrError(w, r)
	if book == nil {
		return
	}
	pdf, err := s.books.PDF(r.Context(), book)
	if err != nil {
		appLog.Error("print pdf failed", err)
		writeError(w, http.StatusInternalServerError, "failed to print")
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `inline; filename="daybook.pdf"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(pdf)))
	_, _ = w.Write(pdf)
}

// handlePreview serves a PNG of the first page.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	book := s.bookOrError(w, r)
	if book == nil {
		return
	}
	png, err := s.books.Preview(r.Context(), book)
	if err != nil {
		appLog.Error("preview capture failed", err)
		writeError(w, http.StatusInternalServerError, "failed to capture preview")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
