// Package devserver is a local SmartStock backend that serves the dashboard
// API from YAML fixtures. It answers every endpoint with the same
// {"ok": ...} envelope as the hosted service.
package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/kingrea/smartstock/internal/api"
)

// ServerStatus reports runtime lifecycle states for the HTTP server.
type ServerStatus string

const (
	StatusStarting ServerStatus = "starting"
	StatusReady    ServerStatus = "ready"
	StatusDraining ServerStatus = "draining"
)

const maxForecastHorizon = 90

// Logger is satisfied by *logging.Logger.
type Logger interface {
	Printf(format string, args ...any)
}

// Server wraps the HTTP listener and handlers of the development backend.
type Server struct {
	settings Settings
	shop     *Shop
	logger   Logger
	clock    func() time.Time

	mu        sync.RWMutex
	server    *http.Server
	listener  net.Listener
	status    ServerStatus
	startTime time.Time
}

// Option customizes server construction.
type Option func(*Server)

// WithLogger overrides the default no-op logger.
func WithLogger(l Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock allows tests to control timestamps.
func WithClock(clock func() time.Time) Option {
	return func(s *Server) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewServer prepares a server over shop.
func NewServer(settings Settings, shop *Shop, opts ...Option) *Server {
	settings.normalize()
	s := &Server{
		settings: settings,
		shop:     shop,
		logger:   nopLogger{},
		clock:    func() time.Time { return time.Now().UTC() },
		status:   StatusStarting,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Handler returns the routed API handler without binding a listener.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc(api.PathLogin, s.handleLogin)
	mux.HandleFunc(api.PathStock, s.handleStock)
	mux.HandleFunc(api.PathAlerts, s.handleAlerts)
	mux.HandleFunc(api.PathProducts, s.handleProducts)
	mux.HandleFunc(api.PathForecast, s.handleForecast)
	mux.HandleFunc(api.PathInsights, s.handleInsights)
	mux.HandleFunc(api.PathUploadInventory, s.handleUploadInventory)
	mux.HandleFunc(api.PathUploadSales, s.handleUploadSales)
	return s.trace(mux)
}

// Start binds the TCP listener and begins serving HTTP traffic.
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("devserver: server is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return fmt.Errorf("devserver: server already started")
	}
	addr := s.settings.Address()
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("devserver: listen %s: %w", addr, err)
	}
	s.listener = listener
	s.startTime = s.clock()
	server := &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.settings.ReadTimeout,
		WriteTimeout: s.settings.WriteTimeout,
		IdleTimeout:  s.settings.IdleTimeout,
	}
	if ctx != nil {
		server.BaseContext = func(net.Listener) context.Context { return ctx }
	}
	s.server = server
	s.status = StatusReady
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Printf("devserver: serve error: %v", err)
		}
	}()
	s.logger.Printf("devserver: listening on %s", listener.Addr().String())
	return nil
}

// Shutdown stops accepting new connections and waits for in-flight requests to exit.
func (s *Server) Shutdown(ctx context.Context) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil || s.server == nil {
		return nil
	}
	s.status = StatusDraining
	deadline := ctx
	if deadline == nil {
		var cancel context.CancelFunc
		deadline, cancel = context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
	}
	if err := s.server.Shutdown(deadline); err != nil {
		return err
	}
	s.listener = nil
	s.server = nil
	return nil
}

// Addr returns the bound TCP address once the server has started.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// BaseURL returns the HTTP base URL (scheme + host:port) for the running server.
func (s *Server) BaseURL() string {
	addr := s.Addr()
	if addr == "" {
		return s.settings.URL()
	}
	return "http://" + addr
}

// Status reports the server's lifecycle state.
func (s *Server) Status() ServerStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *Server) today() time.Time {
	return s.shop.Today(s.clock())
}

func (s *Server) uptimeSeconds() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.startTime.IsZero() {
		return 0
	}
	return int64(s.clock().Sub(s.startTime).Seconds())
}

func (s *Server) trace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Printf("devserver: %s %s id=%s in %s", r.Method, r.URL.Path, r.Header.Get("X-Request-ID"), time.Since(started).Round(time.Millisecond))
	})
}

type healthResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: string(s.Status()), UptimeSeconds: s.uptimeSeconds()})
}

type loginRequest struct {
	UserID string `json:"user_id"`
	PIN    string `json:"pin"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	var req loginRequest
	body := http.MaxBytesReader(w, r.Body, 4096)
	defer body.Close()
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if !s.shop.Authenticate(req.UserID, req.PIN) {
		writeError(w, http.StatusUnauthorized, "Invalid user ID or PIN")
		return
	}
	now := s.clock()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   req.UserID,
		Issuer:    "smartstock-devserver",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.settings.TokenTTL)),
	}).SignedString([]byte(s.settings.Secret))
	if err != nil {
		s.logger.Printf("devserver: sign token: %v", err)
		writeError(w, http.StatusInternalServerError, "could not issue token")
		return
	}
	writeOK(w, map[string]any{"token": token})
}

func (s *Server) handleStock(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	writeOK(w, map[string]any{"data": s.shop.Stock()})
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	alerts := s.shop.Alerts(s.today())
	if alerts == nil {
		alerts = []api.Alert{}
	}
	writeOK(w, map[string]any{"alerts": alerts})
}

func (s *Server) handleProducts(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	writeOK(w, map[string]any{"products": s.shop.Products()})
}

func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	query := r.URL.Query()
	product := strings.TrimSpace(query.Get("product"))
	if product == "" {
		writeError(w, http.StatusBadRequest, "product is required")
		return
	}
	horizon := api.ForecastHorizonDays
	if raw := query.Get("horizon"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > maxForecastHorizon {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("horizon must be between 1 and %d", maxForecastHorizon))
			return
		}
		horizon = parsed
	}
	fc, err := s.shop.Forecast(product, horizon, s.today())
	if err != nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("%s: %s", err, product))
		return
	}
	writeOK(w, map[string]any{
		"product":      fc.Product,
		"horizon_days": fc.HorizonDays,
		"forecast":     fc.Forecast,
	})
}

func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	in := s.shop.Insights(s.today())
	writeOK(w, map[string]any{"daily": in.Daily, "weekly": in.Weekly, "monthly": in.Monthly})
}

func (s *Server) handleUploadInventory(w http.ResponseWriter, r *http.Request) {
	s.handleUpload(w, r, func(f io.Reader) (int, error) {
		records, err := parseInventoryCSV(f)
		if err != nil {
			return 0, err
		}
		s.shop.ReplaceStock(records)
		return len(records), nil
	})
}

func (s *Server) handleUploadSales(w http.ResponseWriter, r *http.Request) {
	s.handleUpload(w, r, func(f io.Reader) (int, error) {
		sales, err := parseSalesCSV(f, s.today())
		if err != nil {
			return 0, err
		}
		s.shop.RecordSales(sales)
		return len(sales), nil
	})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request, apply func(io.Reader) (int, error)) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.settings.MaxBodyBytes)
	if err := r.ParseMultipartForm(s.settings.MaxBodyBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "file exceeds limit")
			return
		}
		writeError(w, http.StatusBadRequest, "expected multipart form with a file field")
		return
	}
	defer r.MultipartForm.RemoveAll()
	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()
	rows, err := apply(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Printf("devserver: %s imported %d rows", r.URL.Path, rows)
	writeOK(w, map[string]any{"rows": rows})
}

func allow(w http.ResponseWriter, r *http.Request, methods ...string) bool {
	for _, m := range methods {
		if r.Method == m {
			return true
		}
	}
	w.Header().Set("Allow", strings.Join(methods, ", "))
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	return false
}

func writeOK(w http.ResponseWriter, fields map[string]any) {
	payload := map[string]any{"ok": true}
	for k, v := range fields {
		payload[k] = v
	}
	writeJSON(w, http.StatusOK, payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"ok": false, "error": message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}
