package httpapi

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	wsadapter "wellkit/adapters/websocket"
	"wellkit/core"
	"wellkit/engine"
	"wellkit/leaderboard"
	"wellkit/realtime"
)

// Options configures the HTTP API surface.
type Options struct {
	// PathPrefix, if set, is prepended to all routes (e.g., "/api").
	PathPrefix string
	// AllowCORSOrigin, if non-empty, enables basic CORS with the given origin (use "*" for any).
	AllowCORSOrigin string
	// APIKeys, if non-empty, enables static API key auth via Authorization: Bearer or X-API-Key.
	APIKeys []string
	// RateLimitEnabled toggles rate limiting.
	RateLimitEnabled bool
	// RateLimitRPM is the allowed requests per minute per client key.
	RateLimitRPM int
	// RateLimitBurst defines burst capacity.
	RateLimitBurst int
}

// NewMux builds an http.Handler exposing the reward REST API and WebSocket stream.
// Routes:
//   - POST {prefix}/users/{id}/activities
//   - POST {prefix}/users/{id}/coins/spend
//   - GET  {prefix}/users/{id}/summary
//   - GET  {prefix}/users/{id}/coins/balance
//   - GET  {prefix}/users/{id}/coins/history?page=&limit=&category=
//   - GET  {prefix}/users/{id}/coins/earnings
//   - GET  {prefix}/users/{id}/badges
//   - GET  {prefix}/users/{id}/quests
//   - GET  {prefix}/users/{id}/stats
//   - GET  {prefix}/leaderboard?limit=
//   - POST {prefix}/admin/reset?period=daily|weekly
//   - GET  {prefix}/healthz
//   - WS   {prefix}/ws?user=
func NewMux(svc *engine.RewardService, hub *realtime.Hub, board *leaderboard.Tracker, opts Options) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc(withPrefix(opts.PathPrefix, "/healthz"), func(w http.ResponseWriter, r *http.Request) {
		healthCheck(w, r, svc)
	})

	// WebSocket events
	if hub != nil {
		mux.Handle(withPrefix(opts.PathPrefix, "/ws"), wsadapter.Handler(hub))
	}

	if board != nil {
		mux.HandleFunc(withPrefix(opts.PathPrefix, "/leaderboard"), func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "use GET", nil)
				return
			}
			limit := 10
			if raw := r.URL.Query().Get("limit"); raw != "" {
				n, err := strconv.Atoi(raw)
				if err != nil || n < 1 {
					writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer", nil)
					return
				}
				limit = n
			}
			writeJSON(w, map[string]any{"entries": board.Top(limit)})
		})
	}

	mux.HandleFunc(withPrefix(opts.PathPrefix, "/admin/reset"), func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "use POST", nil)
			return
		}
		var err error
		switch period := r.URL.Query().Get("period"); period {
		case "daily":
			err = svc.ResetDailyStats(r.Context())
		case "weekly":
			err = svc.ResetWeeklyStats(r.Context())
		default:
			writeError(w, http.StatusBadRequest, "invalid_period", "period must be daily or weekly", nil)
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal", err.Error(), nil)
			return
		}
		writeJSON(w, map[string]any{"ok": true})
	})

	// Users API
	mux.HandleFunc(withPrefix(opts.PathPrefix, "/users/"), func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, opts.PathPrefix)
		parts := split(path, '/')
		if len(parts) < 3 || parts[0] != "users" {
			writeError(w, http.StatusNotFound, "not_found", "route not found", nil)
			return
		}
		user, err := core.NormalizeUserID(core.UserID(parts[1]))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_user", err.Error(), nil)
			return
		}
		rest := parts[2:]

		switch r.Method {
		case http.MethodPost:
			switch {
			case len(rest) == 1 && rest[0] == "activities":
				handleActivity(w, r, svc, user)
				return
			case len(rest) == 2 && rest[0] == "coins" && rest[1] == "spend":
				handleSpend(w, r, svc, user)
				return
			}
		case http.MethodGet:
			handleUserRead(w, r, svc, user, rest)
			return
		}
		writeError(w, http.StatusNotFound, "not_found", "route not found", nil)
	})

	var handler http.Handler = mux
	if opts.AllowCORSOrigin != "" {
		handler = withCORS(handler, opts.AllowCORSOrigin)
	}
	if len(opts.APIKeys) > 0 {
		handler = withAPIKeyAuth(handler, opts.APIKeys)
	}
	if opts.RateLimitEnabled && opts.RateLimitRPM > 0 && opts.RateLimitBurst > 0 {
		handler = withRateLimit(handler, opts.RateLimitRPM, opts.RateLimitBurst)
	}
	return handler
}

func handleActivity(w http.ResponseWriter, r *http.Request, svc *engine.RewardService, user core.UserID) {
	var act engine.Activity
	if err := json.NewDecoder(r.Body).Decode(&act); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "body must be a JSON activity", nil)
		return
	}
	if act.Type == "" {
		writeError(w, http.StatusBadRequest, "invalid_activity", "activity type is required", nil)
		return
	}
	res := svc.ProcessActivity(r.Context(), user, act)
	writeJSON(w, res)
}

func handleSpend(w http.ResponseWriter, r *http.Request, svc *engine.RewardService, user core.UserID) {
	var req engine.SpendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "body must be a JSON spend request", nil)
		return
	}
	balance, err := svc.Spend(r.Context(), user, req)
	switch {
	case errors.Is(err, core.ErrInvalidAmount):
		writeError(w, http.StatusBadRequest, "invalid_amount", "amount must be positive", nil)
	case errors.Is(err, core.ErrInsufficientBalance):
		writeError(w, http.StatusConflict, "insufficient_balance", "not enough coins", nil)
	case err != nil:
		writeError(w, http.StatusInternalServerError, "internal", err.Error(), nil)
	default:
		writeJSON(w, map[string]any{"balance": balance})
	}
}

func handleUserRead(w http.ResponseWriter, r *http.Request, svc *engine.RewardService, user core.UserID, rest []string) {
	ctx := r.Context()
	var (
		payload any
		err     error
	)
	switch {
	case len(rest) == 1 && rest[0] == "summary":
		payload, err = svc.Summary(ctx, user)
	case len(rest) == 1 && rest[0] == "badges":
		var badges []engine.BadgeStatus
		badges, err = svc.UserBadges(ctx, user)
		payload = map[string]any{"badges": badges}
	case len(rest) == 1 && rest[0] == "quests":
		var quests []engine.QuestStatus
		quests, err = svc.UserQuests(ctx, user)
		payload = map[string]any{"quests": quests}
	case len(rest) == 1 && rest[0] == "stats":
		payload, err = svc.Stats(ctx, user)
	case len(rest) == 2 && rest[0] == "coins" && rest[1] == "balance":
		var balance int64
		balance, err = svc.Balance(ctx, user)
		payload = map[string]any{"balance": balance}
	case len(rest) == 2 && rest[0] == "coins" && rest[1] == "earnings":
		var earnings []core.CategoryEarnings
		earnings, err = svc.EarningsByCategory(ctx, user)
		payload = map[string]any{"earnings": earnings}
	case len(rest) == 2 && rest[0] == "coins" && rest[1] == "history":
		q := core.HistoryQuery{Category: r.URL.Query().Get("category")}
		q.Page, _ = strconv.Atoi(r.URL.Query().Get("page"))
		q.Limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
		payload, err = svc.History(ctx, user, q)
	default:
		writeError(w, http.StatusNotFound, "not_found", "route not found", nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", err.Error(), nil)
		return
	}
	writeJSON(w, payload)
}

// Helpers

// healthCheck verifies the storage roundtrip with a probe user read.
func healthCheck(w http.ResponseWriter, r *http.Request, svc *engine.RewardService) {
	_, err := svc.Balance(r.Context(), core.UserID("healthcheck_probe"))

	status := map[string]any{
		"status": "healthy",
		"checks": map[string]any{
			"storage": "ok",
		},
	}

	if err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		status["status"] = "unhealthy"
		status["checks"].(map[string]any)["storage"] = "failed"
	} else {
		w.WriteHeader(http.StatusOK)
	}

	writeJSON(w, status)
}

func withPrefix(prefix, path string) string {
	if prefix == "" || prefix == "/" {
		return path
	}
	if prefix[len(prefix)-1] == '/' {
		return prefix[:len(prefix)-1] + path
	}
	return prefix + path
}

func split(p string, sep rune) []string {
	var parts []string
	cur := make([]rune, 0, len(p))
	for len(p) > 0 && p[0] == '/' {
		p = p[1:]
	}
	for _, r := range p {
		if r == sep {
			if len(cur) > 0 {
				parts = append(parts, string(cur))
				cur = cur[:0]
			}
			continue
		}
		cur = append(cur, r)
	}
	if len(cur) > 0 {
		parts = append(parts, string(cur))
	}
	return parts
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, msg string, details any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(apiError{Code: code, Message: msg, Details: details})
}

// withCORS wraps a handler with a minimal CORS policy.
func withCORS(next http.Handler, origin string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Vary", "Origin")
		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withAPIKeyAuth enforces a shared API key list.
func withAPIKeyAuth(next http.Handler, apiKeys []string) http.Handler {
	allowed := make(map[string]struct{}, len(apiKeys))
	for _, k := range apiKeys {
		k = strings.TrimSpace(k)
		if k != "" {
			allowed[k] = struct{}{}
		}
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := extractAPIKey(r)
		if key == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized", "missing API key", nil)
			return
		}
		if _, ok := allowed[key]; !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized", "invalid API key", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withRateLimit applies a simple token-bucket limiter per client key.
func withRateLimit(next http.Handler, rpm int, burst int) http.Handler {
	limiter := newRateLimiter(rpm, burst)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := clientKey(r)
		if !limiter.allow(key) {
			writeError(w, http.StatusTooManyRequests, "rate_limited", "too many requests", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func extractAPIKey(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}
	return ""
}

// clientKey uses API key if present, otherwise remote IP.
func clientKey(r *http.Request) string {
	if key := extractAPIKey(r); key != "" {
		return key
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type rateLimiter struct {
	rpm   float64
	burst float64
	mu    sync.Mutex
	b     map[string]*bucket
}

type bucket struct {
	tokens float64
	last   time.Time
}

func newRateLimiter(rpm, burst int) *rateLimiter {
	return &rateLimiter{
		rpm:   float64(rpm),
		burst: float64(burst),
		b:     make(map[string]*bucket),
	}
}

func (l *rateLimiter) allow(key string) bool {
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.b[key]
	if !ok {
		l.b[key] = &bucket{tokens: l.burst - 1, last: now}
		return true
	}

	elapsed := now.Sub(b.last).Minutes()
	b.tokens += elapsed * l.rpm
	if b.tokens > l.burst {
		b.tokens = l.burst
	}
	if b.tokens < 1 {
		b.last = now
		return false
	}
	b.tokens--
	b.last = now
	return true
}
