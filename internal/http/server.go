// Package http exposes the gift ledger as a JSON API: friends, events,
// records and the assistant tool endpoint.
package http

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"bujo/internal/assistant"
	"bujo/internal/cache"
	"bujo/internal/core"
	"bujo/internal/middleware/ratelimit"
	"bujo/internal/middleware/security"
	"bujo/internal/middleware/trace"
	"bujo/internal/services"
	"bujo/internal/storage"
	"bujo/internal/submit"
)

const friendListCacheKey = "friends"

type Server struct {
	http.Server

	repo    *storage.SQLiteRepository
	records *services.RecordService
	tools   *assistant.Registry

	limiter *ratelimit.Limiter
	headers *security.HeadersMiddleware
	tracer  *trace.Middleware

	// Event detail and friend list responses are cached; submissions
	// invalidate them through the Revalidator port.
	eventCache   *cache.LRUCache[eventDetail]
	friendsCache *cache.LRUCache[[]core.Friend]
	cacheManager *cache.Manager

	shutdownOnce sync.Once
}

// Server is the cache invalidation hook behind the submission pipeline.
var _ submit.Revalidator = (*Server)(nil)

// NewServer wires routes and middleware, returning a ready-to-run server.
func NewServer(addr string, repo *storage.SQLiteRepository, records *services.RecordService) *Server {
	mux := http.NewServeMux()

	s := &Server{
		repo:    repo,
		records: records,

		limiter: ratelimit.NewLimiter(ratelimit.DefaultConfig()),
		headers: security.NewHeadersMiddleware(security.DefaultHeadersConfig()),
		tracer:  trace.NewMiddleware(clientIP),

		eventCache:   cache.NewLRUCache[eventDetail](100, 5*time.Minute),
		friendsCache: cache.NewLRUCache[[]core.Friend](1, 5*time.Minute),
		cacheManager: cache.NewManager(),
	}

	s.cacheManager.Register(s.eventCache)
	s.cacheManager.Register(s.friendsCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	// The assistant tools share the server's caches through the
	// Revalidator port, so tool writes invalidate what the API serves.
	s.tools = assistant.NewRegistry(repo, records, s)

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)

	mux.HandleFunc("GET /friends", s.handleListFriends)
	mux.HandleFunc("POST /friends", s.handleCreateFriend)
	mux.HandleFunc("GET /friends/{id}", s.handleGetFriend)
	mux.HandleFunc("DELETE /friends/{id}", s.handleDeleteFriend)
	mux.HandleFunc("GET /friends/{id}/records", s.handleFriendRecords)

	mux.HandleFunc("GET /events", s.handleListEvents)
	mux.HandleFunc("POST /events", s.handleCreateEvent)
	mux.HandleFunc("GET /events/{id}", s.handleEventDetail)

	mux.HandleFunc("GET /form/defaults", s.handleFormDefaults)

	mux.HandleFunc("GET /records", s.handleListRecords)
	mux.HandleFunc("POST /records", s.handleSubmitRecord)
	mux.HandleFunc("DELETE /records/{id}", s.handleDeleteRecord)

	mux.HandleFunc("POST /assistant/tools/{name}", s.handleAssistantTool)

	s.Server.Addr = addr
	s.Server.Handler = s.tracer.Middleware(s.headers.Middleware(s.withWriteRateLimit(mux)))

	return s
}

// withWriteRateLimit applies the limiter to mutating methods only;
// reads stay unthrottled.
func (s *Server) withWriteRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodDelete {
			if !s.limiter.Allow(clientIP(r)) {
				w.Header().Set("Retry-After", "60")
				writeError(w, http.StatusTooManyRequests, "rate_limited", "too many requests")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP extracts the client address, preferring proxy headers.
func clientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return ip
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	return r.RemoteAddr
}

// InvalidateEvent implements submit.Revalidator.
func (s *Server) InvalidateEvent(eventID string) {
	s.eventCache.Delete(eventID)
}

// InvalidateFriendList implements submit.Revalidator.
func (s *Server) InvalidateFriendList() {
	s.friendsCache.Delete(friendListCacheKey)
}

// Shutdown stops background cleanup and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// handleFormDefaults returns the preset chips and suggestions the
// record form renders before any input.
func (s *Server) handleFormDefaults(w http.ResponseWriter, r *http.Request) {
	direction := core.Direction(sanitizeInput(r.URL.Query().Get("direction")))
	presets := core.ReceivedAmountPresets
	if direction == core.Sent {
		presets = core.SentAmountPresets
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"amount_presets":       presets,
		"gold_don_presets":     core.GoldDonPresets,
		"relation_suggestions": core.RelationSuggestions,
	})
}

func formatWon(won int64) string {
	return strconv.FormatInt(won, 10) + "원"
}
