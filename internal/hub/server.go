package hub

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/baajur/flodgatt/internal/auth"
	"github.com/baajur/flodgatt/internal/database"
	"github.com/baajur/flodgatt/internal/timeline"
)

// TagResolver resolves hashtag names to ids; *database.DB is the
// production implementation.
type TagResolver interface {
	TagID(ctx context.Context, name string) (int64, error)
}

// Pinger reports backend health for the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server exposes the streaming API over HTTP.
type Server struct {
	hub      *Hub
	auth     *auth.Authenticator
	tags     TagResolver
	db       Pinger
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// NewServer creates the streaming API server.
func NewServer(h *Hub, a *auth.Authenticator, tags TagResolver, db Pinger, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		hub:    h,
		auth:   a,
		tags:   tags,
		db:     db,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// The streaming API is consumed cross-origin by web clients.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Routes returns the HTTP handler for the streaming API.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Get("/health", s.handleHealth)
	r.Get("/api/v1/streaming", s.handleStream)
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "healthy"
	code := http.StatusOK
	if s.db != nil {
		if err := s.db.Ping(ctx); err != nil {
			status = "unhealthy"
			code = http.StatusServiceUnavailable
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"status": status})
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	tl, tagName, err := s.timelineFromRequest(r)
	if err != nil {
		s.writeStreamError(w, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied to the client.
		s.logger.Debug("websocket upgrade failed", "error", err)
		return
	}

	session := NewSession(conn)
	if err := s.hub.Register(tl, tagName, session); err != nil {
		s.logger.Error("register session", "error", err)
		conn.Close()
		return
	}
	defer s.hub.Unregister(session)

	session.Run()
}

// timelineFromRequest maps the streaming API query parameters onto a
// timeline, authenticating when the stream requires it.
func (s *Server) timelineFromRequest(r *http.Request) (timeline.Timeline, string, error) {
	q := r.URL.Query()

	switch stream := q.Get("stream"); stream {
	case "public":
		return timeline.NewPublic(timeline.Public), "", nil
	case "public:media":
		return timeline.NewPublic(timeline.PublicMedia), "", nil
	case "public:local":
		return timeline.NewPublic(timeline.PublicLocal), "", nil
	case "public:local:media":
		return timeline.NewPublic(timeline.PublicLocalMedia), "", nil

	case "hashtag", "hashtag:local":
		name := strings.ToLower(q.Get("tag"))
		if name == "" {
			return timeline.Timeline{}, "", errBadRequest("tag parameter is required")
		}
		id, err := s.tags.TagID(r.Context(), name)
		if errors.Is(err, database.ErrNotFound) {
			return timeline.Timeline{}, "", errNotFound("unknown hashtag " + strconv.Quote(name))
		}
		if err != nil {
			return timeline.Timeline{}, "", err
		}
		kind := timeline.Hashtag
		if stream == "hashtag:local" {
			kind = timeline.HashtagLocal
		}
		return timeline.NewHashtag(kind, id, name), name, nil

	case "user", "user:notification":
		accountID, err := s.authenticate(r)
		if err != nil {
			return timeline.Timeline{}, "", err
		}
		kind := timeline.User
		if stream == "user:notification" {
			kind = timeline.UserNotification
		}
		return timeline.NewUser(kind, accountID), "", nil

	case "direct":
		accountID, err := s.authenticate(r)
		if err != nil {
			return timeline.Timeline{}, "", err
		}
		return timeline.NewDirect(accountID), "", nil

	case "list":
		if _, err := s.authenticate(r); err != nil {
			return timeline.Timeline{}, "", err
		}
		listID, err := strconv.ParseInt(q.Get("list"), 10, 64)
		if err != nil {
			return timeline.Timeline{}, "", errBadRequest("list parameter must be a list id")
		}
		return timeline.NewList(listID), "", nil

	default:
		return timeline.Timeline{}, "", errBadRequest("unknown stream " + strconv.Quote(stream))
	}
}

func (s *Server) authenticate(r *http.Request) (int64, error) {
	token := r.URL.Query().Get("access_token")
	if token == "" {
		if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
			token = strings.TrimPrefix(h, "Bearer ")
		}
	}
	return s.auth.Authenticate(r.Context(), token)
}

func (s *Server) writeStreamError(w http.ResponseWriter, err error) {
	var se *streamError
	switch {
	case errors.As(err, &se):
		http.Error(w, se.msg, se.code)
	case errors.Is(err, auth.ErrMissingToken),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrMissingScope):
		http.Error(w, err.Error(), http.StatusUnauthorized)
	default:
		s.logger.Error("resolve stream", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

type streamError struct {
	code int
	msg  string
}

func (e *streamError) Error() string { return e.msg }

func errBadRequest(msg string) error { return &streamError{code: http.StatusBadRequest, msg: msg} }

func errNotFound(msg string) error { return &streamError{code: http.StatusNotFound, msg: msg} }
