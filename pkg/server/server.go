// Package server is the call gateway: a WebSocket endpoint that runs
// one call session per connection, plus small REST surfaces for the
// persona catalog, call history, clips, and voice cloning.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/echoes-ai/echocall/pkg/capture"
	"github.com/echoes-ai/echocall/pkg/history"
	"github.com/echoes-ai/echocall/pkg/identity"
	"github.com/echoes-ai/echocall/pkg/llm"
	"github.com/echoes-ai/echocall/pkg/playback"
	"github.com/echoes-ai/echocall/pkg/respond"
	"github.com/echoes-ai/echocall/pkg/session"
	"github.com/echoes-ai/echocall/pkg/tts"
)

// Config holds the gateway configuration.
type Config struct {
	// Addr is the address to listen on (e.g., ":8080").
	Addr string

	// CallPath is the WebSocket endpoint path.
	CallPath string

	// AuthToken is the bearer token for authentication.
	// If empty, authentication is disabled.
	AuthToken string

	// ConnectDelay is the session Connecting phase duration.
	ConnectDelay time.Duration

	// ReadBufferSize is the WebSocket read buffer size.
	ReadBufferSize int

	// WriteBufferSize is the WebSocket write buffer size.
	WriteBufferSize int
}

// DefaultConfig returns the default gateway configuration.
func DefaultConfig() Config {
	return Config{
		Addr:            ":8080",
		CallPath:        "/v1/call",
		ConnectDelay:    2 * time.Second,
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
	}
}

// Server is the call gateway.
type Server struct {
	config   Config
	identity identity.Provider
	store    *history.Store
	llm      llm.Provider
	tts      tts.Provider
	cloner   *tts.Cloner
	library  *playback.Library

	sessions   map[string]*session.Controller
	sessionsMu sync.RWMutex

	httpServer *http.Server
	upgrader   websocket.Upgrader
}

// NewServer creates a gateway. cloner may be nil when voice cloning is
// not configured.
func NewServer(config Config, idp identity.Provider, store *history.Store, llmProvider llm.Provider, ttsProvider tts.Provider, cloner *tts.Cloner) *Server {
	if config.CallPath == "" {
		config.CallPath = "/v1/call"
	}
	return &Server{
		config:   config,
		identity: idp,
		store:    store,
		llm:      llmProvider,
		tts:      ttsProvider,
		cloner:   cloner,
		library:  playback.NewLibrary(),
		sessions: make(map[string]*session.Controller),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins; customize for production
			},
		},
	}
}

// Handler returns the gateway's HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(s.config.CallPath, s.handleCall)
	mux.Handle("/v1/clips/", s.library)
	mux.HandleFunc("/v1/history", s.handleHistory)
	mux.HandleFunc("/v1/echoes", s.handleEchoes)
	mux.HandleFunc("/v1/voices/clone", s.handleClone)
	return mux
}

// Start starts the gateway.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:    s.config.Addr,
		Handler: s.Handler(),
	}

	log.Printf("call gateway starting on %s%s", s.config.Addr, s.config.CallPath)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-time.After(100 * time.Millisecond):
		return nil
	}
}

// Stop shuts the gateway down, ending active sessions.
func (s *Server) Stop(ctx context.Context) error {
	s.sessionsMu.Lock()
	for _, sess := range s.sessions {
		sess.EndCall()
	}
	s.sessions = make(map[string]*session.Controller)
	s.sessionsMu.Unlock()

	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// SessionCount returns the number of active call sessions.
func (s *Server) SessionCount() int {
	s.sessionsMu.RLock()
	defer s.sessionsMu.RUnlock()
	return len(s.sessions)
}

func (s *Server) authenticate(w http.ResponseWriter, r *http.Request) bool {
	if s.config.AuthToken == "" {
		return true
	}
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") || strings.TrimPrefix(authHeader, "Bearer ") != s.config.AuthToken {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return false
	}
	return true
}

// handleCall upgrades the connection and runs one call session over
// it.
func (s *Server) handleCall(w http.ResponseWriter, r *http.Request) {
	if !s.authenticate(w, r) {
		return
	}

	user, err := s.identity.CurrentUser(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	echoID := r.URL.Query().Get("echo")
	if echoID == "" {
		http.Error(w, "Missing echo id", http.StatusBadRequest)
		return
	}

	// Resolve before upgrading: an unknown or foreign echo never
	// produces a session.
	if _, err := s.store.EchoByID(user.ID, echoID); err != nil {
		if errors.Is(err, history.ErrEchoNotFound) {
			http.Error(w, "Echo not found", http.StatusNotFound)
		} else {
			http.Error(w, "Internal error", http.StatusInternalServerError)
		}
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	s.runCall(r.Context(), conn, user, echoID)
}

func (s *Server) runCall(ctx context.Context, conn *websocket.Conn, user identity.User, echoID string) {
	client := newClient(conn)
	defer client.close()

	recognizer := capture.NewPushRecognizer()
	cap := capture.NewController(shortID(), recognizer)
	gen := respond.NewGenerator(s.llm, s.tts, s.library)
	player := playback.NewController(shortID(), playback.DefaultConfig(), playback.NewBufferSink(), s.library)

	sess := session.New(user.ID, echoID, s.store, cap, gen, player, session.Config{
		ConnectDelay: s.config.ConnectDelay,
		CallerName:   user.Name,
	})

	sess.OnStateChange(func(st session.State) {
		client.send(NewStateEvent(st, sess.Snapshot().ElapsedSeconds))
	})
	sess.OnTranscript(func(entry session.TranscriptEntry) {
		client.send(NewTranscriptEvent(entry))
	})
	sess.OnAudio(func(url string) {
		client.send(NewAudioEvent(clipHTTPPath(url)))
	})
	sess.OnError(func(err error) {
		client.send(NewErrorEvent(errorCode(err), err.Error()))
	})

	if err := sess.Start(ctx); err != nil {
		client.send(NewErrorEvent(errorCode(err), err.Error()))
		return
	}

	s.registerSession(sess)
	defer s.unregisterSession(sess)

	s.readLoop(client, sess, recognizer)

	sess.EndCall()
	sess.Wait()
	client.send(NewEndedEvent(s.recordFor(user.ID, sess.ID())))
}

func (s *Server) readLoop(client *client, sess *session.Controller, recognizer *capture.PushRecognizer) {
	for {
		_, data, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[gateway %s] read error: %v", sess.ID(), err)
			}
			return
		}

		ev, err := ParseClientEvent(data)
		if err != nil {
			client.send(NewErrorEvent("invalid_event", err.Error()))
			continue
		}

		switch ev.Type {
		case ClientEventTurnUtterance:
			if !deliverUtterance(sess, recognizer, ev.Text) {
				log.Printf("[gateway %s] dropped utterance, session not listening", sess.ID())
			}
		case ClientEventToggleMic:
			client.send(NewToggleEvent("mic", sess.ToggleMic()))
		case ClientEventToggleSpeaker:
			client.send(NewToggleEvent("speaker", sess.ToggleSpeaker()))
		case ClientEventToggleVideo:
			client.send(NewToggleEvent("video", sess.ToggleVideo()))
		case ClientEventCallEnd:
			return
		}
	}
}

// deliverUtterance hands the utterance to the session's recognizer.
// The session only accepts speech while listening, and there is a
// short gap after the listening announcement before its next capture
// registers, so delivery retries briefly instead of failing on the
// first miss. Outside the listening state the utterance is dropped.
func deliverUtterance(sess *session.Controller, recognizer *capture.PushRecognizer, text string) bool {
	deadline := time.Now().Add(500 * time.Millisecond)
	for {
		if recognizer.Push(text) {
			return true
		}
		if sess.Snapshot().State != session.StateListening || time.Now().After(deadline) {
			return false
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func (s *Server) recordFor(userID, callID string) *history.CallRecord {
	records, err := s.store.Calls(userID)
	if err != nil {
		return nil
	}
	for i := range records {
		if records[i].ID == callID {
			return &records[i]
		}
	}
	return nil
}

func (s *Server) registerSession(sess *session.Controller) {
	s.sessionsMu.Lock()
	s.sessions[sess.ID()] = sess
	s.sessionsMu.Unlock()
	log.Printf("[gateway] session %s registered (%d active)", sess.ID(), s.SessionCount())
}

func (s *Server) unregisterSession(sess *session.Controller) {
	s.sessionsMu.Lock()
	delete(s.sessions, sess.ID())
	s.sessionsMu.Unlock()
}

// errorCode maps session failures to wire codes.
func errorCode(err error) string {
	var genErr *respond.GenerationError
	var playErr *playback.Error

	switch {
	case errors.Is(err, history.ErrEchoNotFound):
		return "echo_not_found"
	case errors.As(err, &genErr):
		return "generation_failed"
	case errors.As(err, &playErr):
		return "playback_failed"
	case errors.Is(err, capture.ErrCaptureUnavailable):
		return "capture_unavailable"
	case strings.Contains(err.Error(), "persist call record"):
		return "persistence_failed"
	default:
		return "internal_error"
	}
}

// clipHTTPPath rewrites a clip:// URL to the gateway's clip endpoint.
func clipHTTPPath(url string) string {
	if strings.HasPrefix(url, playback.ClipScheme) {
		return "/v1/clips/" + strings.TrimPrefix(url, playback.ClipScheme)
	}
	return url
}

func shortID() string {
	return uuid.New().String()[:8]
}

// client serializes writes to one WebSocket connection.
type client struct {
	conn *websocket.Conn

	mu     sync.Mutex
	closed bool
}

func newClient(conn *websocket.Conn) *client {
	return &client{conn: conn}
}

func (c *client) send(ev *ServerEvent) {
	if ev == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	data, err := json.Marshal(ev)
	if err != nil {
		log.Printf("[gateway] marshal event: %v", err)
		return
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		c.closed = true
	}
}

func (c *client) close() {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		c.conn.Close()
	}
	c.mu.Unlock()
}
