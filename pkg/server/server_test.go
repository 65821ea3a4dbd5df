package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/echoes-ai/echocall/pkg/history"
	"github.com/echoes-ai/echocall/pkg/identity"
	"github.com/echoes-ai/echocall/pkg/llm"
	"github.com/echoes-ai/echocall/pkg/store"
	"github.com/echoes-ai/echocall/pkg/tts"
)

type scriptedLLM struct {
	reply string
}

func (s *scriptedLLM) Name() string { return "scripted" }

func (s *scriptedLLM) Generate(ctx context.Context, systemPrompt string, history []llm.Message, userText string) (string, error) {
	return s.reply, nil
}

type gatewayHarness struct {
	server *Server
	http   *httptest.Server
	store  *history.Store
}

func newGatewayHarness(t *testing.T, cfg Config) *gatewayHarness {
	t.Helper()

	hist := history.NewStore(store.NewMemoryStore())
	require.NoError(t, hist.SaveEcho("user_1", history.Echo{
		ID:       "echo_1",
		Name:     "Ada",
		VoiceID:  "voice_1",
		ImageURL: "https://example.com/ada.png",
	}))

	idp := identity.NewStaticProvider(identity.User{ID: "user_1", Name: "Sam"})
	srv := NewServer(cfg, idp, hist, &scriptedLLM{reply: "Good to hear that."}, tts.NewMockProvider(), nil)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return &gatewayHarness{server: srv, http: ts, store: hist}
}

func (h *gatewayHarness) wsURL(echoID string) string {
	return "ws" + strings.TrimPrefix(h.http.URL, "http") + "/v1/call?echo=" + echoID
}

func dialCall(t *testing.T, h *gatewayHarness, echoID string, header http.Header) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(h.wsURL(echoID), header)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil reads server events until pred matches one, failing the
// test if the connection closes or the deadline passes first.
func readUntil(t *testing.T, conn *websocket.Conn, pred func(*ServerEvent) bool) *ServerEvent {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)

		var ev ServerEvent
		require.NoError(t, json.Unmarshal(data, &ev))
		if pred(&ev) {
			return &ev
		}
	}
}

func stateEvent(state string) func(*ServerEvent) bool {
	return func(ev *ServerEvent) bool {
		return ev.Type == ServerEventCallState && ev.State == state
	}
}

func TestCallRequiresAuth(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AuthToken = "secret"
	h := newGatewayHarness(t, cfg)

	_, resp, err := websocket.DefaultDialer.Dial(h.wsURL("echo_1"), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestCallUnknownEchoRejectedBeforeUpgrade(t *testing.T) {
	h := newGatewayHarness(t, DefaultConfig())

	_, resp, err := websocket.DefaultDialer.Dial(h.wsURL("echo_missing"), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	assert.Equal(t, 0, h.server.SessionCount())
}

func TestCallMissingEchoParam(t *testing.T) {
	h := newGatewayHarness(t, DefaultConfig())

	_, resp, err := websocket.DefaultDialer.Dial(h.wsURL(""), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCallSessionFlow(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ConnectDelay = 10 * time.Millisecond
	h := newGatewayHarness(t, cfg)

	conn := dialCall(t, h, "echo_1", nil)

	readUntil(t, conn, stateEvent("connecting"))
	greeting := readUntil(t, conn, func(ev *ServerEvent) bool {
		return ev.Type == ServerEventCallTranscript
	})
	assert.Equal(t, "echo", greeting.Speaker)
	assert.Contains(t, greeting.Text, "I'm Ada")
	assert.Contains(t, greeting.Text, "Hello Sam!")

	readUntil(t, conn, stateEvent("listening"))

	require.NoError(t, conn.WriteJSON(ClientEvent{
		Type: ClientEventTurnUtterance,
		Text: "I'm doing well!",
	}))

	userLine := readUntil(t, conn, func(ev *ServerEvent) bool {
		return ev.Type == ServerEventCallTranscript && ev.Speaker == "user"
	})
	assert.Equal(t, "I'm doing well!", userLine.Text)

	reply := readUntil(t, conn, func(ev *ServerEvent) bool {
		return ev.Type == ServerEventCallTranscript && ev.Speaker == "echo" && ev.Text != greeting.Text
	})
	assert.Equal(t, "Good to hear that.", reply.Text)

	audio := readUntil(t, conn, func(ev *ServerEvent) bool {
		return ev.Type == ServerEventCallAudio
	})
	assert.True(t, strings.HasPrefix(audio.URL, "/v1/clips/"), "clip URL %q", audio.URL)

	require.NoError(t, conn.WriteJSON(ClientEvent{Type: ClientEventCallEnd}))

	ended := readUntil(t, conn, func(ev *ServerEvent) bool {
		return ev.Type == ServerEventCallEnded
	})
	require.NotNil(t, ended.Record)
	assert.Equal(t, "echo_1", ended.Record.EchoID)
	assert.Equal(t, "Ada", ended.Record.EchoName)

	records, err := h.store.Calls("user_1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, ended.Record.ID, records[0].ID)
}

func TestCallToggleAck(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ConnectDelay = 10 * time.Millisecond
	h := newGatewayHarness(t, cfg)

	conn := dialCall(t, h, "echo_1", nil)
	readUntil(t, conn, stateEvent("listening"))

	require.NoError(t, conn.WriteJSON(ClientEvent{Type: ClientEventToggleMic}))
	ack := readUntil(t, conn, func(ev *ServerEvent) bool {
		return ev.Type == ServerEventToggle && ev.Name == "mic"
	})
	require.NotNil(t, ack.Enabled)
	assert.False(t, *ack.Enabled)

	require.NoError(t, conn.WriteJSON(ClientEvent{Type: ClientEventToggleMic}))
	ack = readUntil(t, conn, func(ev *ServerEvent) bool {
		return ev.Type == ServerEventToggle && ev.Name == "mic"
	})
	require.NotNil(t, ack.Enabled)
	assert.True(t, *ack.Enabled)
}

func TestCallInvalidEventReported(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ConnectDelay = 10 * time.Millisecond
	h := newGatewayHarness(t, cfg)

	conn := dialCall(t, h, "echo_1", nil)
	readUntil(t, conn, stateEvent("connecting"))

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"bogus"}`)))
	ev := readUntil(t, conn, func(ev *ServerEvent) bool {
		return ev.Type == ServerEventError
	})
	assert.Equal(t, "invalid_event", ev.Code)
}

func TestClipsServedOverHTTP(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ConnectDelay = 10 * time.Millisecond
	h := newGatewayHarness(t, cfg)

	conn := dialCall(t, h, "echo_1", nil)
	audio := readUntil(t, conn, func(ev *ServerEvent) bool {
		return ev.Type == ServerEventCallAudio
	})

	resp, err := http.Get(h.http.URL + audio.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHistoryEndpoint(t *testing.T) {
	h := newGatewayHarness(t, DefaultConfig())
	require.NoError(t, h.store.AppendCall("user_1", history.CallRecord{
		ID:       "call_1",
		EchoID:   "echo_1",
		EchoName: "Ada",
		Duration: "1:05",
	}))

	resp, err := http.Get(h.http.URL + "/v1/history")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var records []history.CallRecord
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&records))
	require.Len(t, records, 1)
	assert.Equal(t, "1:05", records[0].Duration)
}

func TestEchoesEndpoint(t *testing.T) {
	h := newGatewayHarness(t, DefaultConfig())

	body, err := json.Marshal(history.Echo{Name: "Grace", VoiceID: "voice_2"})
	require.NoError(t, err)
	resp, err := http.Post(h.http.URL+"/v1/echoes", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var created history.Echo
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	assert.True(t, strings.HasPrefix(created.ID, "echo_"))

	listResp, err := http.Get(h.http.URL + "/v1/echoes")
	require.NoError(t, err)
	defer listResp.Body.Close()
	var echoes []history.Echo
	require.NoError(t, json.NewDecoder(listResp.Body).Decode(&echoes))
	assert.Len(t, echoes, 2)

	req, err := http.NewRequest(http.MethodDelete, h.http.URL+"/v1/echoes?id="+created.ID, nil)
	require.NoError(t, err)
	delResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer delResp.Body.Close()
	assert.Equal(t, http.StatusNoContent, delResp.StatusCode)

	remaining, err := h.store.Echoes("user_1")
	require.NoError(t, err)
	assert.Len(t, remaining, 1)
}

func TestEchoesRejectsUnnamed(t *testing.T) {
	h := newGatewayHarness(t, DefaultConfig())

	resp, err := http.Post(h.http.URL+"/v1/echoes", "application/json", strings.NewReader(`{"description":"no name"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCloneNotConfigured(t *testing.T) {
	h := newGatewayHarness(t, DefaultConfig())

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	require.NoError(t, writer.WriteField("name", "My Voice"))
	part, err := writer.CreateFormFile("sample", "sample.mp3")
	require.NoError(t, err)
	_, err = part.Write([]byte("audio"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	resp, err := http.Post(h.http.URL+"/v1/voices/clone", writer.FormDataContentType(), &body)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotImplemented, resp.StatusCode)
}

func TestCloneEndpoint(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/voices/add", r.URL.Path)
		fmt.Fprint(w, `{"voice_id":"voice_new"}`)
	}))
	defer upstream.Close()

	cloner, err := tts.NewCloner("test-key", upstream.URL)
	require.NoError(t, err)

	hist := history.NewStore(store.NewMemoryStore())
	idp := identity.NewGuestProvider()
	srv := NewServer(DefaultConfig(), idp, hist, &scriptedLLM{}, tts.NewMockProvider(), cloner)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	require.NoError(t, writer.WriteField("name", "My Voice"))
	part, err := writer.CreateFormFile("sample", "sample.mp3")
	require.NoError(t, err)
	_, err = part.Write([]byte("audio bytes"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	resp, err := http.Post(ts.URL+"/v1/voices/clone", writer.FormDataContentType(), &body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, "voice_new", result["voice_id"])
}
