package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/owui-labs/voicegate/pkg/core"
	"github.com/owui-labs/voicegate/pkg/gateway/auth"
	"github.com/owui-labs/voicegate/pkg/gateway/config"
	"github.com/owui-labs/voicegate/pkg/gateway/lifecycle"
	"github.com/owui-labs/voicegate/pkg/gateway/reconcile"
	"github.com/owui-labs/voicegate/pkg/gateway/record"
	"github.com/owui-labs/voicegate/pkg/room"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() config.Config {
	return config.Config{
		SubstrateURL:        "wss://rooms.example",
		SubstrateHTTPURL:    "https://rooms.example",
		APIKey:              "portal-key",
		APISecret:           "portal-secret-portal-secret",
		AgentName:           "owui-voice",
		RoomPrefix:          "owui-voice",
		TokenTTL:            time.Hour,
		AgentIdentityPrefix: "agent-",
		IdentityPrefix:      "owui:",
	}
}

// stubClient serves the handler tests with canned substrate state. The
// reconciler's own behavior is covered in its package tests.
type stubClient struct {
	rooms        []room.Room
	participants []room.ParticipantInfo
	dispatches   []room.AgentDispatch

	created []room.AgentDispatch
	deleted []string
}

func (c *stubClient) ListRooms(_ context.Context, names []string) ([]room.Room, error) {
	var out []room.Room
	for _, rm := range c.rooms {
		for _, name := range names {
			if rm.Name == name {
				out = append(out, rm)
			}
		}
	}
	return out, nil
}

func (c *stubClient) UpdateRoomMetadata(_ context.Context, roomName, metadata string) error {
	for i := range c.rooms {
		if c.rooms[i].Name == roomName {
			c.rooms[i].Metadata = metadata
		}
	}
	return nil
}

func (c *stubClient) ListParticipants(_ context.Context, _ string) ([]room.ParticipantInfo, error) {
	return c.participants, nil
}

func (c *stubClient) ListDispatches(_ context.Context, _ string) ([]room.AgentDispatch, error) {
	return c.dispatches, nil
}

func (c *stubClient) CreateDispatch(_ context.Context, agentName, roomName, metadata string) (room.AgentDispatch, error) {
	d := room.AgentDispatch{ID: "d-new", AgentName: agentName, Room: roomName, Metadata: metadata}
	c.created = append(c.created, d)
	return d, nil
}

func (c *stubClient) DeleteDispatch(_ context.Context, dispatchID, _ string) error {
	c.deleted = append(c.deleted, dispatchID)
	return nil
}

func newTestReconciler(client room.Client) *reconcile.Reconciler {
	return reconcile.New(reconcile.Config{
		Client:              client,
		AgentName:           "owui-voice",
		AgentIdentityPrefix: "agent-",
		Logger:              testLogger(),
	})
}

func authedRequest(method, target string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	ctx := auth.WithPrincipal(req.Context(), &auth.Principal{UserID: "user-1"})
	return req.WithContext(ctx)
}

func decodeError(t *testing.T, body []byte) *core.Error {
	t.Helper()
	var envelope struct {
		Error *core.Error `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		t.Fatalf("decode error envelope: %v (body %s)", err, body)
	}
	if envelope.Error == nil {
		t.Fatalf("no error in body %s", body)
	}
	return envelope.Error
}

func TestTokenHandler_MintsGrant(t *testing.T) {
	t.Parallel()

	client := &stubClient{}
	records := record.NewMemoryStore(0)
	h := TokenHandler{
		Config:        testConfig(),
		Reconciler:    newTestReconciler(client),
		Records:       records,
		Logger:        testLogger(),
		NewRoomSuffix: func() string { return "fixed" },
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, authedRequest("GET", "/token?llm_model=glm-4.6"))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.Bytes())
	}
	var resp tokenResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.URL != "wss://rooms.example" {
		t.Errorf("url = %q", resp.URL)
	}
	if resp.Room != "owui-voice-fixed" {
		t.Errorf("room = %q", resp.Room)
	}
	if resp.Identity != "owui:user-1" {
		t.Errorf("identity = %q", resp.Identity)
	}
	if resp.Token == "" || strings.Count(resp.Token, ".") != 2 {
		t.Errorf("token = %q, want a JWT", resp.Token)
	}

	stored, err := records.Get(context.Background(), "owui-voice-fixed")
	if err != nil {
		t.Fatalf("record not written: %v", err)
	}
	if stored.UserID != "user-1" || !strings.Contains(stored.Metadata, "glm-4.6") {
		t.Errorf("record = %+v", stored)
	}
}

func TestTokenHandler_AcceptsNamedRoom(t *testing.T) {
	t.Parallel()

	h := TokenHandler{
		Config:     testConfig(),
		Reconciler: newTestReconciler(&stubClient{}),
		Logger:     testLogger(),
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, authedRequest("GET", "/token?room=owui-voice-mine"))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.Bytes())
	}
	var resp tokenResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Room != "owui-voice-mine" {
		t.Errorf("room = %q", resp.Room)
	}
}

func TestTokenHandler_RejectsForeignRoom(t *testing.T) {
	t.Parallel()

	h := TokenHandler{
		Config:     testConfig(),
		Reconciler: newTestReconciler(&stubClient{}),
		Logger:     testLogger(),
	}

	for _, name := range []string{"other-prefix-x", "owui-voice", "owui-voice-bad!name", "owui-voice-" + strings.Repeat("a", 200)} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, authedRequest("GET", "/token?room="+name))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("room %q: status = %d, want 400", name, rec.Code)
		}
	}
}

func TestTokenHandler_RejectsBadSettings(t *testing.T) {
	t.Parallel()

	h := TokenHandler{
		Config:     testConfig(),
		Reconciler: newTestReconciler(&stubClient{}),
		Logger:     testLogger(),
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, authedRequest("GET", "/token?min_endpointing_delay=99"))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	coreErr := decodeError(t, rec.Body.Bytes())
	if coreErr.Type != core.ErrValidation || coreErr.Param != "min_endpointing_delay" {
		t.Errorf("error = %+v", coreErr)
	}
}

func TestTokenHandler_RequiresPrincipal(t *testing.T) {
	t.Parallel()

	h := TokenHandler{
		Config:     testConfig(),
		Reconciler: newTestReconciler(&stubClient{}),
		Logger:     testLogger(),
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/token", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestTokenHandler_MethodNotAllowed(t *testing.T) {
	t.Parallel()

	h := TokenHandler{
		Config:     testConfig(),
		Reconciler: newTestReconciler(&stubClient{}),
		Logger:     testLogger(),
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, authedRequest("POST", "/token"))

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestApplyHandler_RoomMissing(t *testing.T) {
	t.Parallel()

	h := ApplyHandler{
		Config:     testConfig(),
		Reconciler: newTestReconciler(&stubClient{}),
		Logger:     testLogger(),
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, authedRequest("POST", "/apply?room=owui-voice-gone"))

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404, body %s", rec.Code, rec.Body.Bytes())
	}
}

func TestApplyHandler_OccupiedConflict(t *testing.T) {
	t.Parallel()

	client := &stubClient{
		rooms: []room.Room{{Name: "owui-voice-busy", Metadata: "old"}},
		participants: []room.ParticipantInfo{
			{Identity: "owui:user-1"},
			{Identity: "owui:someone-else"},
		},
	}
	h := ApplyHandler{
		Config:     testConfig(),
		Reconciler: newTestReconciler(client),
		Logger:     testLogger(),
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, authedRequest("POST", "/apply?room=owui-voice-busy"))

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409, body %s", rec.Code, rec.Body.Bytes())
	}
	if len(client.created) != 0 {
		t.Errorf("created %d dispatches during conflict", len(client.created))
	}
}

func TestApplyHandler_ForceRestarts(t *testing.T) {
	t.Parallel()

	client := &stubClient{
		rooms: []room.Room{{Name: "owui-voice-busy", Metadata: "old"}},
		participants: []room.ParticipantInfo{
			{Identity: "owui:someone-else"},
		},
		dispatches: []room.AgentDispatch{{
			ID:        "d1",
			AgentName: "owui-voice",
			Room:      "owui-voice-busy",
			Jobs:      []room.DispatchJob{{ID: "j1", RoomMetadata: "old"}},
		}},
	}
	records := record.NewMemoryStore(0)
	h := ApplyHandler{
		Config:     testConfig(),
		Reconciler: newTestReconciler(client),
		Records:    records,
		Logger:     testLogger(),
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, authedRequest("POST", "/apply?room=owui-voice-busy&force=true&tts_voice=nova"))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.Bytes())
	}
	var resp applyResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.OK || resp.Room != "owui-voice-busy" {
		t.Errorf("response = %+v", resp)
	}
	if !strings.Contains(resp.Metadata, "nova") {
		t.Errorf("metadata = %q, want tts_voice nova", resp.Metadata)
	}
	if len(client.deleted) != 1 || len(client.created) != 1 {
		t.Errorf("deleted=%v created=%d", client.deleted, len(client.created))
	}

	stored, err := records.Get(context.Background(), "owui-voice-busy")
	if err != nil {
		t.Fatalf("record not written: %v", err)
	}
	if !stored.Restarted {
		t.Error("record restarted = false, want true")
	}
}

func TestApplyHandler_RequiresRoom(t *testing.T) {
	t.Parallel()

	h := ApplyHandler{
		Config:     testConfig(),
		Reconciler: newTestReconciler(&stubClient{}),
		Logger:     testLogger(),
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, authedRequest("POST", "/apply"))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestApplyHandler_BadForce(t *testing.T) {
	t.Parallel()

	h := ApplyHandler{
		Config:     testConfig(),
		Reconciler: newTestReconciler(&stubClient{}),
		Logger:     testLogger(),
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, authedRequest("POST", "/apply?room=owui-voice-x&force=maybe"))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	coreErr := decodeError(t, rec.Body.Bytes())
	if coreErr.Param != "force" {
		t.Errorf("error param = %q, want force", coreErr.Param)
	}
}

func TestSettingsHandler(t *testing.T) {
	t.Parallel()

	records := record.NewMemoryStore(0)
	_ = records.Put(context.Background(), record.Record{
		Room:     "owui-voice-seen",
		UserID:   "user-1",
		Metadata: `{"owui_voice":{"tts_voice":"nova"}}`,
	})
	h := SettingsHandler{Config: testConfig(), Records: records, Logger: testLogger()}

	mux := http.NewServeMux()
	mux.Handle("/rooms/{room}/settings", h)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, authedRequest("GET", "/rooms/owui-voice-seen/settings"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.Bytes())
	}
	var got record.Record
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if got.UserID != "user-1" {
		t.Errorf("record = %+v", got)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, authedRequest("GET", "/rooms/owui-voice-unseen/settings"))
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown room: status = %d, want 404", rec.Code)
	}
}

func TestReadyHandler_Draining(t *testing.T) {
	t.Parallel()

	state := &lifecycle.State{}
	h := ReadyHandler{State: state}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("before drain: status = %d, want 200", rec.Code)
	}

	state.StartDrain()
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("draining: status = %d, want 503", rec.Code)
	}
}

func TestNotFoundHandler(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	NotFoundHandler{}.ServeHTTP(rec, httptest.NewRequest("GET", "/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	coreErr := decodeError(t, rec.Body.Bytes())
	if !strings.Contains(coreErr.Message, "/nope") {
		t.Errorf("message = %q", coreErr.Message)
	}
}
