package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/owui-labs/voicegate/pkg/core"
	"github.com/owui-labs/voicegate/pkg/core/settings"
	"github.com/owui-labs/voicegate/pkg/gateway/auth"
	"github.com/owui-labs/voicegate/pkg/gateway/config"
	"github.com/owui-labs/voicegate/pkg/gateway/mw"
	"github.com/owui-labs/voicegate/pkg/gateway/reconcile"
	"github.com/owui-labs/voicegate/pkg/gateway/record"
	"github.com/owui-labs/voicegate/pkg/room"
)

// TokenHandler mints a join grant for the caller's room, embedding desired
// settings and an agent dispatch in the room configuration, then reconciles
// the room in the background of the request. Reconciliation failures never
// block the grant.
type TokenHandler struct {
	Config     config.Config
	Reconciler *reconcile.Reconciler
	Records    record.Store
	Logger     *slog.Logger

	// newRoomSuffix is swapped in tests for deterministic names.
	NewRoomSuffix func() string
}

type tokenResponse struct {
	URL      string `json:"url"`
	Room     string `json:"room"`
	Token    string `json:"token"`
	Identity string `json:"identity"`
}

func (h TokenHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqID, _ := mw.RequestIDFrom(r.Context())
	if r.Method != http.MethodGet {
		writeCoreErrorJSON(w, reqID, &core.Error{
			Type:    core.ErrValidation,
			Message: "method not allowed",
			Code:    "method_not_allowed",
		}, http.StatusMethodNotAllowed)
		return
	}

	principal, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		writeError(w, reqID, core.NewAuthenticationError("missing credential"))
		return
	}

	roomName, err := h.roomName(r.URL.Query().Get("room"))
	if err != nil {
		writeError(w, reqID, err)
		return
	}

	params, err := settingsParams(r.URL.Query())
	if err != nil {
		writeError(w, reqID, err)
		return
	}
	desired, err := settings.Build(params)
	if err != nil {
		writeError(w, reqID, err)
		return
	}
	metadata := settings.EncodeMetadata(desired)

	identity := principal.Identity(h.Config.IdentityPrefix)
	token, err := room.NewAccessToken(h.Config.APIKey, h.Config.APISecret).
		WithIdentity(identity).
		WithName("Open WebUI User " + principal.UserID).
		WithMetadata(fmt.Sprintf(`{"open_webui_user_id":%q}`, principal.UserID)).
		WithGrant(room.JoinGrant(roomName)).
		WithRoomConfig(room.RoomConfiguration{
			Agents:   []room.RoomAgentDispatch{{AgentName: h.Config.AgentName}},
			Metadata: metadata,
		}).
		WithTTL(h.Config.TokenTTL).
		ToJWT()
	if err != nil {
		h.Logger.Error("mint token failed", "request_id", reqID, "room", roomName, "error", err)
		writeError(w, reqID, core.NewAPIError("failed to mint token"))
		return
	}

	// Room configuration metadata only applies to rooms created by this
	// grant. An already-existing room needs an explicit pass, and a failure
	// here degrades to "grant without guaranteed settings propagation".
	h.Reconciler.Seed(r.Context(), roomName, metadata)
	h.putRecord(r.Context(), roomName, principal.UserID, metadata, desired, false)

	h.Logger.Info("token minted",
		"request_id", reqID, "room", roomName, "identity", identity)
	writeJSON(w, http.StatusOK, tokenResponse{
		URL:      h.Config.SubstrateURL,
		Room:     roomName,
		Token:    token,
		Identity: identity,
	})
}

// roomName validates the requested room name or generates a fresh one.
func (h TokenHandler) roomName(requested string) (string, error) {
	name := strings.TrimSpace(requested)
	if name == "" {
		suffix := h.NewRoomSuffix
		if suffix == nil {
			suffix = func() string {
				return strings.ReplaceAll(uuid.NewString(), "-", "")
			}
		}
		return h.Config.RoomPrefix + "-" + suffix(), nil
	}
	if !config.RoomNamePattern.MatchString(name) || !strings.HasPrefix(name, h.Config.RoomPrefix+"-") {
		return "", core.NewValidationErrorWithParam("invalid room name", "room")
	}
	return name, nil
}

func (h TokenHandler) putRecord(ctx context.Context, roomName, userID, metadata string, desired settings.Settings, restarted bool) {
	if h.Records == nil {
		return
	}
	rec := record.Record{
		Room:      roomName,
		UserID:    userID,
		Metadata:  metadata,
		Settings:  desired,
		Restarted: restarted,
		UpdatedAt: time.Now().UTC(),
	}
	if err := h.Records.Put(ctx, rec); err != nil {
		h.Logger.Warn("record put failed", "room", roomName, "error", err)
	}
}
