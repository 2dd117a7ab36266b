package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/owui-labs/voicegate/pkg/core"
	"github.com/owui-labs/voicegate/pkg/core/settings"
	"github.com/owui-labs/voicegate/pkg/gateway/auth"
	"github.com/owui-labs/voicegate/pkg/gateway/config"
	"github.com/owui-labs/voicegate/pkg/gateway/mw"
	"github.com/owui-labs/voicegate/pkg/gateway/reconcile"
	"github.com/owui-labs/voicegate/pkg/gateway/record"
)

// ApplyHandler pushes new settings to an existing room. Unlike the passive
// reconciliation on the token path, failures here surface to the caller,
// and a restart against an occupied room is a conflict unless forced.
type ApplyHandler struct {
	Config     config.Config
	Reconciler *reconcile.Reconciler
	Records    record.Store
	Logger     *slog.Logger
}

type applyResponse struct {
	OK       bool   `json:"ok"`
	Room     string `json:"room"`
	Metadata string `json:"metadata"`
}

func (h ApplyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqID, _ := mw.RequestIDFrom(r.Context())
	if r.Method != http.MethodPost {
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

	q := r.URL.Query()
	roomName := strings.TrimSpace(q.Get("room"))
	if roomName == "" {
		writeError(w, reqID, core.NewValidationErrorWithParam("room is required", "room"))
		return
	}
	if !config.RoomNamePattern.MatchString(roomName) || !strings.HasPrefix(roomName, h.Config.RoomPrefix+"-") {
		writeError(w, reqID, core.NewValidationErrorWithParam("invalid room name", "room"))
		return
	}

	force := false
	if raw := strings.TrimSpace(q.Get("force")); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, reqID, core.NewValidationErrorWithParam("force must be a boolean", "force"))
			return
		}
		force = v
	}

	params, err := settingsParams(q)
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

	result, err := h.Reconciler.Apply(r.Context(), roomName, metadata, principal.Identity(h.Config.IdentityPrefix), force)
	if err != nil {
		h.Logger.Warn("apply failed",
			"request_id", reqID, "room", roomName, "error", err)
		writeError(w, reqID, err)
		return
	}

	if h.Records != nil {
		rec := record.Record{
			Room:      result.Room,
			UserID:    principal.UserID,
			Metadata:  result.Metadata,
			Settings:  desired,
			Restarted: result.Restarted,
			UpdatedAt: time.Now().UTC(),
		}
		if err := h.Records.Put(r.Context(), rec); err != nil {
			h.Logger.Warn("record put failed", "room", result.Room, "error", err)
		}
	}

	h.Logger.Info("settings applied",
		"request_id", reqID, "room", result.Room, "restarted", result.Restarted)
	writeJSON(w, http.StatusOK, applyResponse{
		OK:       true,
		Room:     result.Room,
		Metadata: result.Metadata,
	})
}
