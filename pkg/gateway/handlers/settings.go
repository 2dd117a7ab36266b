package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/owui-labs/voicegate/pkg/core"
	"github.com/owui-labs/voicegate/pkg/gateway/config"
	"github.com/owui-labs/voicegate/pkg/gateway/mw"
	"github.com/owui-labs/voicegate/pkg/gateway/record"
)

// SettingsHandler serves the portal's last reconciled record for a room.
// This is a read of portal state, not of the room service.
type SettingsHandler struct {
	Config  config.Config
	Records record.Store
	Logger  *slog.Logger
}

func (h SettingsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqID, _ := mw.RequestIDFrom(r.Context())
	if r.Method != http.MethodGet {
		writeCoreErrorJSON(w, reqID, &core.Error{
			Type:    core.ErrValidation,
			Message: "method not allowed",
			Code:    "method_not_allowed",
		}, http.StatusMethodNotAllowed)
		return
	}

	roomName := strings.TrimSpace(r.PathValue("room"))
	if !config.RoomNamePattern.MatchString(roomName) {
		writeError(w, reqID, core.NewValidationErrorWithParam("invalid room name", "room"))
		return
	}

	rec, err := h.Records.Get(r.Context(), roomName)
	if errors.Is(err, record.ErrNotFound) {
		writeError(w, reqID, core.NewNotFoundError("no settings recorded for room: "+roomName))
		return
	}
	if err != nil {
		h.Logger.Warn("record get failed", "request_id", reqID, "room", roomName, "error", err)
		writeError(w, reqID, core.NewAPIError("failed to read room record"))
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
