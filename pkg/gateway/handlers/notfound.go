package handlers

import (
	"net/http"

	"github.com/owui-labs/voicegate/pkg/core"
	"github.com/owui-labs/voicegate/pkg/gateway/mw"
)

type NotFoundHandler struct{}

func (h NotFoundHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqID, _ := mw.RequestIDFrom(r.Context())
	writeCoreErrorJSON(w, reqID, &core.Error{
		Type:    core.ErrNotFound,
		Message: "not found: " + r.URL.Path,
	}, http.StatusNotFound)
}
