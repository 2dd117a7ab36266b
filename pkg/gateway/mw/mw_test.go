package mw

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"

	"github.com/owui-labs/voicegate/pkg/core"
	"github.com/owui-labs/voicegate/pkg/gateway/auth"
)

func TestRequestID_GeneratesAndPropagates(t *testing.T) {
	t.Parallel()

	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = RequestIDFrom(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/token", nil))

	if seen == "" {
		t.Fatal("no request id on context")
	}
	if !strings.HasPrefix(seen, "req_") {
		t.Errorf("generated id = %q, want req_ prefix", seen)
	}
	if got := rec.Header().Get("X-Request-ID"); got != seen {
		t.Errorf("response header = %q, want %q", got, seen)
	}
}

func TestRequestID_HonorsClientHeader(t *testing.T) {
	t.Parallel()

	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = RequestIDFrom(r.Context())
	}))

	req := httptest.NewRequest("GET", "/token", nil)
	req.Header.Set("X-Request-ID", "client-id-7")
	h.ServeHTTP(httptest.NewRecorder(), req)

	if seen != "client-id-7" {
		t.Errorf("request id = %q, want client-id-7", seen)
	}
}

func signCredential(t *testing.T, secret, id string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"id": id}).
		SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign credential: %v", err)
	}
	return token
}

func TestAuth_RejectsMissingAndInvalid(t *testing.T) {
	t.Parallel()

	h := Auth("shared", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler reached without credential")
	}))

	for _, header := range []string{"", "Bearer garbage", "Bearer " + signCredential(t, "wrong", "u")} {
		req := httptest.NewRequest("GET", "/token", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("header %q: status = %d, want 401", header, rec.Code)
		}
		var envelope struct {
			Error *core.Error `json:"error"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if envelope.Error == nil || envelope.Error.Type != core.ErrAuthentication {
			t.Errorf("header %q: error = %+v", header, envelope.Error)
		}
	}
}

func TestAuth_PassesPrincipal(t *testing.T) {
	t.Parallel()

	var principal *auth.Principal
	h := Auth("shared", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, _ = auth.PrincipalFrom(r.Context())
	}))

	req := httptest.NewRequest("GET", "/token", nil)
	req.Header.Set("Authorization", "Bearer "+signCredential(t, "shared", "user-9"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if principal == nil || principal.UserID != "user-9" {
		t.Errorf("principal = %+v", principal)
	}
}

func TestRecover(t *testing.T) {
	t.Parallel()

	h := Recover(slog.Default(), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestCORS_AllowedOrigin(t *testing.T) {
	t.Parallel()

	origins := map[string]struct{}{"https://webui.example": {}}
	h := CORS(origins, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/token", nil)
	req.Header.Set("Origin", "https://webui.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://webui.example" {
		t.Errorf("allow-origin = %q", got)
	}
}

func TestCORS_DisallowedOriginGetsNoHeader(t *testing.T) {
	t.Parallel()

	origins := map[string]struct{}{"https://webui.example": {}}
	h := CORS(origins, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/token", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("allow-origin = %q, want empty", got)
	}
}

func TestCORS_Preflight(t *testing.T) {
	t.Parallel()

	origins := map[string]struct{}{"https://webui.example": {}}
	h := CORS(origins, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("preflight reached inner handler")
	}))

	req := httptest.NewRequest(http.MethodOptions, "/apply", nil)
	req.Header.Set("Origin", "https://webui.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
}

func TestAccessLog_PreservesStatus(t *testing.T) {
	t.Parallel()

	h := AccessLog(slog.Default(), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("POST", "/apply", nil))

	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}
