package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCORS(t *testing.T) {
	t.Parallel()

	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	tests := []struct {
		name       string
		origins    []string
		origin     string
		preflight  bool
		wantOrigin string
		wantCreds  string
		wantStatus int
	}{
		{name: "explicit origin", origins: []string{"https://app.example"}, origin: "https://app.example", wantOrigin: "https://app.example", wantCreds: "true", wantStatus: http.StatusTeapot},
		{name: "wildcard origin", origins: []string{"*"}, origin: "https://other.example", wantOrigin: "https://other.example", wantStatus: http.StatusTeapot},
		{name: "disallowed origin", origins: []string{"https://app.example"}, origin: "https://evil.example", wantStatus: http.StatusTeapot},
		{name: "no origin", origins: []string{"*"}, wantStatus: http.StatusTeapot},
		{name: "preflight", origins: []string{"*"}, origin: "https://app.example", preflight: true, wantOrigin: "https://app.example", wantStatus: http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			method := http.MethodGet
			if tt.preflight {
				method = http.MethodOptions
			}
			req := httptest.NewRequest(method, "/v1/evening/eve-1/snapshot", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if tt.preflight {
				req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			}
			w := httptest.NewRecorder()

			CORS(tt.origins)(next).ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, w.Code)
			}
			if got := w.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("expected allow-origin %q, got %q", tt.wantOrigin, got)
			}
			if got := w.Header().Get("Access-Control-Allow-Credentials"); got != tt.wantCreds {
				t.Errorf("expected allow-credentials %q, got %q", tt.wantCreds, got)
			}
		})
	}
}
