package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

const shopOrigin = "https://shop.example.com"

func TestCORSMiddleware(t *testing.T) {
	tests := []struct {
		name        string
		cfg         CORSConfig
		method      string
		origin      string
		wantStatus  int
		wantHeaders map[string]string
		wantNext    bool
	}{
		{
			name:        "disabled",
			cfg:         CORSConfig{Enabled: false},
			method:      http.MethodGet,
			origin:      shopOrigin,
			wantStatus:  http.StatusOK,
			wantHeaders: map[string]string{"Access-Control-Allow-Origin": ""},
			wantNext:    true,
		},
		{
			name:       "allowed origin",
			cfg:        CORSConfig{Enabled: true, AllowedOrigins: []string{shopOrigin}},
			method:     http.MethodPost,
			origin:     shopOrigin,
			wantStatus: http.StatusOK,
			wantHeaders: map[string]string{
				"Access-Control-Allow-Origin": shopOrigin,
				"Vary":                        "Origin",
			},
			wantNext: true,
		},
		{
			name:        "disallowed origin still served",
			cfg:         CORSConfig{Enabled: true, AllowedOrigins: []string{shopOrigin}},
			method:      http.MethodPost,
			origin:      "https://evil.example.com",
			wantStatus:  http.StatusOK,
			wantHeaders: map[string]string{"Access-Control-Allow-Origin": ""},
			wantNext:    true,
		},
		{
			name: "preflight",
			cfg: CORSConfig{
				Enabled:        true,
				AllowedOrigins: []string{shopOrigin},
				AllowedMethods: []string{"GET", "POST", "OPTIONS"},
				AllowedHeaders: []string{"Content-Type", "Authorization"},
				MaxAge:         3600,
			},
			method:     http.MethodOptions,
			origin:     shopOrigin,
			wantStatus: http.StatusNoContent,
			wantHeaders: map[string]string{
				"Access-Control-Allow-Origin":  shopOrigin,
				"Access-Control-Allow-Methods": "GET, POST, OPTIONS",
				"Access-Control-Allow-Headers": "Content-Type, Authorization",
				"Access-Control-Max-Age":       "3600",
			},
		},
		{
			name:        "disallowed preflight",
			cfg:         CORSConfig{Enabled: true, AllowedOrigins: []string{shopOrigin}, AllowedMethods: []string{"POST"}},
			method:      http.MethodOptions,
			origin:      "https://evil.example.com",
			wantStatus:  http.StatusNoContent,
			wantHeaders: map[string]string{"Access-Control-Allow-Origin": "", "Access-Control-Allow-Methods": ""},
		},
		{
			name:       "wildcard drops credentials",
			cfg:        CORSConfig{Enabled: true, AllowedOrigins: []string{"*"}, AllowCredentials: true},
			method:     http.MethodGet,
			origin:     "https://anywhere.example.com",
			wantStatus: http.StatusOK,
			wantHeaders: map[string]string{
				"Access-Control-Allow-Origin":      "*",
				"Access-Control-Allow-Credentials": "",
				"Vary":                             "",
			},
			wantNext: true,
		},
		{
			name: "credentials and exposed headers",
			cfg: CORSConfig{
				Enabled:          true,
				AllowedOrigins:   []string{shopOrigin},
				ExposeHeaders:    []string{RequestIDHeader},
				AllowCredentials: true,
			},
			method:     http.MethodPost,
			origin:     shopOrigin,
			wantStatus: http.StatusOK,
			wantHeaders: map[string]string{
				"Access-Control-Allow-Credentials": "true",
				"Access-Control-Expose-Headers":    RequestIDHeader,
			},
			wantNext: true,
		},
		{
			name:        "no origin header",
			cfg:         CORSConfig{Enabled: true, AllowedOrigins: []string{"*"}},
			method:      http.MethodGet,
			wantStatus:  http.StatusOK,
			wantHeaders: map[string]string{"Access-Control-Allow-Origin": ""},
			wantNext:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			handler := CORSMiddleware(tt.cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				w.WriteHeader(http.StatusOK)
			}))

			rr := httptest.NewRecorder()
			req := httptest.NewRequest(tt.method, "/graphql", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			handler.ServeHTTP(rr, req)

			assert.Equal(t, tt.wantStatus, rr.Code)
			assert.Equal(t, tt.wantNext, called)
			for key, want := range tt.wantHeaders {
				assert.Equal(t, want, rr.Header().Get(key), key)
			}
		})
	}
}
