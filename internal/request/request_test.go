package request

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/tandemhq/tandem-api/internal/models"
)

func TestClientIP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{
			name:    "x-forwarded-for single",
			headers: map[string]string{"X-Forwarded-For": "203.0.113.7"},
			remote:  "10.0.0.1:1234",
			want:    "203.0.113.7",
		},
		{
			name:    "x-forwarded-for chain uses first hop",
			headers: map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.2"},
			remote:  "10.0.0.1:1234",
			want:    "203.0.113.7",
		},
		{
			name:    "x-real-ip",
			headers: map[string]string{"X-Real-IP": "198.51.100.3"},
			remote:  "10.0.0.1:1234",
			want:    "198.51.100.3",
		},
		{
			name:   "falls back to remote addr",
			remote: "10.0.0.1:1234",
			want:   "10.0.0.1:1234",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			if got := ClientIP(r); got != tt.want {
				t.Errorf("ClientIP() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestUserContext(t *testing.T) {
	t.Parallel()

	user := &models.User{ID: uuid.New(), Email: "ana@example.com"}
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r = r.WithContext(WithUser(r.Context(), user))

	got := UserFromContext(r)
	if got == nil || got.ID != user.ID {
		t.Fatalf("UserFromContext() = %v, want %v", got, user)
	}
}

func TestUserFromContext_Missing(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	if got := UserFromContext(r); got != nil {
		t.Errorf("UserFromContext() = %v, want nil", got)
	}
}
