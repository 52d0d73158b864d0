package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	apierrors "github.com/maruel/flatdb/internal/errors"
)

type Target struct {
	Collection string `path:"collection" json:"-"`
}

type echoRequest struct {
	Target
	Name string `json:"name"`
}

func (r *echoRequest) Validate() error {
	if r.Collection == "" {
		return apierrors.MissingField("collection")
	}
	if r.Name == "invalid" {
		return apierrors.BadRequest("name is invalid")
	}
	return nil
}

type echoResponse struct {
	Collection string `json:"collection"`
	Name       string `json:"name"`
}

func echo(ctx context.Context, req *echoRequest) (*echoResponse, error) {
	if req.Name == "missing" {
		return nil, apierrors.NotFound("document")
	}
	return &echoResponse{Collection: req.Collection, Name: req.Name}, nil
}

func TestWrap(t *testing.T) {
	mux := http.NewServeMux()
	mux.Handle("POST /c/{collection}", Wrap(echo, 64))
	tests := []struct {
		name   string
		body   string
		status int
		want   string
	}{
		{"path param in embedded struct", `{"name":"joy"}`, 200, `{"collection":"users","name":"joy"}`},
		{"empty body", ``, 200, `{"collection":"users","name":""}`},
		{"unknown field", `{"name":"joy","age":3}`, 400, "VALIDATION_FAILED"},
		{"validation", `{"name":"invalid"}`, 400, "VALIDATION_FAILED"},
		{"handler error", `{"name":"missing"}`, 404, "NOT_FOUND"},
		{"too large", `{"name":"` + strings.Repeat("x", 100) + `"}`, 413, "VALIDATION_FAILED"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest("POST", "/c/users", strings.NewReader(tt.body)))
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d: %s", w.Code, tt.status, w.Body)
			}
			if tt.status == 200 {
				if got := strings.TrimSpace(w.Body.String()); got != tt.want {
					t.Errorf("body = %s, want %s", got, tt.want)
				}
				return
			}
			var resp struct {
				Error struct {
					Code string `json:"code"`
				} `json:"error"`
			}
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatal(err)
			}
			if resp.Error.Code != tt.want {
				t.Errorf("code = %s, want %s", resp.Error.Code, tt.want)
			}
		})
	}
}
