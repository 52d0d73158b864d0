package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/maruel/flatdb/internal/jsondb"
)

func TestFromStore(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   ErrorCode
	}{
		{"validation", fmt.Errorf("%w: bad", jsondb.ErrValidation), http.StatusBadRequest, ErrValidationFailed},
		{"not found", fmt.Errorf("%w: key", jsondb.ErrNotFound), http.StatusNotFound, ErrNotFound},
		{"configuration", fmt.Errorf("%w: no auto key", jsondb.ErrConfiguration), http.StatusForbidden, ErrConfiguration},
		{"permission", fmt.Errorf("%w: read-only", jsondb.ErrPermission), http.StatusInternalServerError, ErrPermission},
		{"io", fmt.Errorf("wrapped: %w", fmt.Errorf("%w: disk", jsondb.ErrIO)), http.StatusInternalServerError, ErrStorageError},
		{"other", stderrors.New("boom"), http.StatusInternalServerError, ErrInternal},
		{"passthrough", CollectionNotFound("x"), http.StatusNotFound, ErrCollectionNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromStore(tt.err)
			var ews ErrorWithStatus
			if !stderrors.As(got, &ews) {
				t.Fatalf("FromStore() = %T, want ErrorWithStatus", got)
			}
			if ews.StatusCode() != tt.status || ews.Code() != tt.code {
				t.Errorf("FromStore() = %d %s, want %d %s", ews.StatusCode(), ews.Code(), tt.status, tt.code)
			}
		})
	}
	if FromStore(nil) != nil {
		t.Error("FromStore(nil) != nil")
	}
}

func TestInternalErrorsKeepCause(t *testing.T) {
	err := FromStore(fmt.Errorf("%w: disk full", jsondb.ErrIO))
	if !stderrors.Is(err, jsondb.ErrIO) {
		t.Errorf("cause lost: %v", err)
	}
}
