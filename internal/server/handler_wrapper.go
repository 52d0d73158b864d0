package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"reflect"

	apierrors "github.com/maruel/flatdb/internal/errors"
)

// Validatable is implemented by request types that can validate their fields.
// Wrap uses it as a type constraint so every request is checked before the
// handler runs.
type Validatable interface {
	Validate() error
}

// Wrap wraps a handler function to work as an http.Handler.
// The function must have signature: func(context.Context, *In) (*Out, error)
// where In can be unmarshalled from JSON and Out is a struct.
// Path parameters can be extracted by tagging struct fields with `path:"name"`,
// including fields of embedded structs.
// Request bodies larger than maxBody bytes are rejected; 0 means no limit.
//
// Example:
//
//	type GetRequest struct {
//	    Collection string `path:"collection" json:"-"`
//	    Key        string `json:"key"`
//	}
//
//	func (h *Handler) Get(ctx context.Context, req *GetRequest) (*Response, error)
func Wrap[In any, PtrIn interface {
	*In
	Validatable
}, Out any](fn func(context.Context, PtrIn) (*Out, error), maxBody int64) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if maxBody > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, maxBody)
		}
		body, err := io.ReadAll(r.Body)
		if err2 := r.Body.Close(); err == nil {
			err = err2
		}
		if err != nil {
			var maxBytesErr *http.MaxBytesError
			if errors.As(err, &maxBytesErr) {
				writeErrorResponseWithCode(w, http.StatusRequestEntityTooLarge, apierrors.ErrValidationFailed, "Request body too large", map[string]any{"limit": maxBytesErr.Limit})
				return
			}
			slog.ErrorContext(ctx, "Failed to read request body", "err", err)
			writeErrorResponse(w, http.StatusBadRequest, "Failed to read request body")
			return
		}
		input := new(In)
		if len(bytes.TrimSpace(body)) > 0 {
			d := json.NewDecoder(bytes.NewReader(body))
			d.DisallowUnknownFields()
			if err := d.Decode(input); err != nil {
				slog.WarnContext(ctx, "Failed to decode request body", "err", err)
				writeErrorResponseWithCode(w, http.StatusBadRequest, apierrors.ErrValidationFailed, "Invalid request body: "+err.Error(), nil)
				return
			}
		}

		// Extract path parameters and populate request struct
		populatePathParams(r, input)

		if err := PtrIn(input).Validate(); err != nil {
			writeError(ctx, w, err, http.StatusBadRequest, apierrors.ErrValidationFailed)
			return
		}

		output, err := fn(ctx, PtrIn(input))
		if err != nil {
			writeError(ctx, w, err, http.StatusInternalServerError, apierrors.ErrInternal)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if err := json.NewEncoder(w).Encode(output); err != nil {
			slog.ErrorContext(ctx, "Failed to encode response", "err", err)
		}
	})
}

// writeError writes err, using its status and code when it carries them.
func writeError(ctx context.Context, w http.ResponseWriter, err error, statusCode int, errorCode apierrors.ErrorCode) {
	details := make(map[string]any)
	var ewsErr apierrors.ErrorWithStatus
	if errors.As(err, &ewsErr) {
		statusCode = ewsErr.StatusCode()
		errorCode = ewsErr.Code()
		if d := ewsErr.Details(); d != nil {
			details = d
		}
	}
	if statusCode >= http.StatusInternalServerError {
		slog.ErrorContext(ctx, "Handler error", "err", err, "statusCode", statusCode, "code", errorCode)
	} else {
		slog.InfoContext(ctx, "Request rejected", "err", err, "statusCode", statusCode, "code", errorCode)
	}
	writeErrorResponseWithCode(w, statusCode, errorCode, err.Error(), details)
}

// populatePathParams extracts path parameters from the request and populates
// struct fields tagged with `path:"paramName"`.
func populatePathParams(r *http.Request, input any) {
	val := reflect.ValueOf(input)
	if val.Kind() != reflect.Ptr {
		return // Skip if not a pointer
	}
	elem := val.Elem()
	if elem.Kind() != reflect.Struct {
		return // Skip if not a struct
	}
	setPathParams(r, elem)
}

func setPathParams(r *http.Request, elem reflect.Value) {
	typ := elem.Type()
	for i := range typ.NumField() {
		field := typ.Field(i)
		if field.Anonymous && field.Type.Kind() == reflect.Struct {
			setPathParams(r, elem.Field(i))
			continue
		}
		tag := field.Tag.Get("path")
		if tag == "" {
			continue
		}
		paramValue := r.PathValue(tag)
		if paramValue == "" {
			continue
		}
		if field.Type.Kind() == reflect.String {
			elem.Field(i).SetString(paramValue)
		}
	}
}

// writeErrorResponse writes an error response as JSON.
func writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	writeErrorResponseWithCode(w, statusCode, apierrors.ErrInternal, message, nil)
}

// writeErrorResponseWithCode writes a detailed error response as JSON with code and details.
func writeErrorResponseWithCode(w http.ResponseWriter, statusCode int, code apierrors.ErrorCode, message string, details map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	}
	if len(details) > 0 {
		response["details"] = details
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.Error("Failed to encode error response", "err", err)
	}
}

// writeAPIError writes a predefined API error.
func writeAPIError(w http.ResponseWriter, err *apierrors.APIError) {
	writeErrorResponseWithCode(w, err.StatusCode(), err.Code(), err.Error(), err.Details())
}
