package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/appointment-scheduler/internal/application"
)

func TestHandleServiceError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "invalid credentials",
			err:        application.ErrInvalidCredentials,
			wantStatus: http.StatusUnauthorized,
			wantCode:   "AUTH_INVALID_CREDENTIALS",
		},
		{
			name:       "unauthorized",
			err:        application.ErrUnauthorized,
			wantStatus: http.StatusForbidden,
			wantCode:   "AUTH_FORBIDDEN",
		},
		{
			name:       "not found",
			err:        application.ErrNotFound,
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "batch managed entry",
			err:        application.ErrBatchManaged,
			wantStatus: http.StatusConflict,
			wantCode:   "BATCH_MANAGED",
		},
		{
			name:       "slot taken",
			err:        application.ErrSlotTaken,
			wantStatus: http.StatusConflict,
			wantCode:   "SLOT_TAKEN",
		},
		{
			name:       "already exists",
			err:        application.ErrAlreadyExists,
			wantStatus: http.StatusConflict,
		},
		{
			name:       "sentinel text without wrapping",
			err:        errors.New("context: " + application.ErrNotFound.Error()),
			wantStatus: http.StatusInternalServerError,
		},
		{
			name:       "unknown error",
			err:        errors.New("disk full"),
			wantStatus: http.StatusInternalServerError,
		},
	}

	res := newResponder(discardLogger())
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			res.handleServiceError(context.Background(), rec, tc.err)

			assert.Equal(t, tc.wantStatus, rec.Code)
			body := decodeErrorBody(t, rec)
			assert.Equal(t, tc.wantCode, body.ErrorCode)
			assert.NotEmpty(t, body.Message)
		})
	}

	t.Run("validation errors carry field messages", func(t *testing.T) {
		vErr := &application.ValidationError{FieldErrors: map[string]string{
			"title":            "this field is required",
			"duration_minutes": "must be a positive number of minutes",
		}}

		rec := httptest.NewRecorder()
		res.handleServiceError(context.Background(), rec, vErr)

		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		body := decodeErrorBody(t, rec)
		assert.Equal(t, vErr.FieldErrors, body.Errors)
	})

	t.Run("recognizes wrapped sentinels", func(t *testing.T) {
		rec := httptest.NewRecorder()
		res.handleServiceError(context.Background(), rec, errors.Join(errors.New("topic lookup"), application.ErrNotFound))

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestWriteJSON(t *testing.T) {
	res := newResponder(discardLogger())

	t.Run("writes the payload with a json content type", func(t *testing.T) {
		rec := httptest.NewRecorder()
		res.writeJSON(context.Background(), rec, http.StatusCreated, map[string]string{"id": "topic-1"})

		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.Equal(t, "topic-1", body["id"])
	})

	t.Run("omits the body on no content", func(t *testing.T) {
		rec := httptest.NewRecorder()
		res.writeJSON(context.Background(), rec, http.StatusNoContent, map[string]string{"id": "ignored"})

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Zero(t, rec.Body.Len())
	})
}
