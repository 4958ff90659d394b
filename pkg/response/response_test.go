package response

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriteJSONError(t *testing.T) {
	rec := httptest.NewRecorder()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	WriteJSONError(rec, log, http.StatusConflict, CodeIdempotencyConflict, "key reused")

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error":"idempotency_conflict","message":"key reused"}`, rec.Body.String())
}

func TestWriteInternalError_OmitsEmptyMessage(t *testing.T) {
	rec := httptest.NewRecorder()

	WriteInternalError(rec, slog.New(slog.NewTextHandler(io.Discard, nil)), "")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal_error"}`, rec.Body.String())
}

func TestWriteJSONSuccess_NilBody(t *testing.T) {
	rec := httptest.NewRecorder()

	WriteJSONSuccess(rec, slog.New(slog.NewTextHandler(io.Discard, nil)), http.StatusNoContent, nil)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
}
