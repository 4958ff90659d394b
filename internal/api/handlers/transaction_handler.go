package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"gw-fraud-scoring/internal/api/middlew"
	"gw-fraud-scoring/internal/custom_err"
	"gw-fraud-scoring/internal/models"
	"gw-fraud-scoring/internal/service"
	"gw-fraud-scoring/pkg/response"
)

const (
	IdempotencyKeyHeader = "Idempotency-Key"
	ReplayedHeader       = "Idempotent-Replayed"
)

type TransactionHandler struct {
	service service.TransactionProcessor
}

func NewTransactionHandler(service service.TransactionProcessor) *TransactionHandler {
	return &TransactionHandler{
		service: service,
	}
}

// SubmitTransaction godoc
// @Summary      Проверить транзакцию
// @Description  Оценивает транзакцию правилами и моделью аномалий и возвращает решение. Повторный запрос с тем же ключом идемпотентности возвращает сохранённый ответ.
// @Tags         transactions
// @Accept       json
// @Produce      json
// @Param        Idempotency-Key header string false "Ключ идемпотентности, если он не передан в теле"
// @Param        request body models.TransactionRequest true "Данные транзакции"
// @Success      200 {object} models.TransactionResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      409 {object} response.ErrorResponse
// @Failure      429 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Router       /transactions [post]
func (h *TransactionHandler) SubmitTransaction(w http.ResponseWriter, r *http.Request) {
	const op = "handler.SubmitTransaction"
	log := middlew.GetLogger(r.Context())

	defer r.Body.Close()

	// metadata numbers stay json.Number: the request hash must see every digit
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()

	var req models.TransactionRequest
	if err := dec.Decode(&req); err != nil {
		log.Warn("invalid JSON", slog.String("op", op), slog.String("error", err.Error()))
		response.WriteJSONError(w, log, http.StatusBadRequest, response.CodeInvalidJSON, "Invalid JSON body")
		return
	}

	headerKey := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))
	bodyKey := strings.TrimSpace(req.IdempotencyKey)
	switch {
	case bodyKey == "":
		req.IdempotencyKey = headerKey
	case headerKey != "" && headerKey != bodyKey:
		log.Warn("ключи идемпотентности в заголовке и теле различаются", slog.String("op", op))
		response.WriteJSONError(w, log, http.StatusBadRequest, response.CodeInvalidInput,
			"Idempotency-Key header does not match idempotency_key")
		return
	}

	outcome, err := h.service.Process(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, custom_err.ErrInvalidAmount):
			log.Warn("invalid amount", slog.String("op", op), slog.String("error", err.Error()))
			response.WriteJSONError(w, log, http.StatusBadRequest, response.CodeInvalidAmount, "Amount must be positive")
		case errors.Is(err, custom_err.ErrInvalidInput):
			log.Warn("invalid input", slog.String("op", op), slog.String("error", err.Error()))
			response.WriteJSONError(w, log, http.StatusBadRequest, response.CodeInvalidInput, inputMessage(err))
		case errors.Is(err, custom_err.ErrIdempotencyConflict):
			log.Warn("idempotency conflict", slog.String("op", op), slog.String("idempotency_key", req.IdempotencyKey))
			response.WriteJSONError(w, log, http.StatusConflict, response.CodeIdempotencyConflict,
				"Idempotency key already used with different request parameters")
		default:
			log.Error("failed to process transaction", slog.String("op", op), slog.String("error", err.Error()))
			response.WriteInternalError(w, log, "An internal error occurred")
		}
		return
	}

	if outcome.Replayed {
		w.Header().Set(ReplayedHeader, "true")
	}
	response.WriteJSONSuccess(w, log, http.StatusOK, outcome.Response)
}

// inputMessage strips the wrapping chain down to the validation text.
func inputMessage(err error) string {
	msg := err.Error()
	marker := custom_err.ErrInvalidInput.Error() + ": "
	if i := strings.LastIndex(msg, marker); i >= 0 {
		return msg[i+len(marker):]
	}
	return "Invalid input"
}
