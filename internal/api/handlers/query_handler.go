package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"gw-fraud-scoring/internal/api/middlew"
	"gw-fraud-scoring/internal/custom_err"
	"gw-fraud-scoring/internal/service"
	"gw-fraud-scoring/pkg/response"

	"github.com/go-chi/chi/v5"
)

type QueryHandler struct {
	service service.Ledger
}

func NewQueryHandler(service service.Ledger) *QueryHandler {
	return &QueryHandler{
		service: service,
	}
}

// GetBalance godoc
// @Summary      Получить баланс пользователя
// @Description  Сумма одобренных транзакций пользователя
// @Tags         ledger
// @Produce      json
// @Param        userID path string true "Идентификатор пользователя"
// @Success      200 {object} models.UserBalanceResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Router       /balance/{userID} [get]
func (h *QueryHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	const op = "handler.GetBalance"
	log := middlew.GetLogger(r.Context())

	userID := chi.URLParam(r, "userID")

	balance, err := h.service.Balance(r.Context(), userID)
	if err != nil {
		writeLedgerError(w, log, op, err, "Failed to retrieve balance")
		return
	}

	response.WriteJSONSuccess(w, log, http.StatusOK, balance)
}

// GetHistory godoc
// @Summary      История транзакций
// @Description  Транзакции пользователя от новых к старым, постранично
// @Tags         ledger
// @Produce      json
// @Param        userID    path  string true  "Идентификатор пользователя"
// @Param        page      query int    false "Номер страницы" default(1)
// @Param        page_size query int    false "Размер страницы" default(20)
// @Success      200 {object} models.TransactionHistoryResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Router       /history/{userID} [get]
func (h *QueryHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	const op = "handler.GetHistory"
	log := middlew.GetLogger(r.Context())

	userID := chi.URLParam(r, "userID")

	page, err := queryInt(r, "page", 1)
	if err != nil {
		log.Warn("invalid page", slog.String("op", op), slog.String("error", err.Error()))
		response.WriteJSONError(w, log, http.StatusBadRequest, response.CodeInvalidInput, "page must be an integer")
		return
	}
	pageSize, err := queryInt(r, "page_size", service.DefaultPageSize)
	if err != nil {
		log.Warn("invalid page_size", slog.String("op", op), slog.String("error", err.Error()))
		response.WriteJSONError(w, log, http.StatusBadRequest, response.CodeInvalidInput, "page_size must be an integer")
		return
	}

	history, err := h.service.History(r.Context(), userID, page, pageSize)
	if err != nil {
		writeLedgerError(w, log, op, err, "Failed to retrieve transaction history")
		return
	}

	response.WriteJSONSuccess(w, log, http.StatusOK, history)
}

func writeLedgerError(w http.ResponseWriter, log *slog.Logger, op string, err error, internalMsg string) {
	if errors.Is(err, custom_err.ErrInvalidInput) {
		log.Warn("invalid input", slog.String("op", op), slog.String("error", err.Error()))
		response.WriteJSONError(w, log, http.StatusBadRequest, response.CodeInvalidInput, inputMessage(err))
		return
	}
	log.Error("ledger query failed", slog.String("op", op), slog.String("error", err.Error()))
	response.WriteInternalError(w, log, internalMsg)
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
