package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"gw-fraud-scoring/internal/api/middlew"
	"gw-fraud-scoring/internal/custom_err"
	"gw-fraud-scoring/internal/models"
	"gw-fraud-scoring/internal/service"
	"gw-fraud-scoring/pkg/response"
)

type RuleHandler struct {
	service service.RuleManager
}

func NewRuleHandler(service service.RuleManager) *RuleHandler {
	return &RuleHandler{
		service: service,
	}
}

// CreateRule godoc
// @Summary      Создать правило
// @Description  Добавляет антифрод-правило. Условие проверяется до сохранения.
// @Tags         rules
// @Accept       json
// @Produce      json
// @Param        request body models.CreateRuleRequest true "Описание правила"
// @Success      201 {object} models.FraudRule
// @Failure      400 {object} response.ErrorResponse
// @Failure      409 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Router       /rules [post]
func (h *RuleHandler) CreateRule(w http.ResponseWriter, r *http.Request) {
	const op = "handler.CreateRule"
	log := middlew.GetLogger(r.Context())

	defer r.Body.Close()

	var req models.CreateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn("invalid JSON", slog.String("op", op), slog.String("error", err.Error()))
		response.WriteJSONError(w, log, http.StatusBadRequest, response.CodeInvalidJSON, "Invalid JSON body")
		return
	}

	rule, err := h.service.Create(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, custom_err.ErrInvalidInput), errors.Is(err, custom_err.ErrInvalidCondition):
			log.Warn("invalid rule", slog.String("op", op), slog.String("error", err.Error()))
			response.WriteJSONError(w, log, http.StatusBadRequest, response.CodeInvalidInput, err.Error())
		case errors.Is(err, custom_err.ErrRuleExists):
			log.Info("rule already exists", slog.String("op", op), slog.String("rule_name", req.Name))
			response.WriteJSONError(w, log, http.StatusConflict, response.CodeRuleExists, "Rule with this name already exists")
		default:
			log.Error("failed to create rule", slog.String("op", op), slog.String("error", err.Error()))
			response.WriteInternalError(w, log, "An internal error occurred")
		}
		return
	}

	response.WriteJSONSuccess(w, log, http.StatusCreated, rule)
}

// ListRules godoc
// @Summary      Список правил
// @Description  Все правила по убыванию приоритета, затем от новых к старым
// @Tags         rules
// @Produce      json
// @Success      200 {array} models.FraudRule
// @Failure      500 {object} response.ErrorResponse
// @Router       /rules [get]
func (h *RuleHandler) ListRules(w http.ResponseWriter, r *http.Request) {
	const op = "handler.ListRules"
	log := middlew.GetLogger(r.Context())

	list, err := h.service.List(r.Context())
	if err != nil {
		log.Error("failed to list rules", slog.String("op", op), slog.String("error", err.Error()))
		response.WriteInternalError(w, log, "Failed to retrieve rules")
		return
	}
	if list == nil {
		list = []*models.FraudRule{}
	}

	response.WriteJSONSuccess(w, log, http.StatusOK, list)
}
