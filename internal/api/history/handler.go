package history

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	apperror "assetstock/internal/errors"
	"assetstock/internal/pkg/audit"
	"assetstock/internal/pkg/logger"
)

// HistoryReader define o contrato de leitura da trilha de auditoria.
type HistoryReader interface {
	List(ctx context.Context, limit int) ([]audit.Entry, error)
}

// Handler expõe a trilha de auditoria para consulta administrativa.
type Handler struct {
	Reader HistoryReader
	Logger logger.Logger
}

// NewHandler cria uma nova instância do Handler, injetando o leitor de histórico.
func NewHandler(reader HistoryReader, log logger.Logger) *Handler {
	return &Handler{
		Reader: reader,
		Logger: log,
	}
}

// ListHistoryHandler lida com a requisição GET /v1/history.
// @Summary Lista os eventos de auditoria mais recentes
// @Tags history
// @Produce json
// @Param limit query int false "Limite de resultados (padrão 100)"
// @Success 200 {array} audit.Entry "Eventos em ordem decrescente de data"
// @Failure 500 {object} domain.ErrorResponse "Erro interno do servidor"
// @Security ApiKeyAuth
// @Router /history [get]
func (h *Handler) ListHistoryHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Método não permitido", http.StatusMethodNotAllowed)
		return
	}

	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			h.writeError(w, apperror.NewValidationError("O parâmetro limit deve ser um inteiro positivo."))
			return
		}
		limit = parsed
	}

	entries, err := h.Reader.List(r.Context(), limit)
	if err != nil {
		h.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(entries); err != nil {
		h.Logger.Error("Falha ao codificar JSON de resposta", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status, category, message := apperror.MapToHTTPStatus(err)

	if status >= 500 {
		h.Logger.Error(fmt.Sprintf("Erro de Servidor: %s", category), err)
	}

	errorResponse := map[string]interface{}{
		"code":     status,
		"category": category,
		"message":  message,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorResponse)
}
