package overdue

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	apperror "assetstock/internal/errors"
	"assetstock/internal/pkg/logger"
	"assetstock/internal/service/overdueservice"
)

// OverdueService define o contrato que o Handler espera do monitor de atrasos.
type OverdueService interface {
	Scan(ctx context.Context, now time.Time) (overdueservice.ScanResult, error)
}

// ScanResponse é o corpo devolvido pelo endpoint de cron.
type ScanResponse struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Flagged   int       `json:"flagged"`
}

// Handler expõe a varredura de atrasos como endpoint de cron externo,
// protegido por segredo compartilhado em vez de JWT.
type Handler struct {
	Service    OverdueService
	CronSecret string
	Logger     logger.Logger
}

// NewHandler cria uma nova instância do Handler, injetando o Service e o segredo de cron.
func NewHandler(svc OverdueService, cronSecret string, log logger.Logger) *Handler {
	return &Handler{
		Service:    svc,
		CronSecret: cronSecret,
		Logger:     log,
	}
}

// CheckOverdueHandler lida com a requisição GET /v1/cron/check-overdue.
// @Summary Sinaliza empréstimos em atraso
// @Description Varre empréstimos aprovados com prazo vencido e os sinaliza de forma idempotente.
// @Tags cron
// @Produce json
// @Success 200 {object} ScanResponse "Resumo da varredura"
// @Failure 401 {object} domain.ErrorResponse "Segredo de cron ausente ou inválido"
// @Failure 500 {object} domain.ErrorResponse "Erro interno do servidor"
// @Router /cron/check-overdue [get]
func (h *Handler) CheckOverdueHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Método não permitido", http.StatusMethodNotAllowed)
		return
	}

	authHeader := r.Header.Get("Authorization")
	secret, ok := strings.CutPrefix(authHeader, "Bearer ")
	if !ok || subtle.ConstantTimeCompare([]byte(secret), []byte(h.CronSecret)) != 1 {
		h.Logger.Warn("Chamada de cron rejeitada por segredo inválido.", map[string]interface{}{"path": r.URL.Path})
		h.writeError(w, apperror.NewUnauthorizedError("Segredo de cron ausente ou inválido."))
		return
	}

	result, err := h.Service.Scan(r.Context(), time.Now().UTC())
	if err != nil {
		h.writeError(w, err)
		return
	}

	response := ScanResponse{
		Success:   true,
		Message:   fmt.Sprintf("%d empréstimo(s) sinalizado(s) em atraso.", result.Flagged),
		Timestamp: result.Timestamp,
		Flagged:   result.Flagged,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
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
