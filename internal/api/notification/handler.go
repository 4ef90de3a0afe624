package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"assetstock/internal/domain"
	apperror "assetstock/internal/errors"
	"assetstock/internal/pkg/logger"
	"assetstock/internal/pkg/middleware"
)

// NotificationService define o contrato que o Handler espera da camada de Serviço.
type NotificationService interface {
	ListUnread(ctx context.Context, userID string) ([]domain.Notification, error)
	CountUnread(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, id, userID string) error
	CheckLowStock(ctx context.Context) (int, error)
}

// Handler agrupa todos os métodos de Handler de notificações.
type Handler struct {
	Service NotificationService
	Logger  logger.Logger
}

// NewHandler cria uma nova instância do Handler, injetando o Service e o Logger.
func NewHandler(svc NotificationService, log logger.Logger) *Handler {
	return &Handler{
		Service: svc,
		Logger:  log,
	}
}

// handleServiceResponse processa erros de serviço e envia respostas padronizadas ao cliente.
func (h *Handler) handleServiceResponse(w http.ResponseWriter, r *http.Request, data interface{}, err error, successStatus int) {
	if err == nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(successStatus)
		if data != nil {
			if jsonErr := json.NewEncoder(w).Encode(data); jsonErr != nil {
				h.Logger.Error("Falha ao codificar JSON de resposta", jsonErr)
				http.Error(w, "Erro ao codificar resposta", http.StatusInternalServerError)
			}
		}
		return
	}

	status, category, message := apperror.MapToHTTPStatus(err)

	if status >= 500 {
		h.Logger.Error(fmt.Sprintf("Erro de Servidor: %s", category), err)
	} else {
		h.Logger.Debug(fmt.Sprintf("Requisição rejeitada com status %d. Categoria: %s", status, category), map[string]interface{}{"path": r.URL.Path})
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

// ListUnreadHandler lida com a requisição GET /v1/notifications.
// @Summary Lista as notificações não lidas do usuário autenticado
// @Tags notifications
// @Produce json
// @Success 200 {array} domain.Notification "Notificações não lidas"
// @Failure 500 {object} domain.ErrorResponse "Erro interno do servidor"
// @Security ApiKeyAuth
// @Router /notifications [get]
func (h *Handler) ListUnreadHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Método não permitido", http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	claims, ok := middleware.GetUserClaimsFromContext(ctx)
	if !ok {
		h.handleServiceResponse(w, r, nil, apperror.NewUnauthorizedError("Autorização necessária."), http.StatusOK)
		return
	}

	notifications, err := h.Service.ListUnread(ctx, claims.UserID)
	if err != nil {
		h.handleServiceResponse(w, r, nil, err, http.StatusOK)
		return
	}

	h.handleServiceResponse(w, r, notifications, nil, http.StatusOK)
}

// CountUnreadHandler lida com a requisição GET /v1/notifications/count.
// @Summary Conta as notificações não lidas do usuário autenticado
// @Tags notifications
// @Produce json
// @Success 200 {object} map[string]int "Contagem de não lidas"
// @Failure 500 {object} domain.ErrorResponse "Erro interno do servidor"
// @Security ApiKeyAuth
// @Router /notifications/count [get]
func (h *Handler) CountUnreadHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Método não permitido", http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	claims, ok := middleware.GetUserClaimsFromContext(ctx)
	if !ok {
		h.handleServiceResponse(w, r, nil, apperror.NewUnauthorizedError("Autorização necessária."), http.StatusOK)
		return
	}

	count, err := h.Service.CountUnread(ctx, claims.UserID)
	if err != nil {
		h.handleServiceResponse(w, r, nil, err, http.StatusOK)
		return
	}

	h.handleServiceResponse(w, r, map[string]int{"count": count}, nil, http.StatusOK)
}

// MarkReadHandler lida com a requisição POST /v1/notifications/{id}/read.
// @Summary Marca uma notificação do usuário autenticado como lida
// @Description Marcar como lida reabilita alertas futuros para a mesma condição.
// @Tags notifications
// @Param id path string true "ID da Notificação"
// @Success 204 "Nenhum conteúdo"
// @Failure 404 {object} domain.ErrorResponse "Notificação não encontrada"
// @Failure 500 {object} domain.ErrorResponse "Erro interno do servidor"
// @Security ApiKeyAuth
// @Router /notifications/{id}/read [post]
func (h *Handler) MarkReadHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Método não permitido", http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	claims, ok := middleware.GetUserClaimsFromContext(ctx)
	if !ok {
		h.handleServiceResponse(w, r, nil, apperror.NewUnauthorizedError("Autorização necessária."), http.StatusOK)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/v1/notifications/")
	id := strings.TrimSuffix(path, "/read")

	if err := h.Service.MarkRead(ctx, id, claims.UserID); err != nil {
		h.handleServiceResponse(w, r, nil, err, http.StatusOK)
		return
	}

	h.handleServiceResponse(w, r, nil, nil, http.StatusNoContent)
}

// LowStockCheckHandler lida com a requisição POST /v1/notifications/low-stock-check.
// Dispara manualmente a varredura de estoque baixo, útil após cargas em massa.
// @Summary Dispara a varredura manual de estoque baixo
// @Tags notifications
// @Produce json
// @Success 200 {object} map[string]int "Quantidade de alertas criados"
// @Failure 500 {object} domain.ErrorResponse "Erro interno do servidor"
// @Security ApiKeyAuth
// @Router /notifications/low-stock-check [post]
func (h *Handler) LowStockCheckHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Método não permitido", http.StatusMethodNotAllowed)
		return
	}

	created, err := h.Service.CheckLowStock(r.Context())
	if err != nil {
		h.handleServiceResponse(w, r, nil, err, http.StatusOK)
		return
	}

	h.handleServiceResponse(w, r, map[string]int{"created": created}, nil, http.StatusOK)
}
