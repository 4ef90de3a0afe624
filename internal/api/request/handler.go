package request

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

// RequestService define o contrato que o Handler espera da camada de Serviço.
type RequestService interface {
	Create(ctx context.Context, userID string, input domain.RequestInput) (domain.Request, error)
	Decide(ctx context.Context, requestID, approverID string, approverRole domain.UserRole, decision domain.Decision) (domain.Request, error)
	Get(ctx context.Context, id, callerID string, callerRole domain.UserRole) (domain.Request, error)
	List(ctx context.Context, status domain.RequestStatus, callerID string, callerRole domain.UserRole) ([]domain.Request, error)
}

// DecisionRequest representa o payload de entrada de uma decisão.
type DecisionRequest struct {
	Decision domain.Decision `json:"decision"`
}

// Handler agrupa todos os métodos de Handler de requisições.
type Handler struct {
	Service RequestService
	Logger  logger.Logger
}

// NewHandler cria uma nova instância do Handler, injetando o Service e o Logger.
func NewHandler(svc RequestService, log logger.Logger) *Handler {
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

// RequestsHandler despacha GET (listagem) e POST (criação) em /v1/requests.
func (h *Handler) RequestsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listRequests(w, r)
	case http.MethodPost:
		h.createRequest(w, r)
	default:
		http.Error(w, "Método não permitido", http.StatusMethodNotAllowed)
	}
}

// RequestByIDHandler despacha GET /v1/requests/{id} e POST /v1/requests/{id}/decision.
func (h *Handler) RequestByIDHandler(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/requests/")

	if id, ok := strings.CutSuffix(path, "/decision"); ok {
		h.decideRequest(w, r, id)
		return
	}

	h.getRequest(w, r, path)
}

// createRequest lida com a requisição POST /v1/requests.
// @Summary Cria uma nova requisição de itens
// @Description Registra uma requisição pendente de retirada, empréstimo, devolução ou transferência.
// @Tags requests
// @Accept json
// @Produce json
// @Param request body domain.RequestInput true "Dados da requisição"
// @Success 201 {object} domain.Request "Requisição criada em estado pendente"
// @Failure 400 {object} domain.ErrorResponse "Payload inválido"
// @Failure 500 {object} domain.ErrorResponse "Erro interno do servidor"
// @Security ApiKeyAuth
// @Router /requests [post]
func (h *Handler) createRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims, ok := middleware.GetUserClaimsFromContext(ctx)
	if !ok {
		h.handleServiceResponse(w, r, nil, apperror.NewUnauthorizedError("Autorização necessária."), http.StatusOK)
		return
	}

	var input domain.RequestInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.handleServiceResponse(w, r, nil, apperror.NewValidationError("Payload inválido. Verifique o formato JSON."), http.StatusBadRequest)
		return
	}

	created, err := h.Service.Create(ctx, claims.UserID, input)
	if err != nil {
		h.handleServiceResponse(w, r, nil, err, http.StatusOK)
		return
	}

	h.handleServiceResponse(w, r, created, nil, http.StatusCreated)
}

// listRequests lida com a requisição GET /v1/requests.
// @Summary Lista requisições
// @Description Lista requisições filtradas por status. Usuários comuns só enxergam as próprias.
// @Tags requests
// @Produce json
// @Param status query string false "Filtro de status (pending, approved, rejected)"
// @Success 200 {array} domain.Request "Lista de requisições"
// @Failure 500 {object} domain.ErrorResponse "Erro interno do servidor"
// @Security ApiKeyAuth
// @Router /requests [get]
func (h *Handler) listRequests(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims, ok := middleware.GetUserClaimsFromContext(ctx)
	if !ok {
		h.handleServiceResponse(w, r, nil, apperror.NewUnauthorizedError("Autorização necessária."), http.StatusOK)
		return
	}

	status := domain.RequestStatus(r.URL.Query().Get("status"))

	requests, err := h.Service.List(ctx, status, claims.UserID, claims.Role)
	if err != nil {
		h.handleServiceResponse(w, r, nil, err, http.StatusOK)
		return
	}

	h.handleServiceResponse(w, r, requests, nil, http.StatusOK)
}

// getRequest lida com a requisição GET /v1/requests/{id}.
// @Summary Obtém uma requisição por ID
// @Tags requests
// @Produce json
// @Param id path string true "ID da Requisição"
// @Success 200 {object} domain.Request "Requisição encontrada"
// @Failure 404 {object} domain.ErrorResponse "Requisição não encontrada"
// @Failure 500 {object} domain.ErrorResponse "Erro interno do servidor"
// @Security ApiKeyAuth
// @Router /requests/{id} [get]
func (h *Handler) getRequest(w http.ResponseWriter, r *http.Request, id string) {
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

	req, err := h.Service.Get(ctx, id, claims.UserID, claims.Role)
	if err != nil {
		h.handleServiceResponse(w, r, nil, err, http.StatusOK)
		return
	}

	h.handleServiceResponse(w, r, req, nil, http.StatusOK)
}

// decideRequest lida com a requisição POST /v1/requests/{id}/decision.
// @Summary Aprova ou rejeita uma requisição pendente
// @Description Aplica a decisão exatamente uma vez; a aprovação executa o efeito de estoque na mesma transação.
// @Tags requests
// @Accept json
// @Produce json
// @Param id path string true "ID da Requisição"
// @Param decision body DecisionRequest true "Decisão (approve ou reject)"
// @Success 200 {object} domain.Request "Requisição decidida"
// @Failure 400 {object} domain.ErrorResponse "Payload inválido"
// @Failure 401 {object} domain.ErrorResponse "Papel sem permissão de decisão"
// @Failure 404 {object} domain.ErrorResponse "Requisição não encontrada"
// @Failure 409 {object} domain.ErrorResponse "Requisição já decidida ou estoque insuficiente"
// @Failure 500 {object} domain.ErrorResponse "Erro interno do servidor"
// @Security ApiKeyAuth
// @Router /requests/{id}/decision [post]
func (h *Handler) decideRequest(w http.ResponseWriter, r *http.Request, id string) {
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

	var body DecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.handleServiceResponse(w, r, nil, apperror.NewValidationError("Payload inválido. Verifique o formato JSON."), http.StatusBadRequest)
		return
	}

	decided, err := h.Service.Decide(ctx, id, claims.UserID, claims.Role, body.Decision)
	if err != nil {
		h.handleServiceResponse(w, r, nil, err, http.StatusOK)
		return
	}

	h.handleServiceResponse(w, r, decided, nil, http.StatusOK)
}
