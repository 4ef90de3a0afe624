package item

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"assetstock/internal/domain"
	apperror "assetstock/internal/errors"
	"assetstock/internal/pkg/logger"
)

// ItemService define o contrato que o Handler espera da camada de Serviço.
type ItemService interface {
	Create(ctx context.Context, item domain.Item) (domain.Item, error)
	GetByID(ctx context.Context, id string) (domain.Item, error)
	List(ctx context.Context) ([]domain.Item, error)
}

// Handler agrupa todos os métodos de Handler de itens.
type Handler struct {
	Service ItemService
	Logger  logger.Logger
}

// NewHandler cria uma nova instância do Handler, injetando o Service e o Logger.
func NewHandler(svc ItemService, log logger.Logger) *Handler {
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

// ItemsHandler despacha GET (listagem) e POST (criação) em /v1/items.
func (h *Handler) ItemsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listItems(w, r)
	case http.MethodPost:
		h.createItem(w, r)
	default:
		http.Error(w, "Método não permitido", http.StatusMethodNotAllowed)
	}
}

// createItem lida com a requisição POST /v1/items.
// @Summary Cria um novo item no catálogo
// @Tags items
// @Accept json
// @Produce json
// @Param item body domain.Item true "Dados do item para criação"
// @Success 201 {object} domain.Item "Item criado com sucesso"
// @Failure 400 {object} domain.ErrorResponse "Payload inválido"
// @Failure 500 {object} domain.ErrorResponse "Erro interno do servidor"
// @Security ApiKeyAuth
// @Router /items [post]
func (h *Handler) createItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var item domain.Item
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		h.handleServiceResponse(w, r, nil, apperror.NewValidationError("Payload inválido. Verifique o formato JSON."), http.StatusBadRequest)
		return
	}

	created, err := h.Service.Create(ctx, item)
	if err != nil {
		h.handleServiceResponse(w, r, nil, err, http.StatusOK)
		return
	}

	h.handleServiceResponse(w, r, created, nil, http.StatusCreated)
}

// listItems lida com a requisição GET /v1/items.
// @Summary Lista todos os itens do catálogo
// @Tags items
// @Produce json
// @Success 200 {array} domain.Item "Lista de itens"
// @Failure 500 {object} domain.ErrorResponse "Erro interno do servidor"
// @Security ApiKeyAuth
// @Router /items [get]
func (h *Handler) listItems(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	items, err := h.Service.List(ctx)
	if err != nil {
		h.handleServiceResponse(w, r, nil, err, http.StatusOK)
		return
	}

	h.handleServiceResponse(w, r, items, nil, http.StatusOK)
}

// GetItemByIDHandler lida com a requisição GET /v1/items/{id}.
// @Summary Obtém um item por ID
// @Tags items
// @Produce json
// @Param id path string true "ID do Item"
// @Success 200 {object} domain.Item "Item encontrado"
// @Failure 404 {object} domain.ErrorResponse "Item não encontrado"
// @Failure 500 {object} domain.ErrorResponse "Erro interno do servidor"
// @Security ApiKeyAuth
// @Router /items/{id} [get]
func (h *Handler) GetItemByIDHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Método não permitido", http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	id := strings.TrimPrefix(r.URL.Path, "/v1/items/")

	item, err := h.Service.GetByID(ctx, id)
	if err != nil {
		h.handleServiceResponse(w, r, nil, err, http.StatusOK)
		return
	}

	h.handleServiceResponse(w, r, item, nil, http.StatusOK)
}
