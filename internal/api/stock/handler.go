package stock

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"assetstock/internal/domain"
	apperror "assetstock/internal/errors"
	"assetstock/internal/pkg/logger"
	"assetstock/internal/pkg/middleware"
)

// StockService define o contrato que o Handler espera da camada de Serviço.
type StockService interface {
	Adjust(ctx context.Context, adj domain.StockAdjustment) (domain.StockLevel, domain.StockTransaction, error)
	GetLevel(ctx context.Context, warehouseID, itemID string) (domain.StockLevel, error)
	ListTransactions(ctx context.Context, warehouseID, itemID string, limit int) ([]domain.StockTransaction, error)
	SetMinStock(ctx context.Context, warehouseID, itemID string, minStock *int) error
	VerifyLedger(ctx context.Context, warehouseID, itemID string) (int, error)
}

// TransferService define o contrato do coordenador de transferências.
type TransferService interface {
	Transfer(ctx context.Context, t domain.Transfer) (domain.TransferResult, error)
}

// AdjustRequest representa o payload de entrada de um ajuste manual de estoque.
type AdjustRequest struct {
	WarehouseID string `json:"warehouse_id"`
	ItemID      string `json:"item_id"`
	Delta       int    `json:"delta"`
	ReferenceID string `json:"reference_id"`
}

// TransferRequest representa o payload de entrada de uma transferência direta.
type TransferRequest struct {
	SourceWarehouseID      string `json:"source_warehouse_id"`
	DestinationWarehouseID string `json:"destination_warehouse_id"`
	ItemID                 string `json:"item_id"`
	Quantity               int    `json:"quantity"`
	ReferenceID            string `json:"reference_id"`
}

// MinStockRequest representa o payload de definição de limiar mínimo.
type MinStockRequest struct {
	WarehouseID string `json:"warehouse_id"`
	ItemID      string `json:"item_id"`
	MinStock    *int   `json:"min_stock"`
}

// AdjustResponse devolve o nível pós-ajuste e a transação registrada.
type AdjustResponse struct {
	Level       domain.StockLevel       `json:"level"`
	Transaction domain.StockTransaction `json:"transaction"`
}

// Handler agrupa todos os métodos de Handler de estoque.
type Handler struct {
	Service   StockService
	Transfers TransferService
	Logger    logger.Logger
}

// NewHandler cria uma nova instância do Handler, injetando os Services e o Logger.
func NewHandler(svc StockService, transfers TransferService, log logger.Logger) *Handler {
	return &Handler{
		Service:   svc,
		Transfers: transfers,
		Logger:    log,
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

// AdjustStockHandler lida com a requisição POST /v1/stock/adjust.
// @Summary Ajusta o estoque de um item em um armazém
// @Description Aplica um delta atômico ao nível de estoque e registra a transação correspondente.
// @Tags stock
// @Accept json
// @Produce json
// @Param adjustment body AdjustRequest true "Dados do ajuste"
// @Success 200 {object} AdjustResponse "Nível atualizado e transação registrada"
// @Failure 400 {object} domain.ErrorResponse "Payload inválido"
// @Failure 409 {object} domain.ErrorResponse "Estoque insuficiente"
// @Failure 500 {object} domain.ErrorResponse "Erro interno do servidor"
// @Security ApiKeyAuth
// @Router /stock/adjust [post]
func (h *Handler) AdjustStockHandler(w http.ResponseWriter, r *http.Request) {
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

	var req AdjustRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.handleServiceResponse(w, r, nil, apperror.NewValidationError("Payload inválido. Verifique o formato JSON."), http.StatusBadRequest)
		return
	}

	level, transaction, err := h.Service.Adjust(ctx, domain.StockAdjustment{
		WarehouseID: req.WarehouseID,
		ItemID:      req.ItemID,
		Delta:       req.Delta,
		ReferenceID: req.ReferenceID,
		ActorID:     claims.UserID,
	})
	if err != nil {
		h.handleServiceResponse(w, r, nil, err, http.StatusOK)
		return
	}

	h.handleServiceResponse(w, r, AdjustResponse{Level: level, Transaction: transaction}, nil, http.StatusOK)
}

// TransferStockHandler lida com a requisição POST /v1/stock/transfer.
// @Summary Transfere estoque entre dois armazéns
// @Description Debita a origem e credita o destino em uma única transação, preservando o total.
// @Tags stock
// @Accept json
// @Produce json
// @Param transfer body TransferRequest true "Dados da transferência"
// @Success 200 {object} domain.TransferResult "Transações de saída e entrada"
// @Failure 400 {object} domain.ErrorResponse "Payload inválido"
// @Failure 409 {object} domain.ErrorResponse "Estoque insuficiente na origem"
// @Failure 500 {object} domain.ErrorResponse "Erro interno do servidor"
// @Security ApiKeyAuth
// @Router /stock/transfer [post]
func (h *Handler) TransferStockHandler(w http.ResponseWriter, r *http.Request) {
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

	var req TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.handleServiceResponse(w, r, nil, apperror.NewValidationError("Payload inválido. Verifique o formato JSON."), http.StatusBadRequest)
		return
	}

	result, err := h.Transfers.Transfer(ctx, domain.Transfer{
		SourceWarehouseID:      req.SourceWarehouseID,
		DestinationWarehouseID: req.DestinationWarehouseID,
		ItemID:                 req.ItemID,
		Quantity:               req.Quantity,
		ReferenceID:            req.ReferenceID,
		ActorID:                claims.UserID,
	})
	if err != nil {
		h.handleServiceResponse(w, r, nil, err, http.StatusOK)
		return
	}

	h.handleServiceResponse(w, r, result, nil, http.StatusOK)
}

// GetStockLevelHandler lida com a requisição GET /v1/stock/level.
// @Summary Consulta o nível de estoque de um item em um armazém
// @Tags stock
// @Produce json
// @Param warehouse_id query string true "ID do Armazém"
// @Param item_id query string true "ID do Item"
// @Success 200 {object} domain.StockLevel "Nível de estoque"
// @Failure 404 {object} domain.ErrorResponse "Nível não encontrado"
// @Failure 500 {object} domain.ErrorResponse "Erro interno do servidor"
// @Security ApiKeyAuth
// @Router /stock/level [get]
func (h *Handler) GetStockLevelHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Método não permitido", http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	warehouseID := r.URL.Query().Get("warehouse_id")
	itemID := r.URL.Query().Get("item_id")

	level, err := h.Service.GetLevel(ctx, warehouseID, itemID)
	if err != nil {
		h.handleServiceResponse(w, r, nil, err, http.StatusOK)
		return
	}

	h.handleServiceResponse(w, r, level, nil, http.StatusOK)
}

// ListTransactionsHandler lida com a requisição GET /v1/stock/transactions.
// @Summary Lista as transações de estoque de um item em um armazém
// @Tags stock
// @Produce json
// @Param warehouse_id query string true "ID do Armazém"
// @Param item_id query string true "ID do Item"
// @Param limit query int false "Limite de resultados (padrão 50)"
// @Success 200 {array} domain.StockTransaction "Transações em ordem decrescente de criação"
// @Failure 500 {object} domain.ErrorResponse "Erro interno do servidor"
// @Security ApiKeyAuth
// @Router /stock/transactions [get]
func (h *Handler) ListTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Método não permitido", http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	warehouseID := r.URL.Query().Get("warehouse_id")
	itemID := r.URL.Query().Get("item_id")

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			h.handleServiceResponse(w, r, nil, apperror.NewValidationError("O parâmetro limit deve ser um inteiro positivo."), http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	transactions, err := h.Service.ListTransactions(ctx, warehouseID, itemID, limit)
	if err != nil {
		h.handleServiceResponse(w, r, nil, err, http.StatusOK)
		return
	}

	h.handleServiceResponse(w, r, transactions, nil, http.StatusOK)
}

// SetMinStockHandler lida com a requisição PUT /v1/stock/min.
// @Summary Define o limiar mínimo de estoque de um item em um armazém
// @Tags stock
// @Accept json
// @Param threshold body MinStockRequest true "Limiar mínimo (null desabilita o alerta)"
// @Success 204 "Nenhum conteúdo"
// @Failure 400 {object} domain.ErrorResponse "Payload inválido"
// @Failure 500 {object} domain.ErrorResponse "Erro interno do servidor"
// @Security ApiKeyAuth
// @Router /stock/min [put]
func (h *Handler) SetMinStockHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "Método não permitido", http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	var req MinStockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.handleServiceResponse(w, r, nil, apperror.NewValidationError("Payload inválido. Verifique o formato JSON."), http.StatusBadRequest)
		return
	}

	if err := h.Service.SetMinStock(ctx, req.WarehouseID, req.ItemID, req.MinStock); err != nil {
		h.handleServiceResponse(w, r, nil, err, http.StatusOK)
		return
	}

	h.handleServiceResponse(w, r, nil, nil, http.StatusNoContent)
}

// VerifyLedgerHandler lida com a requisição GET /v1/stock/verify.
// @Summary Verifica a consistência entre o nível de estoque e o log de transações
// @Description Recalcula o saldo a partir do log e compara com o nível corrente.
// @Tags stock
// @Produce json
// @Param warehouse_id query string true "ID do Armazém"
// @Param item_id query string true "ID do Item"
// @Success 200 {object} map[string]int "Saldo recalculado"
// @Failure 409 {object} domain.ErrorResponse "Divergência entre nível e log"
// @Failure 500 {object} domain.ErrorResponse "Erro interno do servidor"
// @Security ApiKeyAuth
// @Router /stock/verify [get]
func (h *Handler) VerifyLedgerHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Método não permitido", http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	warehouseID := r.URL.Query().Get("warehouse_id")
	itemID := r.URL.Query().Get("item_id")

	balance, err := h.Service.VerifyLedger(ctx, warehouseID, itemID)
	if err != nil {
		h.handleServiceResponse(w, r, nil, err, http.StatusOK)
		return
	}

	h.handleServiceResponse(w, r, map[string]int{"balance": balance}, nil, http.StatusOK)
}
