package stockservice

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"assetstock/internal/domain"
	apperror "assetstock/internal/errors"
	"assetstock/internal/pkg/logger"
)

// StockRepository define o contrato que o Serviço de Estoque espera da camada de Persistência.
type StockRepository interface {
	GetStockLevel(ctx context.Context, warehouseID, itemID string) (domain.StockLevel, error)
	Adjust(ctx context.Context, adj domain.StockAdjustment) (domain.StockLevel, domain.StockTransaction, error)
	ListTransactions(ctx context.Context, warehouseID, itemID string, limit int) ([]domain.StockTransaction, error)
	SumTransactions(ctx context.Context, warehouseID, itemID string) (int, error)
	SetMinStock(ctx context.Context, warehouseID, itemID string, minStock *int) error
}

// Auditor é o colaborador de auditoria (best-effort, pós-commit).
type Auditor interface {
	Record(ctx context.Context, actorID, action, entity, entityID, details string)
}

// Service expõe as operações diretas sobre o razão de estoque.
type Service struct {
	repo    StockRepository
	auditor Auditor
	logger  logger.Logger
}

// NewService cria e retorna uma nova instância do Serviço de Estoque.
func NewService(repo StockRepository, auditor Auditor, logger logger.Logger) *Service {
	return &Service{repo: repo, auditor: auditor, logger: logger}
}

// Adjust aplica um ajuste assinado ao nível de estoque de um item em um armazém.
func (s *Service) Adjust(ctx context.Context, adj domain.StockAdjustment) (domain.StockLevel, domain.StockTransaction, error) {
	s.logger.Debug("Iniciando ajuste de estoque no serviço.", map[string]interface{}{
		"warehouse_id": adj.WarehouseID,
		"item_id":      adj.ItemID,
		"delta":        adj.Delta,
	})

	if adj.Delta == 0 {
		return domain.StockLevel{}, domain.StockTransaction{}, apperror.NewValidationError("O ajuste de estoque (delta) não pode ser zero.")
	}
	if _, err := uuid.Parse(adj.WarehouseID); err != nil {
		return domain.StockLevel{}, domain.StockTransaction{}, apperror.NewValidationError("O ID do armazém deve ser um UUID válido.")
	}
	if _, err := uuid.Parse(adj.ItemID); err != nil {
		return domain.StockLevel{}, domain.StockTransaction{}, apperror.NewValidationError("O ID do item deve ser um UUID válido.")
	}

	level, txn, err := s.repo.Adjust(ctx, adj)
	if err != nil {
		s.logger.Error("Falha ao ajustar estoque no repositório.", err)
		return domain.StockLevel{}, domain.StockTransaction{}, err
	}

	if s.auditor != nil {
		s.auditor.Record(ctx, adj.ActorID, "stock_adjust", "stock_level", level.ID,
			fmt.Sprintf("delta=%d quantidade=%d", adj.Delta, level.Quantity))
	}

	s.logger.Info("Estoque ajustado com sucesso.", map[string]interface{}{
		"warehouse_id": level.WarehouseID,
		"item_id":      level.ItemID,
		"new_quantity": level.Quantity,
		"new_version":  level.Version,
	})
	return level, txn, nil
}

// GetLevel devolve o nível de estoque corrente de um par (armazém, item).
func (s *Service) GetLevel(ctx context.Context, warehouseID, itemID string) (domain.StockLevel, error) {
	if _, err := uuid.Parse(warehouseID); err != nil {
		return domain.StockLevel{}, apperror.NewValidationError("O ID do armazém deve ser um UUID válido.")
	}
	if _, err := uuid.Parse(itemID); err != nil {
		return domain.StockLevel{}, apperror.NewValidationError("O ID do item deve ser um UUID válido.")
	}

	return s.repo.GetStockLevel(ctx, warehouseID, itemID)
}

// ListTransactions devolve as linhas mais recentes do razão de um par (armazém, item).
func (s *Service) ListTransactions(ctx context.Context, warehouseID, itemID string, limit int) ([]domain.StockTransaction, error) {
	if _, err := uuid.Parse(warehouseID); err != nil {
		return nil, apperror.NewValidationError("O ID do armazém deve ser um UUID válido.")
	}
	if _, err := uuid.Parse(itemID); err != nil {
		return nil, apperror.NewValidationError("O ID do item deve ser um UUID válido.")
	}

	return s.repo.ListTransactions(ctx, warehouseID, itemID, limit)
}

// SetMinStock define o limiar de alerta de estoque baixo de um par (armazém, item).
func (s *Service) SetMinStock(ctx context.Context, warehouseID, itemID string, minStock *int) error {
	if minStock != nil && *minStock < 0 {
		return apperror.NewValidationError("O limiar mínimo de estoque não pode ser negativo.")
	}

	return s.repo.SetMinStock(ctx, warehouseID, itemID, minStock)
}

// VerifyLedger reconstrói a quantidade a partir do razão e compara com o
// nível corrente. Uma divergência indica corrupção e é reportada como conflito.
func (s *Service) VerifyLedger(ctx context.Context, warehouseID, itemID string) (int, error) {
	level, err := s.repo.GetStockLevel(ctx, warehouseID, itemID)
	if err != nil {
		return 0, err
	}

	sum, err := s.repo.SumTransactions(ctx, warehouseID, itemID)
	if err != nil {
		return 0, err
	}

	if sum != level.Quantity {
		s.logger.Warn("Divergência entre razão e nível de estoque.", map[string]interface{}{
			"warehouse_id": warehouseID,
			"item_id":      itemID,
			"ledger_sum":   sum,
			"quantity":     level.Quantity,
		})
		return sum, apperror.NewConflictError(
			fmt.Sprintf("Soma do razão (%d) difere da quantidade corrente (%d).", sum, level.Quantity))
	}

	return sum, nil
}
