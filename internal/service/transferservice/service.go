package transferservice

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"assetstock/internal/domain"
	apperror "assetstock/internal/errors"
	"assetstock/internal/pkg/database"
	"assetstock/internal/pkg/logger"
)

// StockLedger é a fatia do repositório de estoque que o coordenador usa:
// o ajuste dentro de uma transação já aberta e o descarte de cache
// pós-commit dos níveis alterados.
type StockLedger interface {
	AdjustTx(ctx context.Context, tx *sql.Tx, adj domain.StockAdjustment) (domain.StockLevel, domain.StockTransaction, error)
	Invalidate(ctx context.Context, warehouseID, itemID string)
}

// Auditor é o colaborador de auditoria (best-effort, pós-commit).
type Auditor interface {
	Record(ctx context.Context, actorID, action, entity, entityID, details string)
}

// Service coordena transferências entre armazéns: débito na origem e crédito
// no destino como uma única unidade atômica. O destino nunca é creditado sem
// o débito correspondente — a quantidade total do item entre todos os
// armazéns é invariante sob qualquer transferência, bem-sucedida ou não.
type Service struct {
	ledger   StockLedger
	txRunner database.TxRunner
	auditor  Auditor
	logger   logger.Logger
}

// NewService cria e retorna uma nova instância do Coordenador de Transferências.
func NewService(ledger StockLedger, txRunner database.TxRunner, auditor Auditor, logger logger.Logger) *Service {
	return &Service{ledger: ledger, txRunner: txRunner, auditor: auditor, logger: logger}
}

// validate aplica as regras estruturais de uma transferência.
func validate(t domain.Transfer) error {
	if t.Quantity <= 0 {
		return apperror.NewValidationError("A quantidade da transferência deve ser maior que zero.")
	}
	if _, err := uuid.Parse(t.SourceWarehouseID); err != nil {
		return apperror.NewValidationError("O ID do armazém de origem deve ser um UUID válido.")
	}
	if _, err := uuid.Parse(t.DestinationWarehouseID); err != nil {
		return apperror.NewValidationError("O ID do armazém de destino deve ser um UUID válido.")
	}
	if t.SourceWarehouseID == t.DestinationWarehouseID {
		return apperror.NewValidationError("Origem e destino da transferência devem ser armazéns distintos.")
	}
	if _, err := uuid.Parse(t.ItemID); err != nil {
		return apperror.NewValidationError("O ID do item deve ser um UUID válido.")
	}
	return nil
}

// TransferTx executa a transferência dentro da transação recebida.
// Falha em qualquer um dos dois ajustes propaga o erro e o chamador desfaz
// a transação inteira (inclusive transferências de outros itens da mesma
// requisição). O descarte de cache dos dois níveis é responsabilidade do
// dono da transação, após o commit.
func (s *Service) TransferTx(ctx context.Context, tx *sql.Tx, t domain.Transfer) (domain.TransferResult, error) {
	if err := validate(t); err != nil {
		return domain.TransferResult{}, err
	}

	// 1. Débito na origem
	_, outbound, err := s.ledger.AdjustTx(ctx, tx, domain.StockAdjustment{
		WarehouseID: t.SourceWarehouseID,
		ItemID:      t.ItemID,
		Delta:       -t.Quantity,
		ReferenceID: t.ReferenceID,
		ActorID:     t.ActorID,
	})
	if err != nil {
		return domain.TransferResult{}, err
	}

	// 2. Crédito no destino
	_, inbound, err := s.ledger.AdjustTx(ctx, tx, domain.StockAdjustment{
		WarehouseID: t.DestinationWarehouseID,
		ItemID:      t.ItemID,
		Delta:       t.Quantity,
		ReferenceID: t.ReferenceID,
		ActorID:     t.ActorID,
	})
	if err != nil {
		return domain.TransferResult{}, err
	}

	return domain.TransferResult{Outbound: outbound, Inbound: inbound}, nil
}

// Transfer executa uma transferência avulsa (fora de uma aprovação de
// requisição) em sua própria transação.
func (s *Service) Transfer(ctx context.Context, t domain.Transfer) (domain.TransferResult, error) {
	s.logger.Debug("Iniciando transferência no serviço.", map[string]interface{}{
		"source_warehouse_id":      t.SourceWarehouseID,
		"destination_warehouse_id": t.DestinationWarehouseID,
		"item_id":                  t.ItemID,
		"quantity":                 t.Quantity,
	})

	if err := validate(t); err != nil {
		return domain.TransferResult{}, err
	}

	var result domain.TransferResult
	err := s.txRunner.RunTx(ctx, func(tx *sql.Tx) error {
		var txErr error
		result, txErr = s.TransferTx(ctx, tx, t)
		return txErr
	})
	if err != nil {
		s.logger.Error("Falha na transferência entre armazéns.", err)
		return domain.TransferResult{}, err
	}

	// Cache só é descartado com a transação já commitada.
	s.ledger.Invalidate(ctx, t.SourceWarehouseID, t.ItemID)
	s.ledger.Invalidate(ctx, t.DestinationWarehouseID, t.ItemID)

	if s.auditor != nil {
		s.auditor.Record(ctx, t.ActorID, "stock_transfer", "item", t.ItemID,
			fmt.Sprintf("quantidade=%d origem=%s destino=%s", t.Quantity, t.SourceWarehouseID, t.DestinationWarehouseID))
	}

	s.logger.Info("Transferência concluída com sucesso.", map[string]interface{}{
		"item_id":  t.ItemID,
		"quantity": t.Quantity,
	})
	return result, nil
}
