package stockrepo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"assetstock/internal/domain"
	"assetstock/internal/errors"
	"assetstock/internal/pkg/cache"
	"assetstock/internal/pkg/logger"
)

// stockLevelCacheTTL limita quanto tempo uma leitura de nível pode servir do cache.
const stockLevelCacheTTL = 30 * time.Second

// StockRepository é o dono exclusivo de stock_levels e stock_transactions.
// Nenhum outro componente muta quantidades; todo ajuste passa por aqui e
// grava exatamente uma linha no razão junto com o novo nível, na mesma
// transação.
type StockRepository struct {
	DB        *sql.DB
	Cache     cache.Client
	DBTimeout time.Duration
	logger    logger.Logger
}

// NewStockRepository cria e retorna uma nova instância do Repositório de Estoque.
func NewStockRepository(db *sql.DB, cacheClient cache.Client, dbTimeout time.Duration, logger logger.Logger) *StockRepository {
	return &StockRepository{
		DB:        db,
		Cache:     cacheClient,
		DBTimeout: dbTimeout,
		logger:    logger,
	}
}

func cacheKey(warehouseID, itemID string) string {
	return fmt.Sprintf("stock-level:%s:%s", warehouseID, itemID)
}

// GetStockLevel busca o nível de estoque de um item em um armazém,
// tentando o cache antes do DB.
func (r *StockRepository) GetStockLevel(ctx context.Context, warehouseID, itemID string) (domain.StockLevel, error) {
	r.logger.Debug("Buscando nível de estoque no repositório.", map[string]interface{}{"warehouse_id": warehouseID, "item_id": itemID})

	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	if r.Cache != nil {
		if cached, err := r.Cache.Get(ctxTimeout, cacheKey(warehouseID, itemID)); err == nil {
			var sl domain.StockLevel
			if jsonErr := json.Unmarshal([]byte(cached), &sl); jsonErr == nil {
				return sl, nil
			}
		}
	}

	query := `
        SELECT id, warehouse_id, item_id, quantity, min_stock, version, created_at, updated_at
        FROM stock_levels
        WHERE warehouse_id = $1 AND item_id = $2`

	var sl domain.StockLevel
	err := r.DB.QueryRowContext(ctxTimeout, query, warehouseID, itemID).Scan(
		&sl.ID, &sl.WarehouseID, &sl.ItemID, &sl.Quantity, &sl.MinStock, &sl.Version, &sl.CreatedAt, &sl.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		r.logger.Info("Nível de estoque não encontrado.", map[string]interface{}{"warehouse_id": warehouseID, "item_id": itemID})
		return domain.StockLevel{}, errors.NewNotFoundError(fmt.Sprintf("Estoque do item %s no armazém %s não encontrado.", itemID, warehouseID))
	}
	if err != nil {
		r.logger.Error("Falha ao buscar nível de estoque no DB.", err)
		return domain.StockLevel{}, errors.NewDBError("Falha ao buscar nível de estoque", err)
	}

	if r.Cache != nil {
		if payload, jsonErr := json.Marshal(sl); jsonErr == nil {
			r.Cache.Set(ctxTimeout, cacheKey(warehouseID, itemID), string(payload), stockLevelCacheTTL)
		}
	}

	return sl, nil
}

// AdjustTx aplica um ajuste assinado dentro da transação recebida.
// A linha de stock_levels é lida com FOR UPDATE, de modo que ajustes
// concorrentes sobre o mesmo par (armazém, item) serializam e nunca leem
// a mesma quantidade obsoleta. Se o resultado ficaria negativo, nada é
// gravado e o chamador deve desfazer a transação inteira.
// O cache do nível NÃO é descartado aqui: antes do commit uma leitura
// concorrente poderia recachear a quantidade antiga. O chamador deve
// invocar Invalidate após commitar.
func (r *StockRepository) AdjustTx(ctx context.Context, tx *sql.Tx, adj domain.StockAdjustment) (domain.StockLevel, domain.StockTransaction, error) {
	r.logger.Debug("Aplicando ajuste de estoque na transação corrente.", map[string]interface{}{
		"warehouse_id": adj.WarehouseID,
		"item_id":      adj.ItemID,
		"delta":        adj.Delta,
	})

	now := time.Now().UTC()

	// 1. Obter o nível atual com bloqueio de linha
	var current domain.StockLevel
	querySelect := `
        SELECT id, warehouse_id, item_id, quantity, min_stock, version, created_at, updated_at
        FROM stock_levels
        WHERE warehouse_id = $1 AND item_id = $2 FOR UPDATE`

	err := tx.QueryRowContext(ctx, querySelect, adj.WarehouseID, adj.ItemID).Scan(
		&current.ID, &current.WarehouseID, &current.ItemID, &current.Quantity,
		&current.MinStock, &current.Version, &current.CreatedAt, &current.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		// Criação preguiçosa: a linha nasce no primeiro movimento de entrada.
		if adj.Delta < 0 {
			r.logger.Warn("Saída sobre par (armazém, item) sem estoque registrado.", map[string]interface{}{
				"warehouse_id": adj.WarehouseID, "item_id": adj.ItemID, "delta": adj.Delta,
			})
			return domain.StockLevel{}, domain.StockTransaction{}, errors.NewInsufficientStockError(
				fmt.Sprintf("Item %s sem estoque no armazém %s.", adj.ItemID, adj.WarehouseID))
		}

		current = domain.StockLevel{
			ID:          uuid.New().String(),
			WarehouseID: adj.WarehouseID,
			ItemID:      adj.ItemID,
			Quantity:    adj.Delta,
			Version:     1,
			CreatedAt:   now,
			UpdatedAt:   now,
		}

		queryInsert := `
            INSERT INTO stock_levels (id, warehouse_id, item_id, quantity, version, created_at, updated_at)
            VALUES ($1, $2, $3, $4, $5, $6, $7)`

		if _, err := tx.ExecContext(ctx, queryInsert,
			current.ID, current.WarehouseID, current.ItemID, current.Quantity, current.Version, now, now,
		); err != nil {
			r.logger.Error("Falha ao inserir novo nível de estoque.", err)
			return domain.StockLevel{}, domain.StockTransaction{}, errors.NewDBError("Falha ao inserir novo nível de estoque", err)
		}

		txn, err := r.insertTransaction(ctx, tx, adj, now)
		if err != nil {
			return domain.StockLevel{}, domain.StockTransaction{}, err
		}

		return current, txn, nil

	} else if err != nil {
		r.logger.Error("Falha ao selecionar nível de estoque para ajuste.", err)
		return domain.StockLevel{}, domain.StockTransaction{}, errors.NewDBError("Falha ao buscar estoque para ajuste", err)
	}

	// 2. Aplicar o delta e validar a invariante de não-negatividade
	newQuantity := current.Quantity + adj.Delta
	if newQuantity < 0 {
		r.logger.Warn("Ajuste deixaria o estoque negativo.", map[string]interface{}{
			"warehouse_id":     adj.WarehouseID,
			"item_id":          adj.ItemID,
			"current_quantity": current.Quantity,
			"delta":            adj.Delta,
		})
		return domain.StockLevel{}, domain.StockTransaction{}, errors.NewInsufficientStockError(
			fmt.Sprintf("Saída de %d excede o estoque atual (%d) do item %s.", -adj.Delta, current.Quantity, adj.ItemID))
	}

	// 3. Atualizar o nível (a linha está bloqueada; version acompanha a mudança)
	queryUpdate := `
        UPDATE stock_levels
        SET quantity = $1, version = $2, updated_at = $3
        WHERE id = $4`

	if _, err := tx.ExecContext(ctx, queryUpdate, newQuantity, current.Version+1, now, current.ID); err != nil {
		r.logger.Error("Falha ao atualizar nível de estoque.", err)
		return domain.StockLevel{}, domain.StockTransaction{}, errors.NewDBError("Falha ao atualizar estoque", err)
	}

	// 4. Gravar a linha do razão (append-only, mesma transação)
	txn, err := r.insertTransaction(ctx, tx, adj, now)
	if err != nil {
		return domain.StockLevel{}, domain.StockTransaction{}, err
	}

	current.Quantity = newQuantity
	current.Version++
	current.UpdatedAt = now

	return current, txn, nil
}

// Adjust aplica um ajuste isolado (fora de uma aprovação) na própria transação.
func (r *StockRepository) Adjust(ctx context.Context, adj domain.StockAdjustment) (domain.StockLevel, domain.StockTransaction, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	tx, err := r.DB.BeginTx(ctxTimeout, nil)
	if err != nil {
		r.logger.Error("Falha ao iniciar transação para ajuste de estoque.", err)
		return domain.StockLevel{}, domain.StockTransaction{}, errors.NewDBError("Falha ao iniciar transação", err)
	}

	level, txn, err := r.AdjustTx(ctxTimeout, tx, adj)
	if err != nil {
		tx.Rollback()
		return domain.StockLevel{}, domain.StockTransaction{}, err
	}

	if commitErr := tx.Commit(); commitErr != nil {
		r.logger.Error("Falha ao commitar transação de ajuste de estoque.", commitErr)
		return domain.StockLevel{}, domain.StockTransaction{}, errors.NewDBError("Falha ao commitar transação", commitErr)
	}

	r.Invalidate(ctx, adj.WarehouseID, adj.ItemID)

	r.logger.Info("Estoque ajustado com sucesso.", map[string]interface{}{
		"warehouse_id": adj.WarehouseID,
		"item_id":      adj.ItemID,
		"new_quantity": level.Quantity,
		"new_version":  level.Version,
	})
	return level, txn, nil
}

// insertTransaction grava a linha imutável do razão derivada do ajuste.
func (r *StockRepository) insertTransaction(ctx context.Context, tx *sql.Tx, adj domain.StockAdjustment, now time.Time) (domain.StockTransaction, error) {
	direction := domain.DirectionInbound
	magnitude := adj.Delta
	if adj.Delta < 0 {
		direction = domain.DirectionOutbound
		magnitude = -adj.Delta
	}

	txn := domain.StockTransaction{
		ID:          uuid.New().String(),
		WarehouseID: adj.WarehouseID,
		ItemID:      adj.ItemID,
		Quantity:    magnitude,
		Direction:   direction,
		ReferenceID: adj.ReferenceID,
		ActorID:     adj.ActorID,
		CreatedAt:   now,
	}

	query := `
        INSERT INTO stock_transactions (id, warehouse_id, item_id, quantity, direction, reference_id, actor_id, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	if _, err := tx.ExecContext(ctx, query,
		txn.ID, txn.WarehouseID, txn.ItemID, txn.Quantity, txn.Direction, txn.ReferenceID, txn.ActorID, txn.CreatedAt,
	); err != nil {
		r.logger.Error("Falha ao gravar transação de estoque no razão.", err)
		return domain.StockTransaction{}, errors.NewDBError("Falha ao gravar transação de estoque", err)
	}

	return txn, nil
}

// Invalidate descarta a entrada de cache do nível (best-effort).
// Deve ser chamado somente após o commit da transação que alterou o nível.
func (r *StockRepository) Invalidate(ctx context.Context, warehouseID, itemID string) {
	if r.Cache != nil {
		r.Cache.Delete(ctx, cacheKey(warehouseID, itemID))
	}
}

// ListBelowMin devolve todos os níveis com limiar definido e quantidade
// igual ou abaixo dele (candidatos a alerta de estoque baixo).
func (r *StockRepository) ListBelowMin(ctx context.Context) ([]domain.StockLevel, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	query := `
        SELECT id, warehouse_id, item_id, quantity, min_stock, version, created_at, updated_at
        FROM stock_levels
        WHERE min_stock IS NOT NULL AND quantity <= min_stock`

	rows, err := r.DB.QueryContext(ctxTimeout, query)
	if err != nil {
		r.logger.Error("Falha ao buscar níveis abaixo do mínimo.", err)
		return nil, errors.NewDBError("Falha ao buscar níveis abaixo do mínimo", err)
	}
	defer rows.Close()

	var levels []domain.StockLevel
	for rows.Next() {
		var sl domain.StockLevel
		if err := rows.Scan(&sl.ID, &sl.WarehouseID, &sl.ItemID, &sl.Quantity, &sl.MinStock, &sl.Version, &sl.CreatedAt, &sl.UpdatedAt); err != nil {
			r.logger.Error("Falha ao mapear nível de estoque na iteração.", err)
			return nil, errors.NewDBError("Falha ao mapear níveis do DB", err)
		}
		levels = append(levels, sl)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.NewDBError("Erro após iteração de níveis", err)
	}

	return levels, nil
}

// SetMinStock define (ou remove) o limiar de alerta de um par (armazém, item).
func (r *StockRepository) SetMinStock(ctx context.Context, warehouseID, itemID string, minStock *int) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	query := `
        UPDATE stock_levels
        SET min_stock = $1, updated_at = $2
        WHERE warehouse_id = $3 AND item_id = $4`

	result, err := r.DB.ExecContext(ctxTimeout, query, minStock, time.Now().UTC(), warehouseID, itemID)
	if err != nil {
		return errors.NewDBError("Falha ao atualizar limiar de estoque", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewDBError("Falha ao verificar linhas afetadas", err)
	}
	if rowsAffected == 0 {
		return errors.NewNotFoundError(fmt.Sprintf("Estoque do item %s no armazém %s não encontrado.", itemID, warehouseID))
	}

	r.Invalidate(ctxTimeout, warehouseID, itemID)
	return nil
}

// ListTransactions devolve as linhas mais recentes do razão de um par (armazém, item).
func (r *StockRepository) ListTransactions(ctx context.Context, warehouseID, itemID string, limit int) ([]domain.StockTransaction, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	if limit <= 0 || limit > 200 {
		limit = 50
	}

	query := `
        SELECT id, warehouse_id, item_id, quantity, direction, reference_id, actor_id, created_at
        FROM stock_transactions
        WHERE warehouse_id = $1 AND item_id = $2
        ORDER BY created_at DESC
        LIMIT $3`

	rows, err := r.DB.QueryContext(ctxTimeout, query, warehouseID, itemID, limit)
	if err != nil {
		r.logger.Error("Falha ao buscar transações de estoque.", err)
		return nil, errors.NewDBError("Falha ao buscar transações de estoque", err)
	}
	defer rows.Close()

	var txns []domain.StockTransaction
	for rows.Next() {
		var t domain.StockTransaction
		if err := rows.Scan(&t.ID, &t.WarehouseID, &t.ItemID, &t.Quantity, &t.Direction, &t.ReferenceID, &t.ActorID, &t.CreatedAt); err != nil {
			return nil, errors.NewDBError("Falha ao mapear transações do DB", err)
		}
		txns = append(txns, t)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.NewDBError("Erro após iteração de transações", err)
	}

	return txns, nil
}

// SumTransactions soma os deltas assinados do razão para um par (armazém, item).
// O valor deve sempre coincidir com StockLevel.Quantity (invariante reconstruível).
func (r *StockRepository) SumTransactions(ctx context.Context, warehouseID, itemID string) (int, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	query := `
        SELECT COALESCE(SUM(CASE WHEN direction = 'inbound' THEN quantity ELSE -quantity END), 0)
        FROM stock_transactions
        WHERE warehouse_id = $1 AND item_id = $2`

	var sum int
	if err := r.DB.QueryRowContext(ctxTimeout, query, warehouseID, itemID).Scan(&sum); err != nil {
		r.logger.Error("Falha ao somar transações do razão.", err)
		return 0, errors.NewDBError("Falha ao somar transações do razão", err)
	}

	return sum, nil
}
