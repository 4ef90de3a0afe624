package itemrepo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"assetstock/internal/domain"
	"assetstock/internal/errors"
	"assetstock/internal/pkg/logger"
)

// ItemRepository implementa a persistência do catálogo de itens.
type ItemRepository struct {
	DB        *sql.DB
	DBTimeout time.Duration
	logger    logger.Logger
}

// NewItemRepository cria e retorna uma nova instância do Repositório de Itens.
func NewItemRepository(db *sql.DB, dbTimeout time.Duration, logger logger.Logger) *ItemRepository {
	return &ItemRepository{
		DB:        db,
		DBTimeout: dbTimeout,
		logger:    logger,
	}
}

// Create insere um novo item no catálogo.
func (r *ItemRepository) Create(ctx context.Context, item domain.Item) (domain.Item, error) {
	r.logger.Debug("Iniciando Create no repositório de itens.", map[string]interface{}{"name": item.Name})

	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	item.CreatedAt = now
	item.UpdatedAt = now

	query := `
        INSERT INTO items (id, name, category, type, serial, status, holder_id, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	if _, err := r.DB.ExecContext(ctxTimeout, query,
		item.ID, item.Name, item.Category, item.Type, item.Serial, item.Status, item.HolderID, item.CreatedAt, item.UpdatedAt,
	); err != nil {
		r.logger.Error("Falha ao inserir item no DB.", err)
		return domain.Item{}, errors.NewDBError("Falha ao criar item", err)
	}

	r.logger.Info("Item criado com sucesso.", map[string]interface{}{"id": item.ID, "name": item.Name})
	return item, nil
}

// GetByID busca um item pelo ID.
func (r *ItemRepository) GetByID(ctx context.Context, id string) (domain.Item, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	query := `
        SELECT id, name, category, type, serial, status, holder_id, created_at, updated_at
        FROM items
        WHERE id = $1`

	var item domain.Item
	err := r.DB.QueryRowContext(ctxTimeout, query, id).Scan(
		&item.ID, &item.Name, &item.Category, &item.Type, &item.Serial, &item.Status, &item.HolderID, &item.CreatedAt, &item.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return domain.Item{}, errors.NewNotFoundError(fmt.Sprintf("Item com ID %s não encontrado.", id))
	}
	if err != nil {
		r.logger.Error("Falha ao buscar item no DB.", err)
		return domain.Item{}, errors.NewDBError("Falha ao buscar item", err)
	}

	return item, nil
}

// GetTx busca um item dentro da transação corrente, com bloqueio de linha.
// Usado na aprovação de empréstimo/devolução para decidir o novo status
// sem corrida com outra aprovação sobre o mesmo item.
func (r *ItemRepository) GetTx(ctx context.Context, tx *sql.Tx, id string) (domain.Item, error) {
	query := `
        SELECT id, name, category, type, serial, status, holder_id, created_at, updated_at
        FROM items
        WHERE id = $1 FOR UPDATE`

	var item domain.Item
	err := tx.QueryRowContext(ctx, query, id).Scan(
		&item.ID, &item.Name, &item.Category, &item.Type, &item.Serial, &item.Status, &item.HolderID, &item.CreatedAt, &item.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return domain.Item{}, errors.NewNotFoundError(fmt.Sprintf("Item com ID %s não encontrado.", id))
	}
	if err != nil {
		r.logger.Error("Falha ao buscar item na transação.", err)
		return domain.Item{}, errors.NewDBError("Falha ao buscar item", err)
	}

	return item, nil
}

// List busca todos os itens do catálogo.
func (r *ItemRepository) List(ctx context.Context) ([]domain.Item, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	query := `
        SELECT id, name, category, type, serial, status, holder_id, created_at, updated_at
        FROM items
        ORDER BY name`

	rows, err := r.DB.QueryContext(ctxTimeout, query)
	if err != nil {
		r.logger.Error("Falha ao executar List de itens.", err)
		return nil, errors.NewDBError("Falha ao buscar itens", err)
	}
	defer rows.Close()

	var items []domain.Item
	for rows.Next() {
		var item domain.Item
		if err := rows.Scan(
			&item.ID, &item.Name, &item.Category, &item.Type, &item.Serial, &item.Status, &item.HolderID, &item.CreatedAt, &item.UpdatedAt,
		); err != nil {
			return nil, errors.NewDBError("Falha ao mapear itens do DB", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.NewDBError("Erro após iteração de itens", err)
	}

	return items, nil
}

// SetHolderTx atualiza o detentor e o status derivado do item dentro da
// transação de aprovação. holderID nil limpa o detentor (devolução).
func (r *ItemRepository) SetHolderTx(ctx context.Context, tx *sql.Tx, itemID string, holderID *string, status domain.ItemStatus) error {
	query := `
        UPDATE items
        SET holder_id = $1, status = $2, updated_at = $3
        WHERE id = $4`

	result, err := tx.ExecContext(ctx, query, holderID, status, time.Now().UTC(), itemID)
	if err != nil {
		r.logger.Error("Falha ao atualizar detentor do item.", err)
		return errors.NewDBError("Falha ao atualizar detentor do item", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewDBError("Falha ao verificar linhas afetadas", err)
	}
	if rowsAffected == 0 {
		return errors.NewNotFoundError(fmt.Sprintf("Item com ID %s não encontrado para atualização.", itemID))
	}

	return nil
}
