package requestrepo

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

// RequestRepository persiste requisições e seus itens. O status e os campos
// de atraso são de propriedade exclusiva da máquina de estados de requisições
// e do monitor de atraso; as escritas aqui são sempre atualizações condicionais.
type RequestRepository struct {
	DB        *sql.DB
	DBTimeout time.Duration
	logger    logger.Logger
}

// NewRequestRepository cria e retorna uma nova instância do Repositório de Requisições.
func NewRequestRepository(db *sql.DB, dbTimeout time.Duration, logger logger.Logger) *RequestRepository {
	return &RequestRepository{
		DB:        db,
		DBTimeout: dbTimeout,
		logger:    logger,
	}
}

// Create insere a requisição e seus itens em uma única transação.
func (r *RequestRepository) Create(ctx context.Context, req domain.Request) (domain.Request, error) {
	r.logger.Debug("Iniciando Create no repositório de requisições.", map[string]interface{}{"type": req.Type, "user_id": req.UserID})

	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	tx, err := r.DB.BeginTx(ctxTimeout, nil)
	if err != nil {
		return domain.Request{}, errors.NewDBError("Falha ao iniciar transação", err)
	}
	defer tx.Rollback()

	if req.ID == "" {
		req.ID = uuid.New().String()
	}

	queryInsert := `
        INSERT INTO requests (id, user_id, type, status, source_warehouse_id, destination_warehouse_id, due_date, is_overdue, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	if _, err := tx.ExecContext(ctxTimeout, queryInsert,
		req.ID, req.UserID, req.Type, req.Status, req.SourceWarehouseID,
		req.DestinationWarehouseID, req.DueDate, req.IsOverdue, req.CreatedAt,
	); err != nil {
		r.logger.Error("Falha ao inserir requisição no DB.", err)
		return domain.Request{}, errors.NewDBError("Falha ao criar requisição", err)
	}

	queryItem := `
        INSERT INTO request_items (id, request_id, item_id, quantity, position)
        VALUES ($1, $2, $3, $4, $5)`

	for position, item := range req.Items {
		if _, err := tx.ExecContext(ctxTimeout, queryItem,
			uuid.New().String(), req.ID, item.ItemID, item.Quantity, position,
		); err != nil {
			r.logger.Error("Falha ao inserir item da requisição no DB.", err)
			return domain.Request{}, errors.NewDBError("Falha ao criar itens da requisição", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return domain.Request{}, errors.NewDBError("Falha ao commitar transação", err)
	}

	r.logger.Info("Requisição criada com sucesso.", map[string]interface{}{"id": req.ID, "type": req.Type})
	return req, nil
}

// GetByID busca uma requisição com seus itens.
func (r *RequestRepository) GetByID(ctx context.Context, id string) (domain.Request, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	query := `
        SELECT id, user_id, type, status, source_warehouse_id, destination_warehouse_id, due_date, is_overdue, created_at, decided_at, decided_by
        FROM requests
        WHERE id = $1`

	var req domain.Request
	err := r.DB.QueryRowContext(ctxTimeout, query, id).Scan(
		&req.ID, &req.UserID, &req.Type, &req.Status, &req.SourceWarehouseID,
		&req.DestinationWarehouseID, &req.DueDate, &req.IsOverdue, &req.CreatedAt,
		&req.DecidedAt, &req.DecidedBy,
	)

	if err == sql.ErrNoRows {
		r.logger.Info("Requisição não encontrada.", map[string]interface{}{"id": id})
		return domain.Request{}, errors.NewNotFoundError(fmt.Sprintf("Requisição com ID %s não encontrada.", id))
	}
	if err != nil {
		r.logger.Error("Falha ao buscar requisição no DB.", err)
		return domain.Request{}, errors.NewDBError("Falha ao buscar requisição", err)
	}

	items, err := r.itemsOf(ctxTimeout, id)
	if err != nil {
		return domain.Request{}, err
	}
	req.Items = items

	return req, nil
}

// List busca requisições, opcionalmente filtradas por status e/ou solicitante.
func (r *RequestRepository) List(ctx context.Context, status domain.RequestStatus, userID string) ([]domain.Request, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	query := `
        SELECT id, user_id, type, status, source_warehouse_id, destination_warehouse_id, due_date, is_overdue, created_at, decided_at, decided_by
        FROM requests
        WHERE ($1 = '' OR status = $1)
          AND ($2 = '' OR user_id = $2)
        ORDER BY created_at DESC`

	rows, err := r.DB.QueryContext(ctxTimeout, query, string(status), userID)
	if err != nil {
		r.logger.Error("Falha ao buscar requisições no DB.", err)
		return nil, errors.NewDBError("Falha ao buscar requisições", err)
	}
	defer rows.Close()

	var requests []domain.Request
	for rows.Next() {
		var req domain.Request
		if err := rows.Scan(
			&req.ID, &req.UserID, &req.Type, &req.Status, &req.SourceWarehouseID,
			&req.DestinationWarehouseID, &req.DueDate, &req.IsOverdue, &req.CreatedAt,
			&req.DecidedAt, &req.DecidedBy,
		); err != nil {
			return nil, errors.NewDBError("Falha ao mapear requisições do DB", err)
		}
		requests = append(requests, req)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.NewDBError("Erro após iteração de requisições", err)
	}

	for i := range requests {
		items, err := r.itemsOf(ctxTimeout, requests[i].ID)
		if err != nil {
			return nil, err
		}
		requests[i].Items = items
	}

	return requests, nil
}

// MarkDecidedTx flipa o status pending -> approved|rejected dentro da
// transação recebida. A cláusula WHERE status = 'pending' é o compare-and-swap
// que resolve decisões concorrentes em exatamente um vencedor: zero linhas
// afetadas significa que outra decisão chegou primeiro.
func (r *RequestRepository) MarkDecidedTx(ctx context.Context, tx *sql.Tx, id string, status domain.RequestStatus, decidedBy string, decidedAt time.Time) (int64, error) {
	query := `
        UPDATE requests
        SET status = $1, decided_at = $2, decided_by = $3
        WHERE id = $4 AND status = 'pending'`

	result, err := tx.ExecContext(ctx, query, status, decidedAt, decidedBy, id)
	if err != nil {
		r.logger.Error("Falha ao atualizar status da requisição.", err)
		return 0, errors.NewDBError("Falha ao atualizar status da requisição", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, errors.NewDBError("Falha ao verificar linhas afetadas", err)
	}

	return rowsAffected, nil
}

// SetDueDateTx define o prazo de devolução de um empréstimo dentro da
// transação recebida.
func (r *RequestRepository) SetDueDateTx(ctx context.Context, tx *sql.Tx, id string, dueDate time.Time) error {
	query := `
        UPDATE requests
        SET due_date = $1
        WHERE id = $2`

	if _, err := tx.ExecContext(ctx, query, dueDate, id); err != nil {
		r.logger.Error("Falha ao definir prazo da requisição.", err)
		return errors.NewDBError("Falha ao definir prazo da requisição", err)
	}

	return nil
}

// ListOverdueCandidates devolve empréstimos aprovados, ainda não sinalizados,
// com prazo vencido em relação a now.
func (r *RequestRepository) ListOverdueCandidates(ctx context.Context, now time.Time) ([]domain.Request, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	query := `
        SELECT id, user_id, type, status, source_warehouse_id, destination_warehouse_id, due_date, is_overdue, created_at, decided_at, decided_by
        FROM requests
        WHERE type = 'borrow'
          AND status = 'approved'
          AND is_overdue = FALSE
          AND due_date < $1`

	rows, err := r.DB.QueryContext(ctxTimeout, query, now)
	if err != nil {
		r.logger.Error("Falha ao buscar candidatos a atraso.", err)
		return nil, errors.NewDBError("Falha ao buscar candidatos a atraso", err)
	}
	defer rows.Close()

	var requests []domain.Request
	for rows.Next() {
		var req domain.Request
		if err := rows.Scan(
			&req.ID, &req.UserID, &req.Type, &req.Status, &req.SourceWarehouseID,
			&req.DestinationWarehouseID, &req.DueDate, &req.IsOverdue, &req.CreatedAt,
			&req.DecidedAt, &req.DecidedBy,
		); err != nil {
			return nil, errors.NewDBError("Falha ao mapear candidatos do DB", err)
		}
		requests = append(requests, req)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.NewDBError("Erro após iteração de candidatos", err)
	}

	return requests, nil
}

// FlagOverdueTx sinaliza is_overdue = true de forma idempotente: a guarda
// is_overdue = FALSE na mesma transação garante que varreduras concorrentes
// (ou repetidas) sinalizam cada requisição no máximo uma vez.
func (r *RequestRepository) FlagOverdueTx(ctx context.Context, tx *sql.Tx, id string) (int64, error) {
	query := `
        UPDATE requests
        SET is_overdue = TRUE
        WHERE id = $1 AND is_overdue = FALSE AND status = 'approved'`

	result, err := tx.ExecContext(ctx, query, id)
	if err != nil {
		r.logger.Error("Falha ao sinalizar requisição em atraso.", err)
		return 0, errors.NewDBError("Falha ao sinalizar requisição em atraso", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, errors.NewDBError("Falha ao verificar linhas afetadas", err)
	}

	return rowsAffected, nil
}

// itemsOf carrega os itens de uma requisição na ordem de inserção.
func (r *RequestRepository) itemsOf(ctx context.Context, requestID string) ([]domain.RequestItem, error) {
	query := `
        SELECT item_id, quantity
        FROM request_items
        WHERE request_id = $1
        ORDER BY position`

	rows, err := r.DB.QueryContext(ctx, query, requestID)
	if err != nil {
		return nil, errors.NewDBError("Falha ao buscar itens da requisição", err)
	}
	defer rows.Close()

	var items []domain.RequestItem
	for rows.Next() {
		var item domain.RequestItem
		if err := rows.Scan(&item.ItemID, &item.Quantity); err != nil {
			return nil, errors.NewDBError("Falha ao mapear itens da requisição", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.NewDBError("Erro após iteração de itens da requisição", err)
	}

	return items, nil
}
