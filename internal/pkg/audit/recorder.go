package audit

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"assetstock/internal/errors"
	"assetstock/internal/pkg/logger"
)

// Entry é um evento de auditoria: uma linha por operação que muda estado
// (decisão de requisição, ajuste de estoque, transferência).
type Entry struct {
	ID       string    `json:"id"`
	ActorID  string    `json:"actor_id"`
	Action   string    `json:"action"`
	Entity   string    `json:"entity"`
	EntityID string    `json:"entity_id"`
	Details  string    `json:"details"`
	Date     time.Time `json:"date"`
}

// Recorder é o colaborador de auditoria chamado após cada mudança de estado
// commitada. Falhas aqui nunca desfazem a transação primária: o registro é
// best-effort, logado e ignorado.
type Recorder interface {
	Record(ctx context.Context, actorID, action, entity, entityID, details string)
}

// DBRecorder grava os eventos de auditoria na tabela history.
type DBRecorder struct {
	DB        *sql.DB
	DBTimeout time.Duration
	logger    logger.Logger
}

// NewDBRecorder cria e retorna um gravador de auditoria sobre o PostgreSQL.
func NewDBRecorder(db *sql.DB, dbTimeout time.Duration, logger logger.Logger) *DBRecorder {
	return &DBRecorder{DB: db, DBTimeout: dbTimeout, logger: logger}
}

// Record insere o evento; erro é apenas logado (fire-and-forget).
func (r *DBRecorder) Record(ctx context.Context, actorID, action, entity, entityID, details string) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	query := `
        INSERT INTO history (id, actor_id, action, entity, entity_id, details, date)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.DB.ExecContext(ctxTimeout, query,
		uuid.New().String(), actorID, action, entity, entityID, details, time.Now().UTC(),
	)
	if err != nil {
		r.logger.Error("Falha ao gravar evento de auditoria (ignorado).", err)
	}
}

// List devolve os eventos mais recentes, para a superfície de leitura de histórico.
func (r *DBRecorder) List(ctx context.Context, limit int) ([]Entry, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	if limit <= 0 || limit > 200 {
		limit = 50
	}

	query := `
        SELECT id, actor_id, action, entity, entity_id, details, date
        FROM history
        ORDER BY date DESC
        LIMIT $1`

	rows, err := r.DB.QueryContext(ctxTimeout, query, limit)
	if err != nil {
		return nil, errors.NewDBError("Falha ao buscar histórico", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.ActorID, &e.Action, &e.Entity, &e.EntityID, &e.Details, &e.Date); err != nil {
			return nil, errors.NewDBError("Falha ao mapear histórico do DB", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.NewDBError("Erro após iteração do histórico", err)
	}

	return entries, nil
}
