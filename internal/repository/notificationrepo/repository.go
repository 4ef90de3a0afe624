package notificationrepo

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

// NotificationRepository persiste notificações. Linhas nunca são mutadas
// depois de criadas, exceto o flag read.
type NotificationRepository struct {
	DB        *sql.DB
	DBTimeout time.Duration
	logger    logger.Logger
}

// NewNotificationRepository cria e retorna uma nova instância do Repositório de Notificações.
func NewNotificationRepository(db *sql.DB, dbTimeout time.Duration, logger logger.Logger) *NotificationRepository {
	return &NotificationRepository{
		DB:        db,
		DBTimeout: dbTimeout,
		logger:    logger,
	}
}

// CreateTx insere uma notificação dentro da transação recebida, de modo que
// a criação participe da mesma unidade atômica que a guarda de deduplicação.
func (r *NotificationRepository) CreateTx(ctx context.Context, tx *sql.Tx, n domain.Notification) (domain.Notification, error) {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	query := `
        INSERT INTO notifications (id, user_id, text, read, created_at)
        VALUES ($1, $2, $3, $4, $5)`

	if _, err := tx.ExecContext(ctx, query, n.ID, n.UserID, n.Text, n.Read, n.CreatedAt); err != nil {
		r.logger.Error("Falha ao inserir notificação no DB.", err)
		return domain.Notification{}, errors.NewDBError("Falha ao criar notificação", err)
	}

	return n, nil
}

// ExistsUnreadTx verifica, na mesma transação da escrita, se já existe uma
// notificação não lida com o mesmo texto para o usuário. É a guarda que
// impede tempestades de alertas enquanto a condição persiste.
func (r *NotificationRepository) ExistsUnreadTx(ctx context.Context, tx *sql.Tx, userID, text string) (bool, error) {
	query := `
        SELECT EXISTS (
            SELECT 1 FROM notifications
            WHERE user_id = $1 AND text = $2 AND read = FALSE
        )`

	var exists bool
	if err := tx.QueryRowContext(ctx, query, userID, text).Scan(&exists); err != nil {
		r.logger.Error("Falha ao verificar notificação não lida.", err)
		return false, errors.NewDBError("Falha ao verificar notificação não lida", err)
	}

	return exists, nil
}

// ListUnread devolve as notificações não lidas de um usuário, mais recentes primeiro.
func (r *NotificationRepository) ListUnread(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	if limit <= 0 || limit > 100 {
		limit = 10
	}

	query := `
        SELECT id, user_id, text, read, created_at
        FROM notifications
        WHERE user_id = $1 AND read = FALSE
        ORDER BY created_at DESC
        LIMIT $2`

	rows, err := r.DB.QueryContext(ctxTimeout, query, userID, limit)
	if err != nil {
		r.logger.Error("Falha ao buscar notificações não lidas.", err)
		return nil, errors.NewDBError("Falha ao buscar notificações", err)
	}
	defer rows.Close()

	var notifications []domain.Notification
	for rows.Next() {
		var n domain.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Text, &n.Read, &n.CreatedAt); err != nil {
			return nil, errors.NewDBError("Falha ao mapear notificações do DB", err)
		}
		notifications = append(notifications, n)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.NewDBError("Erro após iteração de notificações", err)
	}

	return notifications, nil
}

// CountUnread conta as notificações não lidas de um usuário.
func (r *NotificationRepository) CountUnread(ctx context.Context, userID string) (int, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	query := `
        SELECT COUNT(*)
        FROM notifications
        WHERE user_id = $1 AND read = FALSE`

	var count int
	if err := r.DB.QueryRowContext(ctxTimeout, query, userID).Scan(&count); err != nil {
		r.logger.Error("Falha ao contar notificações não lidas.", err)
		return 0, errors.NewDBError("Falha ao contar notificações", err)
	}

	return count, nil
}

// MarkRead marca uma notificação do usuário como lida.
func (r *NotificationRepository) MarkRead(ctx context.Context, id, userID string) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	query := `
        UPDATE notifications
        SET read = TRUE
        WHERE id = $1 AND user_id = $2`

	result, err := r.DB.ExecContext(ctxTimeout, query, id, userID)
	if err != nil {
		r.logger.Error("Falha ao marcar notificação como lida.", err)
		return errors.NewDBError("Falha ao marcar notificação como lida", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewDBError("Falha ao verificar linhas afetadas", err)
	}
	if rowsAffected == 0 {
		return errors.NewNotFoundError(fmt.Sprintf("Notificação com ID %s não encontrada.", id))
	}

	return nil
}
