package notifyservice

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"assetstock/internal/domain"
	apperror "assetstock/internal/errors"
	"assetstock/internal/pkg/database"
	"assetstock/internal/pkg/logger"
)

// NotificationRepository define o contrato de persistência de notificações.
type NotificationRepository interface {
	CreateTx(ctx context.Context, tx *sql.Tx, n domain.Notification) (domain.Notification, error)
	ExistsUnreadTx(ctx context.Context, tx *sql.Tx, userID, text string) (bool, error)
	ListUnread(ctx context.Context, userID string, limit int) ([]domain.Notification, error)
	CountUnread(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, id, userID string) error
}

// StockReader é a fatia do estoque usada pela varredura de estoque baixo.
type StockReader interface {
	ListBelowMin(ctx context.Context) ([]domain.StockLevel, error)
}

// WarehouseReader resolve o gestor responsável de um armazém.
type WarehouseReader interface {
	GetWarehouseByID(ctx context.Context, id string) (domain.Warehouse, error)
}

const defaultListLimit = 50

// Service emite e consulta notificações. A regra central é a deduplicação:
// um alerta só é criado se o destinatário não tiver uma notificação NÃO LIDA
// com o mesmo texto. Marcar como lida reabilita alertas futuros enquanto a
// condição persistir.
type Service struct {
	repo       NotificationRepository
	stock      StockReader
	warehouses WarehouseReader
	txRunner   database.TxRunner
	logger     logger.Logger
}

// NewService cria e retorna uma nova instância do Serviço de Notificações.
func NewService(repo NotificationRepository, stock StockReader, warehouses WarehouseReader, txRunner database.TxRunner, logger logger.Logger) *Service {
	return &Service{
		repo:       repo,
		stock:      stock,
		warehouses: warehouses,
		txRunner:   txRunner,
		logger:     logger,
	}
}

// NotifyLowStockTx emite o alerta de estoque baixo na transação recebida,
// se o nível estiver no limiar ou abaixo dele. Devolve true quando uma
// notificação nova foi criada.
func (s *Service) NotifyLowStockTx(ctx context.Context, tx *sql.Tx, level domain.StockLevel, recipientID string) (bool, error) {
	if level.MinStock == nil || level.Quantity > *level.MinStock {
		return false, nil
	}

	text := lowStockText(level)
	return s.emitTx(ctx, tx, recipientID, text)
}

// NotifyOverdueTx emite o aviso de empréstimo em atraso para o solicitante,
// na mesma transação que sinaliza o atraso.
func (s *Service) NotifyOverdueTx(ctx context.Context, tx *sql.Tx, req domain.Request) error {
	text := fmt.Sprintf("Seu empréstimo %s está em atraso desde %s. Devolva os itens ao armazém de origem.",
		req.ID, req.DueDate.Format("02/01/2006"))

	if _, err := s.emitTx(ctx, tx, req.UserID, text); err != nil {
		return err
	}
	return nil
}

// CheckLowStock varre todos os níveis abaixo do limiar e alerta o gestor de
// cada armazém. Armazéns sem gestor definido são pulados. Devolve o número
// de notificações novas criadas.
func (s *Service) CheckLowStock(ctx context.Context) (int, error) {
	s.logger.Debug("Iniciando varredura de estoque baixo.", nil)

	levels, err := s.stock.ListBelowMin(ctx)
	if err != nil {
		return 0, err
	}

	created := 0
	for _, level := range levels {
		warehouse, err := s.warehouses.GetWarehouseByID(ctx, level.WarehouseID)
		if err != nil {
			s.logger.Warn("Armazém do nível de estoque não resolvido; pulando alerta.", map[string]interface{}{
				"warehouse_id": level.WarehouseID,
				"error":        err.Error(),
			})
			continue
		}
		if warehouse.ManagerID == nil {
			continue
		}

		text := lowStockText(level)
		var didCreate bool
		err = s.txRunner.RunTx(ctx, func(tx *sql.Tx) error {
			var txErr error
			didCreate, txErr = s.emitTx(ctx, tx, *warehouse.ManagerID, text)
			return txErr
		})
		if err != nil {
			s.logger.Error("Falha ao emitir alerta de estoque baixo.", err)
			continue
		}
		if didCreate {
			created++
		}
	}

	s.logger.Info("Varredura de estoque baixo concluída.", map[string]interface{}{
		"levels":  len(levels),
		"created": created,
	})
	return created, nil
}

// ListUnread devolve as notificações não lidas do usuário.
func (s *Service) ListUnread(ctx context.Context, userID string) ([]domain.Notification, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return nil, apperror.NewValidationError("O ID do usuário deve ser um UUID válido.")
	}
	return s.repo.ListUnread(ctx, userID, defaultListLimit)
}

// CountUnread devolve a contagem de notificações não lidas do usuário.
func (s *Service) CountUnread(ctx context.Context, userID string) (int, error) {
	return s.repo.CountUnread(ctx, userID)
}

// MarkRead marca uma notificação do próprio usuário como lida.
func (s *Service) MarkRead(ctx context.Context, id, userID string) error {
	if _, err := uuid.Parse(id); err != nil {
		return apperror.NewValidationError("O ID da notificação deve ser um UUID válido.")
	}
	return s.repo.MarkRead(ctx, id, userID)
}

// emitTx cria a notificação apenas se não existir uma não lida idêntica
// para o destinatário.
func (s *Service) emitTx(ctx context.Context, tx *sql.Tx, recipientID, text string) (bool, error) {
	exists, err := s.repo.ExistsUnreadTx(ctx, tx, recipientID, text)
	if err != nil {
		return false, err
	}
	if exists {
		s.logger.Debug("Notificação idêntica não lida já existe; alerta suprimido.", map[string]interface{}{"user_id": recipientID})
		return false, nil
	}

	_, err = s.repo.CreateTx(ctx, tx, domain.Notification{
		ID:        uuid.New().String(),
		UserID:    recipientID,
		Text:      text,
		Read:      false,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return false, err
	}

	return true, nil
}

func lowStockText(level domain.StockLevel) string {
	return fmt.Sprintf("Estoque baixo: item %s no armazém %s está com %d unidade(s), limiar mínimo de %d.",
		level.ItemID, level.WarehouseID, level.Quantity, *level.MinStock)
}
