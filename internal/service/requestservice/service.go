package requestservice

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

// RequestRepository define o contrato de persistência de requisições.
type RequestRepository interface {
	Create(ctx context.Context, req domain.Request) (domain.Request, error)
	GetByID(ctx context.Context, id string) (domain.Request, error)
	List(ctx context.Context, status domain.RequestStatus, userID string) ([]domain.Request, error)
	MarkDecidedTx(ctx context.Context, tx *sql.Tx, id string, status domain.RequestStatus, decidedBy string, decidedAt time.Time) (int64, error)
	SetDueDateTx(ctx context.Context, tx *sql.Tx, id string, dueDate time.Time) error
}

// StockLedger é a fatia do repositório de estoque usada na aprovação:
// ajustes dentro da transação de decisão e o descarte de cache pós-commit
// dos níveis alterados.
type StockLedger interface {
	AdjustTx(ctx context.Context, tx *sql.Tx, adj domain.StockAdjustment) (domain.StockLevel, domain.StockTransaction, error)
	Invalidate(ctx context.Context, warehouseID, itemID string)
}

// ItemRepository é a fatia do catálogo usada para manter o detentor e o
// status derivado do item durante empréstimo/devolução.
type ItemRepository interface {
	GetTx(ctx context.Context, tx *sql.Tx, id string) (domain.Item, error)
	SetHolderTx(ctx context.Context, tx *sql.Tx, itemID string, holderID *string, status domain.ItemStatus) error
}

// Transferrer é o coordenador de transferências, invocado por item dentro
// da transação de aprovação.
type Transferrer interface {
	TransferTx(ctx context.Context, tx *sql.Tx, t domain.Transfer) (domain.TransferResult, error)
}

// LowStockNotifier cria o alerta de estoque baixo na mesma transação do
// débito, respeitando a deduplicação por notificação não lida.
type LowStockNotifier interface {
	NotifyLowStockTx(ctx context.Context, tx *sql.Tx, level domain.StockLevel, recipientID string) (bool, error)
}

// Auditor é o colaborador de auditoria (best-effort, pós-commit).
type Auditor interface {
	Record(ctx context.Context, actorID, action, entity, entityID, details string)
}

// Service é a camada de orquestração de requisições: cria requisições
// pendentes e aplica decisões despachando o efeito de estoque pelo tipo,
// tudo dentro de uma única transação atômica.
type Service struct {
	repo     RequestRepository
	ledger   StockLedger
	items    ItemRepository
	transfer Transferrer
	notifier LowStockNotifier
	txRunner database.TxRunner
	auditor  Auditor
	settings domain.Settings
	logger   logger.Logger
}

// NewService cria e retorna uma nova instância do Serviço de Requisições.
func NewService(
	repo RequestRepository,
	ledger StockLedger,
	items ItemRepository,
	transfer Transferrer,
	notifier LowStockNotifier,
	txRunner database.TxRunner,
	auditor Auditor,
	settings domain.Settings,
	logger logger.Logger,
) *Service {
	return &Service{
		repo:     repo,
		ledger:   ledger,
		items:    items,
		transfer: transfer,
		notifier: notifier,
		txRunner: txRunner,
		auditor:  auditor,
		settings: settings,
		logger:   logger,
	}
}

// Create registra uma nova requisição em estado pendente.
// Para empréstimos, o prazo de devolução é createdAt + limite configurado.
func (s *Service) Create(ctx context.Context, userID string, input domain.RequestInput) (domain.Request, error) {
	s.logger.Debug("Iniciando criação de requisição no serviço.", map[string]interface{}{"type": input.Type, "user_id": userID})

	if err := s.validateInput(input); err != nil {
		s.logger.Warn("Falha na validação da requisição.", map[string]interface{}{"type": input.Type, "error": err.Error()})
		return domain.Request{}, err
	}

	now := time.Now().UTC()
	req := domain.Request{
		ID:                uuid.New().String(),
		UserID:            userID,
		Type:              input.Type,
		Status:            domain.RequestPending,
		Items:             input.Items,
		SourceWarehouseID: input.SourceWarehouseID,
		CreatedAt:         now,
	}

	if input.Type == domain.RequestTransfer {
		dest := input.DestinationWarehouseID
		req.DestinationWarehouseID = &dest
	}
	if input.Type == domain.RequestBorrow {
		due := now.AddDate(0, 0, s.settings.BorrowLimitDays)
		req.DueDate = &due
	}

	created, err := s.repo.Create(ctx, req)
	if err != nil {
		s.logger.Error("Falha ao criar requisição no repositório.", err)
		return domain.Request{}, err
	}

	if s.auditor != nil {
		s.auditor.Record(ctx, userID, "request_created", "request", created.ID, string(created.Type))
	}

	s.logger.Info("Requisição criada com sucesso.", map[string]interface{}{"id": created.ID, "type": created.Type})
	return created, nil
}

// Decide aplica a decisão de um aprovador sobre uma requisição pendente.
// O vencedor de duas decisões concorrentes é escolhido pela atualização
// condicional do status; o perdedor recebe InvalidTransition. Um erro de
// estoque (InsufficientStock) desfaz a transação inteira e a requisição
// permanece pendente.
func (s *Service) Decide(ctx context.Context, requestID, approverID string, approverRole domain.UserRole, decision domain.Decision) (domain.Request, error) {
	s.logger.Debug("Iniciando decisão de requisição no serviço.", map[string]interface{}{
		"request_id": requestID,
		"decision":   decision,
	})

	if !approverRole.CanDecide() {
		return domain.Request{}, apperror.NewUnauthorizedError("Aprovar ou rejeitar requisições exige papel de aprovador ou administrador.")
	}
	if decision != domain.DecisionApprove && decision != domain.DecisionReject {
		return domain.Request{}, apperror.NewValidationError("Decisão deve ser 'approve' ou 'reject'.")
	}

	req, err := s.repo.GetByID(ctx, requestID)
	if err != nil {
		return domain.Request{}, err
	}
	if req.UserID == approverID {
		return domain.Request{}, apperror.NewUnauthorizedError("O solicitante não pode decidir a própria requisição.")
	}
	if req.Status != domain.RequestPending {
		return domain.Request{}, apperror.NewInvalidTransitionError(
			fmt.Sprintf("Requisição %s já foi decidida (status atual: %s).", requestID, req.Status))
	}

	decidedAt := time.Now().UTC()

	if decision == domain.DecisionReject {
		err := s.txRunner.RunTx(ctx, func(tx *sql.Tx) error {
			return s.markDecided(ctx, tx, requestID, domain.RequestRejected, approverID, decidedAt)
		})
		if err != nil {
			return domain.Request{}, err
		}

		if s.auditor != nil {
			s.auditor.Record(ctx, approverID, "request_rejected", "request", requestID, string(req.Type))
		}

		s.logger.Info("Requisição rejeitada.", map[string]interface{}{"id": requestID})
		return s.decided(req, domain.RequestRejected, approverID, decidedAt), nil
	}

	// Aprovação: status + efeitos de estoque na mesma unidade atômica.
	err = s.txRunner.RunTx(ctx, func(tx *sql.Tx) error {
		if err := s.markDecided(ctx, tx, requestID, domain.RequestApproved, approverID, decidedAt); err != nil {
			return err
		}
		return s.applyEffects(ctx, tx, req, approverID, decidedAt)
	})
	if err != nil {
		s.logger.Error("Falha ao aprovar requisição; nenhuma alteração aplicada.", err)
		return domain.Request{}, err
	}

	s.invalidateStock(ctx, req)

	if s.auditor != nil {
		s.auditor.Record(ctx, approverID, "request_approved", "request", requestID, string(req.Type))
	}

	s.logger.Info("Requisição aprovada com sucesso.", map[string]interface{}{"id": requestID, "type": req.Type})
	return s.decided(req, domain.RequestApproved, approverID, decidedAt), nil
}

// Get devolve uma requisição; usuários comuns só enxergam as próprias.
func (s *Service) Get(ctx context.Context, id, callerID string, callerRole domain.UserRole) (domain.Request, error) {
	req, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return domain.Request{}, err
	}

	if callerRole == domain.RoleUser && req.UserID != callerID {
		return domain.Request{}, apperror.NewNotFoundError(fmt.Sprintf("Requisição com ID %s não encontrada.", id))
	}

	return req, nil
}

// List devolve requisições filtradas por status; usuários comuns só
// enxergam as próprias.
func (s *Service) List(ctx context.Context, status domain.RequestStatus, callerID string, callerRole domain.UserRole) ([]domain.Request, error) {
	userFilter := ""
	if callerRole == domain.RoleUser {
		userFilter = callerID
	}

	return s.repo.List(ctx, status, userFilter)
}

// invalidateStock descarta, após o commit da aprovação, as entradas de cache
// de todos os níveis tocados pelos efeitos da requisição.
func (s *Service) invalidateStock(ctx context.Context, req domain.Request) {
	for _, item := range req.Items {
		s.ledger.Invalidate(ctx, req.SourceWarehouseID, item.ItemID)
		if req.Type == domain.RequestTransfer && req.DestinationWarehouseID != nil {
			s.ledger.Invalidate(ctx, *req.DestinationWarehouseID, item.ItemID)
		}
	}
}

// markDecided flipa o status de forma condicional; zero linhas afetadas é a
// corrida de decisão dupla.
func (s *Service) markDecided(ctx context.Context, tx *sql.Tx, id string, status domain.RequestStatus, approverID string, decidedAt time.Time) error {
	rows, err := s.repo.MarkDecidedTx(ctx, tx, id, status, approverID, decidedAt)
	if err != nil {
		return err
	}
	if rows == 0 {
		s.logger.Warn("Decisão concorrente detectada; requisição já decidida.", map[string]interface{}{"id": id})
		return apperror.NewInvalidTransitionError(fmt.Sprintf("Requisição %s já foi decidida.", id))
	}
	return nil
}

// applyEffects despacha o efeito de estoque da aprovação pelo tipo da requisição.
func (s *Service) applyEffects(ctx context.Context, tx *sql.Tx, req domain.Request, approverID string, decidedAt time.Time) error {
	switch req.Type {

	case domain.RequestWithdraw:
		for _, item := range req.Items {
			level, _, err := s.ledger.AdjustTx(ctx, tx, domain.StockAdjustment{
				WarehouseID: req.SourceWarehouseID,
				ItemID:      item.ItemID,
				Delta:       -item.Quantity,
				ReferenceID: req.ID,
				ActorID:     approverID,
			})
			if err != nil {
				return err
			}
			if _, err := s.notifier.NotifyLowStockTx(ctx, tx, level, approverID); err != nil {
				return err
			}
		}
		return nil

	case domain.RequestBorrow:
		// Empréstimo sem prazo (criado antes de haver limite configurado)
		// ganha o prazo na aprovação.
		if req.DueDate == nil {
			due := decidedAt.AddDate(0, 0, s.settings.BorrowLimitDays)
			if err := s.repo.SetDueDateTx(ctx, tx, req.ID, due); err != nil {
				return err
			}
		}
		for _, item := range req.Items {
			level, _, err := s.ledger.AdjustTx(ctx, tx, domain.StockAdjustment{
				WarehouseID: req.SourceWarehouseID,
				ItemID:      item.ItemID,
				Delta:       -item.Quantity,
				ReferenceID: req.ID,
				ActorID:     approverID,
			})
			if err != nil {
				return err
			}
			holder := req.UserID
			if err := s.items.SetHolderTx(ctx, tx, item.ItemID, &holder, domain.ItemBorrowed); err != nil {
				return err
			}
			if _, err := s.notifier.NotifyLowStockTx(ctx, tx, level, approverID); err != nil {
				return err
			}
		}
		return nil

	case domain.RequestReturn:
		for _, item := range req.Items {
			if _, _, err := s.ledger.AdjustTx(ctx, tx, domain.StockAdjustment{
				WarehouseID: req.SourceWarehouseID,
				ItemID:      item.ItemID,
				Delta:       item.Quantity,
				ReferenceID: req.ID,
				ActorID:     approverID,
			}); err != nil {
				return err
			}

			current, err := s.items.GetTx(ctx, tx, item.ItemID)
			if err != nil {
				return err
			}
			// Devolução não sobrescreve um problema reportado.
			status := domain.ItemAvailable
			if current.Status == domain.ItemIssueReported {
				status = domain.ItemIssueReported
			}
			if err := s.items.SetHolderTx(ctx, tx, item.ItemID, nil, status); err != nil {
				return err
			}
		}
		return nil

	case domain.RequestTransfer:
		if req.DestinationWarehouseID == nil {
			return apperror.NewValidationError("Requisição de transferência sem armazém de destino.")
		}
		for _, item := range req.Items {
			if _, err := s.transfer.TransferTx(ctx, tx, domain.Transfer{
				SourceWarehouseID:      req.SourceWarehouseID,
				DestinationWarehouseID: *req.DestinationWarehouseID,
				ItemID:                 item.ItemID,
				Quantity:               item.Quantity,
				ReferenceID:            req.ID,
				ActorID:                approverID,
			}); err != nil {
				return err
			}
		}
		return nil
	}

	return apperror.NewValidationError(fmt.Sprintf("Tipo de requisição desconhecido: %s.", req.Type))
}

// validateInput aplica as regras estruturais de criação por tipo.
func (s *Service) validateInput(input domain.RequestInput) error {
	switch input.Type {
	case domain.RequestWithdraw, domain.RequestBorrow, domain.RequestReturn, domain.RequestTransfer:
	default:
		return apperror.NewValidationError(fmt.Sprintf("Tipo de requisição inválido: %s.", input.Type))
	}

	if len(input.Items) == 0 {
		return apperror.NewValidationError("A requisição deve conter ao menos um item.")
	}
	for _, item := range input.Items {
		if item.Quantity <= 0 {
			return apperror.NewValidationError("A quantidade de cada item deve ser maior que zero.")
		}
		if _, err := uuid.Parse(item.ItemID); err != nil {
			return apperror.NewValidationError("O ID de cada item deve ser um UUID válido.")
		}
	}

	if _, err := uuid.Parse(input.SourceWarehouseID); err != nil {
		return apperror.NewValidationError("O ID do armazém de origem deve ser um UUID válido.")
	}

	if input.Type == domain.RequestTransfer {
		if _, err := uuid.Parse(input.DestinationWarehouseID); err != nil {
			return apperror.NewValidationError("O ID do armazém de destino deve ser um UUID válido.")
		}
		if input.DestinationWarehouseID == input.SourceWarehouseID {
			return apperror.NewValidationError("Origem e destino da transferência devem ser armazéns distintos.")
		}
	} else if input.DestinationWarehouseID != "" {
		return apperror.NewValidationError("Armazém de destino só é permitido em transferências.")
	}

	return nil
}

// decided devolve a visão pós-decisão da requisição sem nova leitura do DB.
func (s *Service) decided(req domain.Request, status domain.RequestStatus, approverID string, decidedAt time.Time) domain.Request {
	req.Status = status
	req.DecidedAt = &decidedAt
	req.DecidedBy = &approverID
	return req
}
