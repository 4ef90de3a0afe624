package requestservice_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"assetstock/internal/domain"
	apperror "assetstock/internal/errors"
	"assetstock/internal/pkg/logger"
	"assetstock/internal/service/requestservice"
)

// MockRequestRepository é uma implementação mock da interface RequestRepository
type MockRequestRepository struct {
	mock.Mock
}

func (m *MockRequestRepository) Create(ctx context.Context, req domain.Request) (domain.Request, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(domain.Request), args.Error(1)
}

func (m *MockRequestRepository) GetByID(ctx context.Context, id string) (domain.Request, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.Request), args.Error(1)
}

func (m *MockRequestRepository) List(ctx context.Context, status domain.RequestStatus, userID string) ([]domain.Request, error) {
	args := m.Called(ctx, status, userID)
	return args.Get(0).([]domain.Request), args.Error(1)
}

func (m *MockRequestRepository) MarkDecidedTx(ctx context.Context, tx *sql.Tx, id string, status domain.RequestStatus, decidedBy string, decidedAt time.Time) (int64, error) {
	args := m.Called(ctx, tx, id, status, decidedBy, decidedAt)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRequestRepository) SetDueDateTx(ctx context.Context, tx *sql.Tx, id string, dueDate time.Time) error {
	args := m.Called(ctx, tx, id, dueDate)
	return args.Error(0)
}

// MockStockLedger é uma implementação mock da interface StockLedger
type MockStockLedger struct {
	mock.Mock
}

func (m *MockStockLedger) Invalidate(ctx context.Context, warehouseID, itemID string) {
	m.Called(ctx, warehouseID, itemID)
}

func (m *MockStockLedger) AdjustTx(ctx context.Context, tx *sql.Tx, adj domain.StockAdjustment) (domain.StockLevel, domain.StockTransaction, error) {
	args := m.Called(ctx, tx, adj)
	return args.Get(0).(domain.StockLevel), args.Get(1).(domain.StockTransaction), args.Error(2)
}

// MockItemRepository é uma implementação mock da interface ItemRepository
type MockItemRepository struct {
	mock.Mock
}

func (m *MockItemRepository) GetTx(ctx context.Context, tx *sql.Tx, id string) (domain.Item, error) {
	args := m.Called(ctx, tx, id)
	return args.Get(0).(domain.Item), args.Error(1)
}

func (m *MockItemRepository) SetHolderTx(ctx context.Context, tx *sql.Tx, itemID string, holderID *string, status domain.ItemStatus) error {
	args := m.Called(ctx, tx, itemID, holderID, status)
	return args.Error(0)
}

// MockTransferrer é uma implementação mock da interface Transferrer
type MockTransferrer struct {
	mock.Mock
}

func (m *MockTransferrer) TransferTx(ctx context.Context, tx *sql.Tx, t domain.Transfer) (domain.TransferResult, error) {
	args := m.Called(ctx, tx, t)
	return args.Get(0).(domain.TransferResult), args.Error(1)
}

// MockLowStockNotifier é uma implementação mock da interface LowStockNotifier
type MockLowStockNotifier struct {
	mock.Mock
}

func (m *MockLowStockNotifier) NotifyLowStockTx(ctx context.Context, tx *sql.Tx, level domain.StockLevel, recipientID string) (bool, error) {
	args := m.Called(ctx, tx, level, recipientID)
	return args.Bool(0), args.Error(1)
}

// MockTxRunner executa a função diretamente, sem transação real.
type MockTxRunner struct {
	mock.Mock
}

func (m *MockTxRunner) RunTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	m.Called(ctx)
	return fn(nil)
}

// MockAuditor é uma implementação mock da interface Auditor
type MockAuditor struct {
	mock.Mock
}

func (m *MockAuditor) Record(ctx context.Context, actorID, action, entity, entityID, details string) {
	m.Called(ctx, actorID, action, entity, entityID, details)
}

type testDeps struct {
	repo     *MockRequestRepository
	ledger   *MockStockLedger
	items    *MockItemRepository
	transfer *MockTransferrer
	notifier *MockLowStockNotifier
	runner   *MockTxRunner
	auditor  *MockAuditor
}

func newTestService(t *testing.T) (*requestservice.Service, *testDeps) {
	t.Helper()

	deps := &testDeps{
		repo:     new(MockRequestRepository),
		ledger:   new(MockStockLedger),
		items:    new(MockItemRepository),
		transfer: new(MockTransferrer),
		notifier: new(MockLowStockNotifier),
		runner:   new(MockTxRunner),
		auditor:  new(MockAuditor),
	}

	settings := domain.Settings{BorrowLimitDays: 7, CheckInterval: time.Hour}
	svc := requestservice.NewService(
		deps.repo, deps.ledger, deps.items, deps.transfer, deps.notifier,
		deps.runner, deps.auditor, settings, logger.NewLogger("debug"),
	)

	return svc, deps
}

// TestCreate_Borrow_SetsDueDate testa que empréstimos nascem pendentes com
// prazo de devolução derivado do limite configurado.
func TestCreate_Borrow_SetsDueDate(t *testing.T) {
	svc, deps := newTestService(t)

	userID := uuid.New().String()
	warehouseID := uuid.New().String()
	itemID := uuid.New().String()

	var created domain.Request
	deps.repo.On("Create", mock.Anything, mock.MatchedBy(func(req domain.Request) bool {
		return req.Status == domain.RequestPending && req.DueDate != nil
	})).Return(domain.Request{}, nil).Run(func(args mock.Arguments) {
		created = args.Get(1).(domain.Request)
	})
	deps.auditor.On("Record", mock.Anything, userID, "request_created", "request", mock.AnythingOfType("string"), mock.AnythingOfType("string")).Return()

	before := time.Now().UTC()
	_, err := svc.Create(context.Background(), userID, domain.RequestInput{
		Type:              domain.RequestBorrow,
		Items:             []domain.RequestItem{{ItemID: itemID, Quantity: 1}},
		SourceWarehouseID: warehouseID,
	})

	assert.NoError(t, err)
	assert.Equal(t, domain.RequestPending, created.Status)
	assert.NotNil(t, created.DueDate)
	expectedDue := before.AddDate(0, 0, 7)
	assert.WithinDuration(t, expectedDue, *created.DueDate, 5*time.Second)
	deps.repo.AssertExpectations(t)
}

// TestCreate_Fail_EmptyItems testa a rejeição de requisição sem itens.
func TestCreate_Fail_EmptyItems(t *testing.T) {
	svc, deps := newTestService(t)

	_, err := svc.Create(context.Background(), uuid.New().String(), domain.RequestInput{
		Type:              domain.RequestWithdraw,
		Items:             nil,
		SourceWarehouseID: uuid.New().String(),
	})

	assert.Error(t, err)
	var validationErr *apperror.ValidationError
	assert.ErrorAs(t, err, &validationErr)
	deps.repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

// TestCreate_Fail_TransferSameWarehouse testa a rejeição de transferência
// com origem igual ao destino.
func TestCreate_Fail_TransferSameWarehouse(t *testing.T) {
	svc, deps := newTestService(t)

	warehouseID := uuid.New().String()
	_, err := svc.Create(context.Background(), uuid.New().String(), domain.RequestInput{
		Type:                   domain.RequestTransfer,
		Items:                  []domain.RequestItem{{ItemID: uuid.New().String(), Quantity: 2}},
		SourceWarehouseID:      warehouseID,
		DestinationWarehouseID: warehouseID,
	})

	assert.Error(t, err)
	var validationErr *apperror.ValidationError
	assert.ErrorAs(t, err, &validationErr)
	deps.repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

// TestDecide_Reject_Success testa a rejeição de uma requisição pendente sem efeito de estoque.
func TestDecide_Reject_Success(t *testing.T) {
	svc, deps := newTestService(t)

	requestID := uuid.New().String()
	approverID := uuid.New().String()

	pending := domain.Request{
		ID:     requestID,
		UserID: uuid.New().String(),
		Type:   domain.RequestWithdraw,
		Status: domain.RequestPending,
		Items:  []domain.RequestItem{{ItemID: uuid.New().String(), Quantity: 3}},
	}

	deps.repo.On("GetByID", mock.Anything, requestID).Return(pending, nil)
	deps.runner.On("RunTx", mock.Anything).Return(nil)
	deps.repo.On("MarkDecidedTx", mock.Anything, mock.Anything, requestID, domain.RequestRejected, approverID, mock.AnythingOfType("time.Time")).
		Return(int64(1), nil)
	deps.auditor.On("Record", mock.Anything, approverID, "request_rejected", "request", requestID, "withdraw").Return()

	decided, err := svc.Decide(context.Background(), requestID, approverID, domain.RoleApprover, domain.DecisionReject)

	assert.NoError(t, err)
	assert.Equal(t, domain.RequestRejected, decided.Status)
	assert.NotNil(t, decided.DecidedAt)
	deps.ledger.AssertNotCalled(t, "AdjustTx", mock.Anything, mock.Anything, mock.Anything)
	deps.repo.AssertExpectations(t)
	deps.auditor.AssertExpectations(t)
}

// TestDecide_Approve_Withdraw_Success testa a aprovação de retirada com débito e alerta.
func TestDecide_Approve_Withdraw_Success(t *testing.T) {
	svc, deps := newTestService(t)

	requestID := uuid.New().String()
	approverID := uuid.New().String()
	warehouseID := uuid.New().String()
	itemID := uuid.New().String()

	pending := domain.Request{
		ID:                requestID,
		UserID:            uuid.New().String(),
		Type:              domain.RequestWithdraw,
		Status:            domain.RequestPending,
		Items:             []domain.RequestItem{{ItemID: itemID, Quantity: 3}},
		SourceWarehouseID: warehouseID,
	}
	level := domain.StockLevel{WarehouseID: warehouseID, ItemID: itemID, Quantity: 2}

	deps.repo.On("GetByID", mock.Anything, requestID).Return(pending, nil)
	deps.runner.On("RunTx", mock.Anything).Return(nil)
	deps.repo.On("MarkDecidedTx", mock.Anything, mock.Anything, requestID, domain.RequestApproved, approverID, mock.AnythingOfType("time.Time")).
		Return(int64(1), nil)
	deps.ledger.On("AdjustTx", mock.Anything, mock.Anything, mock.MatchedBy(func(adj domain.StockAdjustment) bool {
		return adj.WarehouseID == warehouseID && adj.ItemID == itemID && adj.Delta == -3 && adj.ReferenceID == requestID
	})).Return(level, domain.StockTransaction{Direction: domain.DirectionOutbound, Quantity: 3}, nil)
	deps.notifier.On("NotifyLowStockTx", mock.Anything, mock.Anything, level, approverID).Return(true, nil)
	deps.auditor.On("Record", mock.Anything, approverID, "request_approved", "request", requestID, "withdraw").Return()
	// O cache do nível só é descartado após o commit da aprovação.
	deps.ledger.On("Invalidate", mock.Anything, warehouseID, itemID).Return()

	decided, err := svc.Decide(context.Background(), requestID, approverID, domain.RoleAdmin, domain.DecisionApprove)

	assert.NoError(t, err)
	assert.Equal(t, domain.RequestApproved, decided.Status)
	deps.ledger.AssertExpectations(t)
	deps.notifier.AssertExpectations(t)
	deps.auditor.AssertExpectations(t)
}

// TestDecide_Approve_Borrow_SetsHolder testa que a aprovação de empréstimo
// debita o estoque e registra o solicitante como detentor do item.
func TestDecide_Approve_Borrow_SetsHolder(t *testing.T) {
	svc, deps := newTestService(t)

	requestID := uuid.New().String()
	approverID := uuid.New().String()
	requesterID := uuid.New().String()
	warehouseID := uuid.New().String()
	itemID := uuid.New().String()
	due := time.Now().UTC().AddDate(0, 0, 7)

	pending := domain.Request{
		ID:                requestID,
		UserID:            requesterID,
		Type:              domain.RequestBorrow,
		Status:            domain.RequestPending,
		Items:             []domain.RequestItem{{ItemID: itemID, Quantity: 1}},
		SourceWarehouseID: warehouseID,
		DueDate:           &due,
	}

	deps.repo.On("GetByID", mock.Anything, requestID).Return(pending, nil)
	deps.runner.On("RunTx", mock.Anything).Return(nil)
	deps.repo.On("MarkDecidedTx", mock.Anything, mock.Anything, requestID, domain.RequestApproved, approverID, mock.AnythingOfType("time.Time")).
		Return(int64(1), nil)
	deps.ledger.On("AdjustTx", mock.Anything, mock.Anything, mock.MatchedBy(func(adj domain.StockAdjustment) bool {
		return adj.Delta == -1
	})).Return(domain.StockLevel{WarehouseID: warehouseID, ItemID: itemID, Quantity: 9}, domain.StockTransaction{}, nil)
	deps.items.On("SetHolderTx", mock.Anything, mock.Anything, itemID, mock.MatchedBy(func(holder *string) bool {
		return holder != nil && *holder == requesterID
	}), domain.ItemBorrowed).Return(nil)
	deps.notifier.On("NotifyLowStockTx", mock.Anything, mock.Anything, mock.AnythingOfType("domain.StockLevel"), approverID).Return(false, nil)
	deps.auditor.On("Record", mock.Anything, approverID, "request_approved", "request", requestID, "borrow").Return()
	deps.ledger.On("Invalidate", mock.Anything, warehouseID, itemID).Return()

	_, err := svc.Decide(context.Background(), requestID, approverID, domain.RoleApprover, domain.DecisionApprove)

	assert.NoError(t, err)
	// O prazo já existia, então não deve ser recalculado.
	deps.repo.AssertNotCalled(t, "SetDueDateTx", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	deps.items.AssertExpectations(t)
}

// TestDecide_Fail_AlreadyDecided testa a segunda decisão sobre a mesma requisição.
func TestDecide_Fail_AlreadyDecided(t *testing.T) {
	svc, deps := newTestService(t)

	requestID := uuid.New().String()
	approverID := uuid.New().String()

	decidedAt := time.Now().UTC()
	already := domain.Request{
		ID:        requestID,
		Type:      domain.RequestWithdraw,
		Status:    domain.RequestApproved,
		DecidedAt: &decidedAt,
	}

	deps.repo.On("GetByID", mock.Anything, requestID).Return(already, nil)

	_, err := svc.Decide(context.Background(), requestID, approverID, domain.RoleApprover, domain.DecisionApprove)

	assert.Error(t, err)
	var transitionErr *apperror.InvalidTransitionError
	assert.ErrorAs(t, err, &transitionErr)
	assert.False(t, apperror.IsRetryable(err))
	deps.runner.AssertNotCalled(t, "RunTx", mock.Anything)
}

// TestDecide_Fail_ConcurrentDecision testa o perdedor de uma corrida de decisão:
// a leitura viu pending, mas a atualização condicional não afetou linhas.
func TestDecide_Fail_ConcurrentDecision(t *testing.T) {
	svc, deps := newTestService(t)

	requestID := uuid.New().String()
	approverID := uuid.New().String()

	pending := domain.Request{
		ID:     requestID,
		Type:   domain.RequestWithdraw,
		Status: domain.RequestPending,
		Items:  []domain.RequestItem{{ItemID: uuid.New().String(), Quantity: 1}},
	}

	deps.repo.On("GetByID", mock.Anything, requestID).Return(pending, nil)
	deps.runner.On("RunTx", mock.Anything).Return(nil)
	deps.repo.On("MarkDecidedTx", mock.Anything, mock.Anything, requestID, domain.RequestApproved, approverID, mock.AnythingOfType("time.Time")).
		Return(int64(0), nil)

	_, err := svc.Decide(context.Background(), requestID, approverID, domain.RoleApprover, domain.DecisionApprove)

	assert.Error(t, err)
	var transitionErr *apperror.InvalidTransitionError
	assert.ErrorAs(t, err, &transitionErr)
	// O efeito de estoque nunca deve ter sido despachado.
	deps.ledger.AssertNotCalled(t, "AdjustTx", mock.Anything, mock.Anything, mock.Anything)
	deps.auditor.AssertNotCalled(t, "Record", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// TestDecide_Fail_InsufficientStock testa que a falha de estoque desfaz a
// aprovação inteira e a requisição permanece pendente.
func TestDecide_Fail_InsufficientStock(t *testing.T) {
	svc, deps := newTestService(t)

	requestID := uuid.New().String()
	approverID := uuid.New().String()
	warehouseID := uuid.New().String()

	pending := domain.Request{
		ID:                requestID,
		Type:              domain.RequestWithdraw,
		Status:            domain.RequestPending,
		Items:             []domain.RequestItem{{ItemID: uuid.New().String(), Quantity: 99}},
		SourceWarehouseID: warehouseID,
	}

	deps.repo.On("GetByID", mock.Anything, requestID).Return(pending, nil)
	deps.runner.On("RunTx", mock.Anything).Return(nil)
	deps.repo.On("MarkDecidedTx", mock.Anything, mock.Anything, requestID, domain.RequestApproved, approverID, mock.AnythingOfType("time.Time")).
		Return(int64(1), nil)
	deps.ledger.On("AdjustTx", mock.Anything, mock.Anything, mock.AnythingOfType("domain.StockAdjustment")).
		Return(domain.StockLevel{}, domain.StockTransaction{}, apperror.NewInsufficientStockError("Estoque insuficiente para a retirada."))

	_, err := svc.Decide(context.Background(), requestID, approverID, domain.RoleApprover, domain.DecisionApprove)

	assert.Error(t, err)
	var insufficientErr *apperror.InsufficientStockError
	assert.ErrorAs(t, err, &insufficientErr)
	deps.auditor.AssertNotCalled(t, "Record", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	// Transação desfeita não descarta cache: o nível commitado segue válido.
	deps.ledger.AssertNotCalled(t, "Invalidate", mock.Anything, mock.Anything, mock.Anything)
}

// TestDecide_Fail_NotApprover testa que usuários comuns não decidem requisições.
func TestDecide_Fail_NotApprover(t *testing.T) {
	svc, deps := newTestService(t)

	_, err := svc.Decide(context.Background(), uuid.New().String(), uuid.New().String(), domain.RoleUser, domain.DecisionApprove)

	assert.Error(t, err)
	var unauthorizedErr *apperror.UnauthorizedError
	assert.ErrorAs(t, err, &unauthorizedErr)
	deps.repo.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}

// TestDecide_Fail_SelfDecision testa que o solicitante não decide a própria
// requisição, mesmo tendo papel de aprovador.
func TestDecide_Fail_SelfDecision(t *testing.T) {
	svc, deps := newTestService(t)

	requestID := uuid.New().String()
	requesterID := uuid.New().String()

	pending := domain.Request{
		ID:                requestID,
		UserID:            requesterID,
		Type:              domain.RequestWithdraw,
		Status:            domain.RequestPending,
		Items:             []domain.RequestItem{{ItemID: uuid.New().String(), Quantity: 2}},
		SourceWarehouseID: uuid.New().String(),
	}

	deps.repo.On("GetByID", mock.Anything, requestID).Return(pending, nil)

	_, err := svc.Decide(context.Background(), requestID, requesterID, domain.RoleApprover, domain.DecisionApprove)

	assert.Error(t, err)
	var unauthorizedErr *apperror.UnauthorizedError
	assert.ErrorAs(t, err, &unauthorizedErr)
	deps.runner.AssertNotCalled(t, "RunTx", mock.Anything)
	deps.repo.AssertNotCalled(t, "MarkDecidedTx", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// TestDecide_Approve_Transfer_Success testa a aprovação de transferência
// delegando ao coordenador por item.
func TestDecide_Approve_Transfer_Success(t *testing.T) {
	svc, deps := newTestService(t)

	requestID := uuid.New().String()
	approverID := uuid.New().String()
	sourceID := uuid.New().String()
	destinationID := uuid.New().String()
	itemID := uuid.New().String()

	pending := domain.Request{
		ID:                     requestID,
		UserID:                 uuid.New().String(),
		Type:                   domain.RequestTransfer,
		Status:                 domain.RequestPending,
		Items:                  []domain.RequestItem{{ItemID: itemID, Quantity: 5}},
		SourceWarehouseID:      sourceID,
		DestinationWarehouseID: &destinationID,
	}

	deps.repo.On("GetByID", mock.Anything, requestID).Return(pending, nil)
	deps.runner.On("RunTx", mock.Anything).Return(nil)
	deps.repo.On("MarkDecidedTx", mock.Anything, mock.Anything, requestID, domain.RequestApproved, approverID, mock.AnythingOfType("time.Time")).
		Return(int64(1), nil)
	deps.transfer.On("TransferTx", mock.Anything, mock.Anything, mock.MatchedBy(func(tr domain.Transfer) bool {
		return tr.SourceWarehouseID == sourceID && tr.DestinationWarehouseID == destinationID &&
			tr.ItemID == itemID && tr.Quantity == 5 && tr.ReferenceID == requestID
	})).Return(domain.TransferResult{}, nil)
	deps.auditor.On("Record", mock.Anything, approverID, "request_approved", "request", requestID, "transfer").Return()
	// Após o commit, os dois níveis tocados saem do cache.
	deps.ledger.On("Invalidate", mock.Anything, sourceID, itemID).Return()
	deps.ledger.On("Invalidate", mock.Anything, destinationID, itemID).Return()

	decided, err := svc.Decide(context.Background(), requestID, approverID, domain.RoleAdmin, domain.DecisionApprove)

	assert.NoError(t, err)
	assert.Equal(t, domain.RequestApproved, decided.Status)
	deps.transfer.AssertExpectations(t)
	deps.ledger.AssertExpectations(t)
}

// TestDecide_Approve_Return_ClearsHolder testa que a devolução credita o
// estoque e libera o item, preservando problema reportado.
func TestDecide_Approve_Return_ClearsHolder(t *testing.T) {
	svc, deps := newTestService(t)

	requestID := uuid.New().String()
	approverID := uuid.New().String()
	holderID := uuid.New().String()
	warehouseID := uuid.New().String()
	itemID := uuid.New().String()

	pending := domain.Request{
		ID:                requestID,
		UserID:            holderID,
		Type:              domain.RequestReturn,
		Status:            domain.RequestPending,
		Items:             []domain.RequestItem{{ItemID: itemID, Quantity: 1}},
		SourceWarehouseID: warehouseID,
	}

	deps.repo.On("GetByID", mock.Anything, requestID).Return(pending, nil)
	deps.runner.On("RunTx", mock.Anything).Return(nil)
	deps.repo.On("MarkDecidedTx", mock.Anything, mock.Anything, requestID, domain.RequestApproved, approverID, mock.AnythingOfType("time.Time")).
		Return(int64(1), nil)
	deps.ledger.On("AdjustTx", mock.Anything, mock.Anything, mock.MatchedBy(func(adj domain.StockAdjustment) bool {
		return adj.Delta == 1
	})).Return(domain.StockLevel{WarehouseID: warehouseID, ItemID: itemID, Quantity: 10}, domain.StockTransaction{}, nil)
	deps.items.On("GetTx", mock.Anything, mock.Anything, itemID).
		Return(domain.Item{ID: itemID, Status: domain.ItemIssueReported, HolderID: &holderID}, nil)
	deps.items.On("SetHolderTx", mock.Anything, mock.Anything, itemID, (*string)(nil), domain.ItemIssueReported).Return(nil)
	deps.auditor.On("Record", mock.Anything, approverID, "request_approved", "request", requestID, "return").Return()
	deps.ledger.On("Invalidate", mock.Anything, warehouseID, itemID).Return()

	_, err := svc.Decide(context.Background(), requestID, approverID, domain.RoleApprover, domain.DecisionApprove)

	assert.NoError(t, err)
	deps.items.AssertExpectations(t)
}
