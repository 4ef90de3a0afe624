package stockservice_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"assetstock/internal/domain"
	apperror "assetstock/internal/errors"
	"assetstock/internal/pkg/logger"
	"assetstock/internal/service/stockservice"
)

// MockStockRepository é uma implementação mock da interface StockRepository
type MockStockRepository struct {
	mock.Mock
}

func (m *MockStockRepository) GetStockLevel(ctx context.Context, warehouseID, itemID string) (domain.StockLevel, error) {
	args := m.Called(ctx, warehouseID, itemID)
	return args.Get(0).(domain.StockLevel), args.Error(1)
}

func (m *MockStockRepository) Adjust(ctx context.Context, adj domain.StockAdjustment) (domain.StockLevel, domain.StockTransaction, error) {
	args := m.Called(ctx, adj)
	return args.Get(0).(domain.StockLevel), args.Get(1).(domain.StockTransaction), args.Error(2)
}

func (m *MockStockRepository) ListTransactions(ctx context.Context, warehouseID, itemID string, limit int) ([]domain.StockTransaction, error) {
	args := m.Called(ctx, warehouseID, itemID, limit)
	return args.Get(0).([]domain.StockTransaction), args.Error(1)
}

func (m *MockStockRepository) SumTransactions(ctx context.Context, warehouseID, itemID string) (int, error) {
	args := m.Called(ctx, warehouseID, itemID)
	return args.Int(0), args.Error(1)
}

func (m *MockStockRepository) SetMinStock(ctx context.Context, warehouseID, itemID string, minStock *int) error {
	args := m.Called(ctx, warehouseID, itemID, minStock)
	return args.Error(0)
}

// MockAuditor é uma implementação mock da interface Auditor
type MockAuditor struct {
	mock.Mock
}

func (m *MockAuditor) Record(ctx context.Context, actorID, action, entity, entityID, details string) {
	m.Called(ctx, actorID, action, entity, entityID, details)
}

// TestAdjust_Success testa um ajuste de estoque bem-sucedido.
func TestAdjust_Success(t *testing.T) {
	mockRepo := new(MockStockRepository)
	mockAuditor := new(MockAuditor)
	mockLogger := logger.NewLogger("debug")

	svc := stockservice.NewService(mockRepo, mockAuditor, mockLogger)

	warehouseID := uuid.New().String()
	itemID := uuid.New().String()
	actorID := uuid.New().String()

	expectedLevel := domain.StockLevel{
		ID:          uuid.New().String(),
		WarehouseID: warehouseID,
		ItemID:      itemID,
		Quantity:    15,
		Version:     2,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	expectedTxn := domain.StockTransaction{
		ID:          uuid.New().String(),
		WarehouseID: warehouseID,
		ItemID:      itemID,
		Quantity:    5,
		Direction:   domain.DirectionInbound,
		ActorID:     actorID,
		CreatedAt:   time.Now(),
	}

	mockRepo.On("Adjust", mock.Anything, mock.AnythingOfType("domain.StockAdjustment")).
		Return(expectedLevel, expectedTxn, nil)
	mockAuditor.On("Record", mock.Anything, actorID, "stock_adjust", "stock_level", expectedLevel.ID, mock.AnythingOfType("string")).
		Return()

	level, txn, err := svc.Adjust(context.Background(), domain.StockAdjustment{
		WarehouseID: warehouseID,
		ItemID:      itemID,
		Delta:       5,
		ActorID:     actorID,
	})

	assert.NoError(t, err)
	assert.Equal(t, expectedLevel.Quantity, level.Quantity)
	assert.Equal(t, expectedLevel.Version, level.Version)
	assert.Equal(t, domain.DirectionInbound, txn.Direction)
	mockRepo.AssertExpectations(t)
	mockAuditor.AssertExpectations(t)
}

// TestAdjust_Fail_ZeroDelta testa a rejeição de um ajuste com delta zero.
func TestAdjust_Fail_ZeroDelta(t *testing.T) {
	mockRepo := new(MockStockRepository)
	mockAuditor := new(MockAuditor)
	mockLogger := logger.NewLogger("debug")

	svc := stockservice.NewService(mockRepo, mockAuditor, mockLogger)

	_, _, err := svc.Adjust(context.Background(), domain.StockAdjustment{
		WarehouseID: uuid.New().String(),
		ItemID:      uuid.New().String(),
		Delta:       0,
	})

	assert.Error(t, err)
	var validationErr *apperror.ValidationError
	assert.ErrorAs(t, err, &validationErr)
	mockRepo.AssertNotCalled(t, "Adjust", mock.Anything, mock.Anything)
}

// TestAdjust_Fail_InsufficientStock testa a propagação do erro de estoque insuficiente.
func TestAdjust_Fail_InsufficientStock(t *testing.T) {
	mockRepo := new(MockStockRepository)
	mockAuditor := new(MockAuditor)
	mockLogger := logger.NewLogger("debug")

	svc := stockservice.NewService(mockRepo, mockAuditor, mockLogger)

	mockRepo.On("Adjust", mock.Anything, mock.AnythingOfType("domain.StockAdjustment")).
		Return(domain.StockLevel{}, domain.StockTransaction{}, apperror.NewInsufficientStockError("Estoque insuficiente para o débito solicitado."))

	_, _, err := svc.Adjust(context.Background(), domain.StockAdjustment{
		WarehouseID: uuid.New().String(),
		ItemID:      uuid.New().String(),
		Delta:       -50,
		ActorID:     uuid.New().String(),
	})

	assert.Error(t, err)
	var insufficientErr *apperror.InsufficientStockError
	assert.ErrorAs(t, err, &insufficientErr)
	assert.False(t, apperror.IsRetryable(err))
	mockAuditor.AssertNotCalled(t, "Record", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	mockRepo.AssertExpectations(t)
}

// TestAdjust_Fail_InvalidWarehouseID testa a rejeição de IDs malformados.
func TestAdjust_Fail_InvalidWarehouseID(t *testing.T) {
	mockRepo := new(MockStockRepository)
	mockLogger := logger.NewLogger("debug")

	svc := stockservice.NewService(mockRepo, nil, mockLogger)

	_, _, err := svc.Adjust(context.Background(), domain.StockAdjustment{
		WarehouseID: "nao-e-uuid",
		ItemID:      uuid.New().String(),
		Delta:       3,
	})

	assert.Error(t, err)
	var validationErr *apperror.ValidationError
	assert.ErrorAs(t, err, &validationErr)
}

// TestSetMinStock_Fail_Negative testa a rejeição de limiar negativo.
func TestSetMinStock_Fail_Negative(t *testing.T) {
	mockRepo := new(MockStockRepository)
	mockLogger := logger.NewLogger("debug")

	svc := stockservice.NewService(mockRepo, nil, mockLogger)

	negative := -1
	err := svc.SetMinStock(context.Background(), uuid.New().String(), uuid.New().String(), &negative)

	assert.Error(t, err)
	mockRepo.AssertNotCalled(t, "SetMinStock", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// TestVerifyLedger_Match testa a verificação quando razão e nível coincidem.
func TestVerifyLedger_Match(t *testing.T) {
	mockRepo := new(MockStockRepository)
	mockLogger := logger.NewLogger("debug")

	svc := stockservice.NewService(mockRepo, nil, mockLogger)

	warehouseID := uuid.New().String()
	itemID := uuid.New().String()

	mockRepo.On("GetStockLevel", mock.Anything, warehouseID, itemID).
		Return(domain.StockLevel{WarehouseID: warehouseID, ItemID: itemID, Quantity: 12}, nil)
	mockRepo.On("SumTransactions", mock.Anything, warehouseID, itemID).
		Return(12, nil)

	sum, err := svc.VerifyLedger(context.Background(), warehouseID, itemID)

	assert.NoError(t, err)
	assert.Equal(t, 12, sum)
	mockRepo.AssertExpectations(t)
}

// TestVerifyLedger_Mismatch testa a detecção de divergência entre razão e nível.
func TestVerifyLedger_Mismatch(t *testing.T) {
	mockRepo := new(MockStockRepository)
	mockLogger := logger.NewLogger("debug")

	svc := stockservice.NewService(mockRepo, nil, mockLogger)

	warehouseID := uuid.New().String()
	itemID := uuid.New().String()

	mockRepo.On("GetStockLevel", mock.Anything, warehouseID, itemID).
		Return(domain.StockLevel{WarehouseID: warehouseID, ItemID: itemID, Quantity: 12}, nil)
	mockRepo.On("SumTransactions", mock.Anything, warehouseID, itemID).
		Return(9, nil)

	sum, err := svc.VerifyLedger(context.Background(), warehouseID, itemID)

	assert.Error(t, err)
	assert.Equal(t, 9, sum)
	var conflictErr *apperror.ConflictError
	assert.ErrorAs(t, err, &conflictErr)
	assert.True(t, apperror.IsRetryable(err))
	mockRepo.AssertExpectations(t)
}
