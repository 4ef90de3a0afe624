package transferservice_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"assetstock/internal/domain"
	apperror "assetstock/internal/errors"
	"assetstock/internal/pkg/logger"
	"assetstock/internal/service/transferservice"
)

// MockStockLedger é uma implementação mock da interface StockLedger
type MockStockLedger struct {
	mock.Mock
}

func (m *MockStockLedger) AdjustTx(ctx context.Context, tx *sql.Tx, adj domain.StockAdjustment) (domain.StockLevel, domain.StockTransaction, error) {
	args := m.Called(ctx, tx, adj)
	return args.Get(0).(domain.StockLevel), args.Get(1).(domain.StockTransaction), args.Error(2)
}

func (m *MockStockLedger) Invalidate(ctx context.Context, warehouseID, itemID string) {
	m.Called(ctx, warehouseID, itemID)
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

// TestTransfer_Success testa uma transferência completa: débito na origem e crédito no destino.
func TestTransfer_Success(t *testing.T) {
	mockLedger := new(MockStockLedger)
	mockRunner := new(MockTxRunner)
	mockAuditor := new(MockAuditor)
	mockLogger := logger.NewLogger("debug")

	svc := transferservice.NewService(mockLedger, mockRunner, mockAuditor, mockLogger)

	sourceID := uuid.New().String()
	destinationID := uuid.New().String()
	itemID := uuid.New().String()
	actorID := uuid.New().String()

	outbound := domain.StockTransaction{ID: uuid.New().String(), WarehouseID: sourceID, ItemID: itemID, Quantity: 4, Direction: domain.DirectionOutbound}
	inbound := domain.StockTransaction{ID: uuid.New().String(), WarehouseID: destinationID, ItemID: itemID, Quantity: 4, Direction: domain.DirectionInbound}

	mockRunner.On("RunTx", mock.Anything).Return(nil)
	mockLedger.On("AdjustTx", mock.Anything, mock.Anything, mock.MatchedBy(func(adj domain.StockAdjustment) bool {
		return adj.WarehouseID == sourceID && adj.Delta == -4
	})).Return(domain.StockLevel{WarehouseID: sourceID, ItemID: itemID, Quantity: 6}, outbound, nil)
	mockLedger.On("AdjustTx", mock.Anything, mock.Anything, mock.MatchedBy(func(adj domain.StockAdjustment) bool {
		return adj.WarehouseID == destinationID && adj.Delta == 4
	})).Return(domain.StockLevel{WarehouseID: destinationID, ItemID: itemID, Quantity: 4}, inbound, nil)
	mockAuditor.On("Record", mock.Anything, actorID, "stock_transfer", "item", itemID, mock.AnythingOfType("string")).Return()
	mockLedger.On("Invalidate", mock.Anything, sourceID, itemID).Return()
	mockLedger.On("Invalidate", mock.Anything, destinationID, itemID).Return()

	result, err := svc.Transfer(context.Background(), domain.Transfer{
		SourceWarehouseID:      sourceID,
		DestinationWarehouseID: destinationID,
		ItemID:                 itemID,
		Quantity:               4,
		ActorID:                actorID,
	})

	assert.NoError(t, err)
	assert.Equal(t, domain.DirectionOutbound, result.Outbound.Direction)
	assert.Equal(t, domain.DirectionInbound, result.Inbound.Direction)
	assert.Equal(t, result.Outbound.Quantity, result.Inbound.Quantity)
	mockLedger.AssertExpectations(t)
	mockAuditor.AssertExpectations(t)
}

// TestTransfer_Fail_InsufficientSource testa que o destino nunca é creditado
// quando o débito na origem falha.
func TestTransfer_Fail_InsufficientSource(t *testing.T) {
	mockLedger := new(MockStockLedger)
	mockRunner := new(MockTxRunner)
	mockAuditor := new(MockAuditor)
	mockLogger := logger.NewLogger("debug")

	svc := transferservice.NewService(mockLedger, mockRunner, mockAuditor, mockLogger)

	sourceID := uuid.New().String()
	destinationID := uuid.New().String()
	itemID := uuid.New().String()

	mockRunner.On("RunTx", mock.Anything).Return(nil)
	mockLedger.On("AdjustTx", mock.Anything, mock.Anything, mock.MatchedBy(func(adj domain.StockAdjustment) bool {
		return adj.Delta < 0
	})).Return(domain.StockLevel{}, domain.StockTransaction{}, apperror.NewInsufficientStockError("Estoque insuficiente na origem."))

	_, err := svc.Transfer(context.Background(), domain.Transfer{
		SourceWarehouseID:      sourceID,
		DestinationWarehouseID: destinationID,
		ItemID:                 itemID,
		Quantity:               10,
		ActorID:                uuid.New().String(),
	})

	assert.Error(t, err)
	var insufficientErr *apperror.InsufficientStockError
	assert.ErrorAs(t, err, &insufficientErr)
	// O crédito no destino nunca deve ter sido tentado, e transação desfeita
	// não descarta cache.
	mockLedger.AssertNumberOfCalls(t, "AdjustTx", 1)
	mockLedger.AssertNotCalled(t, "Invalidate", mock.Anything, mock.Anything, mock.Anything)
	mockAuditor.AssertNotCalled(t, "Record", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// TestTransfer_Fail_SameWarehouse testa a rejeição de origem igual ao destino.
func TestTransfer_Fail_SameWarehouse(t *testing.T) {
	mockLedger := new(MockStockLedger)
	mockRunner := new(MockTxRunner)
	mockLogger := logger.NewLogger("debug")

	svc := transferservice.NewService(mockLedger, mockRunner, nil, mockLogger)

	warehouseID := uuid.New().String()

	_, err := svc.Transfer(context.Background(), domain.Transfer{
		SourceWarehouseID:      warehouseID,
		DestinationWarehouseID: warehouseID,
		ItemID:                 uuid.New().String(),
		Quantity:               1,
	})

	assert.Error(t, err)
	var validationErr *apperror.ValidationError
	assert.ErrorAs(t, err, &validationErr)
	mockLedger.AssertNotCalled(t, "AdjustTx", mock.Anything, mock.Anything, mock.Anything)
}

// TestTransfer_Fail_ZeroQuantity testa a rejeição de quantidade não positiva.
func TestTransfer_Fail_ZeroQuantity(t *testing.T) {
	mockLedger := new(MockStockLedger)
	mockRunner := new(MockTxRunner)
	mockLogger := logger.NewLogger("debug")

	svc := transferservice.NewService(mockLedger, mockRunner, nil, mockLogger)

	_, err := svc.Transfer(context.Background(), domain.Transfer{
		SourceWarehouseID:      uuid.New().String(),
		DestinationWarehouseID: uuid.New().String(),
		ItemID:                 uuid.New().String(),
		Quantity:               0,
	})

	assert.Error(t, err)
	var validationErr *apperror.ValidationError
	assert.ErrorAs(t, err, &validationErr)
}
