package overdueservice_test

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
	"assetstock/internal/service/overdueservice"
)

// MockRequestReader é uma implementação mock da interface RequestReader
type MockRequestReader struct {
	mock.Mock
}

func (m *MockRequestReader) ListOverdueCandidates(ctx context.Context, now time.Time) ([]domain.Request, error) {
	args := m.Called(ctx, now)
	return args.Get(0).([]domain.Request), args.Error(1)
}

func (m *MockRequestReader) FlagOverdueTx(ctx context.Context, tx *sql.Tx, id string) (int64, error) {
	args := m.Called(ctx, tx, id)
	return args.Get(0).(int64), args.Error(1)
}

// MockOverdueNotifier é uma implementação mock da interface OverdueNotifier
type MockOverdueNotifier struct {
	mock.Mock
}

func (m *MockOverdueNotifier) NotifyOverdueTx(ctx context.Context, tx *sql.Tx, req domain.Request) error {
	args := m.Called(ctx, tx, req)
	return args.Error(0)
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

func overdueRequest(due time.Time) domain.Request {
	return domain.Request{
		ID:      uuid.New().String(),
		UserID:  uuid.New().String(),
		Type:    domain.RequestBorrow,
		Status:  domain.RequestApproved,
		DueDate: &due,
	}
}

// TestScan_FlagsOverdueLoans testa a sinalização de empréstimos vencidos.
func TestScan_FlagsOverdueLoans(t *testing.T) {
	mockReader := new(MockRequestReader)
	mockNotifier := new(MockOverdueNotifier)
	mockRunner := new(MockTxRunner)
	mockAuditor := new(MockAuditor)
	mockLogger := logger.NewLogger("debug")

	svc := overdueservice.NewService(mockReader, mockNotifier, mockRunner, mockAuditor, mockLogger)

	now := time.Now().UTC()
	first := overdueRequest(now.AddDate(0, 0, -3))
	second := overdueRequest(now.AddDate(0, 0, -1))

	mockReader.On("ListOverdueCandidates", mock.Anything, now).Return([]domain.Request{first, second}, nil)
	mockRunner.On("RunTx", mock.Anything).Return(nil)
	mockReader.On("FlagOverdueTx", mock.Anything, mock.Anything, first.ID).Return(int64(1), nil)
	mockReader.On("FlagOverdueTx", mock.Anything, mock.Anything, second.ID).Return(int64(1), nil)
	mockNotifier.On("NotifyOverdueTx", mock.Anything, mock.Anything, first).Return(nil)
	mockNotifier.On("NotifyOverdueTx", mock.Anything, mock.Anything, second).Return(nil)
	mockAuditor.On("Record", mock.Anything, "system", "request_overdue", "request", mock.AnythingOfType("string"), "borrow").Return()

	result, err := svc.Scan(context.Background(), now)

	assert.NoError(t, err)
	assert.Equal(t, 2, result.Candidates)
	assert.Equal(t, 2, result.Flagged)
	mockReader.AssertExpectations(t)
	mockNotifier.AssertExpectations(t)
}

// TestScan_Idempotent testa que uma segunda varredura não re-sinaliza nem re-notifica.
func TestScan_Idempotent(t *testing.T) {
	mockReader := new(MockRequestReader)
	mockNotifier := new(MockOverdueNotifier)
	mockRunner := new(MockTxRunner)
	mockLogger := logger.NewLogger("debug")

	svc := overdueservice.NewService(mockReader, mockNotifier, mockRunner, nil, mockLogger)

	now := time.Now().UTC()
	req := overdueRequest(now.AddDate(0, 0, -2))

	mockReader.On("ListOverdueCandidates", mock.Anything, now).Return([]domain.Request{req}, nil)
	mockRunner.On("RunTx", mock.Anything).Return(nil)
	// Outra varredura sinalizou primeiro: zero linhas afetadas.
	mockReader.On("FlagOverdueTx", mock.Anything, mock.Anything, req.ID).Return(int64(0), nil)

	result, err := svc.Scan(context.Background(), now)

	assert.NoError(t, err)
	assert.Equal(t, 1, result.Candidates)
	assert.Equal(t, 0, result.Flagged)
	mockNotifier.AssertNotCalled(t, "NotifyOverdueTx", mock.Anything, mock.Anything, mock.Anything)
}

// TestScan_ContinuesAfterCandidateFailure testa que a falha em um candidato
// não interrompe os demais.
func TestScan_ContinuesAfterCandidateFailure(t *testing.T) {
	mockReader := new(MockRequestReader)
	mockNotifier := new(MockOverdueNotifier)
	mockRunner := new(MockTxRunner)
	mockLogger := logger.NewLogger("debug")

	svc := overdueservice.NewService(mockReader, mockNotifier, mockRunner, nil, mockLogger)

	now := time.Now().UTC()
	failing := overdueRequest(now.AddDate(0, 0, -5))
	healthy := overdueRequest(now.AddDate(0, 0, -4))

	mockReader.On("ListOverdueCandidates", mock.Anything, now).Return([]domain.Request{failing, healthy}, nil)
	mockRunner.On("RunTx", mock.Anything).Return(nil)
	mockReader.On("FlagOverdueTx", mock.Anything, mock.Anything, failing.ID).
		Return(int64(0), apperror.NewDBError("Falha ao sinalizar requisição em atraso", assert.AnError))
	mockReader.On("FlagOverdueTx", mock.Anything, mock.Anything, healthy.ID).Return(int64(1), nil)
	mockNotifier.On("NotifyOverdueTx", mock.Anything, mock.Anything, healthy).Return(nil)

	result, err := svc.Scan(context.Background(), now)

	assert.NoError(t, err)
	assert.Equal(t, 2, result.Candidates)
	assert.Equal(t, 1, result.Flagged)
	mockReader.AssertExpectations(t)
}

// TestScan_EmptyCandidates testa a varredura sem empréstimos vencidos.
func TestScan_EmptyCandidates(t *testing.T) {
	mockReader := new(MockRequestReader)
	mockRunner := new(MockTxRunner)
	mockLogger := logger.NewLogger("debug")

	svc := overdueservice.NewService(mockReader, new(MockOverdueNotifier), mockRunner, nil, mockLogger)

	now := time.Now().UTC()
	mockReader.On("ListOverdueCandidates", mock.Anything, now).Return([]domain.Request{}, nil)

	result, err := svc.Scan(context.Background(), now)

	assert.NoError(t, err)
	assert.Equal(t, 0, result.Candidates)
	assert.Equal(t, 0, result.Flagged)
	mockRunner.AssertNotCalled(t, "RunTx", mock.Anything)
}
