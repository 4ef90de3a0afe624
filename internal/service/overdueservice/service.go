package overdueservice

import (
	"context"
	"database/sql"
	"time"

	"assetstock/internal/domain"
	"assetstock/internal/pkg/database"
	"assetstock/internal/pkg/logger"
)

// RequestReader é a fatia do repositório de requisições usada pela varredura.
type RequestReader interface {
	ListOverdueCandidates(ctx context.Context, now time.Time) ([]domain.Request, error)
	FlagOverdueTx(ctx context.Context, tx *sql.Tx, id string) (int64, error)
}

// OverdueNotifier avisa o solicitante na mesma transação que sinaliza o atraso.
type OverdueNotifier interface {
	NotifyOverdueTx(ctx context.Context, tx *sql.Tx, req domain.Request) error
}

// Auditor é o colaborador de auditoria (best-effort, pós-commit).
type Auditor interface {
	Record(ctx context.Context, actorID, action, entity, entityID, details string)
}

// ScanResult resume uma varredura de atrasos.
type ScanResult struct {
	Candidates int       `json:"candidates"`
	Flagged    int       `json:"flagged"`
	Timestamp  time.Time `json:"timestamp"`
}

// Service é o monitor de atrasos: varre empréstimos aprovados com prazo
// vencido e os sinaliza de forma idempotente. Varreduras concorrentes ou
// repetidas são inofensivas porque a sinalização é uma atualização
// condicional por requisição.
type Service struct {
	requests RequestReader
	notifier OverdueNotifier
	txRunner database.TxRunner
	auditor  Auditor
	logger   logger.Logger
}

// NewService cria e retorna uma nova instância do Monitor de Atrasos.
func NewService(requests RequestReader, notifier OverdueNotifier, txRunner database.TxRunner, auditor Auditor, logger logger.Logger) *Service {
	return &Service{
		requests: requests,
		notifier: notifier,
		txRunner: txRunner,
		auditor:  auditor,
		logger:   logger,
	}
}

// Scan sinaliza os empréstimos vencidos em relação a now e devolve o resumo.
// A falha em um candidato não interrompe os demais.
func (s *Service) Scan(ctx context.Context, now time.Time) (ScanResult, error) {
	s.logger.Debug("Iniciando varredura de atrasos.", map[string]interface{}{"now": now})

	candidates, err := s.requests.ListOverdueCandidates(ctx, now)
	if err != nil {
		s.logger.Error("Falha ao listar candidatos a atraso.", err)
		return ScanResult{}, err
	}

	result := ScanResult{Candidates: len(candidates), Timestamp: now}
	for _, req := range candidates {
		flagged, err := s.flag(ctx, req)
		if err != nil {
			s.logger.Error("Falha ao sinalizar empréstimo em atraso.", err)
			continue
		}
		if flagged {
			result.Flagged++
			if s.auditor != nil {
				s.auditor.Record(ctx, "system", "request_overdue", "request", req.ID, "borrow")
			}
		}
	}

	s.logger.Info("Varredura de atrasos concluída.", map[string]interface{}{
		"candidates": result.Candidates,
		"flagged":    result.Flagged,
	})
	return result, nil
}

// flag sinaliza um único candidato; zero linhas afetadas significa que outra
// varredura chegou primeiro e nenhum aviso é reemitido.
func (s *Service) flag(ctx context.Context, req domain.Request) (bool, error) {
	var flagged bool
	err := s.txRunner.RunTx(ctx, func(tx *sql.Tx) error {
		rows, err := s.requests.FlagOverdueTx(ctx, tx, req.ID)
		if err != nil {
			return err
		}
		if rows == 0 {
			return nil
		}
		flagged = true
		return s.notifier.NotifyOverdueTx(ctx, tx, req)
	})
	return flagged, err
}
