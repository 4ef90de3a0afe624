package database

import (
	"context"
	"database/sql"
	"time"

	"assetstock/internal/errors"
)

// TxRunner é o contrato de execução transacional compartilhado pelos serviços.
// Toda operação que afeta estoque (ajuste, transferência, aprovação) roda
// dentro de uma única transação atômica aberta por aqui; os repositórios
// expõem variantes *Tx que recebem a transação corrente.
type TxRunner interface {
	RunTx(ctx context.Context, fn func(tx *sql.Tx) error) error
}

// SQLTxRunner é a implementação concreta de TxRunner sobre *sql.DB.
type SQLTxRunner struct {
	DB      *sql.DB
	Timeout time.Duration
}

// NewTxRunner cria um executor de transações com timeout limitado.
func NewTxRunner(db *sql.DB, timeout time.Duration) *SQLTxRunner {
	return &SQLTxRunner{DB: db, Timeout: timeout}
}

// RunTx abre a transação, executa fn e commita; qualquer erro de fn
// (inclusive erro de domínio como estoque insuficiente) desfaz tudo.
func (r *SQLTxRunner) RunTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	tx, err := r.DB.BeginTx(ctxTimeout, nil)
	if err != nil {
		return errors.NewDBError("Falha ao iniciar transação", err)
	}

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return errors.NewDBError("Falha ao commitar transação", err)
	}

	return nil
}
