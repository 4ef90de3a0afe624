package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError é a interface central para todos os erros customizados do AssetStock.
// Ela permite que o código externo (Handler) acesse a Categoria e a Mensagem do erro.
type AppError interface {
	Error() string    // Implementa a interface error padrão do Go
	Category() string // Categoria do erro (e.g., "VALIDATION", "NOT_FOUND", "INTERNAL")
	HTTPStatus() int  // Código HTTP sugerido para o Handler
	Unwrap() error    // Permite encapsular erros subjacentes (original error)
}

// --- Tipos de Erro Específicos (Erros de Domínio) ---

// ValidationError representa falhas de validação de dados de entrada.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string    { return fmt.Sprintf("Erro de Validação: %s", e.Msg) }
func (e *ValidationError) Category() string { return "VALIDATION_ERROR" }
func (e *ValidationError) HTTPStatus() int  { return http.StatusBadRequest } // 400
func (e *ValidationError) Unwrap() error    { return nil }

// NewValidationError cria um novo erro de validação.
func NewValidationError(msg string) AppError {
	return &ValidationError{Msg: msg}
}

// NotFoundError representa a ausência de um recurso solicitado.
type NotFoundError struct {
	Msg string
}

func (e *NotFoundError) Error() string    { return fmt.Sprintf("Recurso não encontrado: %s", e.Msg) }
func (e *NotFoundError) Category() string { return "NOT_FOUND" }
func (e *NotFoundError) HTTPStatus() int  { return http.StatusNotFound } // 404
func (e *NotFoundError) Unwrap() error    { return nil }

// NewNotFoundError cria um novo erro de recurso não encontrado.
func NewNotFoundError(msg string) AppError {
	return &NotFoundError{Msg: msg}
}

// UnauthorizedError representa falta de autenticação ou de permissão.
type UnauthorizedError struct {
	Msg string
}

func (e *UnauthorizedError) Error() string    { return fmt.Sprintf("Não autorizado: %s", e.Msg) }
func (e *UnauthorizedError) Category() string { return "UNAUTHORIZED" }
func (e *UnauthorizedError) HTTPStatus() int  { return http.StatusUnauthorized } // 401
func (e *UnauthorizedError) Unwrap() error    { return nil }

// NewUnauthorizedError cria um novo erro de autorização.
func NewUnauthorizedError(msg string) AppError {
	return &UnauthorizedError{Msg: msg}
}

// InsufficientStockError indica que uma saída deixaria o estoque negativo.
// Recuperável pelo chamador (rejeitar ou pedir quantidade parcial);
// aborta integralmente a transação que o envolve.
type InsufficientStockError struct {
	Msg string
}

func (e *InsufficientStockError) Error() string    { return fmt.Sprintf("Estoque insuficiente: %s", e.Msg) }
func (e *InsufficientStockError) Category() string { return "INSUFFICIENT_STOCK" }
func (e *InsufficientStockError) HTTPStatus() int  { return http.StatusConflict } // 409
func (e *InsufficientStockError) Unwrap() error    { return nil }

// NewInsufficientStockError cria um novo erro de estoque insuficiente.
func NewInsufficientStockError(msg string) AppError {
	return &InsufficientStockError{Msg: msg}
}

// InvalidTransitionError indica uma decisão sobre requisição não-pendente
// (já decidida, ou perdedora de uma corrida de decisão concorrente).
// Não é retentado automaticamente.
type InvalidTransitionError struct {
	Msg string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("Transição inválida: %s", e.Msg)
}
func (e *InvalidTransitionError) Category() string { return "INVALID_TRANSITION" }
func (e *InvalidTransitionError) HTTPStatus() int  { return http.StatusConflict } // 409
func (e *InvalidTransitionError) Unwrap() error    { return nil }

// NewInvalidTransitionError cria um novo erro de transição de estado.
func NewInvalidTransitionError(msg string) AppError {
	return &InvalidTransitionError{Msg: msg}
}

// ConflictError representa um conflito na regra de negócio (e.g., OCC, recurso duplicado).
type ConflictError struct {
	Msg string
}

func (e *ConflictError) Error() string    { return fmt.Sprintf("Conflito de estado: %s", e.Msg) }
func (e *ConflictError) Category() string { return "CONFLICT" }
func (e *ConflictError) HTTPStatus() int  { return http.StatusConflict } // 409
func (e *ConflictError) Unwrap() error    { return nil }

// NewConflictError cria um novo erro de conflito (usado em OCC).
func NewConflictError(msg string) AppError {
	return &ConflictError{Msg: msg}
}

// --- Tipos de Erro de Infraestrutura (Encapsulamento) ---

// InternalError representa falhas inesperadas no servidor, serviço ou repositório.
type InternalError struct {
	Msg string
	Err error // Erro original subjacente (e.g., erro do driver SQL)
}

func (e *InternalError) Error() string    { return fmt.Sprintf("Erro Interno: %s", e.Msg) }
func (e *InternalError) Category() string { return "INTERNAL_ERROR" }
func (e *InternalError) HTTPStatus() int  { return http.StatusInternalServerError } // 500
func (e *InternalError) Unwrap() error    { return e.Err }

// NewInternalError cria um erro de servidor (para falhas de lógica ou código não esperado).
func NewInternalError(msg string, err error) AppError {
	return &InternalError{Msg: msg, Err: err}
}

// NewDBError é um atalho para criar um InternalError específico de falhas no DB.
func NewDBError(msg string, err error) AppError {
	return NewInternalError(fmt.Sprintf("%s (DB): %s", msg, err.Error()), err)
}

// IsRetryable distingue falha transitória de infraestrutura (perda de conexão,
// timeout de lock) de erro de domínio. Erros de domínio nunca são retentados
// automaticamente; falhas de infraestrutura são seguras para retry com backoff.
func IsRetryable(err error) bool {
	var internal *InternalError
	if errors.As(err, &internal) {
		return true
	}
	var conflict *ConflictError
	if errors.As(err, &conflict) {
		// Perdedor de OCC: o estado mudou sob nossos pés, reler e tentar de novo.
		return true
	}
	return false
}

// --- Helper para o Handler (Tradução Final) ---

// MapToHTTPStatus recebe um erro e o traduz para o código HTTP e corpo de resposta.
func MapToHTTPStatus(err error) (int, string, string) {
	if appErr, ok := err.(AppError); ok {
		// O erro é tipado (ValidationError, InsufficientStockError, etc.)
		return appErr.HTTPStatus(), appErr.Category(), appErr.Error()
	}

	// Erro não tipado (e.g., erro simples de pacote Go que não implementa AppError)
	// Tratar como erro interno genérico.
	return http.StatusInternalServerError, "UNKNOWN_ERROR", "Ocorreu um erro inesperado."
}
