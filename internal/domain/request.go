package domain

import "time"

// RequestType identifica o tipo da requisição; a aprovação despacha o
// efeito de estoque de acordo com este valor.
type RequestType string

const (
	RequestWithdraw RequestType = "withdraw"
	RequestBorrow   RequestType = "borrow"
	RequestReturn   RequestType = "return"
	RequestTransfer RequestType = "transfer"
)

// RequestStatus representa o ciclo de vida da requisição.
// pending é o estado inicial; approved e rejected são terminais —
// nenhuma transição posterior é permitida.
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestRejected RequestStatus = "rejected"
)

// Decision é o desfecho solicitado por um aprovador.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// RequestItem é um item (com quantidade) coberto por uma requisição.
type RequestItem struct {
	ItemID   string `json:"item_id"`
	Quantity int    `json:"quantity"`
}

// Request representa um pedido de retirada, empréstimo, devolução ou
// transferência de itens, decidido exatamente uma vez.
type Request struct {
	ID     string        `json:"id"`
	UserID string        `json:"user_id"` // Solicitante
	Type   RequestType   `json:"type"`
	Status RequestStatus `json:"status"`
	Items  []RequestItem `json:"items"`

	SourceWarehouseID      string  `json:"source_warehouse_id"`
	DestinationWarehouseID *string `json:"destination_warehouse_id,omitempty"` // Apenas transfer

	DueDate   *time.Time `json:"due_date,omitempty"` // Apenas borrow: createdAt + limite de empréstimo
	IsOverdue bool       `json:"is_overdue"`

	CreatedAt time.Time  `json:"created_at"`
	DecidedAt *time.Time `json:"decided_at,omitempty"`
	DecidedBy *string    `json:"decided_by,omitempty"`
}

// RequestInput é o payload de criação de uma requisição.
type RequestInput struct {
	Type                   RequestType   `json:"type"`
	Items                  []RequestItem `json:"items"`
	SourceWarehouseID      string        `json:"source_warehouse_id"`
	DestinationWarehouseID string        `json:"destination_warehouse_id,omitempty"`
}

// Settings é o objeto de valor de configuração do núcleo.
// Substitui o antigo registro único de settings buscado globalmente:
// é lido uma vez na inicialização e injetado nos serviços.
type Settings struct {
	BorrowLimitDays int
	CheckInterval   time.Duration
}
