package domain

import "time"

// Direction indica o sentido de um movimento de estoque no razão.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// StockLevel representa o nível de estoque de um item em um armazém.
// A chave (WarehouseID, ItemID) é única; a linha é criada de forma
// preguiçosa no primeiro movimento de entrada e nunca fica negativa.
// Inclui uma coluna 'version' para controle de concorrência otimista.
type StockLevel struct {
	ID          string    `json:"id"`
	WarehouseID string    `json:"warehouse_id"`
	ItemID      string    `json:"item_id"`
	Quantity    int       `json:"quantity"`
	MinStock    *int      `json:"min_stock,omitempty"` // Limiar de alerta de estoque baixo (opcional)
	Version     int       `json:"version"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// StockTransaction é uma linha imutável do razão (append-only).
// A soma dos deltas assinados de um par (armazém, item) reconstrói
// exatamente o StockLevel.Quantity corrente.
type StockTransaction struct {
	ID          string    `json:"id"`
	WarehouseID string    `json:"warehouse_id"`
	ItemID      string    `json:"item_id"`
	Quantity    int       `json:"quantity"` // Magnitude (sempre positiva)
	Direction   Direction `json:"direction"`
	ReferenceID string    `json:"reference_id"` // Requisição ou operação de origem
	ActorID     string    `json:"actor_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// SignedDelta devolve o delta assinado da transação (+entrada, -saída).
func (t StockTransaction) SignedDelta() int {
	if t.Direction == DirectionOutbound {
		return -t.Quantity
	}
	return t.Quantity
}

// StockAdjustment é o payload de um ajuste de estoque no razão.
type StockAdjustment struct {
	WarehouseID string `json:"warehouse_id" validate:"required,uuid"`
	ItemID      string `json:"item_id" validate:"required,uuid"`
	Delta       int    `json:"delta" validate:"required,numeric"` // Assinado: positivo = entrada, negativo = saída
	ReferenceID string `json:"reference_id"`
	ActorID     string `json:"actor_id"`
}

// Transfer descreve a movimentação de um item entre dois armazéns.
type Transfer struct {
	SourceWarehouseID      string `json:"source_warehouse_id" validate:"required,uuid"`
	DestinationWarehouseID string `json:"destination_warehouse_id" validate:"required,uuid"`
	ItemID                 string `json:"item_id" validate:"required,uuid"`
	Quantity               int    `json:"quantity" validate:"required,gt=0"`
	ReferenceID            string `json:"reference_id"`
	ActorID                string `json:"actor_id"`
}

// TransferResult carrega o par de transações que materializa uma transferência.
// A saída na origem e a entrada no destino são sempre gravadas juntas ou nunca.
type TransferResult struct {
	Outbound StockTransaction `json:"outbound"`
	Inbound  StockTransaction `json:"inbound"`
}
