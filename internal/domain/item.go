package domain

import "time"

// ItemType distingue bens duráveis (emprestáveis) de consumíveis.
type ItemType string

const (
	ItemDurable    ItemType = "durable"
	ItemConsumable ItemType = "consumable"
)

// ItemStatus é um resumo derivado da situação do item.
// A disponibilidade autoritativa é sempre StockLevel.Quantity;
// este campo é mantido pelo serviço de requisições como efeito colateral
// da aprovação (empréstimo/devolução), nunca como fonte de verdade.
type ItemStatus string

const (
	ItemAvailable     ItemStatus = "available"
	ItemBorrowed      ItemStatus = "borrowed"
	ItemMaintenance   ItemStatus = "maintenance"
	ItemIssueReported ItemStatus = "issue_reported"
)

// Item representa um bem físico do catálogo (durável ou consumível).
type Item struct {
	ID       string     `json:"id"`
	Name     string     `json:"name"`
	Category string     `json:"category"`
	Type     ItemType   `json:"type"`
	Serial   *string    `json:"serial,omitempty"` // Número de série (único, opcional)
	Status   ItemStatus `json:"status"`

	// HolderID é a referência explícita ao detentor atual do item.
	// Atualizada apenas pelo serviço de requisições em empréstimo/devolução.
	HolderID *string `json:"holder_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
