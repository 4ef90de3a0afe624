package domain

import (
	"time"
)

// WarehouseType classifica o armazém dentro da organização.
type WarehouseType string

const (
	WarehouseMain       WarehouseType = "main"
	WarehouseDivision   WarehouseType = "division"
	WarehouseProvincial WarehouseType = "provincial"
)

// Warehouse representa um armazém físico ou lógico no sistema.
type Warehouse struct {
	ID   string        `json:"id"`
	Code string        `json:"code"` // Código único (e.g., "WH-CENTRAL")
	Name string        `json:"name"`
	Type WarehouseType `json:"type"`

	// ScopeRef é uma referência opaca de escopo organizacional
	// (divisão ou província); o núcleo não interpreta o valor.
	ScopeRef *string `json:"scope_ref,omitempty"`

	// ManagerID é o destinatário dos alertas de estoque baixo deste armazém.
	ManagerID *string `json:"manager_id,omitempty"`

	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
