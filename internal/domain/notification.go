package domain

import "time"

// Notification é um aviso derivado de eventos do sistema (estoque baixo,
// item em atraso). Criada apenas pelo emissor de notificações; nunca é
// mutada exceto pelo flag Read.
type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Text      string    `json:"text"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}
