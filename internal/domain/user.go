package domain

import "time"

// User representa a entidade do usuário no sistema.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"` // Oculta o hash da senha no JSON de resposta
	Role         UserRole  `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// UserRole é um tipo string para representar o papel do usuário no sistema.
type UserRole string

// Constantes para os papéis de usuário. Aprovação de requisições exige
// admin ou approver.
const (
	RoleAdmin    UserRole = "admin"
	RoleApprover UserRole = "approver"
	RoleUser     UserRole = "user"
)

// CanDecide informa se o papel autoriza aprovar/rejeitar requisições.
func (r UserRole) CanDecide() bool {
	return r == RoleAdmin || r == RoleApprover
}

// UserRegistration representa o payload de entrada para o registro.
type UserRegistration struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}
