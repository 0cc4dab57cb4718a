// Package users implements the user store manager: the single sanctioned
// access path to the persisted user collection. It owns loading, saving with
// backup, validation, integrity checking, and repair.
//
// JSON field names match the persisted format of the original application,
// so previously stored payloads remain readable.
package users

import "time"

// User is one account record in the persisted collection.
type User struct {
	// ID has the form USR-NNN and never changes after creation.
	// USR-001 is reserved for the default administrator.
	ID string `json:"id"`

	Nome  string `json:"nome"`
	Email string `json:"email"`

	// Senha is stored in plain form in this layer.
	Senha string `json:"senha"`

	// PrimeiroAcesso forces a password change on the next login. It is set
	// on creation/reset and cleared by a self-service secret change.
	PrimeiroAcesso bool `json:"primeiro_acesso"`

	IsAdmin bool `json:"is_admin"`

	// Ativo marks the record as active. Inactive records are retained,
	// never deleted.
	Ativo bool `json:"ativo"`

	// CreatedAt/UpdatedAt are milliseconds since the epoch.
	CreatedAt int64 `json:"created_at"`
	UpdatedAt int64 `json:"updated_at,omitempty"`
}

// PublicUser is a User with the secret stripped, safe to export.
type PublicUser struct {
	ID        string `json:"id"`
	Nome      string `json:"nome"`
	Email     string `json:"email"`
	IsAdmin   bool   `json:"is_admin"`
	Ativo     bool   `json:"ativo"`
	CreatedAt int64  `json:"created_at"`
}

// Public returns the export view of u.
func (u User) Public() PublicUser {
	return PublicUser{
		ID:        u.ID,
		Nome:      u.Nome,
		Email:     u.Email,
		IsAdmin:   u.IsAdmin,
		Ativo:     u.Ativo,
		CreatedAt: u.CreatedAt,
	}
}

// Stats summarizes the collection.
type Stats struct {
	Total  int `json:"total"`
	Ativos int `json:"ativos"`
	Admins int `json:"admins"`
}

// Patch carries the fields Update may change. Nil fields are left untouched.
// ID and CreatedAt are deliberately absent: they are immutable.
type Patch struct {
	Nome           *string
	Email          *string
	Senha          *string
	PrimeiroAcesso *bool
	IsAdmin        *bool
	Ativo          *bool
}

// nowMillis is a test seam for the clock.
var nowMillis = func() int64 { return time.Now().UnixMilli() }
