package domain

import (
	"fmt"
	"time"
)

// Role controls which API surface an API key may reach
type Role string

const (
	// RoleAdmin may manage the knowledge base and everything agents can.
	RoleAdmin Role = "admin"
	// RoleAgent may work tickets and read analytics.
	RoleAgent Role = "agent"
)

// APIKey is a hashed API credential with an attached role.
type APIKey struct {
	ID        string
	Name      string
	Role      Role
	KeyHash   string
	CreatedAt time.Time
	RevokedAt *time.Time
}

// IsRevoked reports whether the key has been revoked
func (k *APIKey) IsRevoked() bool {
	return k.RevokedAt != nil
}

// CanManageKnowledgeBase reports whether the role may mutate the knowledge base.
func (r Role) CanManageKnowledgeBase() bool {
	return r == RoleAdmin
}

// CanWorkTickets reports whether the role may read and reply to tickets.
func (r Role) CanWorkTickets() bool {
	return r == RoleAdmin || r == RoleAgent
}

// ValidateAPIKey validates an APIKey instance
func ValidateAPIKey(k *APIKey) error {
	if k == nil {
		return fmt.Errorf("api key cannot be nil")
	}
	if k.ID == "" {
		return fmt.Errorf("api key ID is required")
	}
	if k.Name == "" {
		return fmt.Errorf("api key Name is required")
	}
	if k.KeyHash == "" {
		return fmt.Errorf("api key KeyHash is required")
	}
	if !isValidRole(k.Role) {
		return fmt.Errorf("api key Role is invalid: %s", k.Role)
	}
	return nil
}

func isValidRole(r Role) bool {
	switch r {
	case RoleAdmin, RoleAgent:
		return true
	}
	return false
}
