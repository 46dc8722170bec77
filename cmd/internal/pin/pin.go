package pin

import (
	"maps"
	"time"
)

// Status is the derived lifecycle state of a pin.
type Status string

const (
	StatusActive   Status = "active"
	StatusExpired  Status = "expired"
	StatusArchived Status = "archived"
)

// Metadata carries auxiliary flags attached to a pin.
type Metadata struct {
	ContainsLetters bool              `json:"containsLetters,omitempty"`
	Source          string            `json:"source,omitempty"`
	Labels          map[string]string `json:"labels,omitempty"`
}

// Pin is one issued access code.
type Pin struct {
	ID        string    `json:"id"`
	Code      string    `json:"pin"`
	UserID    string    `json:"userId"`
	UserTag   string    `json:"userTag"`
	RoleName  string    `json:"roleName"`
	RoleID    string    `json:"roleId"`
	ExpiresAt time.Time `json:"expirationDate"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Metadata  Metadata  `json:"metadata"`
}

// ArchivedPin is a pin moved out of the live set.
type ArchivedPin struct {
	Pin
	ArchivedAt time.Time `json:"archivedAt"`
}

// DeriveStatus computes the status of p at now.
// Archived is terminal; otherwise the expiration decides.
func DeriveStatus(p Pin, now time.Time) Status {
	if p.Status == StatusArchived {
		return StatusArchived
	}
	if p.ExpiresAt.Before(now) {
		return StatusExpired
	}
	return StatusActive
}

// Snapshot is the audited subset of a pin.
type Snapshot struct {
	RoleName       string    `json:"roleName"`
	ExpirationDate time.Time `json:"expirationDate"`
}

// Snapshot returns the audited subset of p.
func (p Pin) Snapshot() Snapshot {
	return Snapshot{RoleName: p.RoleName, ExpirationDate: p.ExpiresAt}
}

func (p Pin) clone() Pin {
	p.Metadata.Labels = maps.Clone(p.Metadata.Labels)
	return p
}
