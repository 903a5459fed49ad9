package models

import "time"

// Role is the capability set of an authenticated identity.
type Role string

const (
	RoleOwner     Role = "owner"
	RoleSecretary Role = "secretary"
	RoleCaptador  Role = "captador"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleSecretary, RoleCaptador:
		return true
	}
	return false
}

// Delegated reports whether r reads and writes through another owner's document.
func (r Role) Delegated() bool {
	return r == RoleSecretary || r == RoleCaptador
}

// UserRole is the role record tied to an identity. OwnerID names the
// primary owner whose document the identity works against.
type UserRole struct {
	UserID    string    `gorm:"primaryKey;size:128" json:"userId" validate:"required"`
	Role      Role      `gorm:"size:32;not null" json:"role" validate:"required,oneof=owner secretary captador"`
	OwnerID   string    `gorm:"size:128;index" json:"ownerId,omitempty"`
	Name      string    `gorm:"size:255" json:"name,omitempty"`
	Email     string    `gorm:"size:255" json:"email,omitempty" validate:"omitempty,email"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

// TableName overrides the table name for UserRole
func (UserRole) TableName() string {
	return "user_roles"
}

// TeamMember is one entry of an owner's roster of delegated identities.
type TeamMember struct {
	OwnerID   string    `gorm:"primaryKey;size:128" json:"ownerId"`
	MemberID  string    `gorm:"primaryKey;size:128" json:"memberId" validate:"required"`
	Role      Role      `gorm:"size:32;not null" json:"role" validate:"required,oneof=secretary captador"`
	Name      string    `gorm:"size:255" json:"name,omitempty"`
	Email     string    `gorm:"size:255" json:"email,omitempty" validate:"omitempty,email"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

// TableName overrides the table name for TeamMember
func (TeamMember) TableName() string {
	return "team_members"
}
