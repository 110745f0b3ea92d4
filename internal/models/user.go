package models

import "time"

// Roles a user can hold. Admins get access to the /api/admin surface.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User represents an account. A user authenticates through exactly one of
// two credential schemes: a local password (PasswordHash set) or a federated
// Clerk identity (ClerkID set). ClerkID is a pointer so that users without
// one do not collide on the unique index.
type User struct {
	ID              string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Email           string    `json:"email" gorm:"uniqueIndex;type:varchar(255)" validate:"required,email"`
	Name            string    `json:"name" validate:"required,min=1,max=100"`
	Role            string    `json:"role" gorm:"type:varchar(16);default:user"`
	ClerkID         *string   `json:"clerk_id,omitempty" gorm:"uniqueIndex;type:varchar(64)"`
	ProfileImageURL string    `json:"profile_image_url,omitempty"`
	PasswordHash    string    `json:"-" gorm:"type:varchar(255)"`
	CreatedAt       time.Time `json:"created_at"`
}
