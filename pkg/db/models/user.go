package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/bazaarly/bazaarly-backend/pkg/enums"
)

// User carries the identity and role the order flow needs for authorization
// checks. Account management is owned by a separate service.
type User struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name      string          `gorm:"column:name;not null"`
	Email     string          `gorm:"column:email;not null;uniqueIndex"`
	Phone     string          `gorm:"column:phone;not null;default:''"`
	Role      enums.ActorRole `gorm:"column:role;not null;default:'buyer'"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
