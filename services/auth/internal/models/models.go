package models

import "time"

type User struct {
	ID           uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Username     string `gorm:"uniqueIndex;not null"     json:"username"`
	PasswordHash string `gorm:"not null"                 json:"-"`
	Role         string `gorm:"not null"                 json:"role"`
}

// RefreshToken keeps at most one live row per user: the unique index on
// UserID turns every new login into an overwrite of the previous token.
// Revocation empties the stored hash and flips Revoked instead of deleting
// the row, so the issue/revoke history survives.
type RefreshToken struct {
	ID        uint      `gorm:"primaryKey"           json:"id"`
	UserID    uint      `gorm:"uniqueIndex;not null" json:"user_id"`
	TokenHash string    `json:"-"`
	JTI       string    `json:"jti"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt int64     `gorm:"not null"             json:"expires_at"`
	Revoked   bool      `gorm:"default:false"        json:"revoked"`
}
