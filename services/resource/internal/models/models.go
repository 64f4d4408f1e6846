package models

// User is the denormalized mirror of an identity-service user: just enough
// to join local data. The identity service stays the source of truth.
type User struct {
	UserID   uint   `gorm:"primaryKey"           json:"user_id"`
	Username string `gorm:"uniqueIndex;not null" json:"username"`
}
