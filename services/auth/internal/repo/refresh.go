package repo

import (
	"context"
	"time"

	"gorm.io/gorm/clause"

	"identityhub/services/auth/internal/models"
)

// UpsertRefreshToken overwrites the user's single refresh-token row in one
// statement. Concurrent logins for the same user serialize on the unique
// user_id index, last writer wins.
func (r *GormRepo) UpsertRefreshToken(ctx context.Context, userID uint, tokenHash, jti string, expiresAt time.Time) error {
	row := models.RefreshToken{
		UserID:    userID,
		TokenHash: tokenHash,
		JTI:       jti,
		CreatedAt: time.Now().UTC(),
		ExpiresAt: expiresAt.Unix(),
		Revoked:   false,
	}

	return r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"token_hash", "jti", "created_at", "expires_at", "revoked"}),
	}).Create(&row).Error
}

// FindActiveRefreshToken returns the user's row only while it is unrevoked
// and unexpired; otherwise gorm.ErrRecordNotFound.
func (r *GormRepo) FindActiveRefreshToken(ctx context.Context, userID uint) (*models.RefreshToken, error) {
	var token models.RefreshToken
	err := r.DB.WithContext(ctx).
		Where("user_id = ? AND revoked = ? AND expires_at >= ?", userID, false, time.Now().Unix()).
		First(&token).Error
	if err != nil {
		return nil, err
	}
	return &token, nil
}

// RevokeRefreshToken soft-revokes: the stored hash is emptied and the row
// kept. A missing row is not an error, logout is idempotent.
func (r *GormRepo) RevokeRefreshToken(ctx context.Context, userID uint) error {
	return r.DB.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{"token_hash": "", "revoked": true}).Error
}
