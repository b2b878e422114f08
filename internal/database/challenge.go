package coordinatordb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// SaveChallenge saves an authentication challenge
func (s *Store) SaveChallenge(ctx context.Context, challenge Challenge) error {
	sqliteChallenge := SQLiteChallenge{
		Challenge: challenge.Challenge,
		Hash:      challenge.Hash,
		Status:    challenge.Status,
		Address:   challenge.Address,
	}
	sqliteChallenge.CreatedAt = challenge.CreatedAt

	if !challenge.UsedAt.IsZero() {
		sqliteChallenge.UsedAt = &challenge.UsedAt
	}

	if !challenge.ExpiredAt.IsZero() {
		sqliteChallenge.ExpiredAt = &challenge.ExpiredAt
	}

	return s.db.WithContext(ctx).Create(&sqliteChallenge).Error
}

// GetChallenge retrieves a challenge by its hash
func (s *Store) GetChallenge(ctx context.Context, hash string) (*Challenge, error) {
	var sqliteChallenge SQLiteChallenge

	if err := s.db.WithContext(ctx).Where("hash = ?", hash).First(&sqliteChallenge).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("challenge not found")
		}
		return nil, err
	}

	challenge := Challenge{
		Challenge: sqliteChallenge.Challenge,
		Hash:      sqliteChallenge.Hash,
		Status:    sqliteChallenge.Status,
		Address:   sqliteChallenge.Address,
		CreatedAt: sqliteChallenge.CreatedAt,
	}

	if sqliteChallenge.UsedAt != nil {
		challenge.UsedAt = *sqliteChallenge.UsedAt
	}

	if sqliteChallenge.ExpiredAt != nil {
		challenge.ExpiredAt = *sqliteChallenge.ExpiredAt
	}

	return &challenge, nil
}

// MarkChallengeAsUsed marks an unused challenge as used by address. It fails
// if the challenge was already used or has expired.
func (s *Store) MarkChallengeAsUsed(ctx context.Context, hash, address string) error {
	now := time.Now()

	result := s.db.WithContext(ctx).Model(&SQLiteChallenge{}).
		Where("hash = ? AND status = ?", hash, ChallengeStatusUnused).
		Updates(map[string]interface{}{
			"status":  ChallengeStatusUsed,
			"used_at": now,
			"address": address,
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return fmt.Errorf("challenge not found or already used")
	}

	return nil
}

// ExpireOldChallenges marks unused challenges older than ChallengeTTL as expired
func (s *Store) ExpireOldChallenges(ctx context.Context) error {
	now := time.Now()

	return s.db.WithContext(ctx).Model(&SQLiteChallenge{}).
		Where("status = ? AND created_at < ?", ChallengeStatusUnused, now.Add(-ChallengeTTL)).
		Updates(map[string]interface{}{
			"status":     ChallengeStatusExpired,
			"expired_at": now,
		}).Error
}
