package auth

import (
	"errors"
	"fmt"

	domain "github.com/MossTheFox/coursework-jtodo-server/domain/account"
	"gorm.io/gorm"
)

// ErrAccountNotFound is returned when an account is not found.
var ErrAccountNotFound = errors.New("account not found")

// AccountRepository handles account persistence using GORM.
type AccountRepository struct {
	db *gorm.DB
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// FindByUnionID finds an account by its QQ unionID.
func (r *AccountRepository) FindByUnionID(unionID string) (*domain.Account, error) {
	var acct domain.Account
	if err := r.db.First(&acct, "qq_union_id = ?", unionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to find account: %w", err)
	}
	return &acct, nil
}

// Create inserts a new account.
func (r *AccountRepository) Create(acct *domain.Account) error {
	if err := r.db.Create(acct).Error; err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

// Save updates an existing account's mutable profile fields.
func (r *AccountRepository) Save(acct *domain.Account) error {
	if err := r.db.Model(&domain.Account{}).
		Where("qq_union_id = ?", acct.QQUnionID).
		Updates(map[string]any{
			"username":   acct.Username,
			"avatar_url": acct.AvatarURL,
		}).Error; err != nil {
		return fmt.Errorf("failed to save account: %w", err)
	}
	return nil
}
