package account

import "time"

// Account represents a registered user, keyed by the QQ unionID obtained
// during the OAuth exchange.
type Account struct {
	QQUnionID    string `gorm:"primaryKey;size:64"`
	Username     string `gorm:"not null"`
	AvatarURL    string
	RegisteredAt time.Time
}

// TableName returns the table name for the Account entity.
func (Account) TableName() string {
	return "accounts"
}

// Claims carries the authenticated identity through a request.
type Claims struct {
	QQUnionID string `json:"qqUnionID"`
}
