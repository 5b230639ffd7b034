package model

import "time"

// AdminAccount holds bcrypt-hashed credentials for the admin surface.
// Sessions against these accounts are short-lived signed tokens; no shared
// static secret exists anywhere in application code.
type AdminAccount struct {
	Email        string `gorm:"column:email;primaryKey;size:320;not null"`
	PasswordHash string `gorm:"column:password_hash;size:190;not null"`
	DisplayName  string `gorm:"column:display_name;size:190;not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (AdminAccount) TableName() string {
	return "admin_accounts"
}
