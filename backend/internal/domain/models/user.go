package models

import "time"

// TelegramUser is the user object carried inside signed init_data.
type TelegramUser struct {
	ID              int64  `json:"id"`
	IsBot           bool   `json:"is_bot,omitempty"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name,omitempty"`
	Username        string `json:"username,omitempty"`
	LanguageCode    string `json:"language_code,omitempty"`
	IsPremium       bool   `json:"is_premium,omitempty"`
	AllowsWriteToPm bool   `json:"allows_write_to_pm,omitempty"`
	PhotoURL        string `json:"photo_url,omitempty"`
}

// User is the stored record keyed by the Telegram id.
type User struct {
	ID          int64     `json:"id"`
	TgID        int64     `json:"tg_id"`
	Username    *string   `json:"username"`
	FirstName   string    `json:"first_name"`
	LastName    *string   `json:"last_name"`
	PhotoURL    *string   `json:"photo_url"`
	CreatedAt   time.Time `json:"created_at"`
	LastLoginAt time.Time `json:"last_login_at"`
}

// UserUpsert carries the values refreshed on every successful auth.
type UserUpsert struct {
	TgID      int64
	Username  *string
	FirstName string
	LastName  *string
	PhotoURL  *string
	LoginAt   time.Time
}
