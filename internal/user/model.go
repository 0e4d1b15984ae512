package user

import "time"

// User is a studio client identified by their Telegram account.
type User struct {
	ID        int       `db:"id" json:"id"`
	TgID      int64     `db:"tg_id" json:"tg_id"`
	Name      string    `db:"name" json:"name"`
	Phone     *string   `db:"phone" json:"phone,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

type RegisterRequest struct {
	TgID  int64   `json:"tg_id" binding:"required"`
	Name  string  `json:"name" binding:"required"`
	Phone *string `json:"phone"`
}
