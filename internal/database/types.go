package coordinatordb

import "time"

type Challenge struct {
	Challenge string    `json:"challenge"`
	Hash      string    `json:"hash"`
	Status    string    `json:"status"` // "unused", "used", "expired"
	Address   string    `json:"address"`
	CreatedAt time.Time `json:"created_at"`
	UsedAt    time.Time `json:"used_at,omitempty"`
	ExpiredAt time.Time `json:"expired_at,omitempty"`
}
