package storage

import "time"

// ServerRecord is the durable configuration of one server. Live
// connection state and the channel directory are never persisted.
type ServerRecord struct {
	ID                string    `db:"id" json:"id"`
	Name              string    `db:"name" json:"name"`
	Host              string    `db:"host" json:"host"`
	Port              int       `db:"port" json:"port"`
	Nickname          string    `db:"nickname" json:"nickname"`
	Password          string    `db:"-" json:"password,omitempty"` // Kept in the OS keychain
	TLS               bool      `db:"tls" json:"tls"`
	LastActiveChannel string    `db:"last_active_channel" json:"last_active_channel"`
	Position          int       `db:"position" json:"position"` // Order servers were added in
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// Gateway loads and saves server configuration keyed by server id
type Gateway interface {
	Save(records map[string]ServerRecord) error
	Load() (map[string]ServerRecord, error)
}

// PasswordStore keeps server passwords out of the database
type PasswordStore interface {
	StorePassword(user string, password string) error
	GetPassword(user string) (string, error)
	DeletePassword(user string) error
}
