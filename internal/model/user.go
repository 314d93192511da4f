// Package model defines domain entities for the application.
package model

import "time"

// User is a registered guard. Identifier is the Telegram user id.
type User struct {
	Identifier int64     `json:"identifier"`
	Surname    string    `json:"surname"`
	CreatedAt  time.Time `json:"created_at"`
}
