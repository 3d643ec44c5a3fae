// Package models holds server-side persistence models that are not shared
// with clients.
package models

import "time"

// User is a registered account. The server stores only the salt and the
// password verifier.
type User struct {
	ID        string
	UserName  string
	Salt      []byte
	Verifier  []byte
	CreatedAt time.Time
}
