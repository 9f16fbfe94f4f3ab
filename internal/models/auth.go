package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const (
	RoleCitizen   = "citizen"
	RoleVolunteer = "volunteer"
	RoleAdmin     = "admin"
)

type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`
	ID            uuid.UUID `bun:"id,pk,type:uuid" json:"id"`
	Email         string    `bun:"email,notnull" json:"email"`
	Name          string    `bun:"name,notnull" json:"name"`
	Role          string    `bun:"role,notnull" json:"role"`
	PushToken     *string   `bun:"push_token" json:"-"`
	Latitude      *float64  `bun:"latitude" json:"latitude,omitempty"`
	Longitude     *float64  `bun:"longitude" json:"longitude,omitempty"`
	TokenVersion  int       `bun:"token_version,notnull" json:"token_version"`
	CreatedAt     time.Time `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt     time.Time `bun:"updated_at,notnull" json:"updated_at"`
}

// HasPushAddress reports whether the user can receive push notifications.
func (u *User) HasPushAddress() bool {
	return u.PushToken != nil && *u.PushToken != ""
}

// Location returns the last reported position, if any.
func (u *User) Location() (Location, bool) {
	if u.Latitude == nil || u.Longitude == nil {
		return Location{}, false
	}
	return Location{Latitude: *u.Latitude, Longitude: *u.Longitude}, true
}

// Identity is the verified caller of an operation. It is resolved by the auth
// middleware and passed explicitly into every service call.
type Identity struct {
	UserID       uuid.UUID
	Role         string
	Name         string
	TokenVersion int
}

// Authenticated reports whether the identity names a user.
func (i Identity) Authenticated() bool {
	return i.UserID != uuid.Nil
}
