// Package store persists user accounts and generated itineraries. Postgres
// backs production deployments; Memory backs tests and dev mode.
package store

import (
	"context"
	"strings"
	"time"

	"github.com/tripweave/tripweave/itinerary"
)

// Pagination bounds for ListItineraries.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// User is a registered account.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Itinerary is a stored generation result owned by a user. Payload is the
// validated plan exactly as the generator produced it.
type Itinerary struct {
	ID          string               `json:"id"`
	UserID      string               `json:"user_id"`
	Destination string               `json:"destination"`
	Duration    int                  `json:"duration"`
	Language    string               `json:"language"`
	Model       string               `json:"model"`
	Payload     *itinerary.Itinerary `json:"payload"`
	CreatedAt   time.Time            `json:"created_at"`
}

// UserStore persists accounts. CreateUser fills ID and CreatedAt and
// normalizes Email; a duplicate email is ErrEmailTaken.
type UserStore interface {
	CreateUser(ctx context.Context, u *User) error
	GetUser(ctx context.Context, id string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
}

// ItineraryStore persists generation results. All reads and deletes are
// scoped by owner: another user's record is indistinguishable from a
// missing one (ErrNotFound).
type ItineraryStore interface {
	CreateItinerary(ctx context.Context, it *Itinerary) error
	GetItinerary(ctx context.Context, userID, id string) (*Itinerary, error)
	ListItineraries(ctx context.Context, userID string, limit, offset int) ([]*Itinerary, int, error)
	DeleteItinerary(ctx context.Context, userID, id string) error
}

// normalizeEmail is applied on every write and email lookup so that
// addresses compare case-insensitively.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// clampPage applies the pagination bounds to caller-supplied values.
func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
