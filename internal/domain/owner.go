package domain

import (
	"strings"

	"github.com/google/uuid"
)

// GuestPrefix marks identifiers minted for anonymous shoppers.
const GuestPrefix = "guest_"

type OwnerKind string

const (
	OwnerUser    OwnerKind = "user"
	OwnerSession OwnerKind = "session"
)

// Owner identifies whose cart an operation targets. Exactly one of the two
// identifier spaces applies, decided once at the request boundary.
type Owner struct {
	Kind OwnerKind
	ID   string
}

func UserOwner(id string) Owner {
	return Owner{Kind: OwnerUser, ID: id}
}

func SessionOwner(id string) Owner {
	return Owner{Kind: OwnerSession, ID: id}
}

// ResolveOwner classifies a raw identifier. Guest-prefixed identifiers and
// anything that is not a UUID belong to the session space.
func ResolveOwner(identifier string) Owner {
	if strings.HasPrefix(identifier, GuestPrefix) {
		return SessionOwner(identifier)
	}
	if _, err := uuid.Parse(identifier); err == nil {
		return UserOwner(identifier)
	}
	return SessionOwner(identifier)
}

func (o Owner) IsZero() bool {
	return o.ID == ""
}

func (o Owner) IsUser() bool {
	return o.Kind == OwnerUser
}

// Key is the stable string form used for cache keys and event partitioning.
func (o Owner) Key() string {
	return string(o.Kind) + ":" + o.ID
}

func (o Owner) String() string {
	return o.Key()
}
