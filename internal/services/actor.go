package services

import "digistore/internal/models"

// ActorSource tags which credential scheme resolved the actor.
type ActorSource int

const (
	// ActorSourceBearer means the actor came from a bearer token; its cart
	// lives server-side and is cleared after a successful purchase.
	ActorSourceBearer ActorSource = iota
	// ActorSourceFederated means the actor was looked up by clerk id; its
	// cart is supplied inline by the client, there is nothing to clear.
	ActorSourceFederated
)

// Actor is a resolved request identity: the user plus how it was resolved.
// Dual-convention routes resolve it exactly once and branch on Source.
type Actor struct {
	User   *models.User
	Source ActorSource
}

// Bearer reports whether the actor was resolved from a bearer token.
func (a *Actor) Bearer() bool {
	return a.Source == ActorSourceBearer
}
