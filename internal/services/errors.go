package services

import "errors"

// Domain errors surfaced to handlers. Handlers translate these into HTTP
// statuses with errors.Is; repository-level ErrNotFound passes through
// untranslated and maps to 404.
var (
	// ErrAuthRequired means no identity could be resolved on a route that
	// accepts either a bearer token or a federated clerk id.
	ErrAuthRequired = errors.New("authentication required")
	// ErrInvalidToken covers malformed or badly-signed bearer tokens.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenExpired is a valid token past its expiry.
	ErrTokenExpired = errors.New("token expired")
	// ErrInvalidCredentials deliberately does not distinguish a missing
	// account from a wrong password.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrEmailTaken rejects re-registration of an existing email.
	ErrEmailTaken = errors.New("email already registered")
	// ErrAdminRequired rejects non-admin access to the admin surface.
	ErrAdminRequired = errors.New("admin access required")

	// ErrEmptyCart rejects checkout with no items at all.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrNoValidItems rejects checkout where every item referenced a
	// product that no longer exists.
	ErrNoValidItems = errors.New("no valid items in cart")
	// ErrDuplicateCartItem rejects re-adding a product already in the cart.
	ErrDuplicateCartItem = errors.New("product already in cart")
	// ErrNotFree rejects a free claim containing any priced item.
	ErrNotFree = errors.New("only free products can be claimed without payment")
	// ErrPaymentVerificationFailed covers signature mismatch and every
	// fault during reconciliation; the order is marked failed before this
	// is returned.
	ErrPaymentVerificationFailed = errors.New("payment verification failed")
)
