package repositories

// EntitlementRepository defines the interface for the entitlement ledger.
// The ledger only ever grows; there is no revoke operation.
type EntitlementRepository interface {
	// GrantAll unions the given product ids into the user's ledger. Granting
	// an already-owned product is a no-op, so the call is safe to retry.
	GrantAll(userID string, productIDs []string) error
	ListProductIDs(userID string) ([]string, error)
	// GrantToAllUsers grants one product to every user and returns how many
	// users actually received it.
	GrantToAllUsers(productID string) (int64, error)
}
