package session

// Identity is the authenticated user as reported by the login endpoint. It is
// immutable for the lifetime of a session: refresh replaces the credential and
// expiry but never the identity.
type Identity struct {
	ID          string
	Email       string
	DisplayName string
	Role        string
}

// Session is the unit of authentication state. At most one Session is current
// per store slot.
//
// Generation is a monotonic counter bumped by every write-back; together with
// whole-blob compare-and-set it prevents a stale refresh from resurrecting a
// session that was cleared in the meantime.
type Session struct {
	Credential string
	Identity   Identity

	Generation    uint32
	SchemaVersion uint8

	IssuedAt  int64
	ExpiresAt int64
}
