package models

// IdentityKind is the shape of the caller attached to a request
type IdentityKind string

const (
	IdentityGuest      IdentityKind = "guest"
	IdentityRegistered IdentityKind = "registered"
	IdentityAdmin      IdentityKind = "admin"
)

// Identity is set by the auth middleware. For guests only Email is known,
// and it may be empty.
type Identity struct {
	Kind   IdentityKind
	UserID string
	Email  string
	Name   string
	Role   UserRole
	Token  string
}

// IsAdmin covers both admin-namespace tokens and users with the admin role.
func (i *Identity) IsAdmin() bool {
	return i != nil && (i.Kind == IdentityAdmin || i.Role == UserRoleAdmin)
}

// IsRegistered reports whether the caller is a signed-in non-guest user.
func (i *Identity) IsRegistered() bool {
	return i != nil && i.Kind == IdentityRegistered && i.Role != UserRoleGuest
}

// Recipient maps the identity to its notification inbox. Users with the
// admin role read the admin inbox.
func (i *Identity) Recipient() (Recipient, bool) {
	if i == nil {
		return Recipient{}, false
	}
	switch {
	case i.IsAdmin():
		return Recipient{Type: RecipientAdmin, UserID: i.UserID}, true
	case i.IsRegistered() && i.UserID != "":
		return Recipient{Type: RecipientUser, UserID: i.UserID}, true
	case i.Email != "":
		return Recipient{Type: RecipientGuest, GuestEmail: i.Email}, true
	}
	return Recipient{}, false
}
