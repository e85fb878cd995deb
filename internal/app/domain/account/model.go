package account

import (
	"strings"
	"time"
)

// Account is the owning identity for apps and access keys. Email is stored
// lowercase and is immutable after creation.
type Account struct {
	ID          string
	Name        string
	Email       string
	IdentityRef string
	CreatedAt   time.Time
}

// AccessKey is an opaque bearer credential. Name carries the key material
// presented by callers; the account binding holds the authoritative expiry.
type AccessKey struct {
	ID           string
	Name         string
	FriendlyName string
	Description  string
	CreatedBy    string
	IsSession    bool
	Expires      time.Time
	CreatedAt    time.Time
}

// KeyBinding joins an access key to its owning account. Expires here is
// redundant with the key row but authoritative for authorization checks.
type KeyBinding struct {
	AccessKeyID string
	AccountID   string
	Expires     time.Time
}

// NormalizeEmail lowers and trims an email address so lookups and
// collaborator map keys are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
