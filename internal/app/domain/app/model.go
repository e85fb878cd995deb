package app

import "time"

// Permission is the role a collaborator holds on an app.
type Permission string

const (
	PermissionOwner        Permission = "Owner"
	PermissionCollaborator Permission = "Collaborator"
)

// Collaborator is one entry in an app's collaborator map, keyed by
// normalized email. IsCurrentAccount is request-scoped: it is computed on
// every read for the calling account and must never be persisted.
type Collaborator struct {
	AccountID        string     `json:"accountId"`
	Permission       Permission `json:"permission"`
	IsCurrentAccount bool       `json:"isCurrentAccount,omitempty"`
}

// App is a named container for deployments. The collaborator map is the
// authoritative record of ownership; exactly one entry holds Owner.
type App struct {
	ID            string
	Name          string
	Collaborators map[string]Collaborator
	CreatedAt     time.Time
}

// OwnerEmail returns the email key holding the Owner permission.
func (a App) OwnerEmail() (string, bool) {
	for email, collab := range a.Collaborators {
		if collab.Permission == PermissionOwner {
			return email, true
		}
	}
	return "", false
}

// Annotate marks every collaborator entry belonging to the calling account.
func (a *App) Annotate(accountID string) {
	for email, collab := range a.Collaborators {
		collab.IsCurrentAccount = collab.AccountID == accountID
		a.Collaborators[email] = collab
	}
}

// StripAnnotations clears the request-scoped marks before persisting.
func (a *App) StripAnnotations() {
	for email, collab := range a.Collaborators {
		collab.IsCurrentAccount = false
		a.Collaborators[email] = collab
	}
}

// CloneCollaborators deep-copies a collaborator map.
func CloneCollaborators(in map[string]Collaborator) map[string]Collaborator {
	if in == nil {
		return nil
	}
	out := make(map[string]Collaborator, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// reservedMapKeys are collaborator map keys that collide with object
// prototype properties when the schema-less column is consumed by JS clients.
var reservedMapKeys = map[string]struct{}{
	"__proto__":   {},
	"constructor": {},
	"prototype":   {},
}

// IsReservedMapKey reports whether an email is unsafe to use as a
// collaborator map key.
func IsReservedMapKey(email string) bool {
	_, ok := reservedMapKeys[email]
	return ok
}
