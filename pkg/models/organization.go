package models

import "time"

// Organization represents an academic institution whose members share files.
// Organizations start unverified and are flipped to verified by an operator;
// rows are never hard-deleted.
type Organization struct {
	ID          string    `json:"id" db:"id"`
	Name        string    `json:"org_name" db:"name"`
	EmailDomain string    `json:"email_domain,omitempty" db:"email_domain"`
	Verified    bool      `json:"org_verified" db:"verified"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// UserOrganization maps a username to its organization and class scope.
// At most one active row may exist per username; revoked memberships are
// deactivated, not deleted.
type UserOrganization struct {
	ID             string    `json:"id" db:"id"`
	Username       string    `json:"username" db:"username"`
	OrganizationID string    `json:"organization_id" db:"organization_id"`
	Semester       int       `json:"semester" db:"semester"`
	Branch         string    `json:"branch" db:"branch"`
	Active         bool      `json:"is_active" db:"active"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// Scope is the (organization, semester, branch) tuple every file read and
// write is filtered by.
type Scope struct {
	OrganizationID string `json:"organization_id"`
	Semester       int    `json:"semester"`
	Branch         string `json:"branch"`
}

// Scope returns the membership's query scope.
func (m *UserOrganization) Scope() Scope {
	return Scope{
		OrganizationID: m.OrganizationID,
		Semester:       m.Semester,
		Branch:         m.Branch,
	}
}

// OrgContext is the resolved organization context returned to the client for
// auto-filling the upload form.
type OrgContext struct {
	OrganizationID string `json:"organization_id"`
	OrgName        string `json:"org_name"`
	Semester       int    `json:"semester"`
	Branch         string `json:"branch"`
	Username       string `json:"username"`
}

// CreateOrganizationRequest is the payload for registering an organization.
type CreateOrganizationRequest struct {
	Name        string `json:"org_name" validate:"required,min=2,max=120"`
	EmailDomain string `json:"email_domain" validate:"omitempty,fqdn"`
}

// UpsertMembershipRequest activates a membership for a username, replacing
// any previously active one.
type UpsertMembershipRequest struct {
	Username       string `json:"username" validate:"required,min=1,max=64"`
	OrganizationID string `json:"organization_id" validate:"required,uuid4"`
	Semester       int    `json:"semester" validate:"required,min=1,max=8"`
	Branch         string `json:"branch" validate:"required,min=1,max=80"`
}
