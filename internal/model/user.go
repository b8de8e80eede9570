package model

import "time"

// AccountStatus is the verification state stored in accounts.status.
type AccountStatus string

const (
    StatusUnverified  AccountStatus = "UNVERIFIED"
    StatusVerified    AccountStatus = "VERIFIED"
    StatusDeactivated AccountStatus = "DEACTIVATED"
)

// DefaultRole is assigned to every account created by signup or by a
// first external sign-in.  Role management lives outside the auth core.
const DefaultRole = "MEMBER"

// ExternalQuestion is stored as the security question of accounts that
// were created through an external identity provider.  No answer hash is
// kept for them.
const ExternalQuestion = "external-sign-in"

// CredentialKind tags which sign-in paths an account can use.
type CredentialKind string

const (
    CredentialLocal    CredentialKind = "local"
    CredentialExternal CredentialKind = "external"
    CredentialBoth     CredentialKind = "both"
)

// Credential is the tagged credential variant of an account.  PasswordHash
// is set for local and both, ProviderID for external and both.
type Credential struct {
    Kind         CredentialKind
    PasswordHash string // accounts.password_hash (nullable)
    ProviderID   string // accounts.google_id (nullable)
}

// LocalCredential builds a password-only credential.
func LocalCredential(hash string) Credential {
    return Credential{Kind: CredentialLocal, PasswordHash: hash}
}

// ExternalCredential builds a credential reachable only through the
// external identity provider.
func ExternalCredential(providerID string) Credential {
    return Credential{Kind: CredentialExternal, ProviderID: providerID}
}

// CredentialFrom derives the variant from the two nullable columns.
func CredentialFrom(hash, providerID string) Credential {
    c := Credential{PasswordHash: hash, ProviderID: providerID}
    switch {
    case hash != "" && providerID != "":
        c.Kind = CredentialBoth
    case providerID != "":
        c.Kind = CredentialExternal
    default:
        c.Kind = CredentialLocal
    }
    return c
}

// HasPassword reports whether a local password can be checked.
func (c Credential) HasPassword() bool { return c.PasswordHash != "" }

// Valid reports whether at least one sign-in path is present.
func (c Credential) Valid() bool {
    switch c.Kind {
    case CredentialLocal:
        return c.PasswordHash != ""
    case CredentialExternal:
        return c.ProviderID != ""
    case CredentialBoth:
        return c.PasswordHash != "" && c.ProviderID != ""
    }
    return false
}

// Account represents a row of the `accounts` table.
//
// Fields:
//  ID                 – primary key identifier.
//  Username           – unique human-facing handle.
//  Email              – unique, lower-cased email address.
//  FirstName/LastName – profile fields collected at signup.
//  DisplayName        – name used in greetings and code emails.
//  Credential         – password hash and/or external provider id.
//  SecurityQuestion   – legacy recovery question.
//  SecurityAnswerHash – bcrypt hash of the normalised answer (may be empty).
//  Role               – role name, MEMBER by default.
//  Status             – UNVERIFIED, VERIFIED or DEACTIVATED.
//  IsActive           – soft-delete / suspend flag.
//  LastLoginAt        – last successful sign-in (nullable).
type Account struct {
    ID                 uint64        // accounts.id
    Username           string        // accounts.username
    Email              string        // accounts.email
    FirstName          string        // accounts.first_name
    LastName           string        // accounts.last_name
    DisplayName        string        // accounts.display_name
    Credential         Credential    // accounts.password_hash, accounts.google_id
    SecurityQuestion   string        // accounts.security_question
    SecurityAnswerHash string        // accounts.security_answer_hash (nullable)
    Role               string        // accounts.role
    Status             AccountStatus // accounts.status
    IsActive           bool          // accounts.is_active
    LastLoginAt        *time.Time    // accounts.last_login_at (nullable)
    CreatedAt          time.Time     // accounts.created_at
    UpdatedAt          time.Time     // accounts.updated_at
}

// AccountSummary is the redacted view returned to clients.  It never
// carries hashes.
type AccountSummary struct {
    ID          uint64         `json:"id"`
    Username    string         `json:"username"`
    Email       string         `json:"email"`
    FirstName   string         `json:"first_name,omitempty"`
    LastName    string         `json:"last_name,omitempty"`
    DisplayName string         `json:"display_name"`
    Role        string         `json:"role"`
    Status      AccountStatus  `json:"status"`
    IsActive    bool           `json:"is_active"`
    SignIn      CredentialKind `json:"sign_in"`
    LastLoginAt *time.Time     `json:"last_login_at,omitempty"`
}

// Summary returns the redacted view of a.
func (a Account) Summary() AccountSummary {
    return AccountSummary{
        ID:          a.ID,
        Username:    a.Username,
        Email:       a.Email,
        FirstName:   a.FirstName,
        LastName:    a.LastName,
        DisplayName: a.DisplayName,
        Role:        a.Role,
        Status:      a.Status,
        IsActive:    a.IsActive,
        SignIn:      a.Credential.Kind,
        LastLoginAt: a.LastLoginAt,
    }
}
