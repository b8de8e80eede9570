package model

import "time"

// ResetCode models the single live row of the `password_reset_codes`
// table for an email.  The email is the primary key, so issuing a new
// code always replaces the previous one.
//
// Fields:
//  Email     – owning email address (lower-cased).
//  Code      – six digit numeric code.
//  ExpiresAt – end of the validity window.
//  CreatedAt – issue time.
type ResetCode struct {
    Email     string    // password_reset_codes.email
    Code      string    // password_reset_codes.code
    ExpiresAt time.Time // password_reset_codes.expires_at
    CreatedAt time.Time // password_reset_codes.created_at
}

// Expired reports whether the code is no longer usable at now.  A code is
// already expired at exactly ExpiresAt.
func (c ResetCode) Expired(now time.Time) bool {
    return !now.Before(c.ExpiresAt)
}
