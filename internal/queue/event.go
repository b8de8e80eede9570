// Package queue carries issued reset codes from the request path to the
// mail sender over RabbitMQ.
package queue

import (
	"time"

	"github.com/iliyamo/ministry-portal/internal/service"
)

// DefaultQueue is the durable queue that OTPIssuedEvents travel on.
const DefaultQueue = "otp.issued"

// OTPIssuedEvent is published every time a reset code is issued.  It holds
// everything the mail sender needs so it never touches the database.
type OTPIssuedEvent struct {
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	Code        string    `json:"code"`
	ExpiresAt   time.Time `json:"expires_at"`
	IssuedAt    time.Time `json:"issued_at"`
}

func eventFrom(c service.IssuedCode, now time.Time) OTPIssuedEvent {
	return OTPIssuedEvent{
		Email:       c.Email,
		DisplayName: c.DisplayName,
		Code:        c.Code,
		ExpiresAt:   c.ExpiresAt.UTC(),
		IssuedAt:    now.UTC(),
	}
}
