// Package domain defines the core entities of the client portal.
// Records mirror the JSON shape kept in the realtime database, so field
// names are camelCase and timestamps are epoch milliseconds.
package domain

import (
	"regexp"
	"strings"
)

// ============================================================
// Clients
// ============================================================

// ClientStatus is the lifecycle state of a client account.
type ClientStatus string

const (
	ClientActive   ClientStatus = "Active"
	ClientPending  ClientStatus = "Pending"
	ClientInactive ClientStatus = "Inactive"
)

// Valid reports whether s is one of the known client states.
func (s ClientStatus) Valid() bool {
	switch s {
	case ClientActive, ClientPending, ClientInactive:
		return true
	}
	return false
}

// Client is a customer of the agency. Clients log in with AccessCode.
type Client struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	CompanyName string       `json:"companyName,omitempty"`
	Email       string       `json:"email"`
	Phone       string       `json:"phone,omitempty"`
	AccessCode  string       `json:"accessCode"`
	Status      ClientStatus `json:"status"`
	ProjectIDs  []string     `json:"projectIds,omitempty"`
	CreatedAt   int64        `json:"createdAt"`
	UpdatedAt   int64        `json:"updatedAt"`
}

// DisplayName is the label used across list views: company first, then the
// contact name.
func (c Client) DisplayName() string {
	if c.CompanyName != "" {
		return c.CompanyName
	}
	return c.Name
}

// ClientPatch carries a partial client update. Nil fields are untouched.
type ClientPatch struct {
	Name        *string       `json:"name,omitempty"`
	CompanyName *string       `json:"companyName,omitempty"`
	Email       *string       `json:"email,omitempty"`
	Phone       *string       `json:"phone,omitempty"`
	AccessCode  *string       `json:"accessCode,omitempty"`
	Status      *ClientStatus `json:"status,omitempty"`
}

// AccessCodeEntry is the value stored under accessCodes/{code}.
type AccessCodeEntry struct {
	ClientID string `json:"clientId"`
}

// access codes become database keys, so they must avoid . # $ [ ] /
var accessCodePattern = regexp.MustCompile(`^[A-Z0-9_-]{4,64}$`)

// NormalizeAccessCode trims and upper-cases a human-entered code.
func NormalizeAccessCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidateAccessCode checks a normalized access code.
func ValidateAccessCode(code string) error {
	if !accessCodePattern.MatchString(code) {
		return &ErrValidation{Field: "accessCode", Message: "must be 4-64 characters of A-Z, 0-9, '-' or '_'"}
	}
	return nil
}
