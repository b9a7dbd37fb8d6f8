// Package tenancy carries the company scope every engine call runs under.
package tenancy

import (
	"errors"
	"strings"
)

var (
	ErrCompanyRequired = errors.New("tenancy: company id required")
)

type CompanyID string

// ActorID identifies the operator or system acting on behalf of a company.
// It is supplied by the caller and only recorded for audit purposes.
type ActorID string

// SystemActor is recorded when no human operator is attached to a change.
const SystemActor ActorID = "system"

// Scope pairs the tenant with the acting identity.
type Scope struct {
	Company CompanyID
	Actor   ActorID
}

func NewScope(company, actor string) (Scope, error) {
	s := Scope{Company: CompanyID(strings.TrimSpace(company)), Actor: ActorID(strings.TrimSpace(actor))}
	if err := s.Validate(); err != nil {
		return Scope{}, err
	}
	if s.Actor == "" {
		s.Actor = SystemActor
	}
	return s, nil
}

func (s Scope) Validate() error {
	if s.Company == "" {
		return ErrCompanyRequired
	}
	return nil
}

func (s Scope) ActorOrSystem() ActorID {
	if s.Actor == "" {
		return SystemActor
	}
	return s.Actor
}
