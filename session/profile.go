package session

import (
	"slices"
	"strings"
)

const RoleBusinessOwner = "business_owner"

type Role struct {
	Name  string `json:"name"`
	Level int    `json:"level"`
}

// BusinessAssociation links the user to a business they work for or own.
type BusinessAssociation struct {
	BusinessID string `json:"businessId"`
	Role       string `json:"role"`
}

// UserProfile is the signed-in user as returned by the profile endpoint.
type UserProfile struct {
	ID                   string                `json:"id"`
	Email                string                `json:"email,omitempty"`
	Name                 string                `json:"name,omitempty"`
	Roles                []Role                `json:"roles"`
	EffectiveLevel       int                   `json:"effectiveLevel,omitempty"`
	BusinessAssociations []BusinessAssociation `json:"businessAssociations,omitempty"`
}

// HasRole reports whether the profile carries role, ignoring case.
func (p *UserProfile) HasRole(role string) bool {
	if p == nil {
		return false
	}
	return slices.ContainsFunc(p.Roles, func(r Role) bool {
		return strings.EqualFold(r.Name, role)
	})
}

// IsBusinessOwner reports whether the user owns businessID.
func (p *UserProfile) IsBusinessOwner(businessID string) bool {
	if p == nil {
		return false
	}
	return slices.ContainsFunc(p.BusinessAssociations, func(a BusinessAssociation) bool {
		return a.BusinessID == businessID && strings.EqualFold(a.Role, RoleBusinessOwner)
	})
}

// normalize fills EffectiveLevel from the highest role level when the server left it out.
func (p *UserProfile) normalize() {
	if p.EffectiveLevel != 0 {
		return
	}
	for _, r := range p.Roles {
		p.EffectiveLevel = max(p.EffectiveLevel, r.Level)
	}
}

func (p *UserProfile) clone() *UserProfile {
	if p == nil {
		return nil
	}
	c := *p
	c.Roles = slices.Clone(p.Roles)
	c.BusinessAssociations = slices.Clone(p.BusinessAssociations)
	return &c
}
