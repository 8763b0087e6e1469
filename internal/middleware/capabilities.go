package middleware

import "fmt"

// Access is the authorization level a capability requires.
type Access int

const (
	// AccessAdmin is the zero value so an unregistered capability is admin-only.
	AccessAdmin Access = iota
	AccessPublic
)

func (a Access) String() string {
	if a == AccessPublic {
		return "public"
	}
	return "admin"
}

// Capability identifies one thing a route does, independent of its URL shape.
type Capability struct {
	Method   string
	Resource string
	Action   string
}

func (c Capability) String() string {
	return fmt.Sprintf("%s %s:%s", c.Method, c.Resource, c.Action)
}

// Policy is the route-capability table.
type Policy struct {
	rules map[Capability]Access
}

func NewPolicy() *Policy {
	return &Policy{rules: make(map[Capability]Access)}
}

// Public marks capabilities as reachable without a token.
func (p *Policy) Public(caps ...Capability) *Policy {
	for _, c := range caps {
		p.rules[c] = AccessPublic
	}
	return p
}

// Admin marks capabilities as requiring an administrator token.
func (p *Policy) Admin(caps ...Capability) *Policy {
	for _, c := range caps {
		p.rules[c] = AccessAdmin
	}
	return p
}

// Access returns the level for c. Unknown capabilities require admin.
func (p *Policy) Access(c Capability) Access {
	if p == nil {
		return AccessAdmin
	}
	if a, ok := p.rules[c]; ok {
		return a
	}
	return AccessAdmin
}
