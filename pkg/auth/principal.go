package auth

// Capability is a named permission a principal may hold
type Capability string

const (
	// CapabilityMember is held implicitly by every resolved member
	CapabilityMember Capability = "member"
	// CapabilityAdmin is held by members with the admin flag or an admin role
	CapabilityAdmin Capability = "admin"
)

// adminRoleNames are the role record names that grant the admin capability
var adminRoleNames = map[string]bool{
	"admin":         true,
	"administrator": true,
}

// Principal is the resolved identity and capability set attached to a
// single request. It is built once per request by the Resolver and never
// persisted.
type Principal struct {
	MemberID     int64        `json:"member_id"`
	Name         string       `json:"name"`
	Capabilities []Capability `json:"capabilities"`
	Banned       bool         `json:"banned"`
}

// HasCapability reports whether the principal holds the named capability
func (p *Principal) HasCapability(c Capability) bool {
	if p == nil {
		return false
	}
	for _, held := range p.Capabilities {
		if held == c {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the principal holds the admin capability
func (p *Principal) IsAdmin() bool {
	return p.HasCapability(CapabilityAdmin)
}
