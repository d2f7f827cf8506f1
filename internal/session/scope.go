package session

// Scope classifies a conversation. It is fixed when the conversation is created.
// The concrete type is either Bare or Scoped.
type Scope interface {
	isScope()
	String() string
}

// Bare is a conversation started without tenant/entity selection
type Bare struct{}

func (Bare) isScope() {}

func (Bare) String() string { return "bare" }

// Scoped is a conversation bound to a tenant and entity
type Scoped struct {
	Tenant string `json:"tenant"`
	Entity string `json:"entity"`
}

func (Scoped) isScope() {}

func (s Scoped) String() string { return s.Tenant + "/" + s.Entity }

// ScopeOf returns the tenant/entity scope of c, if it has one
func ScopeOf(c *Conversation) (Scoped, bool) {
	if c == nil {
		return Scoped{}, false
	}
	s, ok := c.Scope.(Scoped)
	return s, ok
}
