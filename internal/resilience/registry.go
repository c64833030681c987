package resilience

import "sort"

// Status is a point in time view of one breaker.
type Status struct {
	Dependency          string `json:"dependency"`
	State               string `json:"state"`
	Requests            uint32 `json:"requests"`
	TotalFailures       uint32 `json:"totalFailures"`
	ConsecutiveFailures uint32 `json:"consecutiveFailures"`
}

// Registry holds one policy per dependency. Breakers never share state.
type Registry struct {
	policies map[string]*Policy
}

func NewRegistry(policies ...*Policy) *Registry {
	r := &Registry{policies: make(map[string]*Policy, len(policies))}
	for _, p := range policies {
		r.policies[p.Name()] = p
	}
	return r
}

func (r *Registry) Get(name string) (*Policy, bool) {
	p, ok := r.policies[name]
	return p, ok
}

// Snapshot lists the breakers sorted by dependency name.
func (r *Registry) Snapshot() []Status {
	out := make([]Status, 0, len(r.policies))
	for name, p := range r.policies {
		c := p.Counts()
		out = append(out, Status{
			Dependency:          name,
			State:               p.State(),
			Requests:            c.Requests,
			TotalFailures:       c.TotalFailures,
			ConsecutiveFailures: c.ConsecutiveFailures,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Dependency < out[j].Dependency })
	return out
}
