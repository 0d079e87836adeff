package person

// ResourceKind names one of the four action-economy pools.
type ResourceKind string

const (
	ResourceOverskudd     ResourceKind = "overskudd"
	ResourceSocialBattery ResourceKind = "social_battery"
	ResourceFocus         ResourceKind = "focus"
	ResourceWillpower     ResourceKind = "willpower"
)

// AllResources lists every action resource in a fixed order.
func AllResources() []ResourceKind {
	return []ResourceKind{
		ResourceOverskudd, ResourceSocialBattery, ResourceFocus, ResourceWillpower,
	}
}

// IsResource reports whether a catalog effect key names an action resource.
func IsResource(key string) bool {
	switch ResourceKind(key) {
	case ResourceOverskudd, ResourceSocialBattery, ResourceFocus, ResourceWillpower:
		return true
	}
	return false
}

// Resources holds the capped [0,100] action-economy pools consumed by
// activities and regenerated passively.
type Resources struct {
	Overskudd     float64 `json:"overskudd"`
	SocialBattery float64 `json:"social_battery"`
	Focus         float64 `json:"focus"`
	Willpower     float64 `json:"willpower"`
}

// Get returns the value for a resource.
func (r *Resources) Get(k ResourceKind) float64 {
	switch k {
	case ResourceOverskudd:
		return r.Overskudd
	case ResourceSocialBattery:
		return r.SocialBattery
	case ResourceFocus:
		return r.Focus
	case ResourceWillpower:
		return r.Willpower
	}
	return 0
}

// Set stores a value for a resource, clamped to [0,100].
func (r *Resources) Set(k ResourceKind, v float64) {
	v = clamp01x100(v)
	switch k {
	case ResourceOverskudd:
		r.Overskudd = v
	case ResourceSocialBattery:
		r.SocialBattery = v
	case ResourceFocus:
		r.Focus = v
	case ResourceWillpower:
		r.Willpower = v
	}
}

// Add applies a delta to a resource, clamped to [0,100].
func (r *Resources) Add(k ResourceKind, delta float64) {
	r.Set(k, r.Get(k)+delta)
}
