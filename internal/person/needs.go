// Package person provides the simulated-person entity model: needs,
// derived stats, action resources, capacities, personality, skills,
// and talents. The person exclusively owns its state; engines receive
// a reference and mutate it through the documented operations.
package person

// NeedKind names one of the seven decaying drives.
type NeedKind string

const (
	NeedHunger   NeedKind = "hunger"
	NeedEnergy   NeedKind = "energy"
	NeedHygiene  NeedKind = "hygiene"
	NeedBladder  NeedKind = "bladder"
	NeedSocial   NeedKind = "social"
	NeedFun      NeedKind = "fun"
	NeedSecurity NeedKind = "security"
)

// AllNeeds lists every need in a fixed order.
func AllNeeds() []NeedKind {
	return []NeedKind{
		NeedHunger, NeedEnergy, NeedHygiene, NeedBladder,
		NeedSocial, NeedFun, NeedSecurity,
	}
}

// IsNeed reports whether a catalog effect key names a need.
func IsNeed(key string) bool {
	switch NeedKind(key) {
	case NeedHunger, NeedEnergy, NeedHygiene, NeedBladder, NeedSocial, NeedFun, NeedSecurity:
		return true
	}
	return false
}

// Needs holds the seven drives, each bounded [0,100]. 100 is fully
// satisfied; values decay toward 0 with the passage of time.
type Needs struct {
	Hunger   float64 `json:"hunger"`
	Energy   float64 `json:"energy"`
	Hygiene  float64 `json:"hygiene"`
	Bladder  float64 `json:"bladder"`
	Social   float64 `json:"social"`
	Fun      float64 `json:"fun"`
	Security float64 `json:"security"`
}

// Get returns the value for a need.
func (n *Needs) Get(k NeedKind) float64 {
	switch k {
	case NeedHunger:
		return n.Hunger
	case NeedEnergy:
		return n.Energy
	case NeedHygiene:
		return n.Hygiene
	case NeedBladder:
		return n.Bladder
	case NeedSocial:
		return n.Social
	case NeedFun:
		return n.Fun
	case NeedSecurity:
		return n.Security
	}
	return 0
}

// Set stores a value for a need, clamped to [0,100].
func (n *Needs) Set(k NeedKind, v float64) {
	v = clamp01x100(v)
	switch k {
	case NeedHunger:
		n.Hunger = v
	case NeedEnergy:
		n.Energy = v
	case NeedHygiene:
		n.Hygiene = v
	case NeedBladder:
		n.Bladder = v
	case NeedSocial:
		n.Social = v
	case NeedFun:
		n.Fun = v
	case NeedSecurity:
		n.Security = v
	}
}

// Add applies a delta to a need, clamped to [0,100].
func (n *Needs) Add(k NeedKind, delta float64) {
	n.Set(k, n.Get(k)+delta)
}

func clamp01x100(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
