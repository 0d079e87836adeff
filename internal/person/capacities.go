package person

// CapacityKind names one of the six cognitive dimensions.
type CapacityKind string

const (
	CapDivergentThinking   CapacityKind = "divergent_thinking"
	CapConvergentThinking  CapacityKind = "convergent_thinking"
	CapWorkingMemory       CapacityKind = "working_memory"
	CapAttentionSpan       CapacityKind = "attention_span"
	CapProcessingSpeed     CapacityKind = "processing_speed"
	CapEmotionalRegulation CapacityKind = "emotional_regulation"
)

// AllCapacities lists every cognitive dimension in a fixed order.
func AllCapacities() []CapacityKind {
	return []CapacityKind{
		CapDivergentThinking, CapConvergentThinking, CapWorkingMemory,
		CapAttentionSpan, CapProcessingSpeed, CapEmotionalRegulation,
	}
}

// Capacities holds the baseline cognitive traits. Talents layer
// modifiers on top; see Person.EffectiveCapacity.
type Capacities struct {
	DivergentThinking   float64 `json:"divergent_thinking"`
	ConvergentThinking  float64 `json:"convergent_thinking"`
	WorkingMemory       float64 `json:"working_memory"`
	AttentionSpan       float64 `json:"attention_span"`
	ProcessingSpeed     float64 `json:"processing_speed"`
	EmotionalRegulation float64 `json:"emotional_regulation"`
}

// Get returns the baseline value for a capacity.
func (c *Capacities) Get(k CapacityKind) float64 {
	switch k {
	case CapDivergentThinking:
		return c.DivergentThinking
	case CapConvergentThinking:
		return c.ConvergentThinking
	case CapWorkingMemory:
		return c.WorkingMemory
	case CapAttentionSpan:
		return c.AttentionSpan
	case CapProcessingSpeed:
		return c.ProcessingSpeed
	case CapEmotionalRegulation:
		return c.EmotionalRegulation
	}
	return 0
}

// Set stores a baseline value for a capacity.
func (c *Capacities) Set(k CapacityKind, v float64) {
	switch k {
	case CapDivergentThinking:
		c.DivergentThinking = v
	case CapConvergentThinking:
		c.ConvergentThinking = v
	case CapWorkingMemory:
		c.WorkingMemory = v
	case CapAttentionSpan:
		c.AttentionSpan = v
	case CapProcessingSpeed:
		c.ProcessingSpeed = v
	case CapEmotionalRegulation:
		c.EmotionalRegulation = v
	}
}
