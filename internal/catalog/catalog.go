// Package catalog loads the static activity, skill, and talent
// definitions once at startup. Definitions are externally authored
// JSON, validated against schemas, and indexed by id. Lookups for
// missing ids degrade to zero values rather than failing, since
// catalogs may lag the definitions a running sim references.
package catalog

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Domain groups activities and skills into five broad areas.
type Domain string

const (
	DomainSocial         Domain = "social"
	DomainOrganisational Domain = "organisational"
	DomainPhysical       Domain = "physical"
	DomainCreative       Domain = "creative"
	DomainAnalytical     Domain = "analytical"
)

// DurationMode determines how an activity completes.
type DurationMode string

const (
	// DurationFixed completes after a fixed tick count.
	DurationFixed DurationMode = "fixed"
	// DurationVariable completes after base ticks scaled down by
	// mastery speed bonus.
	DurationVariable DurationMode = "variable"
	// DurationThreshold runs until a named resource or need reaches a
	// target value.
	DurationThreshold DurationMode = "threshold"
)

// SkillRequirement weights a skill's contribution to difficulty
// reduction, with a cap per skill.
type SkillRequirement struct {
	SkillID      string  `json:"skill_id"`
	Weight       float64 `json:"weight"`
	MaxReduction float64 `json:"max_reduction"`
}

// ActivityDef is a static activity definition. Runtime instances carry
// their own mastery state; the definition itself never changes.
type ActivityDef struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Domain Domain   `json:"domain"`
	Tags   []string `json:"tags,omitempty"`

	Duration    DurationMode `json:"duration"`
	BaseTicks   float64      `json:"base_ticks,omitempty"`
	TargetStat  string       `json:"target_stat,omitempty"`
	TargetValue float64      `json:"target_value,omitempty"`

	// Effects are per-tick deltas keyed by need or resource name.
	// Negative resource values are drains, positive need values
	// restorations.
	Effects map[string]float64 `json:"effects,omitempty"`

	// CapacityProfile is the cognitive profile the activity expects;
	// empty means completion always succeeds.
	CapacityProfile map[string]float64 `json:"capacity_profile,omitempty"`

	BaseDifficulty    float64            `json:"base_difficulty"`
	SkillRequirements []SkillRequirement `json:"skill_requirements,omitempty"`

	MinOverskudd float64 `json:"min_overskudd,omitempty"`
	MinEnergy    float64 `json:"min_energy,omitempty"`

	// DietScore, when set, is the nutrition target this activity pulls
	// the diet EMA toward while running.
	DietScore float64 `json:"diet_score,omitempty"`
}

// SkillDef is a static skill definition. Prerequisites form a DAG and
// may cross domains.
type SkillDef struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Domain        Domain   `json:"domain"`
	Prerequisites []string `json:"prerequisites,omitempty"`
}

// TalentEffect is one additive or percentage modifier carried by a talent.
type TalentEffect struct {
	// Target is "capacity" or "resource_rate".
	Target string  `json:"target"`
	Key    string  `json:"key"`
	Add    float64 `json:"add,omitempty"`
	Pct    float64 `json:"pct,omitempty"`
}

// TalentDef is a static talent definition.
type TalentDef struct {
	ID      string         `json:"id"`
	Name    string         `json:"name"`
	Rarity  string         `json:"rarity"` // common, rare, epic
	Domain  Domain         `json:"domain,omitempty"`
	Effects []TalentEffect `json:"effects"`
}

// Catalog holds all loaded definitions, with stable id orderings for
// deterministic iteration.
type Catalog struct {
	Activities    map[string]ActivityDef
	ActivityOrder []string

	Skills     map[string]SkillDef
	SkillOrder []string

	Talents     map[string]TalentDef
	TalentOrder []string

	Digest string
}

// Activity returns the definition for an id. The boolean is false for
// unknown ids.
func (c *Catalog) Activity(id string) (ActivityDef, bool) {
	d, ok := c.Activities[id]
	return d, ok
}

// Skill returns the definition for an id.
func (c *Catalog) Skill(id string) (SkillDef, bool) {
	d, ok := c.Skills[id]
	return d, ok
}

// Talent returns the definition for an id.
func (c *Catalog) Talent(id string) (TalentDef, bool) {
	d, ok := c.Talents[id]
	return d, ok
}

// Load reads activities.json, skills.json, and talents.json from
// configDir, validating each against its schema in configDir/schemas
// when present.
func Load(configDir string) (*Catalog, error) {
	c := &Catalog{
		Activities: map[string]ActivityDef{},
		Skills:     map[string]SkillDef{},
		Talents:    map[string]TalentDef{},
	}

	digest := sha256.New()

	var activities []ActivityDef
	raw, err := loadValidated(configDir, "activities.json", &activities)
	if err != nil {
		return nil, err
	}
	digest.Write(raw)
	for _, d := range activities {
		if d.ID == "" {
			return nil, fmt.Errorf("activities.json: empty id")
		}
		if _, dup := c.Activities[d.ID]; dup {
			return nil, fmt.Errorf("activities.json: duplicate id %q", d.ID)
		}
		c.Activities[d.ID] = d
	}
	c.ActivityOrder = sortedKeys(c.Activities)

	var skills []SkillDef
	raw, err = loadValidated(configDir, "skills.json", &skills)
	if err != nil {
		return nil, err
	}
	digest.Write(raw)
	for _, d := range skills {
		if d.ID == "" {
			return nil, fmt.Errorf("skills.json: empty id")
		}
		c.Skills[d.ID] = d
	}
	c.SkillOrder = sortedKeys(c.Skills)
	if err := checkSkillDAG(c.Skills); err != nil {
		return nil, fmt.Errorf("skills.json: %w", err)
	}

	var talents []TalentDef
	raw, err = loadValidated(configDir, "talents.json", &talents)
	if err != nil {
		return nil, err
	}
	digest.Write(raw)
	for _, d := range talents {
		if d.ID == "" {
			return nil, fmt.Errorf("talents.json: empty id")
		}
		c.Talents[d.ID] = d
	}
	c.TalentOrder = sortedKeys(c.Talents)

	c.Digest = hex.EncodeToString(digest.Sum(nil))
	return c, nil
}

// loadValidated reads a JSON file, validates it against the matching
// schema if one exists, and unmarshals into out.
func loadValidated(configDir, name string, out any) ([]byte, error) {
	path := filepath.Join(configDir, name)
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	schemaPath := filepath.Join(configDir, "schemas", name[:len(name)-len(".json")]+".schema.json")
	if _, statErr := os.Stat(schemaPath); statErr == nil {
		schema, err := jsonschema.Compile(schemaPath)
		if err != nil {
			return nil, fmt.Errorf("compile %s: %w", schemaPath, err)
		}
		var doc any
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if err := schema.Validate(doc); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return raw, nil
}

// checkSkillDAG verifies that prerequisites reference known skills and
// contain no cycles.
func checkSkillDAG(skills map[string]SkillDef) error {
	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := map[string]int{}

	var visit func(id string) error
	visit = func(id string) error {
		switch state[id] {
		case visiting:
			return fmt.Errorf("prerequisite cycle through %q", id)
		case done:
			return nil
		}
		state[id] = visiting
		for _, pre := range skills[id].Prerequisites {
			if _, ok := skills[pre]; !ok {
				return fmt.Errorf("skill %q: unknown prerequisite %q", id, pre)
			}
			if err := visit(pre); err != nil {
				return err
			}
		}
		state[id] = done
		return nil
	}

	for id := range skills {
		if err := visit(id); err != nil {
			return err
		}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
