// Package rulefile reads fraud rules from YAML seed files.
package rulefile

import (
	"encoding/json"
	"fmt"
	"io"

	"gw-fraud-scoring/internal/models"

	"gopkg.in/yaml.v3"
)

// Rule is one YAML entry. The condition is written as a plain YAML mapping
// and converted to the JSON form stored in the database.
type Rule struct {
	Name        string             `yaml:"name"`
	Description *string            `yaml:"description"`
	Condition   map[string]any     `yaml:"condition"`
	Actions     models.RuleActions `yaml:"actions"`
	Priority    int                `yaml:"priority"`
	Active      *bool              `yaml:"active"`
}

type File struct {
	Rules []Rule `yaml:"rules"`
}

func Parse(r io.Reader) ([]models.CreateRuleRequest, error) {
	const op = "rulefile.Parse"

	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	out := make([]models.CreateRuleRequest, 0, len(f.Rules))
	for i, rule := range f.Rules {
		cond, err := json.Marshal(rule.Condition)
		if err != nil {
			return nil, fmt.Errorf("%s: rules[%d] %q: %w", op, i, rule.Name, err)
		}
		out = append(out, models.CreateRuleRequest{
			Name:        rule.Name,
			Description: rule.Description,
			Condition:   cond,
			Actions:     rule.Actions,
			Priority:    rule.Priority,
			IsActive:    rule.Active,
		})
	}
	return out, nil
}
