package rules

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gw-fraud-scoring/internal/custom_err"
)

// Compile builds a condition tree from stored JSON. It never fails outright:
// malformed input yields Never together with the parse error for logging.
func Compile(raw json.RawMessage) (Condition, error) {
	node, err := decode(raw)
	if err != nil {
		return Never{Reason: err.Error()}, err
	}
	return compileNode(node, false)
}

// Validate is the strict variant used when a rule is created: unknown
// operators, unknown logic and missing fields are rejected instead of
// silently compiling to a condition that never matches.
func Validate(raw json.RawMessage) error {
	node, err := decode(raw)
	if err != nil {
		return err
	}
	_, err = compileNode(node, true)
	return err
}

func decode(raw json.RawMessage) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: %v", custom_err.ErrInvalidCondition, err)
	}
	node, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: condition must be a JSON object", custom_err.ErrInvalidCondition)
	}
	return node, nil
}

func compileNode(node map[string]any, strict bool) (Condition, error) {
	if rawLogic, ok := node["logic"]; ok {
		return compileCombinator(node, rawLogic, strict)
	}

	field, ok := node["field"].(string)
	if !ok || field == "" {
		err := fmt.Errorf("%w: field must be a non-empty string", custom_err.ErrInvalidCondition)
		if strict {
			return nil, err
		}
		return Never{Reason: err.Error()}, err
	}

	opName, _ := node["operator"].(string)
	op := ParseOperator(opName)
	if op == OpUnknown && strict {
		return nil, fmt.Errorf("%w: unknown operator %q", custom_err.ErrInvalidCondition, opName)
	}

	return Predicate{Field: field, Op: op, Value: node["value"]}, nil
}

func compileCombinator(node map[string]any, rawLogic any, strict bool) (Condition, error) {
	logic, _ := rawLogic.(string)

	var rawList []any
	if c, ok := node["conditions"]; ok {
		list, ok := c.([]any)
		if !ok {
			err := fmt.Errorf("%w: conditions must be a list", custom_err.ErrInvalidCondition)
			if strict {
				return nil, err
			}
			return Never{Reason: err.Error()}, err
		}
		rawList = list
	}

	children := make([]Condition, 0, len(rawList))
	var errs []error
	for i, item := range rawList {
		child, ok := item.(map[string]any)
		if !ok {
			err := fmt.Errorf("%w: conditions[%d] must be an object", custom_err.ErrInvalidCondition, i)
			if strict {
				return nil, err
			}
			children = append(children, Never{Reason: err.Error()})
			errs = append(errs, err)
			continue
		}
		c, err := compileNode(child, strict)
		if err != nil {
			if strict {
				return nil, err
			}
			errs = append(errs, err)
		}
		children = append(children, c)
	}

	switch strings.ToUpper(logic) {
	case "AND":
		return All(children), errors.Join(errs...)
	case "OR":
		return Any(children), errors.Join(errs...)
	default:
		err := fmt.Errorf("%w: unknown logic %q", custom_err.ErrInvalidCondition, logic)
		if strict {
			return nil, err
		}
		return Never{Reason: err.Error()}, err
	}
}
