// Copyright (c) 2025, NVIDIA CORPORATION.  All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package policy

import (
	"strconv"
	"strings"

	"github.com/esnode-io/esnode-core/pkg/errors"
)

// Operator is a condition's comparison operator.
type Operator string

const (
	OperatorGT  Operator = ">"
	OperatorGTE Operator = ">="
	OperatorLT  Operator = "<"
	OperatorLTE Operator = "<="
	OperatorEQ  Operator = "="
	OperatorNE  Operator = "!="
)

// Condition is a parsed policy condition: an operator, a numeric
// threshold, and the optional trailing unit character the profile author
// wrote for readability ("80C", "5%") but that carries no semantic weight
// beyond documentation — current_value is compared against Threshold as a
// bare float.
type Condition struct {
	Operator  Operator
	Threshold float64
	Unit      string
}

// ParseCondition parses a condition expression of the form
// "<operator> <number><optional unit>", e.g. "> 80", ">= 80C", "< 5%",
// "== 100", "!= 0". Operators are matched longest-first so ">=" is never
// mistaken for ">".
func ParseCondition(expr string) (*Condition, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, errors.New(errors.ErrCodeConfiguration, "condition expression cannot be empty")
	}

	// Matched longest-prefix-first so "==" is consumed whole rather than
	// leaving a stray "=" in rest, and ">=" is never mistaken for ">".
	prefixes := []string{">=", "<=", "!=", "==", "=", ">", "<"}
	var op Operator
	var rest string
	for _, prefix := range prefixes {
		if strings.HasPrefix(expr, prefix) {
			op = operatorFor(prefix)
			rest = strings.TrimSpace(strings.TrimPrefix(expr, prefix))
			break
		}
	}
	if op == "" {
		return nil, errors.NewWithContext(errors.ErrCodeConfiguration,
			"condition expression has no recognized operator", map[string]any{"condition": expr})
	}
	if rest == "" {
		return nil, errors.NewWithContext(errors.ErrCodeConfiguration,
			"condition expression has no threshold value", map[string]any{"condition": expr})
	}

	numeric, unit := splitTrailingUnit(rest)
	threshold, err := strconv.ParseFloat(numeric, 64)
	if err != nil {
		return nil, errors.WrapWithContext(errors.ErrCodeConfiguration,
			"condition threshold is not numeric", err, map[string]any{"condition": expr})
	}

	return &Condition{Operator: op, Threshold: threshold, Unit: unit}, nil
}

// operatorFor maps a matched literal prefix to its canonical Operator;
// "=" and "==" are synonyms for OperatorEQ.
func operatorFor(prefix string) Operator {
	switch prefix {
	case "==":
		return OperatorEQ
	default:
		return Operator(prefix)
	}
}

// splitTrailingUnit strips a single trailing non-numeric unit character
// ('%', 'C', 'W', ...) from a threshold literal.
func splitTrailingUnit(s string) (numeric, unit string) {
	if s == "" {
		return s, ""
	}
	last := s[len(s)-1]
	if (last >= '0' && last <= '9') || last == '.' {
		return s, ""
	}
	return s[:len(s)-1], string(last)
}

// Evaluate reports whether current satisfies the condition.
func (c *Condition) Evaluate(current float64) bool {
	switch c.Operator {
	case OperatorGT:
		return current > c.Threshold
	case OperatorGTE:
		return current >= c.Threshold
	case OperatorLT:
		return current < c.Threshold
	case OperatorLTE:
		return current <= c.Threshold
	case OperatorEQ:
		return current == c.Threshold
	case OperatorNE:
		return current != c.Threshold
	default:
		return false
	}
}
