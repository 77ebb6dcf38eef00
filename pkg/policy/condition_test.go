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

import "testing"

func TestParseConditionOperatorsAndUnits(t *testing.T) {
	tests := []struct {
		expr      string
		op        Operator
		threshold float64
		unit      string
	}{
		{"> 80", OperatorGT, 80, ""},
		{">= 80C", OperatorGTE, 80, "C"},
		{"< 5%", OperatorLT, 5, "%"},
		{"<= 5", OperatorLTE, 5, ""},
		{"== 100", OperatorEQ, 100, ""},
		{"= 100", OperatorEQ, 100, ""},
		{"!= 0", OperatorNE, 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			c, err := ParseCondition(tt.expr)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if c.Operator != tt.op || c.Threshold != tt.threshold || c.Unit != tt.unit {
				t.Errorf("got {%v %v %q}, want {%v %v %q}", c.Operator, c.Threshold, c.Unit, tt.op, tt.threshold, tt.unit)
			}
		})
	}
}

func TestParseConditionRejectsMalformedInput(t *testing.T) {
	for _, expr := range []string{"", "80", "> ", ">= abc"} {
		if _, err := ParseCondition(expr); err == nil {
			t.Errorf("expected error parsing %q", expr)
		}
	}
}

func TestEvaluateBoundaryBehavior(t *testing.T) {
	gt80, err := ParseCondition("> 80")
	if err != nil {
		t.Fatal(err)
	}
	if gt80.Evaluate(80.0) {
		t.Error("80.0 should not satisfy > 80")
	}
	if !gt80.Evaluate(80.01) {
		t.Error("80.01 should satisfy > 80")
	}

	gte80, err := ParseCondition(">= 80")
	if err != nil {
		t.Fatal(err)
	}
	if !gte80.Evaluate(80.0) {
		t.Error("80.0 should satisfy >= 80")
	}
}
