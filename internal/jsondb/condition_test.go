package jsondb

import (
	"encoding/json"
	"testing"
)

func cond(t *testing.T, s string) Condition {
	t.Helper()
	var c Condition
	if err := json.Unmarshal([]byte(s), &c); err != nil {
		t.Fatalf("Unmarshal(%s) failed: %v", s, err)
	}
	return c
}

func TestEvaluate(t *testing.T) {
	doc := `{
		"name": "Joy Harper",
		"age": 23,
		"height": 1.72,
		"married": false,
		"tags": ["Red", "blue", 3],
		"address": {"city": "Lyon", "geo": {"zip": "69000"}},
		"nothing": null
	}`
	tests := []struct {
		name string
		cond string
		want bool
	}{
		{"int less", `{"field":"age","criteria":"<","value":30}`, true},
		{"int less false", `{"field":"age","criteria":"<","value":20}`, false},
		{"int equal float", `{"field":"age","criteria":"==","value":23.0}`, true},
		{"float ge", `{"field":"height","criteria":">=","value":1.72}`, true},
		{"number not equal", `{"field":"age","criteria":"!=","value":24}`, true},
		{"number vs string", `{"field":"age","criteria":"<","value":"30"}`, false},
		{"number in", `{"field":"age","criteria":"in","value":[1,23]}`, true},
		{"number not in", `{"field":"age","criteria":"in","value":[1,2]}`, false},
		{"bool equal", `{"field":"married","criteria":"==","value":false}`, true},
		{"bool not equal", `{"field":"married","criteria":"!=","value":false}`, false},
		{"bool less is not applicable", `{"field":"married","criteria":"<","value":true}`, false},
		{"string equal", `{"field":"name","criteria":"==","value":"Joy Harper"}`, true},
		{"string equal case", `{"field":"name","criteria":"==","value":"joy harper"}`, false},
		{"string equal ignore case", `{"field":"name","criteria":"==","value":"joy harper","ignoreCase":true}`, true},
		{"startsWith ignore case", `{"field":"name","criteria":"startsWith","value":"joy","ignoreCase":true}`, true},
		{"startsWith case sensitive", `{"field":"name","criteria":"startsWith","value":"joy"}`, false},
		{"endsWith", `{"field":"name","criteria":"endsWith","value":"Harper"}`, true},
		{"includes", `{"field":"name","criteria":"includes","value":"y H"}`, true},
		{"contains ignore case", `{"field":"name","criteria":"contains","value":"HARP","ignoreCase":true}`, true},
		{"string lexicographic", `{"field":"name","criteria":">","value":"Ann"}`, true},
		{"string in ignore case", `{"field":"name","criteria":"in","value":["JOY HARPER"],"ignoreCase":true}`, true},
		{"array-contains", `{"field":"tags","criteria":"array-contains","value":"blue"}`, true},
		{"array-contains number", `{"field":"tags","criteria":"array-contains","value":3}`, true},
		{"array-contains case", `{"field":"tags","criteria":"array-contains","value":"red"}`, false},
		{"array-contains ignore case", `{"field":"tags","criteria":"array-contains","value":"red","ignoreCase":true}`, true},
		{"array-contains-any", `{"field":"tags","criteria":"array-contains-any","value":["green","blue"]}`, true},
		{"array-contains-any none", `{"field":"tags","criteria":"array-contains-any","value":["green"]}`, false},
		{"array-contains-none", `{"field":"tags","criteria":"array-contains-none","value":["green"]}`, true},
		{"array-contains-none overlap", `{"field":"tags","criteria":"array-contains-none","value":["RED"],"ignoreCase":true}`, false},
		{"array-length-eq", `{"field":"tags","criteria":"array-length-eq","value":3}`, true},
		{"array-length-df", `{"field":"tags","criteria":"array-length-df","value":3}`, false},
		{"array-length-gt", `{"field":"tags","criteria":"array-length-gt","value":2}`, true},
		{"array-length-lt", `{"field":"tags","criteria":"array-length-lt","value":3}`, false},
		{"array-length-ge", `{"field":"tags","criteria":"array-length-ge","value":3}`, true},
		{"array-length-le", `{"field":"tags","criteria":"array-length-le","value":2}`, false},
		{"array-length non integer", `{"field":"tags","criteria":"array-length-eq","value":"3"}`, false},
		{"array with string operator", `{"field":"tags","criteria":"==","value":"blue"}`, false},
		{"nested", `{"field":"address.city","criteria":"==","value":"Lyon"}`, true},
		{"deeply nested", `{"field":"address.geo.zip","criteria":"startsWith","value":"69"}`, true},
		{"object is not comparable", `{"field":"address","criteria":"==","value":"Lyon"}`, false},
		{"null is not comparable", `{"field":"nothing","criteria":"==","value":null}`, false},
	}
	d := mustParse(t, doc)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := cond(t, tt.cond)
			if err := c.Validate(); err != nil {
				t.Fatalf("Validate failed: %v", err)
			}
			if got := Evaluate(d, []Condition{c}); got != tt.want {
				t.Errorf("Evaluate = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEvaluateMissingPath(t *testing.T) {
	d := mustParse(t, `{"a":{"b":{"c":1}},"s":"x"}`)
	paths := []string{"missing", "a.missing", "a.b.c.d", "a.b.missing.deeper.still", "s.length", "x.y.z"}
	criteria := []Criteria{CriteriaEqual, CriteriaNotEqual, CriteriaLess, CriteriaArrayContainsNone, CriteriaArrayLengthDf}
	for _, p := range paths {
		for _, c := range criteria {
			if Evaluate(d, []Condition{{Field: p, Criteria: c, Value: Int(1)}}) {
				t.Errorf("Evaluate(%q %s) = true on missing path", p, c)
			}
		}
	}
}

func TestEvaluateIsConjunction(t *testing.T) {
	d := mustParse(t, `{"age":23,"name":"Joy"}`)
	ok := []Condition{
		{Field: "age", Criteria: CriteriaGreater, Value: Int(20)},
		{Field: "name", Criteria: CriteriaEqual, Value: Text("Joy")},
	}
	if !Evaluate(d, ok) {
		t.Error("all conditions hold, want true")
	}
	ko := append(ok, Condition{Field: "age", Criteria: CriteriaLess, Value: Int(21)})
	if Evaluate(d, ko) {
		t.Error("one condition fails, want false")
	}
	if !Evaluate(d, nil) {
		t.Error("no condition, want true")
	}
}

func TestConditionValidate(t *testing.T) {
	tests := []struct {
		name string
		c    Condition
		ok   bool
	}{
		{"valid", Condition{Field: "a.b", Criteria: CriteriaEqual}, true},
		{"empty field", Condition{Field: "", Criteria: CriteriaEqual}, false},
		{"empty segment", Condition{Field: "a..b", Criteria: CriteriaEqual}, false},
		{"unknown criteria", Condition{Field: "a", Criteria: "~="}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.c.Validate()
			if (err == nil) != tt.ok {
				t.Errorf("Validate() = %v, want ok=%v", err, tt.ok)
			}
		})
	}
}
