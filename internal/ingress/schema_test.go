package ingress

import "testing"

func mustValidator(t *testing.T) *Validator {
	t.Helper()
	v, err := NewValidator()
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	return v
}

func TestValidate_CompleteContext(t *testing.T) {
	v := mustValidator(t)
	doc := []byte(`{
		"causation": "ai_decision",
		"agency_present": true,
		"duty_of_care": "high",
		"knowledge_level": "full",
		"control_level": "direct"
	}`)
	if err := v.Validate(doc); err != nil {
		t.Fatalf("complete context should validate: %v", err)
	}
}

func TestValidate_WithInfluenceMethods(t *testing.T) {
	v := mustValidator(t)
	doc := []byte(`{
		"causation": "human_directed",
		"agency_present": false,
		"duty_of_care": "low",
		"knowledge_level": "partial",
		"control_level": "indirect",
		"influence_methods": [{"method": "framing", "weight": 0.4}]
	}`)
	if err := v.Validate(doc); err != nil {
		t.Fatalf("influence methods should validate: %v", err)
	}
}

func TestValidate_MissingRequiredField(t *testing.T) {
	v := mustValidator(t)
	doc := []byte(`{
		"causation": "ai_decision",
		"agency_present": true,
		"duty_of_care": "high",
		"knowledge_level": "full"
	}`)
	if err := v.Validate(doc); err == nil {
		t.Fatal("missing control_level should fail")
	}
}

func TestValidate_RejectsBadValues(t *testing.T) {
	v := mustValidator(t)
	cases := []struct {
		name string
		doc  string
	}{
		{"unknown causation", `{"causation": "fate", "agency_present": true, "duty_of_care": "low", "knowledge_level": "full", "control_level": "direct"}`},
		{"string agency", `{"causation": "natural", "agency_present": "yes", "duty_of_care": "low", "knowledge_level": "full", "control_level": "direct"}`},
		{"weight above 1", `{"causation": "natural", "agency_present": true, "duty_of_care": "low", "knowledge_level": "full", "control_level": "direct", "influence_methods": [{"method": "praise", "weight": 1.5}]}`},
		{"unknown field", `{"causation": "natural", "agency_present": true, "duty_of_care": "low", "knowledge_level": "full", "control_level": "direct", "extra": 1}`},
	}
	for _, tc := range cases {
		if err := v.Validate([]byte(tc.doc)); err == nil {
			t.Errorf("%s: expected validation failure", tc.name)
		}
	}
}

func TestValidate_MalformedJSON(t *testing.T) {
	v := mustValidator(t)
	if err := v.Validate([]byte(`{"causation": `)); err == nil {
		t.Fatal("malformed JSON should fail")
	}
}
