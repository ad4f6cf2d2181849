package flow

import (
	"testing"

	"github.com/covehq/cove/internal/models"
)

func intentStep() *models.Step {
	return &models.Step{
		ID:          "intent",
		Key:         "intent",
		Question:    "What can we help with today?\n1) Urgent pain\n2) Check-up/clean\n3) Broken tooth/filling",
		InvalidText: "Please reply with a number from 1 to 3.",
		Options: []models.Option{
			{Value: "1", Label: "Urgent dental pain"},
			{Value: "2", Label: "Routine check-up and clean"},
			{Value: "3", Label: "Broken tooth / filling issue"},
		},
		UrgentValues: []string{"1"},
	}
}

func freeTextStep() *models.Step {
	return &models.Step{
		ID:       "service_type",
		Key:      "service_type",
		Question: "What do you need help with?",
		FreeText: true,
	}
}

func TestValidateReply_ExactValue(t *testing.T) {
	step := intentStep()
	cases := []struct {
		reply string
		want  bool
	}{
		{"1", true},
		{" 2 ", true},
		{"3", true},
		{"9", false},
		{"", false},
	}
	for _, c := range cases {
		if got := ValidateReply(step, c.reply); got != c.want {
			t.Errorf("ValidateReply(%q) = %v, want %v", c.reply, got, c.want)
		}
	}
}

func TestValidateReply_CaseInsensitiveValue(t *testing.T) {
	step := &models.Step{
		Key:      "patient_type",
		Question: "New or existing?",
		Options: []models.Option{
			{Value: "A", Label: "New patient"},
			{Value: "B", Label: "Existing patient"},
		},
	}
	if !ValidateReply(step, "a") {
		t.Error("expected lowercase option value to validate")
	}
	if !ValidateReply(step, "B") {
		t.Error("expected uppercase option value to validate")
	}
}

func TestValidateReply_FreeText(t *testing.T) {
	step := freeTextStep()
	if !ValidateReply(step, "I need my gutters cleaned") {
		t.Error("expected non-empty free text to validate")
	}
	if ValidateReply(step, "   ") {
		t.Error("expected whitespace-only free text to be rejected")
	}
}

func TestFuzzyMatch_ExactLabel(t *testing.T) {
	step := intentStep()
	if got := FuzzyMatch(step, "Urgent dental pain"); got != "1" {
		t.Errorf("expected exact label to resolve to 1, got %q", got)
	}
}

func TestFuzzyMatch_Containment(t *testing.T) {
	step := intentStep()
	// Reply contained in a label.
	if got := FuzzyMatch(step, "check-up"); got != "2" {
		t.Errorf("expected containment match to resolve to 2, got %q", got)
	}
	// Label contained in a longer reply.
	if got := FuzzyMatch(step, "I think it's urgent dental pain honestly"); got != "1" {
		t.Errorf("expected reverse containment to resolve to 1, got %q", got)
	}
}

func TestFuzzyMatch_TokenPrefix(t *testing.T) {
	step := intentStep()
	if got := FuzzyMatch(step, "broken filling"); got != "3" {
		t.Errorf("expected token overlap to resolve to 3, got %q", got)
	}
}

func TestFuzzyMatch_TooShort(t *testing.T) {
	step := intentStep()
	if got := FuzzyMatch(step, "u"); got != "" {
		t.Errorf("expected single-character reply to be unresolvable, got %q", got)
	}
}

func TestFuzzyMatch_NoMatch(t *testing.T) {
	step := intentStep()
	if got := FuzzyMatch(step, "banana"); got != "" {
		t.Errorf("expected unrelated reply to be unresolvable, got %q", got)
	}
}

func TestFuzzyMatch_DeclarationOrderTieBreak(t *testing.T) {
	step := &models.Step{
		Key: "pick",
		Options: []models.Option{
			{Value: "A", Label: "repair work"},
			{Value: "B", Label: "repair estimate"},
		},
	}
	// Both labels contain "repair"; the first declared option wins.
	if got := FuzzyMatch(step, "repair"); got != "A" {
		t.Errorf("expected first option to win the tie, got %q", got)
	}
}

func TestValidateParseAgreement(t *testing.T) {
	// Any reply ValidateReply accepts must parse to a known option.
	step := intentStep()
	replies := []string{"1", "2", "3", "urgent pain", "check-up", "broken filling", "Urgent dental pain"}
	for _, reply := range replies {
		if !ValidateReply(step, reply) {
			t.Errorf("expected %q to validate", reply)
			continue
		}
		parsed := ParseReply(step, reply)
		code := parsed[step.Key+AnswerCodeSuffix]
		if step.OptionByValue(code) == nil {
			t.Errorf("ParseReply(%q) produced unknown code %q", reply, code)
		}
	}
}

func TestParseReply_Structured(t *testing.T) {
	step := intentStep()
	parsed := ParseReply(step, "2")
	if parsed["intent_code"] != "2" {
		t.Errorf("expected code 2, got %q", parsed["intent_code"])
	}
	if parsed["intent_label"] != "Routine check-up and clean" {
		t.Errorf("expected canonical label, got %q", parsed["intent_label"])
	}
}

func TestParseReply_FreeText(t *testing.T) {
	step := freeTextStep()
	parsed := ParseReply(step, "  gutter cleaning  ")
	if parsed["service_type_code"] != FreeTextCode {
		t.Errorf("expected free_text code, got %q", parsed["service_type_code"])
	}
	if parsed["service_type_label"] != "gutter cleaning" {
		t.Errorf("expected trimmed label, got %q", parsed["service_type_label"])
	}
}

func TestParseReply_Idempotent(t *testing.T) {
	// Parsing a reply then parsing the resulting label lands on the same code.
	step := intentStep()
	first := ParseReply(step, "urgent pain")
	second := ParseReply(step, first[step.Key+AnswerLabelSuffix])
	if first[step.Key+AnswerCodeSuffix] != second[step.Key+AnswerCodeSuffix] {
		t.Errorf("expected idempotent parse, first %q second %q",
			first[step.Key+AnswerCodeSuffix], second[step.Key+AnswerCodeSuffix])
	}
}

func TestIsUrgentReply(t *testing.T) {
	step := intentStep()
	cases := []struct {
		reply string
		want  bool
	}{
		{"1", true},
		{"urgent pain", true},
		{"2", false},
		{"check-up", false},
		{"banana", false},
	}
	for _, c := range cases {
		if got := IsUrgentReply(step, c.reply); got != c.want {
			t.Errorf("IsUrgentReply(%q) = %v, want %v", c.reply, got, c.want)
		}
	}
}

func TestIsUrgentReply_NoUrgentValues(t *testing.T) {
	step := freeTextStep()
	if IsUrgentReply(step, "anything") {
		t.Error("expected step without urgent values to never be urgent")
	}
}
