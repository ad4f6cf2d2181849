package flow

import (
	"strings"

	"github.com/covehq/cove/internal/models"
)

// AnswerCodeSuffix and AnswerLabelSuffix are appended to a step key to
// form the two answer fields recorded per answered step.
const (
	AnswerCodeSuffix  = "_code"
	AnswerLabelSuffix = "_label"
	// FreeTextCode is the code recorded for free-text answers.
	FreeTextCode = "free_text"
)

// minFuzzyInputLen is the shortest reply the fuzzy matcher will consider.
// Very short replies ("a", "k") are left to the exact-value path so they
// cannot false-match a label.
const minFuzzyInputLen = 2

// ValidateReply reports whether a raw inbound text is an acceptable answer
// for a step. Free-text steps accept any non-empty trimmed reply;
// structured steps accept an exact option value (case-insensitive) or
// anything the fuzzy matcher can resolve.
func ValidateReply(step *models.Step, text string) bool {
	if step.FreeText {
		return strings.TrimSpace(text) != ""
	}
	normalized := strings.ToUpper(strings.TrimSpace(text))
	if step.OptionByValue(normalized) != nil {
		return true
	}
	return FuzzyMatch(step, text) != ""
}

// FuzzyMatch resolves free-form text to an option value via a cascade of
// heuristics, in priority order: exact label match, label containment,
// token-prefix overlap. The first option in declaration order satisfying a
// rule wins, and earlier rules always beat later ones. Returns "" when
// nothing resolves.
func FuzzyMatch(step *models.Step, text string) string {
	if len(step.Options) == 0 {
		return ""
	}
	input := strings.ToLower(strings.TrimSpace(text))
	if len(input) < minFuzzyInputLen {
		return ""
	}

	// Exact label match.
	for _, opt := range step.Options {
		if opt.Label != "" && strings.ToLower(opt.Label) == input {
			return opt.Value
		}
	}

	// Containment, then token overlap, per option in declaration order.
	for _, opt := range step.Options {
		if opt.Label == "" {
			continue
		}
		label := strings.ToLower(opt.Label)
		if strings.Contains(label, input) || strings.Contains(input, label) {
			return opt.Value
		}
		labelWords := splitWords(label)
		inputWords := splitWords(input)
		for _, iw := range inputWords {
			for _, lw := range labelWords {
				if strings.HasPrefix(lw, iw) || strings.HasPrefix(iw, lw) {
					return opt.Value
				}
			}
		}
	}

	return ""
}

// splitWords breaks a label or reply into words of length > 2, splitting
// on whitespace, hyphens, em-dashes, commas, and slashes.
func splitWords(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		switch r {
		case ' ', '\t', '\n', '-', '—', '–', ',', '/':
			return true
		}
		return false
	})
	words := fields[:0]
	for _, w := range fields {
		if len(w) > 2 {
			words = append(words, w)
		}
	}
	return words
}

// ParseReply converts a validated reply into its answer fields,
// {key}_code and {key}_label. Resolution tries an exact option value
// first, then the fuzzy matcher. An unresolved structured reply still
// yields fields (raw uppercased code, raw label) so that drift between
// "valid" and "resolvable" cannot drop an answer.
func ParseReply(step *models.Step, text string) map[string]string {
	if step.FreeText {
		return map[string]string{
			step.Key + AnswerCodeSuffix:  FreeTextCode,
			step.Key + AnswerLabelSuffix: strings.TrimSpace(text),
		}
	}

	normalized := strings.ToUpper(strings.TrimSpace(text))
	option := step.OptionByValue(normalized)
	if option == nil {
		if val := FuzzyMatch(step, text); val != "" {
			option = step.OptionByValue(val)
		}
	}

	if option == nil {
		return map[string]string{
			step.Key + AnswerCodeSuffix:  normalized,
			step.Key + AnswerLabelSuffix: text,
		}
	}
	return map[string]string{
		step.Key + AnswerCodeSuffix:  option.Value,
		step.Key + AnswerLabelSuffix: option.Label,
	}
}

// IsUrgentReply reports whether a reply selects one of the step's urgent
// values, either by exact option value or via fuzzy resolution.
func IsUrgentReply(step *models.Step, text string) bool {
	if len(step.UrgentValues) == 0 {
		return false
	}
	normalized := strings.ToUpper(strings.TrimSpace(text))
	if step.IsUrgentValue(normalized) {
		return true
	}
	if val := FuzzyMatch(step, text); val != "" {
		return step.IsUrgentValue(val)
	}
	return false
}
