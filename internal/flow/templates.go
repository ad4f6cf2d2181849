// Package flow implements the qualification flow engine: flow resolution,
// reply interpretation, the per-lead conversation state machine, and
// owner-facing summary rendering.
package flow

import (
	"log/slog"

	"github.com/covehq/cove/internal/models"
)

// DefaultIndustry is the template used when a business has no valid custom
// flow and its industry key is unknown.
const DefaultIndustry = "dental"

// templates is the closed registry of built-in industry flows. Every entry
// satisfies models.FlowDefinition.Validate; TestTemplatesValid enforces it.
var templates = map[string]*models.FlowDefinition{
	"dental": {
		Name:                  "Dental Clinic",
		Intro:                 "Hi {firstName}, this is {businessName}. Thanks for contacting us — 3 quick Qs so our team can call you faster.",
		Completion:            "Thanks, got it! {businessName} will contact you shortly.",
		CompletionWithBooking: "Thanks, got it! {businessName} will contact you shortly. Book directly here: {bookingLink}",
		Steps: []models.Step{
			{
				ID:          "patient_type",
				Key:         "patient_type",
				Question:    "Are you a new or existing patient?\nA) New\nB) Existing",
				InvalidText: "Please reply A for New or B for Existing.",
				Options: []models.Option{
					{Value: "A", Label: "New patient"},
					{Value: "B", Label: "Existing patient"},
				},
			},
			{
				ID:          "intent",
				Key:         "intent",
				Question:    "What can we help with today?\n1) Urgent pain\n2) Check-up/clean\n3) Broken tooth/filling\n4) Cosmetic consult\n5) Other",
				InvalidText: "Please reply with a number from 1 to 5.",
				Options: []models.Option{
					{Value: "1", Label: "Urgent dental pain"},
					{Value: "2", Label: "Routine check-up and clean"},
					{Value: "3", Label: "Broken tooth / filling issue"},
					{Value: "4", Label: "Cosmetic consultation"},
					{Value: "5", Label: "Other"},
				},
				UrgentValues: []string{"1"},
			},
			{
				ID:          "timing",
				Key:         "timing",
				Question:    "Preferred callback time?\nA) Morning\nB) Afternoon\nC) Next available",
				InvalidText: "Please reply A for Morning, B for Afternoon, or C for Next available.",
				Options: []models.Option{
					{Value: "A", Label: "Morning"},
					{Value: "B", Label: "Afternoon"},
					{Value: "C", Label: "Next available"},
				},
			},
		},
	},
	"plumbing": {
		Name:                  "Plumbing",
		Intro:                 "Hi {firstName}, this is {businessName}. Quick questions so we can prioritise your job.",
		Completion:            "Thanks {firstName}! {businessName} will be in touch shortly.",
		CompletionWithBooking: "Thanks {firstName}! {businessName} will be in touch shortly. Or book online: {bookingLink}",
		Steps: []models.Step{
			{
				ID:          "urgency",
				Key:         "urgency",
				Question:    "How urgent is this?\nA) Emergency — water/gas leak now\nB) Urgent — need someone today\nC) Can wait a few days",
				InvalidText: "Please reply A, B or C.",
				Options: []models.Option{
					{Value: "A", Label: "Emergency — active leak"},
					{Value: "B", Label: "Urgent — same day"},
					{Value: "C", Label: "Not urgent"},
				},
				UrgentValues: []string{"A"},
			},
			{
				ID:          "job_type",
				Key:         "job_type",
				Question:    "What type of job?\n1) Blocked drain\n2) Leak / burst pipe\n3) Hot water system\n4) Toilet / tap repair\n5) Other",
				InvalidText: "Please reply with a number from 1 to 5.",
				Options: []models.Option{
					{Value: "1", Label: "Blocked drain"},
					{Value: "2", Label: "Leak / burst pipe"},
					{Value: "3", Label: "Hot water system"},
					{Value: "4", Label: "Toilet / tap repair"},
					{Value: "5", Label: "Other"},
				},
				UrgentValues: []string{"2"},
			},
			{
				ID:          "availability",
				Key:         "availability",
				Question:    "When are you available?\nA) Now — I'm home\nB) This morning\nC) This afternoon\nD) Tomorrow",
				InvalidText: "Please reply A, B, C or D.",
				Options: []models.Option{
					{Value: "A", Label: "Now — home"},
					{Value: "B", Label: "This morning"},
					{Value: "C", Label: "This afternoon"},
					{Value: "D", Label: "Tomorrow"},
				},
			},
		},
	},
	"electrical": {
		Name:                  "Electrical",
		Intro:                 "Hi {firstName}, this is {businessName}. Quick Qs to get you sorted fast.",
		Completion:            "Thanks! {businessName} will be in touch shortly.",
		CompletionWithBooking: "Thanks! {businessName} will be in touch shortly. Or book online: {bookingLink}",
		Steps: []models.Step{
			{
				ID:          "safety",
				Key:         "safety",
				Question:    "Is this a safety issue?\nA) Yes — sparking, burning smell, no power\nB) No — general electrical work",
				InvalidText: "Please reply A or B.",
				Options: []models.Option{
					{Value: "A", Label: "Safety issue"},
					{Value: "B", Label: "General work"},
				},
				UrgentValues: []string{"A"},
			},
			{
				ID:          "job_type",
				Key:         "job_type",
				Question:    "What do you need?\n1) Power outage / fault\n2) New lights or power points\n3) Switchboard / safety switch\n4) Fan installation\n5) Other",
				InvalidText: "Please reply with a number from 1 to 5.",
				Options: []models.Option{
					{Value: "1", Label: "Power outage / fault"},
					{Value: "2", Label: "New lights or power points"},
					{Value: "3", Label: "Switchboard / safety switch"},
					{Value: "4", Label: "Fan installation"},
					{Value: "5", Label: "Other"},
				},
				UrgentValues: []string{"1"},
			},
			{
				ID:          "timing",
				Key:         "timing",
				Question:    "Preferred time for a callback?\nA) ASAP\nB) Morning\nC) Afternoon",
				InvalidText: "Please reply A, B or C.",
				Options: []models.Option{
					{Value: "A", Label: "ASAP"},
					{Value: "B", Label: "Morning"},
					{Value: "C", Label: "Afternoon"},
				},
			},
		},
	},
	"hvac": {
		Name:                  "HVAC / Air Conditioning",
		Intro:                 "Hi {firstName}, this is {businessName}. A few quick questions to get your comfort sorted.",
		Completion:            "Thanks! {businessName} will follow up shortly.",
		CompletionWithBooking: "Thanks! {businessName} will follow up shortly. Or book here: {bookingLink}",
		Steps: []models.Step{
			{
				ID:          "system_type",
				Key:         "system_type",
				Question:    "What system do you need help with?\nA) Air conditioning\nB) Heating\nC) Both / ducted\nD) Not sure",
				InvalidText: "Please reply A, B, C or D.",
				Options: []models.Option{
					{Value: "A", Label: "Air conditioning"},
					{Value: "B", Label: "Heating"},
					{Value: "C", Label: "Both / ducted"},
					{Value: "D", Label: "Not sure"},
				},
			},
			{
				ID:          "issue",
				Key:         "issue",
				Question:    "What's the issue?\n1) Not working at all\n2) Not cooling/heating properly\n3) Strange noise or smell\n4) New installation\n5) Service / maintenance",
				InvalidText: "Please reply with a number from 1 to 5.",
				Options: []models.Option{
					{Value: "1", Label: "Not working at all"},
					{Value: "2", Label: "Not cooling/heating properly"},
					{Value: "3", Label: "Strange noise or smell"},
					{Value: "4", Label: "New installation"},
					{Value: "5", Label: "Service / maintenance"},
				},
				UrgentValues: []string{"1", "3"},
			},
			{
				ID:          "timing",
				Key:         "timing",
				Question:    "When works best for a callback?\nA) ASAP\nB) Morning\nC) Afternoon\nD) This week sometime",
				InvalidText: "Please reply A, B, C or D.",
				Options: []models.Option{
					{Value: "A", Label: "ASAP"},
					{Value: "B", Label: "Morning"},
					{Value: "C", Label: "Afternoon"},
					{Value: "D", Label: "This week"},
				},
			},
		},
	},
	"legal": {
		Name:                  "Legal Services",
		Intro:                 "Hi {firstName}, thanks for contacting {businessName}. A few quick questions so we can connect you with the right person.",
		Completion:            "Thanks! Someone from {businessName} will be in touch shortly.",
		CompletionWithBooking: "Thanks! Someone from {businessName} will be in touch shortly. Or book a consultation: {bookingLink}",
		Steps: []models.Step{
			{
				ID:          "matter_type",
				Key:         "matter_type",
				Question:    "What type of matter?\n1) Family / divorce\n2) Property / conveyancing\n3) Wills & estates\n4) Employment\n5) Business / commercial\n6) Other",
				InvalidText: "Please reply with a number from 1 to 6.",
				Options: []models.Option{
					{Value: "1", Label: "Family / divorce"},
					{Value: "2", Label: "Property / conveyancing"},
					{Value: "3", Label: "Wills & estates"},
					{Value: "4", Label: "Employment"},
					{Value: "5", Label: "Business / commercial"},
					{Value: "6", Label: "Other"},
				},
			},
			{
				ID:          "urgency",
				Key:         "urgency",
				Question:    "How urgent is this?\nA) Very — court date or deadline soon\nB) Moderate — need advice this week\nC) Just exploring options",
				InvalidText: "Please reply A, B or C.",
				Options: []models.Option{
					{Value: "A", Label: "Very urgent — deadline"},
					{Value: "B", Label: "Moderate — this week"},
					{Value: "C", Label: "Exploring options"},
				},
				UrgentValues: []string{"A"},
			},
			{
				ID:          "consult_pref",
				Key:         "consult_pref",
				Question:    "Preferred consultation type?\nA) Phone call\nB) In-person meeting\nC) Video call",
				InvalidText: "Please reply A, B or C.",
				Options: []models.Option{
					{Value: "A", Label: "Phone call"},
					{Value: "B", Label: "In-person"},
					{Value: "C", Label: "Video call"},
				},
			},
		},
	},
	"general": {
		Name:                  "General Service Business",
		Intro:                 "Hi {firstName}, this is {businessName}. Quick questions so we can help you faster.",
		Completion:            "Thanks! {businessName} will be in touch shortly.",
		CompletionWithBooking: "Thanks! {businessName} will be in touch shortly. Or book online: {bookingLink}",
		Steps: []models.Step{
			{
				ID:          "urgency",
				Key:         "urgency",
				Question:    "How urgent is this?\nA) Very urgent — need help today\nB) This week\nC) Not urgent — just enquiring",
				InvalidText: "Please reply A, B or C.",
				Options: []models.Option{
					{Value: "A", Label: "Very urgent — today"},
					{Value: "B", Label: "This week"},
					{Value: "C", Label: "Not urgent"},
				},
				UrgentValues: []string{"A"},
			},
			{
				ID:       "service_type",
				Key:      "service_type",
				Question: "What service do you need? (Reply with a short description)",
				FreeText: true,
			},
			{
				ID:          "timing",
				Key:         "timing",
				Question:    "Best time for a callback?\nA) ASAP\nB) Morning\nC) Afternoon\nD) Tomorrow",
				InvalidText: "Please reply A, B, C or D.",
				Options: []models.Option{
					{Value: "A", Label: "ASAP"},
					{Value: "B", Label: "Morning"},
					{Value: "C", Label: "Afternoon"},
					{Value: "D", Label: "Tomorrow"},
				},
			},
		},
	},
}

// industryOrder fixes the listing order of built-in templates.
var industryOrder = []string{"dental", "plumbing", "electrical", "hvac", "legal", "general"}

// ResolveFlow returns the flow definition governing a business's
// conversations: the business's custom flow when it is well-formed,
// otherwise the industry template, defaulting to dental.
func ResolveFlow(business *models.Business) *models.FlowDefinition {
	if business.FlowConfig != nil && len(business.FlowConfig.Steps) > 0 {
		custom := business.FlowConfig
		custom.Normalize()
		if err := custom.Validate(); err != nil {
			slog.Warn("ResolveFlow rejecting malformed custom flow, falling back to template",
				"businessID", business.ID, "error", err)
		} else {
			return custom
		}
	}

	industry := business.Industry
	if industry == "" {
		industry = DefaultIndustry
	}
	if tmpl, ok := templates[industry]; ok {
		return tmpl
	}
	slog.Debug("ResolveFlow unknown industry, using default template", "industry", industry)
	return templates[DefaultIndustry]
}

// Template returns the built-in template for an industry key, or nil.
func Template(industry string) *models.FlowDefinition {
	return templates[industry]
}

// StepAt returns the 1-based step of a flow, or nil when n is out of
// range. Callers use the nil return to detect past-final-step safely.
func StepAt(flow *models.FlowDefinition, n int) *models.Step {
	if n < 1 || n > len(flow.Steps) {
		return nil
	}
	return &flow.Steps[n-1]
}

// IndustryInfo describes one built-in template for listing APIs.
type IndustryInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	StepCount int    `json:"step_count"`
}

// Industries lists the built-in templates in declaration order.
func Industries() []IndustryInfo {
	infos := make([]IndustryInfo, 0, len(industryOrder))
	for _, id := range industryOrder {
		tmpl := templates[id]
		infos = append(infos, IndustryInfo{ID: id, Name: tmpl.Name, StepCount: len(tmpl.Steps)})
	}
	return infos
}
