package flows

import (
	"regexp"
	"strings"
	"time"
)

// Static conversation catalogs: cities, clinics per city, concern lists
// per category, appointment slots. Row IDs are stable wire identifiers
// echoed back by WhatsApp in list/button replies.

var cityRows = []Row{
	{ID: "city_hyderabad", Title: "Hyderabad"},
	{ID: "city_bangalore", Title: "Bangalore"},
	{ID: "city_chennai", Title: "Chennai"},
	{ID: "city_kolkata", Title: "Kolkata"},
	{ID: "city_pune", Title: "Pune"},
	{ID: "city_kochi", Title: "Kochi"},
	{ID: "city_ahmedabad", Title: "Ahmedabad"},
	{ID: "city_ludhiana", Title: "Ludhiana"},
	{ID: "city_vizag", Title: "Vizag"},
	{ID: "city_vijayawada", Title: "Vijayawada"},
	{ID: "city_other", Title: "Other"},
}

// CityName resolves a city row ID to its display name; ok is false for
// anything outside the published list.
func CityName(rowID string) (string, bool) {
	id := strings.ToLower(strings.TrimSpace(rowID))
	for _, row := range cityRows {
		if row.ID == id {
			return row.Title, true
		}
	}
	return "", false
}

var otherClinics = []Row{
	{ID: "clinic_other_consultation", Title: "Online Consultation"},
	{ID: "clinic_other_callback", Title: "Call Back Required"},
}

var clinicsByCity = map[string][]Row{
	"Hyderabad": {
		{ID: "clinic_hyderabad_banjara", Title: "Banjara Hills"},
		{ID: "clinic_hyderabad_jubilee", Title: "Jubilee Hills"},
		{ID: "clinic_hyderabad_hitec", Title: "HITEC City"},
		{ID: "clinic_hyderabad_secunderabad", Title: "Secunderabad"},
	},
	"Bengaluru": {
		{ID: "clinic_bengaluru_koramangala", Title: "Koramangala"},
		{ID: "clinic_bengaluru_indiranagar", Title: "Indiranagar"},
		{ID: "clinic_bengaluru_whitefield", Title: "Whitefield"},
		{ID: "clinic_bengaluru_jayanagar", Title: "Jayanagar"},
	},
	"Chennai": {
		{ID: "clinic_chennai_tnagar", Title: "T. Nagar"},
		{ID: "clinic_chennai_adyar", Title: "Adyar"},
		{ID: "clinic_chennai_anna_nagar", Title: "Anna Nagar"},
		{ID: "clinic_chennai_velachery", Title: "Velachery"},
	},
	"Pune": {
		{ID: "clinic_pune_koregaon", Title: "Koregaon Park"},
		{ID: "clinic_pune_baner", Title: "Baner"},
		{ID: "clinic_pune_hadapsar", Title: "Hadapsar"},
		{ID: "clinic_pune_viman_nagar", Title: "Viman Nagar"},
	},
	"Kochi": {
		{ID: "clinic_kochi_kaloor", Title: "Kaloor"},
		{ID: "clinic_kochi_kakkanad", Title: "Kakkanad"},
		{ID: "clinic_kochi_edapally", Title: "Edapally"},
	},
}

// ClinicsForCity returns the clinic rows for a city. The brand labels
// Bangalore while the clinic table keys Bengaluru. Cities with no
// physical clinic yet fall back to the remote options.
func ClinicsForCity(city string) []Row {
	key := city
	if key == "Bangalore" {
		key = "Bengaluru"
	}
	if rows, ok := clinicsByCity[key]; ok {
		return rows
	}
	return otherClinics
}

// ClinicTitle resolves a clinic row ID to its display name, falling back
// to a title-cased rendering of the ID tail for unrecognized rows.
func ClinicTitle(rowID string) string {
	for _, rows := range clinicsByCity {
		for _, row := range rows {
			if row.ID == rowID {
				return row.Title
			}
		}
	}
	for _, row := range otherClinics {
		if row.ID == rowID {
			return row.Title
		}
	}
	tail := strings.TrimPrefix(rowID, "clinic_")
	parts := strings.Split(tail, "_")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	for i, p := range parts {
		if p != "" {
			parts[i] = strings.ToUpper(p[:1]) + p[1:]
		}
	}
	return strings.Join(parts, " ")
}

// Concern category IDs (reply-button IDs on the category prompt).
const (
	CategorySkin = "skin"
	CategoryHair = "hair"
	CategoryBody = "body"
)

var concernsByCategory = map[string][]Row{
	CategorySkin: {
		{ID: "acne", Title: "Acne / Acne Scars"},
		{ID: "pigmentation", Title: "Pigmentation & Uneven Skin Tone"},
		{ID: "antiaging", Title: "Anti-Aging & Skin Rejuvenation"},
		{ID: "laser", Title: "Laser Hair Removal"},
		{ID: "other_skin", Title: "Other Skin Concerns"},
	},
	CategoryHair: {
		{ID: "hair_loss", Title: "Hair Loss / Hair Fall"},
		{ID: "hair_transplant", Title: "Hair Transplant"},
		{ID: "dandruff", Title: "Dandruff & Scalp Care"},
		{ID: "other_hair", Title: "Other Hair Concerns"},
	},
	CategoryBody: {
		{ID: "weight_management", Title: "Weight Management"},
		{ID: "body_contouring", Title: "Body Contouring"},
		{ID: "weight_loss", Title: "Weight Loss"},
		{ID: "other_body", Title: "Other Body Concerns"},
	},
}

// ConcernsForCategory returns the concern rows for skin/hair/body.
func ConcernsForCategory(category string) []Row {
	return concernsByCategory[strings.ToLower(category)]
}

// ConcernTitle resolves a concern row ID within a category.
func ConcernTitle(category, rowID string) (string, bool) {
	for _, row := range ConcernsForCategory(category) {
		if row.ID == rowID {
			return row.Title, true
		}
	}
	return "", false
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// concernSynonyms normalizes free-text and legacy labels to the
// canonical concern title used as the CRM mapping key.
var concernSynonyms = map[string]string{
	"acne":                "Acne / Acne Scars",
	"acne acne scars":     "Acne / Acne Scars",
	"pigmentation":        "Pigmentation & Uneven Skin Tone",
	"uneven skin tone":    "Pigmentation & Uneven Skin Tone",
	"anti aging":          "Anti-Aging & Skin Rejuvenation",
	"skin rejuvenation":   "Anti-Aging & Skin Rejuvenation",
	"laser hair removal":  "Laser Hair Removal",
	"hair loss hair fall": "Hair Loss / Hair Fall",
	"hair transplant":     "Hair Transplant",
	"dandruff":            "Dandruff & Scalp Care",
	"dandruff scalp care": "Dandruff & Scalp Care",
	"weight management":   "Weight Management",
	"body contouring":     "Body Contouring",
	"weight loss":         "Weight Loss",
	"other skin concerns": "Other Skin Concerns",
	"other hair concerns": "Other Hair Concerns",
	"other body concerns": "Other Body Concerns",
}

// CanonicalConcern strips a leading category prefix ("Skin:", ...) and
// maps synonyms to the canonical concern title. Unrecognized input is
// returned as-is so the raw label can still travel on the lead.
func CanonicalConcern(raw string) string {
	txt := strings.TrimSpace(raw)
	lowered := strings.ToLower(txt)
	for _, prefix := range []string{"skin:", "hair:", "body:"} {
		if strings.HasPrefix(lowered, prefix) {
			txt = strings.TrimSpace(txt[len(prefix):])
			break
		}
	}
	canon := strings.TrimSpace(nonAlnum.ReplaceAllString(strings.ToLower(txt), " "))
	if mapped, ok := concernSynonyms[canon]; ok {
		return mapped
	}
	return txt
}

// crmNames maps canonical concern titles to the names the CRM expects.
// The values correct known typos that live in the upstream table.
var crmNames = map[string]string{
	"Acne / Acne Scars":               "Acne",
	"Pigmentation & Uneven Skin Tone": "Pigmentation",
	"Anti-Aging & Skin Rejuvenation":  "Anti Aging",
	"Laser Hair Removal":              "Laser Hair Removal",
	"Hair Loss / Hair Fall":           "Hair Loss",
	"Hair Transplant":                 "Hair Transplant",
	"Dandruff & Scalp Care":           "Dandruff",
	"Weight Management":               "Weight Management",
	"Body Contouring":                 "Body Contouring",
	"Weight Loss":                     "Weight Loss",
	"Other Skin Concerns":             "Skin Concerns",
	"Other Hair Concerns":             "Hair Concerns",
	"Other Body Concerns":             "Body Concerns",
}

// CRMConcernName maps a stored concern to the CRM-side name, preferring
// the mapped name and falling back to the raw label.
func CRMConcernName(concern string) string {
	canonical := CanonicalConcern(concern)
	if name, ok := crmNames[canonical]; ok {
		return name
	}
	return canonical
}

// Appointment week and slot rows.

var weekRows = []Row{
	{ID: "week_this", Title: "This Week"},
	{ID: "week_next", Title: "Next Week"},
	{ID: "custom_date", Title: "Pick a Date"},
}

var slotRows = []Row{
	{ID: "slot_morning", Title: "Morning (9-11 AM)"},
	{ID: "slot_afternoon", Title: "Afternoon (12-4 PM)"},
	{ID: "slot_evening", Title: "Evening (5-7 PM)"},
}

// SlotName resolves a slot row ID, falling back to the raw ID.
func SlotName(rowID string) string {
	for _, row := range slotRows {
		if row.ID == rowID {
			return row.Title
		}
	}
	return rowID
}

var customDateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"02-01-2006",
	"2 Jan 2006",
}

// ParseCustomDate accepts the handful of date spellings users actually
// type. Returns the canonical YYYY-MM-DD form.
func ParseCustomDate(text string) (string, bool) {
	trimmed := strings.TrimSpace(text)
	for _, layout := range customDateLayouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return t.Format("2006-01-02"), true
		}
	}
	return "", false
}

// WeekRange renders the date window for a this-week/next-week pick.
func WeekRange(rowID string, now time.Time) string {
	start := now
	if rowID == "week_next" {
		start = now.AddDate(0, 0, 7)
	}
	end := start.AddDate(0, 0, 6)
	return start.Format("2006-01-02") + " to " + end.Format("2006-01-02")
}
