package utils

import "testing"

func TestNormalizeText(t *testing.T) {
	cases := map[string]string{
		"  Hello, World!  ":       "hello world",
		"BOOK an Appointment!!!":  "book an appointment",
		"👋 hi":                    "hi",
		"":                        "",
		"Pigmentation & Un-even": "pigmentation un even",
	}
	for input, want := range cases {
		if got := NormalizeText(input); got != want {
			t.Errorf("NormalizeText(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestContainsKeywordWholeTokensOnly(t *testing.T) {
	triggers := []string{"book", "appointment"}
	if !ContainsKeyword("I want to BOOK a slot", triggers) {
		t.Error("whole token not matched")
	}
	if ContainsKeyword("visiting the bookstore", triggers) {
		t.Error("substring matched as token")
	}
	if ContainsKeyword("", triggers) {
		t.Error("empty text matched")
	}
}

func TestMatchTitleExactBeatsSubstring(t *testing.T) {
	titles := []string{"Hair Transplant", "Hair Loss / Hair Fall"}
	got, ok := MatchTitle("hair transplant", titles)
	if !ok || got != "Hair Transplant" {
		t.Errorf("got %q ok=%v", got, ok)
	}
}

func TestMatchTitleSubstringFallback(t *testing.T) {
	titles := []string{"Pigmentation & Uneven Skin Tone"}
	got, ok := MatchTitle("pigmentation", titles)
	if !ok || got != "Pigmentation & Uneven Skin Tone" {
		t.Errorf("got %q ok=%v", got, ok)
	}
	if _, ok := MatchTitle("quantum flux", titles); ok {
		t.Error("unrelated text matched")
	}
}

func TestNormalizePhone(t *testing.T) {
	cases := map[string]string{
		"+91 98765 43210": "919876543210",
		"9876543210":      "919876543210",
		"919876543210":    "919876543210",
		"98-76-54":        "987654",
	}
	for input, want := range cases {
		if got := NormalizePhone(input); got != want {
			t.Errorf("NormalizePhone(%q) = %q, want %q", input, got, want)
		}
	}
}
