package fonts

import "testing"

func TestCleanFamily(t *testing.T) {
	tests := map[string]string{
		"ABCDEF+Arial-Bold":              "Arial",
		"TimesNewRomanPS-BoldMT":         "Times New Roman",
		"Arial,BoldItalic":               "Arial",
		"Helvetica":                      "Helvetica",
		"QWERTY+OpenSans-SemiboldItalic": "Open Sans",
		"CMR10":                          "CMR",
		"Calibri-Light":                  "Calibri",
	}
	for in, want := range tests {
		if got := CleanFamily(in); got != want {
			t.Errorf("CleanFamily(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestResolveFamily(t *testing.T) {
	tests := map[string]string{
		"Times-Roman":          "Times New Roman",
		"ABCDEF+ArialMT":       "Arial",
		"CourierNewPSMT":       "Courier New",
		"Trebuchet-BoldItalic": "Trebuchet MS",
		"XYZABC+HelveticaNeue": "Helvetica",
		"Calibri":              "Arial",
		"Verdana":              "Verdana",
	}
	for in, want := range tests {
		if got := ResolveFamily(in); got != want {
			t.Errorf("ResolveFamily(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestWeightAndStyle(t *testing.T) {
	if !IsBold("ABCDEF+Roboto-Black", 0) || !IsBold("Arial-BdMT", 0) || !IsBold("Foo", 700) {
		t.Fatalf("bold not detected")
	}
	if IsBold("Helvetica", 400) {
		t.Fatalf("false bold")
	}
	if !IsItalic("Times-Italic") || !IsItalic("Helvetica-Oblique") || !IsItalic("Minion-It") {
		t.Fatalf("italic not detected")
	}
	if IsItalic("Bitstream") {
		t.Fatalf("false italic")
	}
}

func TestStandardName(t *testing.T) {
	tests := []struct {
		family       string
		bold, italic bool
		want         string
	}{
		{"Times New Roman", false, false, "Times-Roman"},
		{"Georgia", true, true, "Times-BoldItalic"},
		{"Courier New", true, false, "Courier-Bold"},
		{"Arial", false, true, "Helvetica-Oblique"},
		{"Open Sans", true, true, "Helvetica-BoldOblique"},
	}
	for _, tc := range tests {
		if got := StandardName(ClassifyFamily(tc.family), tc.bold, tc.italic); got != tc.want {
			t.Errorf("%s bold=%v italic=%v: got %q want %q", tc.family, tc.bold, tc.italic, got, tc.want)
		}
	}
	if !IsStandardName("ABCDEF+Helvetica-Bold") || IsStandardName("Arial") {
		t.Fatalf("IsStandardName")
	}
}
