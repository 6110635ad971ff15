package naming

import (
	"testing"

	"github.com/arogyalabs/carefind/engine/domain"
)

func newTestDecomposer() *Decomposer {
	return New(domain.DefaultGazetteer())
}

func TestLocationTerms(t *testing.T) {
	d := newTestDecomposer()

	cases := []struct {
		in   string
		want []string
	}{
		{"Manipal Hospital Sarjapur", []string{"sarjapur"}},
		{"Fortis Hospital Bannerghatta Road", []string{"bannerghatta", "bannerghatta road"}},
		{"Apollo Clinic Old Airport Road", []string{"airport road", "old airport"}},
		{"Sakra Hospital Marathahalli", []string{"marathahalli"}},
		{"City Hospital", nil},
	}

	for _, tc := range cases {
		got := d.LocationTerms(tc.in)
		if len(got) != len(tc.want) {
			t.Errorf("LocationTerms(%q) = %v, want %v", tc.in, got, tc.want)
			continue
		}
		gotSet := map[string]bool{}
		for _, g := range got {
			gotSet[g] = true
		}
		for _, w := range tc.want {
			if !gotSet[w] {
				t.Errorf("LocationTerms(%q) = %v, missing %q", tc.in, got, w)
			}
		}
	}
}

func TestLocationTerms_Deduplicated(t *testing.T) {
	d := newTestDecomposer()
	got := d.LocationTerms("Sarjapur branch near Sarjapur")
	count := 0
	for _, g := range got {
		if g == "sarjapur" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("expected sarjapur once, got %v", got)
	}
}

func TestMainName(t *testing.T) {
	d := newTestDecomposer()

	cases := map[string]string{
		"Manipal Hospital Sarjapur":         "manipal",
		"Fortis Hospital Bannerghatta Road": "fortis",
		"Apollo Hospitals":                  "apollo",
		"Narayana Medical Center":           "narayana",
		"Cloudnine Clinic Jayanagar":        "cloudnine",
		"Aster CMI":                         "aster cmi",
	}
	for in, want := range cases {
		if got := d.MainName(in); got != want {
			t.Errorf("MainName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMainName_EmptyForPureLocation(t *testing.T) {
	d := newTestDecomposer()
	if got := d.MainName("Sarjapur Road Hospital"); got != "" {
		t.Errorf("expected empty main name, got %q", got)
	}
}

// Applying MainName twice must yield the same result as once.
func TestMainName_Idempotent(t *testing.T) {
	d := newTestDecomposer()
	inputs := []string{
		"Manipal Hospital Sarjapur",
		"Fortis Hospital Bannerghatta Road",
		"Apollo Clinic Old Airport Road",
		"Sarjapur Road Hospital",
		"Aster CMI Hebbal",
		"",
	}
	for _, in := range inputs {
		once := d.MainName(in)
		twice := d.MainName(once)
		if once != twice {
			t.Errorf("MainName not idempotent for %q: %q -> %q", in, once, twice)
		}
	}
}

func TestDecompose(t *testing.T) {
	d := newTestDecomposer()
	main, terms := d.Decompose("Manipal Hospital Whitefield")
	if main != "manipal" {
		t.Errorf("main = %q", main)
	}
	if len(terms) != 1 || terms[0] != "whitefield" {
		t.Errorf("terms = %v", terms)
	}
}
