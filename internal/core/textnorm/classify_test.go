package textnorm

import (
	"testing"

	"github.com/rfqworks/price-intel/internal/core/domain"
)

func TestClassifyText(t *testing.T) {
	cases := []struct {
		text string
		want domain.Category
	}{
		{"Stryker patient restraint package", domain.CategoryMedical},
		{"HP toner cartridge black", domain.CategoryOffice},
		{"Grainger 1/2 inch ball valve", domain.CategoryIndustrial},
		{"Disinfectant wipes, 6 pack", domain.CategoryJanitorial},
		{"miscellaneous widget", domain.CategoryGeneral},
		{"", domain.CategoryGeneral},
	}
	for _, tc := range cases {
		if got := ClassifyText(tc.text); got != tc.want {
			t.Fatalf("ClassifyText(%q) = %q, want %q", tc.text, got, tc.want)
		}
	}
}

func TestClassifyFirstRuleWins(t *testing.T) {
	// "surgical" (medical) and "drill" (industrial) both present; medical is
	// evaluated first.
	if got := ClassifyText("surgical drill"); got != domain.CategoryMedical {
		t.Fatalf("expected medical to win over industrial, got %q", got)
	}
	// "paper" (office) and "towel" (janitorial): office is evaluated first.
	if got := ClassifyText("paper towel"); got != domain.CategoryOffice {
		t.Fatalf("expected office to win over janitorial, got %q", got)
	}
}
