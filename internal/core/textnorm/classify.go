package textnorm

import "github.com/rfqworks/price-intel/internal/core/domain"

// categoryRules are evaluated in order; the first rule with at least one
// keyword present in the token set wins. Rule order is therefore part of the
// contract: medical beats industrial for descriptions mentioning both.
var categoryRules = []struct {
	category domain.Category
	keywords []string
}{
	{domain.CategoryMedical, []string{
		"stryker", "medline", "medical", "surgical", "hospital", "restraint",
		"catheter", "syringe", "bandage", "gauze", "glove", "gown", "mask",
		"iv", "needle", "scalpel",
	}},
	{domain.CategoryOffice, []string{
		"paper", "pen", "pencil", "folder", "binder", "toner", "ink",
		"cartridge", "staple", "envelope", "label", "tape", "marker",
		"notepad", "clipboard",
	}},
	{domain.CategoryIndustrial, []string{
		"grainger", "uline", "tool", "drill", "wrench", "bolt", "screw",
		"pipe", "valve", "motor", "pump", "filter", "bearing", "cable",
		"wire", "hose",
	}},
	{domain.CategoryJanitorial, []string{
		"cleaning", "bleach", "mop", "broom", "trash", "bag", "soap",
		"sanitizer", "disinfectant", "wipe", "towel",
	}},
}

// Classify maps a token set to a coarse category; unmatched tokens fall back
// to the general category.
func Classify(tokens TokenSet) domain.Category {
	for _, rule := range categoryRules {
		for _, kw := range rule.keywords {
			if tokens.Contains(kw) {
				return rule.category
			}
		}
	}
	return domain.CategoryGeneral
}

// ClassifyText tokenizes and classifies in one step.
func ClassifyText(text string) domain.Category {
	return Classify(Tokenize(text))
}
