package quality

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true, "of": true,
	"on": true, "in": true, "with": true, "at": true, "to": true, "for": true,
	"is": true, "by": true, "from": true,
}

var folder = cases.Fold()

// tokens folds case, strips diacritics and splits on anything that is not a
// letter or digit. Stop words are dropped and a trailing plural is trimmed.
func tokens(text string) []string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	plain, _, err := transform.String(t, text)
	if err != nil {
		plain = text
	}
	plain = folder.String(plain)

	fields := strings.FieldsFunc(plain, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if stopWords[f] {
			continue
		}
		out = append(out, stem(f))
	}
	return out
}

func stem(word string) string {
	switch {
	case len(word) > 4 && strings.HasSuffix(word, "ies"):
		return word[:len(word)-3] + "y"
	case len(word) > 4 && (strings.HasSuffix(word, "ches") || strings.HasSuffix(word, "shes") || strings.HasSuffix(word, "xes")):
		return word[:len(word)-2]
	case len(word) > 3 && strings.HasSuffix(word, "s") && !strings.HasSuffix(word, "ss"):
		return word[:len(word)-1]
	default:
		return word
	}
}

// overlap is the share of name tokens that appear in text.
func overlap(name, text string) (float64, bool) {
	nameTokens := tokens(name)
	if len(nameTokens) == 0 {
		return 0, false
	}
	textTokens := tokens(text)
	if len(textTokens) == 0 {
		return 0, false
	}

	present := make(map[string]bool, len(textTokens))
	for _, tok := range textTokens {
		present[tok] = true
	}
	matched := 0
	for _, tok := range nameTokens {
		if present[tok] {
			matched++
		}
	}
	return float64(matched) / float64(len(nameTokens)), true
}

var textOverlayWords = map[string]bool{
	"text": true, "quote": true, "typography": true, "lettering": true,
	"word": true, "sign": true, "poster": true, "caption": true, "font": true,
}

// mentionsText reports whether a description suggests lettering in the image.
func mentionsText(text string) bool {
	for _, tok := range tokens(text) {
		if textOverlayWords[tok] {
			return true
		}
	}
	return false
}

// category maps free-form category ids onto the heuristic families.
func category(raw string) string {
	switch c := folder.String(strings.TrimSpace(raw)); c {
	case "animal", "animals", "pets", "birds", "insects", "sea animals", "sea creatures", "farm animals", "wild animals":
		return categoryAnimals
	case "fruit", "fruits", "vegetable", "vegetables", "food", "foods":
		return categoryFood
	case "color", "colors", "colour", "colours":
		return categoryColors
	case "shape", "shapes", "object", "objects", "vehicle", "vehicles", "transport", "transportation", "toys", "household":
		return categoryObjects
	default:
		return categoryDefault
	}
}
