package formfill

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Guess is one heuristically identified form field: the selector to target
// and the logical field the input most likely represents.
type Guess struct {
	Selector string
	Field    Field
	Kind     string // input type attribute: text, email, tel, file, ...
}

// IdentifyFields parses page HTML and guesses which profile field each
// visible input maps to, in document order. Inputs that match no known
// keyword are omitted.
func IdentifyFields(html string) ([]Guess, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse form HTML: %w", err)
	}

	var guesses []Guess
	doc.Find("input, textarea, select").Each(func(_ int, sel *goquery.Selection) {
		kind := strings.ToLower(sel.AttrOr("type", ""))
		switch kind {
		case "hidden", "submit", "button", "checkbox", "radio":
			return
		}

		hints := strings.ToLower(strings.Join([]string{
			sel.AttrOr("name", ""),
			sel.AttrOr("id", ""),
			sel.AttrOr("placeholder", ""),
			sel.AttrOr("aria-label", ""),
			sel.AttrOr("autocomplete", ""),
		}, " "))

		field, ok := guessField(hints, kind)
		if !ok {
			return
		}

		selector := selectorFor(sel)
		if selector == "" {
			return
		}
		guesses = append(guesses, Guess{Selector: selector, Field: field, Kind: kind})
	})
	return guesses, nil
}

// guessField matches the concatenated attribute text against field keywords.
// Checks run most-specific first so "first name" wins over a bare "name".
func guessField(hints, kind string) (Field, bool) {
	has := func(words ...string) bool {
		for _, word := range words {
			if !strings.Contains(hints, word) {
				return false
			}
		}
		return true
	}

	switch {
	case kind == "email" || has("email"):
		return FieldEmail, true
	case kind == "tel" || has("phone") || has("mobile"):
		return FieldPhone, true
	case kind == "file" && (has("cover") || has("letter")):
		return FieldCoverLetter, true
	case kind == "file":
		return FieldResume, true
	case has("first", "name") || has("given", "name"):
		return FieldFirstName, true
	case has("last", "name") || has("family", "name") || has("surname"):
		return FieldLastName, true
	case has("full", "name") || has("your", "name"):
		return FieldFullName, true
	case has("linkedin"):
		return FieldLinkedIn, true
	case has("website") || has("portfolio") || has("url"):
		return FieldWebsite, true
	case has("salary") || has("compensation"):
		return FieldSalary, true
	case has("location") || has("city") || has("address"):
		return FieldLocation, true
	case has("name"):
		return FieldFullName, true
	}
	return "", false
}

// selectorFor builds a CSS selector for the element from its id or name.
// Elements with neither cannot be targeted reliably and are skipped.
func selectorFor(sel *goquery.Selection) string {
	if id := sel.AttrOr("id", ""); id != "" {
		return "#" + id
	}
	if name := sel.AttrOr("name", ""); name != "" {
		tag := goquery.NodeName(sel)
		return fmt.Sprintf(`%s[name=%q]`, tag, name)
	}
	return ""
}
