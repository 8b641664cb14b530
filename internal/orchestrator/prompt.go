package orchestrator

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"unicode"

	"github.com/trii-invest/insightd/internal/resource"
)

// knownSections are rendered first, in this order, with these labels.
var knownSections = []struct {
	Key   string
	Label string
}{
	{"technical_indicators", "Technical Indicators"},
	{"fundamental_data", "Fundamental Data"},
	{"sentiment", "Market Sentiment"},
	{"user_profile", "User Profile"},
}

// RenderPrompt builds the recommendation prompt for subject. Populated
// contextData keys become labeled sections: known keys first in a fixed
// order, then the rest sorted by key. Nil or empty values are omitted.
func RenderPrompt(subject string, contextData map[string]any, c *resource.Context) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Generate an investment recommendation for %s based on the following context:\n", subject)
	b.WriteString("\nContext Information:\n")

	rendered := make(map[string]bool, len(knownSections))
	for _, s := range knownSections {
		rendered[s.Key] = true
		if v, ok := contextData[s.Key]; ok && !isEmpty(v) {
			fmt.Fprintf(&b, "%s: %s\n", s.Label, formatValue(v))
		}
	}

	var extra []string
	for k, v := range contextData {
		if !rendered[k] && !isEmpty(v) {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	for _, k := range extra {
		fmt.Fprintf(&b, "%s: %s\n", titleCase(k), formatValue(contextData[k]))
	}

	if c != nil && len(c.Resources) > 0 {
		b.WriteString("\nAvailable Resources:\n")
		for _, r := range c.Resources {
			fmt.Fprintf(&b, "- %s (%s)\n", r.Name, r.URI)
		}
	}

	b.WriteString("\nPlease provide:\n")
	b.WriteString("1. Investment signal (BUY/HOLD/AVOID)\n")
	b.WriteString("2. Confidence level (0-100%)\n")
	b.WriteString("3. Key reasons for the recommendation\n")
	b.WriteString("4. Risk considerations\n")
	b.WriteString("5. Time horizon suggestion\n")
	b.WriteString("\nFormat your response as a structured analysis with clear sections.")
	return b.String()
}

func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String, reflect.Map, reflect.Slice, reflect.Array:
		return rv.Len() == 0
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

// formatValue renders strings as-is and everything else as compact JSON,
// whose map keys are sorted.
func formatValue(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

// titleCase turns "price_target" into "Price Target".
func titleCase(key string) string {
	words := strings.FieldsFunc(key, func(r rune) bool { return r == '_' || r == '-' || r == ' ' })
	for i, w := range words {
		runes := []rune(w)
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}
