package orchestrator

import (
	"regexp"
	"strconv"
	"strings"
)

// Signal is the coarse investment call extracted from generated text.
type Signal string

const (
	Buy   Signal = "BUY"
	Hold  Signal = "HOLD"
	Avoid Signal = "AVOID"
)

// Time horizons recognized in generated text.
const (
	ShortTerm  = "short_term"
	MediumTerm = "medium_term"
	LongTerm   = "long_term"
)

const defaultConfidence = 50

// Analysis is the structure extracted from a model's free text. Extraction
// is keyword based and can misread ambiguous prose; RawResponse is always
// kept so callers can judge for themselves.
type Analysis struct {
	Signal      Signal   `json:"signal"`
	Confidence  int      `json:"confidence"`
	Reasons     []string `json:"reasons"`
	Risks       []string `json:"risks"`
	TimeHorizon string   `json:"time_horizon"`
	RawResponse string   `json:"raw_response"`
}

var (
	confidencePattern = regexp.MustCompile(`confidence[:\s]+(\d+)%?`)
	horizonPattern    = regexp.MustCompile(`(short|medium|long)[\s_-]term`)
	bulletPattern     = regexp.MustCompile(`^(?:[-*•]|\d+[.)])\s+`)
)

// ParseAnalysis extracts signal, confidence, reasons, risks and horizon.
// Text with no recognizable signal yields HOLD with confidence 50.
func ParseAnalysis(text string) Analysis {
	a := Analysis{
		Signal:      Hold,
		Confidence:  defaultConfidence,
		Reasons:     []string{},
		Risks:       []string{},
		TimeHorizon: MediumTerm,
		RawResponse: text,
	}

	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "buy") && !strings.Contains(lower, "avoid"):
		a.Signal = Buy
	case strings.Contains(lower, "avoid") || strings.Contains(lower, "sell"):
		a.Signal = Avoid
	}

	if m := confidencePattern.FindStringSubmatch(lower); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			a.Confidence = min(max(n, 0), 100)
		}
	}

	parseSections(text, &a)
	return a
}

type section int

const (
	sectionNone section = iota
	sectionReasons
	sectionRisks
	sectionHorizon
)

// parseSections collects bullet lines under "reasons" and "risks" headings
// and reads the horizon from a line mentioning it.
func parseSections(text string, a *Analysis) {
	current := sectionNone
	horizonFound := false

	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		body := strings.TrimSpace(bulletPattern.ReplaceAllString(strings.Trim(line, "#* "), ""))
		lowerBody := strings.ToLower(body)

		if sec := headingSection(lowerBody); sec != sectionNone && isHeading(line, body) {
			current = sec
			if sec == sectionHorizon && !horizonFound {
				horizonFound = readHorizon(lowerBody, a)
			}
			continue
		}

		if !horizonFound && strings.Contains(lowerBody, "horizon") {
			horizonFound = readHorizon(lowerBody, a)
		}

		if !bulletPattern.MatchString(line) || body == "" {
			continue
		}
		switch current {
		case sectionReasons:
			a.Reasons = append(a.Reasons, body)
		case sectionRisks:
			a.Risks = append(a.Risks, body)
		case sectionHorizon:
			if !horizonFound {
				horizonFound = readHorizon(lowerBody, a)
			}
		}
	}
}

func headingSection(lower string) section {
	switch {
	case strings.Contains(lower, "horizon"):
		return sectionHorizon
	case strings.Contains(lower, "risk"):
		return sectionRisks
	case strings.Contains(lower, "reason") || strings.Contains(lower, "rationale"):
		return sectionReasons
	}
	return sectionNone
}

// isHeading treats short lines and lines ending in a colon as headings.
// A bullet is only a heading when it ends in a colon.
func isHeading(line, body string) bool {
	if bulletPattern.MatchString(line) {
		return strings.HasSuffix(body, ":")
	}
	if strings.HasSuffix(body, ":") || strings.HasPrefix(line, "#") {
		return true
	}
	if i := strings.Index(body, ":"); i > 0 && i < 30 {
		return true
	}
	return len(body) <= 40
}

func readHorizon(lower string, a *Analysis) bool {
	m := horizonPattern.FindStringSubmatch(lower)
	if m == nil {
		return false
	}
	a.TimeHorizon = m[1] + "_term"
	return true
}
