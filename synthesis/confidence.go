package synthesis

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	confidenceLabel   = regexp.MustCompile(`(?i)confidence(?:\s+score)?\s*(?:[:=]|is|of)\s*(\d+(?:\.\d+)?)\s*(%)?`)
	confidencePercent = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*%\s*confiden`)
	confidenceLine    = regexp.MustCompile(`(?im)^\s*\**\s*confidence(?:\s+score)?\s*[:=].*$`)
)

// ParseConfidence finds a self-reported confidence such as "Confidence: 0.8" or
// "80% confidence". Values above 1 are read as percentages.
func ParseConfidence(text string) (float64, bool) {
	var raw string
	if m := confidenceLabel.FindStringSubmatch(text); m != nil {
		raw = m[1]
		if m[2] != "" {
			raw += "%"
		}
	} else if m := confidencePercent.FindStringSubmatch(text); m != nil {
		raw = m[1] + "%"
	} else {
		return 0, false
	}

	percent := strings.HasSuffix(raw, "%")
	v, err := strconv.ParseFloat(strings.TrimSuffix(raw, "%"), 64)
	if err != nil {
		return 0, false
	}
	if percent || v > 1 {
		v /= 100
	}
	if v < 0 || v > 1 {
		return 0, false
	}
	return v, true
}

// stripConfidence removes stand-alone confidence lines from an answer.
func stripConfidence(text string) string {
	return strings.TrimSpace(confidenceLine.ReplaceAllString(text, ""))
}
