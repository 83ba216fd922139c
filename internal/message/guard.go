package message

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// guardPattern flags phrasing that reads as preachy, clinical, or robotic.
type guardPattern struct {
	re     *regexp.Regexp
	reason string
}

var guardPatterns = []guardPattern{
	// Preachy / lecturing tone
	{regexp.MustCompile(`(?i)\byou (should|must|need to|have to|ought to)\b`), "tone:lecturing"},
	{regexp.MustCompile(`(?i)\bit('s| is) (important|critical|essential|vital) (that|to)\b`), "tone:preachy"},
	{regexp.MustCompile(`(?i)\b(failure to|if you don'?t)\b.*\b(consequences|risks?|worsen)\b`), "tone:threatening"},
	{regexp.MustCompile(`(?i)\bas (your|a) (doctor|physician|provider|clinician)\b`), "tone:clinical_roleplay"},

	// Robotic / AI phrasing
	{regexp.MustCompile(`(?i)i('m| am) (a|an|just a) (AI|artificial intelligence|language model|LLM|chatbot|bot|assistant)\b`), "robotic:ai_identity"},
	{regexp.MustCompile(`(?i)\bas an? (AI|language model|assistant)\b`), "robotic:ai_disclaimer"},
	{regexp.MustCompile(`(?i)\bi cannot provide medical advice\b`), "robotic:boilerplate_disclaimer"},
	{regexp.MustCompile(`(?i)\bper (our|the) (records?|data|system)\b`), "robotic:system_speak"},
	{regexp.MustCompile(`(?i)\b(dear (user|patient)|valued (member|patient))\b`), "robotic:form_letter"},

	// Clinical jargon that doesn't belong in a nudge card
	{regexp.MustCompile(`(?i)\b(noncomplian(t|ce)|adheren(t|ce) protocol|patient noncompliance)\b`), "clinical:jargon"},
	{regexp.MustCompile(`(?i)\b(utilize|leverage) (your|the)\b`), "clinical:corporate_speak"},
}

// GuardResult reports why generated content was rejected.
type GuardResult struct {
	OK      bool
	Reasons []string
}

// CheckMessage validates generated content against the denylist and the
// length bounds. Empty title or message also fails, since rendering a blank
// card is worse than using a template.
func CheckMessage(m GeneratedMessage) GuardResult {
	var reasons []string

	if strings.TrimSpace(m.Title) == "" {
		reasons = append(reasons, "empty:title")
	}
	if strings.TrimSpace(m.Message) == "" {
		reasons = append(reasons, "empty:message")
	}
	if utf8.RuneCountInString(m.Title) > MaxTitleLen {
		reasons = append(reasons, fmt.Sprintf("length:title>%d", MaxTitleLen))
	}
	if utf8.RuneCountInString(m.Message) > MaxMessageLen {
		reasons = append(reasons, fmt.Sprintf("length:message>%d", MaxMessageLen))
	}

	combined := m.Title + "\n" + m.Message
	for _, p := range guardPatterns {
		if p.re.MatchString(combined) {
			reasons = append(reasons, p.reason)
		}
	}

	return GuardResult{OK: len(reasons) == 0, Reasons: reasons}
}
