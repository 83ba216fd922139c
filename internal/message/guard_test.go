package message

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func validMessage() GeneratedMessage {
	return GeneratedMessage{
		Title:       "A little more rest could help",
		Message:     "Your sleep has been running short this week. Even 30 extra minutes tonight can make tomorrow easier.",
		Reasoning:   "sleep deficit over 7-day window",
		ActionLabel: "Log tonight's sleep",
		ActionLink:  "/log/sleep",
	}
}

func TestCheckMessageAcceptsWarmContent(t *testing.T) {
	result := CheckMessage(validMessage())
	assert.True(t, result.OK)
	assert.Empty(t, result.Reasons)
}

func TestCheckMessageRejectsDenylistedPhrasing(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*GeneratedMessage)
		wantAny string
	}{
		{
			name:    "lecturing should",
			mutate:  func(m *GeneratedMessage) { m.Message = "You should sleep more, it matters." },
			wantAny: "tone:lecturing",
		},
		{
			name:    "preachy importance",
			mutate:  func(m *GeneratedMessage) { m.Message = "It is important that you track your sleep daily." },
			wantAny: "tone:preachy",
		},
		{
			name:    "ai identity",
			mutate:  func(m *GeneratedMessage) { m.Message = "I'm an AI assistant here to help with your sleep." },
			wantAny: "robotic:ai_identity",
		},
		{
			name:    "ai disclaimer",
			mutate:  func(m *GeneratedMessage) { m.Message = "As an AI, I noticed your sleep dipped." },
			wantAny: "robotic:ai_disclaimer",
		},
		{
			name:    "form letter",
			mutate:  func(m *GeneratedMessage) { m.Title = "Dear patient" },
			wantAny: "robotic:form_letter",
		},
		{
			name:    "clinical jargon",
			mutate:  func(m *GeneratedMessage) { m.Message = "Records show noncompliance with your logging plan." },
			wantAny: "clinical:jargon",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := validMessage()
			tt.mutate(&m)
			result := CheckMessage(m)
			assert.False(t, result.OK)
			assert.Contains(t, result.Reasons, tt.wantAny)
		})
	}
}

func TestCheckMessageEnforcesLengthBounds(t *testing.T) {
	m := validMessage()
	m.Title = strings.Repeat("a", MaxTitleLen+1)
	result := CheckMessage(m)
	assert.False(t, result.OK)
	assert.Contains(t, result.Reasons, "length:title>50")

	m = validMessage()
	m.Message = strings.Repeat("b", MaxMessageLen+1)
	result = CheckMessage(m)
	assert.False(t, result.OK)
	assert.Contains(t, result.Reasons, "length:message>200")
}

func TestCheckMessageRejectsEmptyFields(t *testing.T) {
	m := validMessage()
	m.Title = "  "
	m.Message = ""
	result := CheckMessage(m)
	assert.False(t, result.OK)
	assert.Contains(t, result.Reasons, "empty:title")
	assert.Contains(t, result.Reasons, "empty:message")
}
