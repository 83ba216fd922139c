package message

import (
	"fmt"

	"github.com/wolfman30/nudge-engine/internal/nudge"
)

// GeneratedMessage is the patient-facing content for a nudge. Title and
// Message are bounded so they fit the client's card layout.
type GeneratedMessage struct {
	Title       string `json:"title"`
	Message     string `json:"message"`
	Reasoning   string `json:"reasoning"`
	ActionLabel string `json:"action_label"`
	ActionLink  string `json:"action_link"`
}

// MaxTitleLen and MaxMessageLen bound generated content.
const (
	MaxTitleLen   = 50
	MaxMessageLen = 200
)

type template struct {
	title       string
	message     string
	actionLabel string
	actionLink  string
}

var typeTemplates = map[nudge.Type]template{
	nudge.TypeSleepDeficit: {
		title:       "A little more rest could help",
		message:     "Your sleep has been running short this week. Even 30 extra minutes tonight can make tomorrow easier.",
		actionLabel: "Log tonight's sleep",
		actionLink:  "/log/sleep",
	},
	nudge.TypeMoodSupport: {
		title:       "Checking in on you",
		message:     "Your recent mood entries suggest this week has been heavy. A short walk or a note about how you feel can help.",
		actionLabel: "Log how you feel",
		actionLink:  "/log/mood",
	},
	nudge.TypeDecliningScore: {
		title:       "Your numbers dipped a bit",
		message:     "Your health score has slipped recently. Reviewing your logs together with your care team usually turns this around.",
		actionLabel: "Review your trends",
		actionLink:  "/trends",
	},
	nudge.TypeMissingLog: {
		title:       "Time for a quick log",
		message:     "It has been a few days since your last entry. A 30-second log keeps your picture accurate.",
		actionLabel: "Add a log",
		actionLink:  "/log",
	},
	nudge.TypeConsistencyTip: {
		title:       "Small habits, steady progress",
		message:     "Logging at the same time each day makes it easier to stick with. Many people pair it with their morning coffee.",
		actionLabel: "Set a reminder time",
		actionLink:  "/settings/reminders",
	},
	nudge.TypeAppointmentReminder: {
		title:       "Appointment coming up",
		message:     "You have an appointment soon. A quick look at your recent logs beforehand makes the visit more useful.",
		actionLabel: "View appointment",
		actionLink:  "/appointments",
	},
	nudge.TypeSymptomFollowup: {
		title:       "How are those symptoms?",
		message:     "You mentioned some symptoms recently. A quick update helps your care team see whether things are settling.",
		actionLabel: "Update symptoms",
		actionLink:  "/log/symptoms",
	},
	nudge.TypeImprovingScore: {
		title:       "Nice work, you're trending up",
		message:     "Your health score has been climbing. Whatever you're doing is working, so keep it going.",
		actionLabel: "See your progress",
		actionLink:  "/trends",
	},
	nudge.TypeStreakCelebration: {
		title:       "You're on a roll",
		message:     "You've been logging consistently, and it shows. Streaks like this are where the real insight comes from.",
		actionLabel: "View your streak",
		actionLink:  "/trends",
	},
	nudge.TypeGeneralCheckin: {
		title:       "Just checking in",
		message:     "It's been a little while. How are things going? Even a quick note keeps us in the loop.",
		actionLabel: "Say hello",
		actionLink:  "/log",
	},
}

// Template returns the static fallback content for a nudge type. Unknown
// types get the general check-in content rather than an error, since a
// template lookup is the last resort of the generation chain.
func Template(t nudge.Type) GeneratedMessage {
	tpl, ok := typeTemplates[t]
	if !ok {
		tpl = typeTemplates[nudge.TypeGeneralCheckin]
	}
	return GeneratedMessage{
		Title:       tpl.title,
		Message:     tpl.message,
		Reasoning:   fmt.Sprintf("static template for %s", string(t)),
		ActionLabel: tpl.actionLabel,
		ActionLink:  tpl.actionLink,
	}
}
