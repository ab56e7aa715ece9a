package tools

import (
	"context"
	"strings"

	"github.com/ashureev/skydesk/internal/domain"
	"github.com/ashureev/skydesk/internal/specialist"
)

type faqEntry struct {
	match  func(q string) bool
	answer string
}

func containsAny(q string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(q, w) {
			return true
		}
	}
	return false
}

// Order matters: the first matching entry wins.
var faqEntries = []faqEntry{
	{
		match: func(q string) bool { return containsAny(q, "bag", "baggage") },
		answer: "Baggage policy\n" +
			"- Carry-on: one bag, up to 50 pounds and 22 x 14 x 9 inches\n" +
			"- Checked bags: fees may apply for additional bags\n" +
			"- Restricted items: see the prohibited items list on our website",
	},
	{
		match: func(q string) bool { return containsAny(q, "seats", "plane", "aircraft") },
		answer: "Aircraft configuration\n" +
			"- 120 seats in total: 22 business class and 98 economy\n" +
			"- Exit rows 4 and 16 have extra legroom with restrictions\n" +
			"- Economy Plus in rows 5-8 for an additional fee",
	},
	{
		match: func(q string) bool { return containsAny(q, "wifi", "wi-fi", "internet") },
		answer: "In-flight WiFi\n" +
			"- Network: Airline-Wifi\n" +
			"- Complimentary for all passengers for the whole flight",
	},
	{
		match: func(q string) bool { return strings.Contains(q, "check") && strings.Contains(q, "in") },
		answer: "Check-in\n" +
			"- Online check-in opens 24 hours before departure\n" +
			"- Airport counters open 3 hours before international and 2 hours before domestic flights\n" +
			"- Mobile boarding passes are available in our app",
	},
	{
		match: func(q string) bool { return containsAny(q, "cancel", "refund") },
		answer: "Cancellations and refunds\n" +
			"- Free cancellation within 24 hours of booking\n" +
			"- Refundable tickets: full refund minus a processing fee\n" +
			"- Non-refundable tickets: travel credit, fees may apply",
	},
}

const faqFallback = "I don't have specific information about that topic. " +
	"I can help with baggage, aircraft details, WiFi, check-in and cancellation policies."

// AnswerFAQ returns the canned answer for a question.
func AnswerFAQ(question string) string {
	q := strings.ToLower(question)
	for _, e := range faqEntries {
		if e.match(q) {
			return e.answer
		}
	}
	return faqFallback
}

// FAQLookup answers frequently asked questions.
func (t *Toolset) FAQLookup() specialist.Tool {
	return specialist.Tool{
		Name:        "faq_lookup_tool",
		Description: "Look up frequently asked questions about airline services and policies.",
		Params: map[string]specialist.Param{
			"question": str("The customer's question.", true),
		},
		Run: func(_ context.Context, _ *domain.AirlineContext, args specialist.Args) (string, error) {
			return AnswerFAQ(args.String("question")), nil
		},
	}
}
