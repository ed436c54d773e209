package domain

import (
	"marketplace_backend/platform/apperr"
)

// Trigger names the event that moves a job between states.
type Trigger string

const (
	TriggerCreate        Trigger = "create"
	TriggerSubmit        Trigger = "submit"
	TriggerPromoteOnLink Trigger = "promote_on_link"
	TriggerQuoteReceived Trigger = "quote_received"
	TriggerAcceptQuote   Trigger = "accept_quote"
	TriggerReopen        Trigger = "reopen"
	TriggerStart         Trigger = "start"
	TriggerComplete      Trigger = "complete"
	TriggerCancel        Trigger = "cancel"
)

// Party is a role relative to one job.
type Party string

const (
	PartyOwner    Party = "owner"
	PartyAssigned Party = "assigned"
	PartyAdmin    Party = "admin"
	PartySystem   Party = "system"
)

// Transition is one row of the lifecycle table. An empty From means creation.
type Transition struct {
	From    []Status
	To      Status
	Trigger Trigger
	Parties []Party
}

var nonTerminal = []Status{
	StatusDraft,
	StatusOpen,
	StatusQuoted,
	StatusAccepted,
	StatusInProgress,
}

// Transitions is the complete lifecycle. Pairs not listed here are illegal.
var Transitions = []Transition{
	{To: StatusDraft, Trigger: TriggerCreate, Parties: []Party{PartyOwner}},
	{From: []Status{StatusDraft}, To: StatusOpen, Trigger: TriggerSubmit, Parties: []Party{PartyOwner}},
	{From: []Status{StatusDraft}, To: StatusOpen, Trigger: TriggerPromoteOnLink, Parties: []Party{PartySystem}},
	{From: []Status{StatusOpen}, To: StatusQuoted, Trigger: TriggerQuoteReceived, Parties: []Party{PartySystem}},
	{From: []Status{StatusOpen, StatusQuoted}, To: StatusAccepted, Trigger: TriggerAcceptQuote, Parties: []Party{PartyOwner}},
	{From: []Status{StatusQuoted}, To: StatusOpen, Trigger: TriggerReopen, Parties: []Party{PartySystem}},
	{From: []Status{StatusAccepted}, To: StatusInProgress, Trigger: TriggerStart, Parties: []Party{PartyOwner, PartyAssigned}},
	{From: []Status{StatusInProgress}, To: StatusCompleted, Trigger: TriggerComplete, Parties: []Party{PartyOwner, PartyAssigned, PartyAdmin}},
	{From: nonTerminal, To: StatusCancelled, Trigger: TriggerCancel, Parties: []Party{PartyOwner, PartyAdmin}},
}

// userTriggers may be requested through the status endpoint.
var userTriggers = map[Trigger]bool{
	TriggerSubmit:   true,
	TriggerStart:    true,
	TriggerComplete: true,
	TriggerCancel:   true,
}

func (t Transition) allowsFrom(from Status) bool {
	for _, s := range t.From {
		if s == from {
			return true
		}
	}
	return false
}

// Find returns the table row for (from, to, trigger).
func Find(from, to Status, trigger Trigger) (Transition, bool) {
	for _, t := range Transitions {
		if t.To == to && t.Trigger == trigger && t.allowsFrom(from) {
			return t, true
		}
	}
	return Transition{}, false
}

// CheckTransition returns InvalidTransition unless some trigger moves from to to.
func CheckTransition(from, to Status) error {
	for _, t := range Transitions {
		if t.To == to && t.allowsFrom(from) {
			return nil
		}
	}
	return apperr.InvalidTransition(string(from), string(to))
}

// Resolve finds the row for a named trigger out of from, or InvalidTransition.
func Resolve(from, to Status, trigger Trigger) (Transition, error) {
	if t, ok := Find(from, to, trigger); ok {
		return t, nil
	}
	return Transition{}, apperr.InvalidTransition(string(from), string(to))
}

// ResolveRequested maps a caller-requested target status to its user trigger.
// System-only moves such as open to quoted are rejected as InvalidTransition.
func ResolveRequested(from, to Status) (Transition, error) {
	for _, t := range Transitions {
		if t.To == to && t.allowsFrom(from) && userTriggers[t.Trigger] {
			return t, nil
		}
	}
	return Transition{}, apperr.InvalidTransition(string(from), string(to))
}
