package notification

import (
	"fmt"
	"sort"
	"strings"

	"marketplace_backend/internal/events"
	"marketplace_backend/internal/notification/inapp"
)

// draft is one notification an event asks for, before it gets an id.
type draft struct {
	recipient string
	typ       inapp.Type
	dedupKey  string
	title     string
	body      string
	jobID     string
	quoteID   string
}

// draftsFor maps a lifecycle event to the notifications it raises. The
// dedupKey names the triggering transition so a replayed event maps to the
// same notification ids.
func draftsFor(event events.Event) []draft {
	switch e := event.(type) {
	case events.JobCreated:
		return keep(draft{
			recipient: ownerRecipient(e.OwnerID, e.ContactEmail),
			typ:       inapp.TypeJobCreated,
			dedupKey:  e.JobID,
			title:     "Your job request was created",
			body:      describe("Your request %q is saved as a draft. Submit it to start receiving quotes.", e.Title),
			jobID:     e.JobID,
		})
	case events.JobAccepted:
		return keep(draft{
			recipient: e.OwnerID,
			typ:       inapp.TypeJobAccepted,
			dedupKey:  e.JobID + "/" + e.QuoteID,
			title:     "A professional is assigned",
			body:      describe("You accepted a quote for %q. The professional has been notified.", e.Title),
			jobID:     e.JobID,
			quoteID:   e.QuoteID,
		})
	case events.JobCompleted:
		body := describe("The job %q is marked as completed.", e.Title)
		return keep(
			draft{recipient: e.OwnerID, typ: inapp.TypeJobCompleted, dedupKey: e.JobID, title: "Job completed", body: body, jobID: e.JobID},
			draft{recipient: e.ProfessionalID, typ: inapp.TypeJobCompleted, dedupKey: e.JobID, title: "Job completed", body: body, jobID: e.JobID},
		)
	case events.JobCancelled:
		body := describe("The job %q was cancelled.", e.Title)
		if e.Reason != "" {
			body = fmt.Sprintf("%s Reason: %s", body, e.Reason)
		}
		var out []draft
		for _, recipient := range []string{e.OwnerID, e.ProfessionalID} {
			if recipient == e.ActorID {
				continue
			}
			out = append(out, draft{recipient: recipient, typ: inapp.TypeJobCancelled, dedupKey: e.JobID, title: "Job cancelled", body: body, jobID: e.JobID})
		}
		return keep(out...)
	case events.QuoteCreated:
		return keep(draft{
			recipient: ownerRecipient(e.OwnerID, e.ContactEmail),
			typ:       inapp.TypeNewQuote,
			dedupKey:  e.QuoteID,
			title:     "New quote received",
			body:      fmt.Sprintf("You received a quote of %s for %q.", formatPrice(e.PriceCents, e.Currency), titleOrDefault(e.JobTitle)),
			jobID:     e.JobID,
			quoteID:   e.QuoteID,
		})
	case events.QuoteAccepted:
		return keep(draft{
			recipient: e.ProfessionalID,
			typ:       inapp.TypeQuoteAccepted,
			dedupKey:  e.QuoteID,
			title:     "Your quote was accepted",
			body:      describe("Your quote for %q was accepted. You are now assigned to the job.", e.JobTitle),
			jobID:     e.JobID,
			quoteID:   e.QuoteID,
		})
	case events.QuoteDeclined:
		return keep(draft{
			recipient: e.ProfessionalID,
			typ:       inapp.TypeQuoteDeclined,
			dedupKey:  e.QuoteID,
			title:     "Your quote was declined",
			body:      declineBody(e),
			jobID:     e.JobID,
			quoteID:   e.QuoteID,
		})
	case events.QuoteWithdrawn:
		return keep(draft{
			recipient: ownerRecipient(e.OwnerID, e.ContactEmail),
			typ:       inapp.TypeQuoteWithdrawn,
			dedupKey:  e.QuoteID,
			title:     "A quote was withdrawn",
			body:      describe("A professional withdrew their quote for %q.", e.JobTitle),
			jobID:     e.JobID,
			quoteID:   e.QuoteID,
		})
	case events.QuoteExpired:
		return keep(draft{
			recipient: e.ProfessionalID,
			typ:       inapp.TypeQuoteExpired,
			dedupKey:  e.QuoteID,
			title:     "Your quote expired",
			body:      "One of your quotes expired before the customer responded.",
			jobID:     e.JobID,
			quoteID:   e.QuoteID,
		})
	case events.MessageReceived:
		return keep(draft{
			recipient: e.RecipientID,
			typ:       inapp.TypeMessageReceived,
			dedupKey:  e.MessageID,
			title:     "New message",
			body:      e.Preview,
			jobID:     e.JobID,
		})
	case events.GuestDraftsLinked:
		if len(e.JobIDs) == 0 {
			return nil
		}
		ids := append([]string(nil), e.JobIDs...)
		sort.Strings(ids)
		return keep(draft{
			recipient: e.AccountID,
			typ:       inapp.TypeDraftsLinked,
			dedupKey:  strings.Join(ids, ","),
			title:     "Your job requests were added to your account",
			body:      fmt.Sprintf("%d job request(s) you started as a guest are now in your account.", len(ids)),
		})
	default:
		return nil
	}
}

// keep drops drafts without a recipient.
func keep(drafts ...draft) []draft {
	out := drafts[:0]
	for _, d := range drafts {
		if d.recipient != "" {
			out = append(out, d)
		}
	}
	return out
}

// ownerRecipient addresses the job owner, or the guest contact email while
// the job has no owning account.
func ownerRecipient(ownerID, contactEmail string) string {
	if ownerID != "" || contactEmail == "" {
		return ownerID
	}
	return inapp.EmailRecipientPrefix + strings.ToLower(strings.TrimSpace(contactEmail))
}

func titleOrDefault(title string) string {
	if strings.TrimSpace(title) == "" {
		return "your job"
	}
	return title
}

func describe(format, title string) string {
	return fmt.Sprintf(format, titleOrDefault(title))
}

func declineBody(e events.QuoteDeclined) string {
	switch e.Reason {
	case events.DeclineReasonOtherAccepted:
		return describe("The customer accepted another quote for %q.", e.JobTitle)
	case events.DeclineReasonJobCancelled:
		return describe("The job %q was cancelled.", e.JobTitle)
	default:
		return describe("The customer declined your quote for %q.", e.JobTitle)
	}
}

func formatPrice(cents int64, currency string) string {
	if currency == "" {
		currency = "ISK"
	}
	return fmt.Sprintf("%d.%02d %s", cents/100, cents%100, currency)
}
