package domain

import (
	"fmt"

	"marketplace_backend/platform/apperr"
	"marketplace_backend/platform/httpkit"
)

// Principal is whoever is acting on a job: an authenticated actor, a guest
// identified by the hash of their token, or both during a linking request.
type Principal struct {
	Actor          httpkit.Actor
	GuestTokenHash string
}

// System is the principal for internal transitions.
var System = Principal{Actor: httpkit.SystemActor}

// IsSystem reports whether p is the internal system principal.
func (p Principal) IsSystem() bool {
	return p.Actor == httpkit.SystemActor
}

// IsOwner matches by account id, or by guest token hash while the job is unlinked.
func (p Principal) IsOwner(job *Job) bool {
	if job.CustomerID != nil {
		return !p.Actor.IsAnonymous() && *job.CustomerID == p.Actor.ID
	}
	return p.GuestTokenHash != "" && job.GuestTokenHash != nil && *job.GuestTokenHash == p.GuestTokenHash
}

// IsAssigned reports whether p is the job's assigned professional.
func (p Principal) IsAssigned(job *Job) bool {
	return !p.Actor.IsAnonymous() && job.AssignedProfessionalID != nil && *job.AssignedProfessionalID == p.Actor.ID
}

// Decision is the outcome of a policy check.
type Decision struct {
	Allowed bool
	Reason  string
}

func allow() Decision { return Decision{Allowed: true} }

func deny(reason string) Decision { return Decision{Reason: reason} }

// Err converts a denial into a Forbidden error.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return apperr.Forbidden(d.Reason)
}

// NonDraftEditable are the fields an owner or admin may still change after submit.
var NonDraftEditable = map[string]bool{
	FieldTitle:         true,
	FieldDescription:   true,
	FieldAddress:       true,
	FieldBudget:        true,
	FieldPriority:      true,
	FieldQuoteDeadline: true,
	FieldStatus:        true,
}

// CanView decides read access. Drafts are private to their owner.
func CanView(p Principal, job *Job) Decision {
	if p.IsOwner(job) || p.Actor.IsAdmin() {
		return allow()
	}
	if job.Status == StatusDraft {
		return deny("draft is only visible to its owner")
	}
	if p.Actor.IsAnonymous() {
		return deny("authentication required to view jobs")
	}
	return allow()
}

// CanMutate decides whether p may write the named fields.
func CanMutate(p Principal, job *Job, fields []string) Decision {
	if job.Status.IsTerminal() {
		return deny(fmt.Sprintf("job is %s and can no longer be edited", job.Status))
	}
	if job.Status == StatusDraft {
		if !p.IsOwner(job) {
			return deny("only the owner may edit a draft")
		}
		return allow()
	}
	if !p.IsOwner(job) && !p.Actor.IsAdmin() {
		return deny("only the owner or an admin may edit this job")
	}
	for _, field := range fields {
		if !NonDraftEditable[field] {
			return deny(fmt.Sprintf("%s cannot be changed once the job is %s", field, job.Status))
		}
	}
	return allow()
}

// CanTransition checks the parties allowed by the table row t.
func CanTransition(p Principal, job *Job, t Transition) Decision {
	for _, party := range t.Parties {
		switch party {
		case PartyOwner:
			if p.IsOwner(job) {
				return allow()
			}
		case PartyAssigned:
			if p.IsAssigned(job) {
				return allow()
			}
		case PartyAdmin:
			if p.Actor.IsAdmin() && !p.IsSystem() {
				return allow()
			}
		case PartySystem:
			if p.IsSystem() {
				return allow()
			}
		}
	}
	return deny(fmt.Sprintf("not permitted to %s this job", t.Trigger))
}

// CanDelete allows owner or admin deletion while no quote is pending.
func CanDelete(p Principal, job *Job, pendingQuotes int) Decision {
	if !p.IsOwner(job) && !p.Actor.IsAdmin() {
		return deny("only the owner or an admin may delete this job")
	}
	if pendingQuotes > 0 {
		return deny("job has pending quotes; cancel it instead")
	}
	return allow()
}
