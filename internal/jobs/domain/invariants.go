package domain

import (
	"errors"
	"fmt"
)

// CheckInvariants reports every structural rule the stored job violates.
func CheckInvariants(job *Job) error {
	var errs []error

	hasCustomer := job.CustomerID != nil && *job.CustomerID != ""
	hasGuest := job.GuestTokenHash != nil && *job.GuestTokenHash != ""
	if hasCustomer == hasGuest {
		errs = append(errs, errors.New("exactly one of customerId and guestTokenHash must be set"))
	}

	assigned := job.AssignedProfessionalID != nil && *job.AssignedProfessionalID != ""
	if assigned != job.Status.HasAssignment() {
		errs = append(errs, fmt.Errorf("assignedProfessionalId set=%v does not match status %s", assigned, job.Status))
	}

	if (job.CompletedAt != nil) != (job.Status == StatusCompleted) {
		errs = append(errs, fmt.Errorf("completedAt does not match status %s", job.Status))
	}
	if (job.CancelledAt != nil) != (job.Status == StatusCancelled) {
		errs = append(errs, fmt.Errorf("cancelledAt does not match status %s", job.Status))
	}

	if job.QuotesCount < 0 {
		errs = append(errs, fmt.Errorf("quotesCount %d is negative", job.QuotesCount))
	}
	if job.QuotesCount > job.MaxQuotes {
		errs = append(errs, fmt.Errorf("quotesCount %d exceeds maxQuotes %d", job.QuotesCount, job.MaxQuotes))
	}

	return errors.Join(errs...)
}
