package transport

import "time"

// LinkDraftsResponse reports which jobs were attached to the account.
type LinkDraftsResponse struct {
	Linked   int      `json:"linked"`
	JobIDs   []string `json:"jobIds"`
	Promoted []string `json:"promoted"`
}

// LinkCandidate is a guest job the signed-in account could claim.
type LinkCandidate struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Category  string    `json:"category"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// LinkCandidatesResponse lists claimable guest jobs.
type LinkCandidatesResponse struct {
	Items []LinkCandidate `json:"items"`
}
