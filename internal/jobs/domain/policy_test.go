package domain

import (
	"testing"

	"marketplace_backend/platform/httpkit"
)

func strPtr(s string) *string { return &s }

var (
	owner    = Principal{Actor: httpkit.Actor{ID: "cust-1", Role: httpkit.RoleCustomer}}
	stranger = Principal{Actor: httpkit.Actor{ID: "cust-2", Role: httpkit.RoleCustomer}}
	pro      = Principal{Actor: httpkit.Actor{ID: "pro-1", Role: httpkit.RoleProfessional}}
	admin    = Principal{Actor: httpkit.Actor{ID: "adm-1", Role: httpkit.RoleAdmin}}
	guest    = Principal{GuestTokenHash: "hash-1"}
)

func ownedJob(status Status) *Job {
	job := &Job{ID: "job-1", CustomerID: strPtr("cust-1"), Status: status}
	if status.HasAssignment() {
		job.AssignedProfessionalID = strPtr("pro-1")
	}
	return job
}

func TestCanView(t *testing.T) {
	guestDraft := &Job{ID: "job-g", GuestTokenHash: strPtr("hash-1"), Status: StatusDraft}

	cases := []struct {
		name string
		p    Principal
		job  *Job
		want bool
	}{
		{"owner sees draft", owner, ownedJob(StatusDraft), true},
		{"admin sees draft", admin, ownedJob(StatusDraft), true},
		{"professional cannot see draft", pro, ownedJob(StatusDraft), false},
		{"guest owner sees draft", guest, guestDraft, true},
		{"other guest cannot see draft", Principal{GuestTokenHash: "hash-2"}, guestDraft, false},
		{"professional sees open job", pro, ownedJob(StatusOpen), true},
		{"anonymous cannot see open job", Principal{}, ownedJob(StatusOpen), false},
	}
	for _, tc := range cases {
		if got := CanView(tc.p, tc.job).Allowed; got != tc.want {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}

func TestCanMutate(t *testing.T) {
	cases := []struct {
		name   string
		p      Principal
		job    *Job
		fields []string
		want   bool
	}{
		{"owner edits any draft field", owner, ownedJob(StatusDraft), []string{FieldCategory, FieldPostcode}, true},
		{"admin cannot edit draft", admin, ownedJob(StatusDraft), []string{FieldTitle}, false},
		{"owner edits whitelisted field", owner, ownedJob(StatusOpen), []string{FieldTitle, FieldBudget}, true},
		{"owner cannot change postcode after submit", owner, ownedJob(StatusOpen), []string{FieldPostcode}, false},
		{"admin edits whitelisted field", admin, ownedJob(StatusQuoted), []string{FieldPriority}, true},
		{"stranger denied", stranger, ownedJob(StatusOpen), []string{FieldTitle}, false},
		{"assigned professional cannot edit fields", pro, ownedJob(StatusAccepted), []string{FieldTitle}, false},
		{"terminal job is frozen", owner, ownedJob(StatusCompleted), []string{FieldTitle}, false},
	}
	for _, tc := range cases {
		d := CanMutate(tc.p, tc.job, tc.fields)
		if d.Allowed != tc.want {
			t.Errorf("%s: expected %v, got %v (%s)", tc.name, tc.want, d.Allowed, d.Reason)
		}
		if !d.Allowed && d.Err() == nil {
			t.Errorf("%s: denial must convert to an error", tc.name)
		}
	}
}

func TestCanTransition(t *testing.T) {
	start, _ := Resolve(StatusAccepted, StatusInProgress, TriggerStart)
	complete, _ := Resolve(StatusInProgress, StatusCompleted, TriggerComplete)
	cancel, _ := Resolve(StatusAccepted, StatusCancelled, TriggerCancel)
	promote, _ := Resolve(StatusDraft, StatusOpen, TriggerPromoteOnLink)

	cases := []struct {
		name string
		p    Principal
		job  *Job
		t    Transition
		want bool
	}{
		{"owner starts", owner, ownedJob(StatusAccepted), start, true},
		{"assigned starts", pro, ownedJob(StatusAccepted), start, true},
		{"admin cannot start", admin, ownedJob(StatusAccepted), start, false},
		{"admin completes", admin, ownedJob(StatusInProgress), complete, true},
		{"assigned cannot cancel", pro, ownedJob(StatusAccepted), cancel, false},
		{"owner cancels", owner, ownedJob(StatusAccepted), cancel, true},
		{"owner cannot promote", owner, ownedJob(StatusDraft), promote, false},
		{"system promotes", System, ownedJob(StatusDraft), promote, true},
		{"system is not an admin party", System, ownedJob(StatusAccepted), cancel, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.p, tc.job, tc.t).Allowed; got != tc.want {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}

func TestCanDelete(t *testing.T) {
	job := ownedJob(StatusOpen)
	if !CanDelete(owner, job, 0).Allowed {
		t.Error("owner should delete without pending quotes")
	}
	if CanDelete(owner, job, 1).Allowed {
		t.Error("pending quotes must block deletion")
	}
	if !CanDelete(admin, job, 0).Allowed {
		t.Error("admin should delete")
	}
	if CanDelete(pro, job, 0).Allowed {
		t.Error("professional must not delete")
	}
}
