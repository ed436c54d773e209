package domain

import (
	"testing"

	"marketplace_backend/platform/apperr"
)

func TestCheckTransitionRejectsPairsOutsideTable(t *testing.T) {
	legal := map[[2]Status]bool{
		{StatusDraft, StatusOpen}:           true,
		{StatusOpen, StatusQuoted}:          true,
		{StatusOpen, StatusAccepted}:        true,
		{StatusQuoted, StatusAccepted}:      true,
		{StatusQuoted, StatusOpen}:          true,
		{StatusAccepted, StatusInProgress}:  true,
		{StatusInProgress, StatusCompleted}: true,
		{StatusDraft, StatusCancelled}:      true,
		{StatusOpen, StatusCancelled}:       true,
		{StatusQuoted, StatusCancelled}:     true,
		{StatusAccepted, StatusCancelled}:   true,
		{StatusInProgress, StatusCancelled}: true,
	}

	for _, from := range AllStatuses {
		for _, to := range AllStatuses {
			err := CheckTransition(from, to)
			if legal[[2]Status{from, to}] {
				if err != nil {
					t.Errorf("%s -> %s: expected legal, got %v", from, to, err)
				}
				continue
			}
			if !apperr.Is(err, apperr.KindInvalidTransition) {
				t.Errorf("%s -> %s: expected InvalidTransition, got %v", from, to, err)
			}
		}
	}
}

func TestInvalidTransitionNamesBothStates(t *testing.T) {
	err := CheckTransition(StatusCompleted, StatusOpen)
	var appErr *apperr.Error
	if !asAppErr(err, &appErr) {
		t.Fatalf("expected *apperr.Error, got %T", err)
	}
	details, _ := appErr.Details.(map[string]string)
	if details["from"] != "completed" || details["to"] != "open" {
		t.Fatalf("unexpected details %v", appErr.Details)
	}
}

func TestResolveRequestedOnlyAllowsUserTriggers(t *testing.T) {
	cases := []struct {
		from    Status
		to      Status
		trigger Trigger
		wantErr bool
	}{
		{StatusDraft, StatusOpen, TriggerSubmit, false},
		{StatusAccepted, StatusInProgress, TriggerStart, false},
		{StatusInProgress, StatusCompleted, TriggerComplete, false},
		{StatusQuoted, StatusCancelled, TriggerCancel, false},
		{StatusOpen, StatusQuoted, "", true},
		{StatusQuoted, StatusAccepted, "", true},
		{StatusQuoted, StatusOpen, "", true},
		{StatusCompleted, StatusCancelled, "", true},
	}

	for _, tc := range cases {
		got, err := ResolveRequested(tc.from, tc.to)
		if tc.wantErr {
			if !apperr.Is(err, apperr.KindInvalidTransition) {
				t.Errorf("%s -> %s: expected InvalidTransition, got %v", tc.from, tc.to, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s -> %s: unexpected error %v", tc.from, tc.to, err)
			continue
		}
		if got.Trigger != tc.trigger {
			t.Errorf("%s -> %s: expected trigger %s, got %s", tc.from, tc.to, tc.trigger, got.Trigger)
		}
	}
}

func TestResolveDistinguishesSubmitFromPromotion(t *testing.T) {
	submit, err := Resolve(StatusDraft, StatusOpen, TriggerSubmit)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	promote, err := Resolve(StatusDraft, StatusOpen, TriggerPromoteOnLink)
	if err != nil {
		t.Fatalf("promote: %v", err)
	}
	if submit.Parties[0] != PartyOwner || promote.Parties[0] != PartySystem {
		t.Fatalf("unexpected parties submit=%v promote=%v", submit.Parties, promote.Parties)
	}
	if _, err := Resolve(StatusOpen, StatusOpen, TriggerPromoteOnLink); !apperr.Is(err, apperr.KindInvalidTransition) {
		t.Fatalf("expected promotion of an open job to be invalid, got %v", err)
	}
}
