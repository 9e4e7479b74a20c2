// Copyright 2025 Certen Protocol

package withdrawal

import "testing"

func TestTransitionStatus_HappyPath(t *testing.T) {
	rec := &Record{Status: StatusRequested}

	if err := TransitionStatus(rec, StatusRelayed); err != nil {
		t.Fatalf("Requested -> Relayed: %v", err)
	}
	if err := TransitionStatus(rec, StatusSuccess); err != nil {
		t.Fatalf("Relayed -> Success: %v", err)
	}
	if rec.Status != StatusSuccess {
		t.Fatalf("expected Success, got %s", rec.Status)
	}
}

func TestTransitionStatus_NeedClaimBranch(t *testing.T) {
	rec := &Record{Status: StatusRequested}
	if err := TransitionStatus(rec, StatusRelayed); err != nil {
		t.Fatalf("Requested -> Relayed: %v", err)
	}
	if err := TransitionStatus(rec, StatusNeedClaim); err != nil {
		t.Fatalf("Relayed -> NeedClaim: %v", err)
	}
}

func TestTransitionStatus_RejectsSkippingRelayed(t *testing.T) {
	rec := &Record{Status: StatusRequested}
	if err := TransitionStatus(rec, StatusSuccess); err == nil {
		t.Fatal("expected error transitioning Requested directly to Success")
	}
}

func TestTransitionStatus_RejectsTransitionFromTerminalState(t *testing.T) {
	rec := &Record{Status: StatusSuccess}
	if err := TransitionStatus(rec, StatusRelayed); err == nil {
		t.Fatal("expected error transitioning out of a terminal state")
	}
}

func TestTransitionClaimStatus_HappyPath(t *testing.T) {
	rec := &ClaimRecord{Status: ClaimStatusRequested}

	for _, to := range []ClaimStatus{ClaimStatusVerified, ClaimStatusRelayed, ClaimStatusSuccess} {
		if err := TransitionClaimStatus(rec, to); err != nil {
			t.Fatalf("transition to %s: %v", to, err)
		}
	}
}

func TestTransitionClaimStatus_RejectsSkippingVerified(t *testing.T) {
	rec := &ClaimRecord{Status: ClaimStatusRequested}
	if err := TransitionClaimStatus(rec, ClaimStatusRelayed); err == nil {
		t.Fatal("expected error skipping Verified")
	}
}
