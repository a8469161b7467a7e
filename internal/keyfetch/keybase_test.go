package keyfetch

import "testing"

func TestHasVerifiedProofRequiresProofsSummary(t *testing.T) {
	user := keybaseUser{}
	if hasVerifiedProof(user) {
		t.Fatal("expected hasVerifiedProof to be false with no proofs_summary")
	}
}

func TestHasVerifiedProofTrueWhenAnyProofVerified(t *testing.T) {
	user := keybaseUser{
		ProofsSummary: &struct {
			All []keybaseProof `json:"all"`
		}{
			All: []keybaseProof{{State: 0}, {State: keybaseProofVerifiedState}},
		},
	}
	if !hasVerifiedProof(user) {
		t.Fatal("expected hasVerifiedProof to be true when one proof has the verified state")
	}
}

func TestHasVerifiedProofFalseWhenNoneVerified(t *testing.T) {
	user := keybaseUser{
		ProofsSummary: &struct {
			All []keybaseProof `json:"all"`
		}{
			All: []keybaseProof{{State: 0}, {State: 2}},
		},
	}
	if hasVerifiedProof(user) {
		t.Fatal("expected hasVerifiedProof to be false when no proof has the verified state")
	}
}
