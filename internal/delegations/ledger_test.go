package delegations_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ProtocolSync/protocolsync-portal-mr-sub000/internal/delegations"
	"github.com/ProtocolSync/protocolsync-portal-mr-sub000/internal/errdefs"
	"github.com/ProtocolSync/protocolsync-portal-mr-sub000/internal/recordhash"
)

var ctx = context.Background()

const (
	delegateeID = int64(101)
	otherUserID = int64(202)
)

func newLedger(t *testing.T) *delegations.Ledger {
	t.Helper()
	return delegations.NewLedger(delegations.NewMemoryRepository(), nil, zap.NewNop())
}

func issue(t *testing.T, l *delegations.Ledger) *delegations.Delegation {
	t.Helper()
	d, _, err := l.Issue(ctx, &delegations.IssueRequest{
		ProtocolVersionID:  uuid.New(),
		DelegatedUserID:    delegateeID,
		JobTitle:           "Sub-Investigator",
		EffectiveStartDate: time.Now().UTC().Add(24 * time.Hour),
		IssuedBy:           otherUserID,
	})
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func TestIssue_startsPendingAtSentinel(t *testing.T) {
	l := newLedger(t)
	d := issue(t, l)

	if d.Status != delegations.StatusPending {
		t.Errorf("status = %q, want pending", d.Status)
	}
	if d.PreviousHash != recordhash.Sentinel {
		t.Errorf("previous_hash = %q, want sentinel", d.PreviousHash)
	}
	ok, err := recordhash.Matches(d.CanonicalFields(), d.PreviousHash, d.RecordHash)
	if err != nil || !ok {
		t.Errorf("stored hash must be reproducible: ok=%v err=%v", ok, err)
	}
}

func TestIssue_requiresJobTitle(t *testing.T) {
	l := newLedger(t)
	_, _, err := l.Issue(ctx, &delegations.IssueRequest{
		ProtocolVersionID: uuid.New(),
		DelegatedUserID:   delegateeID,
	})
	if err == nil {
		t.Error("expected error for missing job title")
	}
}

func TestSign_acceptByDelegatee(t *testing.T) {
	l := newLedger(t)
	d := issue(t, l)

	signed, transitions, err := l.Sign(ctx, d.ID, delegateeID, &delegations.SignRequest{
		Decision:    delegations.DecisionAccept,
		PrintedName: "Jane Smith",
	})
	if err != nil {
		t.Fatal(err)
	}
	if signed.Status != delegations.StatusAccepted {
		t.Errorf("status = %q, want accepted", signed.Status)
	}
	if signed.SignedBy != "Jane Smith" || signed.SignedAt == nil {
		t.Errorf("signature not recorded: signed_by=%q signed_at=%v", signed.SignedBy, signed.SignedAt)
	}
	if signed.PreviousHash != d.RecordHash {
		t.Errorf("signed previous_hash = %q, want pending record_hash %q", signed.PreviousHash, d.RecordHash)
	}
	if len(transitions) != 1 || transitions[0].ToStatus != "accepted" {
		t.Errorf("unexpected transitions %+v", transitions)
	}
}

func TestSign_declineIsTerminal(t *testing.T) {
	l := newLedger(t)
	d := issue(t, l)

	_, _, err := l.Sign(ctx, d.ID, delegateeID, &delegations.SignRequest{
		Decision:    delegations.DecisionDecline,
		PrintedName: "Jane Smith",
	})
	if err != nil {
		t.Fatal(err)
	}

	_, _, err = l.Sign(ctx, d.ID, delegateeID, &delegations.SignRequest{
		Decision:    delegations.DecisionAccept,
		PrintedName: "Jane Smith",
	})
	if !errors.Is(err, errdefs.ErrInvalidTransition) {
		t.Errorf("signing a declined delegation: expected ErrInvalidTransition, got %v", err)
	}
}

func TestSign_secondDecisionRejected(t *testing.T) {
	l := newLedger(t)
	d := issue(t, l)

	_, _, _ = l.Sign(ctx, d.ID, delegateeID, &delegations.SignRequest{
		Decision:    delegations.DecisionAccept,
		PrintedName: "Jane Smith",
	})

	_, _, err := l.Sign(ctx, d.ID, delegateeID, &delegations.SignRequest{
		Decision:    delegations.DecisionDecline,
		PrintedName: "Jane Smith",
	})
	if !errors.Is(err, errdefs.ErrInvalidTransition) {
		t.Errorf("second decision: expected ErrInvalidTransition, got %v", err)
	}
}

func TestSign_onlyDelegateeMaySign(t *testing.T) {
	l := newLedger(t)
	d := issue(t, l)

	_, _, err := l.Sign(ctx, d.ID, otherUserID, &delegations.SignRequest{
		Decision:    delegations.DecisionAccept,
		PrintedName: "Someone Else",
	})
	if !errors.Is(err, errdefs.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}

	// The failed attempt must not disturb the pending state.
	got, err := l.Get(ctx, d.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != delegations.StatusPending {
		t.Errorf("status after unauthorized sign = %q, want pending", got.Status)
	}
}

func TestRevoke_fromAccepted(t *testing.T) {
	l := newLedger(t)
	d := issue(t, l)
	_, _, _ = l.Sign(ctx, d.ID, delegateeID, &delegations.SignRequest{
		Decision:    delegations.DecisionAccept,
		PrintedName: "Jane Smith",
	})

	revoked, transitions, err := l.Revoke(ctx, d.ID)
	if err != nil {
		t.Fatal(err)
	}
	if revoked.Status != delegations.StatusRevoked {
		t.Errorf("status = %q, want revoked", revoked.Status)
	}
	if len(transitions) != 1 || transitions[0].FromStatus != "accepted" {
		t.Errorf("unexpected transitions %+v", transitions)
	}
}

func TestRevoke_pendingRejected(t *testing.T) {
	l := newLedger(t)
	d := issue(t, l)

	if _, _, err := l.Revoke(ctx, d.ID); !errors.Is(err, errdefs.ErrInvalidTransition) {
		t.Errorf("revoking a pending delegation: expected ErrInvalidTransition, got %v", err)
	}
}

func TestRevoke_revokedIsTerminal(t *testing.T) {
	l := newLedger(t)
	d := issue(t, l)
	_, _, _ = l.Sign(ctx, d.ID, delegateeID, &delegations.SignRequest{
		Decision:    delegations.DecisionAccept,
		PrintedName: "Jane Smith",
	})
	_, _, _ = l.Revoke(ctx, d.ID)

	if _, _, err := l.Revoke(ctx, d.ID); !errors.Is(err, errdefs.ErrInvalidTransition) {
		t.Errorf("double revoke: expected ErrInvalidTransition, got %v", err)
	}
}

func TestHashLineage_signThenRevoke(t *testing.T) {
	l := newLedger(t)
	d := issue(t, l)
	signed, _, _ := l.Sign(ctx, d.ID, delegateeID, &delegations.SignRequest{
		Decision:    delegations.DecisionAccept,
		PrintedName: "Jane Smith",
	})
	revoked, _, err := l.Revoke(ctx, d.ID)
	if err != nil {
		t.Fatal(err)
	}

	if revoked.PreviousHash != signed.RecordHash {
		t.Errorf("revoked previous_hash = %q, want accepted record_hash %q",
			revoked.PreviousHash, signed.RecordHash)
	}
	ok, err := recordhash.Matches(revoked.CanonicalFields(), revoked.PreviousHash, revoked.RecordHash)
	if err != nil || !ok {
		t.Errorf("revoked hash must be reproducible: ok=%v err=%v", ok, err)
	}
}
