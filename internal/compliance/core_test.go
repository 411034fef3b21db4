package compliance_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ProtocolSync/protocolsync-portal-mr-sub000/internal/audit"
	"github.com/ProtocolSync/protocolsync-portal-mr-sub000/internal/authz"
	"github.com/ProtocolSync/protocolsync-portal-mr-sub000/internal/compliance"
	"github.com/ProtocolSync/protocolsync-portal-mr-sub000/internal/delegations"
	"github.com/ProtocolSync/protocolsync-portal-mr-sub000/internal/errdefs"
	"github.com/ProtocolSync/protocolsync-portal-mr-sub000/internal/recordhash"
	"github.com/ProtocolSync/protocolsync-portal-mr-sub000/internal/storage"
	"github.com/ProtocolSync/protocolsync-portal-mr-sub000/internal/versions"
)

var ctx = context.Background()

const (
	adminID     = int64(1)
	delegateeID = int64(101)
	strangerID  = int64(999)
)

type fixture struct {
	core  *compliance.Core
	trail *audit.MemoryTrail
	az    *authz.MemoryAuthorizer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zap.NewNop()
	vledger := versions.NewLedger(versions.NewMemoryRepository(), logger)
	dledger := delegations.NewLedger(delegations.NewMemoryRepository(), vledger, logger)
	trail := audit.NewMemoryTrail()
	az := authz.NewMemoryAuthorizer()

	core := compliance.NewCore(vledger, dledger, trail, az, storage.NewMemoryTxRunner(), logger)
	return &fixture{core: core, trail: trail, az: az}
}

func (f *fixture) grantAll(actorID int64) {
	f.az.Grant(actorID, authz.CapPromoteVersion, uuid.Nil)
	f.az.Grant(actorID, authz.CapIssueDelegation, uuid.Nil)
	f.az.Grant(actorID, authz.CapRevokeDelegation, uuid.Nil)
}

func (f *fixture) master(t *testing.T) *versions.DocumentMaster {
	t.Helper()
	m, err := f.core.RegisterDocument(ctx, &versions.RegisterDocumentRequest{
		TrialID:     uuid.New(),
		DisplayName: "Study Protocol",
	})
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func (f *fixture) upload(t *testing.T, masterID uuid.UUID, n string) *versions.ProtocolVersion {
	t.Helper()
	v, err := f.core.RegisterUpload(ctx, &versions.RegisterUploadRequest{
		DocumentMasterID: masterID,
		VersionNumber:    n,
		UploadedBy:       adminID,
		FileReference:    "blob://" + n,
	})
	if err != nil {
		t.Fatal(err)
	}
	return v
}

func (f *fixture) issue(t *testing.T, versionID uuid.UUID) *delegations.Delegation {
	t.Helper()
	d, err := f.core.IssueDelegation(ctx, &delegations.IssueRequest{
		ProtocolVersionID:  versionID,
		DelegatedUserID:    delegateeID,
		JobTitle:           "Sub-Investigator",
		EffectiveStartDate: time.Now().UTC(),
		IssuedBy:           adminID,
	})
	if err != nil {
		t.Fatal(err)
	}
	return d
}

// Scenario A: first promote writes an audit record chained from the sentinel.
func TestPromoteVersion_firstPromotion(t *testing.T) {
	f := newFixture(t)
	f.grantAll(adminID)
	m := f.master(t)
	v1 := f.upload(t, m.ID, "1.0")

	promoted, err := f.core.PromoteVersion(ctx, v1.ID, adminID)
	if err != nil {
		t.Fatal(err)
	}
	if promoted.Status != versions.StatusCurrent {
		t.Errorf("status = %q, want current", promoted.Status)
	}

	records, err := f.core.AuditLog(ctx, audit.EntityProtocolVersion, v1.ID)
	if err != nil {
		t.Fatal(err)
	}
	// upload entry + promote entry
	if len(records) != 2 {
		t.Fatalf("expected 2 audit records, got %d", len(records))
	}
	if records[0].PreviousHash != recordhash.Sentinel {
		t.Errorf("first audit entry must chain from sentinel, got %q", records[0].PreviousHash)
	}
	if records[1].FromStatus != "uploaded" || records[1].ToStatus != "current" {
		t.Errorf("unexpected promote audit entry %+v", records[1])
	}
}

// Scenario B: promoting v2 supersedes v1 and keeps exactly one current.
func TestPromoteVersion_supersedes(t *testing.T) {
	f := newFixture(t)
	f.grantAll(adminID)
	m := f.master(t)
	v1 := f.upload(t, m.ID, "1.0")
	v2 := f.upload(t, m.ID, "2.0")

	if _, err := f.core.PromoteVersion(ctx, v1.ID, adminID); err != nil {
		t.Fatal(err)
	}
	if _, err := f.core.PromoteVersion(ctx, v2.ID, adminID); err != nil {
		t.Fatal(err)
	}

	cur, err := f.core.Versions().Current(ctx, m.ID)
	if err != nil {
		t.Fatal(err)
	}
	if cur.ID != v2.ID {
		t.Errorf("current = %s, want %s", cur.ID, v2.ID)
	}

	v1After, _ := f.core.Versions().Get(ctx, v1.ID)
	if v1After.Status != versions.StatusSuperseded {
		t.Errorf("v1 status = %q, want superseded", v1After.Status)
	}

	v1Records, _ := f.core.AuditLog(ctx, audit.EntityProtocolVersion, v1.ID)
	v2Records, _ := f.core.AuditLog(ctx, audit.EntityProtocolVersion, v2.ID)
	if len(v1Records) != 3 || len(v2Records) != 2 {
		t.Errorf("audit record counts: v1=%d (want 3), v2=%d (want 2)", len(v1Records), len(v2Records))
	}
}

func TestPromoteVersion_idempotentWritesNoDuplicateAudit(t *testing.T) {
	f := newFixture(t)
	f.grantAll(adminID)
	m := f.master(t)
	v1 := f.upload(t, m.ID, "1.0")

	first, err := f.core.PromoteVersion(ctx, v1.ID, adminID)
	if err != nil {
		t.Fatal(err)
	}
	before, _ := f.core.AuditLog(ctx, audit.EntityProtocolVersion, v1.ID)

	second, err := f.core.PromoteVersion(ctx, v1.ID, adminID)
	if err != nil {
		t.Fatal(err)
	}
	after, _ := f.core.AuditLog(ctx, audit.EntityProtocolVersion, v1.ID)

	if second.RecordHash != first.RecordHash {
		t.Error("idempotent promote must return the unchanged version")
	}
	if len(after) != len(before) {
		t.Errorf("idempotent promote wrote %d extra audit records", len(after)-len(before))
	}
}

func TestPromoteVersion_unauthorized(t *testing.T) {
	f := newFixture(t)
	f.grantAll(adminID)
	m := f.master(t)
	v1 := f.upload(t, m.ID, "1.0")

	if _, err := f.core.PromoteVersion(ctx, v1.ID, strangerID); !errors.Is(err, errdefs.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
}

// Scenario C: accept then decline — the second decision is rejected.
func TestSignDelegation_acceptThenDeclineFails(t *testing.T) {
	f := newFixture(t)
	f.grantAll(adminID)
	m := f.master(t)
	v1 := f.upload(t, m.ID, "1.0")
	d := f.issue(t, v1.ID)

	signed, err := f.core.SignDelegation(ctx, d.ID, delegateeID, &delegations.SignRequest{
		Decision:    delegations.DecisionAccept,
		PrintedName: "Jane Smith",
	})
	if err != nil {
		t.Fatal(err)
	}
	if signed.Status != delegations.StatusAccepted {
		t.Errorf("status = %q, want accepted", signed.Status)
	}

	_, err = f.core.SignDelegation(ctx, d.ID, delegateeID, &delegations.SignRequest{
		Decision:    delegations.DecisionDecline,
		PrintedName: "Jane Smith",
	})
	if !errors.Is(err, errdefs.ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}
}

// Scenario D: revoke requires the admin capability.
func TestRevokeDelegation_capabilityEnforced(t *testing.T) {
	f := newFixture(t)
	f.grantAll(adminID)
	m := f.master(t)
	v1 := f.upload(t, m.ID, "1.0")
	d := f.issue(t, v1.ID)

	if _, err := f.core.SignDelegation(ctx, d.ID, delegateeID, &delegations.SignRequest{
		Decision:    delegations.DecisionAccept,
		PrintedName: "Jane Smith",
	}); err != nil {
		t.Fatal(err)
	}

	if _, err := f.core.RevokeDelegation(ctx, d.ID, strangerID); !errors.Is(err, errdefs.ErrUnauthorized) {
		t.Errorf("non-admin revoke: expected ErrUnauthorized, got %v", err)
	}

	revoked, err := f.core.RevokeDelegation(ctx, d.ID, adminID)
	if err != nil {
		t.Fatal(err)
	}
	if revoked.Status != delegations.StatusRevoked {
		t.Errorf("status = %q, want revoked", revoked.Status)
	}
}

func TestVerifyChain_afterFullDelegationLifecycle(t *testing.T) {
	f := newFixture(t)
	f.grantAll(adminID)
	m := f.master(t)
	v1 := f.upload(t, m.ID, "1.0")
	d := f.issue(t, v1.ID)

	_, _ = f.core.SignDelegation(ctx, d.ID, delegateeID, &delegations.SignRequest{
		Decision:    delegations.DecisionAccept,
		PrintedName: "Jane Smith",
	})
	_, _ = f.core.RevokeDelegation(ctx, d.ID, adminID)

	if err := f.core.VerifyChain(ctx, audit.EntityDelegation, d.ID); err != nil {
		t.Errorf("delegation audit chain should verify: %v", err)
	}
	if err := f.core.VerifyChain(ctx, audit.EntityProtocolVersion, v1.ID); err != nil {
		t.Errorf("version audit chain should verify: %v", err)
	}

	records, _ := f.core.AuditLog(ctx, audit.EntityDelegation, d.ID)
	want := []string{"pending", "accepted", "revoked"}
	if len(records) != len(want) {
		t.Fatalf("expected %d audit records, got %d", len(want), len(records))
	}
	for i, rec := range records {
		if rec.ToStatus != want[i] {
			t.Errorf("audit[%d].to_status = %q, want %q", i, rec.ToStatus, want[i])
		}
	}
}

// Scenario E: concurrent promotes of different versions of one master leave
// exactly one current version.
func TestPromoteVersion_concurrent(t *testing.T) {
	f := newFixture(t)
	f.grantAll(adminID)
	m := f.master(t)

	var ids []uuid.UUID
	for _, n := range []string{"1.0", "2.0", "3.0", "4.0", "5.0"} {
		ids = append(ids, f.upload(t, m.ID, n).ID)
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		id := id
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.core.PromoteVersion(ctx, id, adminID)
		}()
	}
	wg.Wait()

	all, err := f.core.Versions().List(ctx, m.ID)
	if err != nil {
		t.Fatal(err)
	}
	current := 0
	for _, v := range all {
		if v.Status == versions.StatusCurrent {
			current++
		}
	}
	if current != 1 {
		t.Errorf("after concurrent promotes: %d current versions, want 1", current)
	}
}

func TestIssueDelegation_unknownVersion(t *testing.T) {
	f := newFixture(t)
	f.grantAll(adminID)

	_, err := f.core.IssueDelegation(ctx, &delegations.IssueRequest{
		ProtocolVersionID:  uuid.New(),
		DelegatedUserID:    delegateeID,
		JobTitle:           "Monitor",
		EffectiveStartDate: time.Now().UTC(),
		IssuedBy:           adminID,
	})
	if !errors.Is(err, errdefs.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
