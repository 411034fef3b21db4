package audit_test

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/ProtocolSync/protocolsync-portal-mr-sub000/internal/audit"
	"github.com/ProtocolSync/protocolsync-portal-mr-sub000/internal/recordhash"
)

var ctx = context.Background()

func TestAppend_firstEntryChainsFromSentinel(t *testing.T) {
	trail := audit.NewMemoryTrail()
	id := uuid.New()

	rec, err := trail.Append(ctx, audit.EntityProtocolVersion, id, "", "uploaded", 7)
	if err != nil {
		t.Fatal(err)
	}
	if rec.PreviousHash != recordhash.Sentinel {
		t.Errorf("first entry previous_hash = %q, want sentinel", rec.PreviousHash)
	}
	if rec.RecordHash == "" || rec.RecordHash == recordhash.Sentinel {
		t.Errorf("record hash not computed: %q", rec.RecordHash)
	}
}

func TestAppend_chainsWithinEntity(t *testing.T) {
	trail := audit.NewMemoryTrail()
	id := uuid.New()

	first, err := trail.Append(ctx, audit.EntityDelegation, id, "", "pending", 1)
	if err != nil {
		t.Fatal(err)
	}
	second, err := trail.Append(ctx, audit.EntityDelegation, id, "pending", "accepted", 2)
	if err != nil {
		t.Fatal(err)
	}
	if second.PreviousHash != first.RecordHash {
		t.Errorf("chain broken: previous_hash %q, want %q", second.PreviousHash, first.RecordHash)
	}
}

func TestAppend_entitiesHaveIndependentChains(t *testing.T) {
	trail := audit.NewMemoryTrail()
	a, b := uuid.New(), uuid.New()

	_, _ = trail.Append(ctx, audit.EntityProtocolVersion, a, "", "uploaded", 1)
	rec, err := trail.Append(ctx, audit.EntityProtocolVersion, b, "", "uploaded", 1)
	if err != nil {
		t.Fatal(err)
	}
	if rec.PreviousHash != recordhash.Sentinel {
		t.Errorf("a different entity's entry must start a fresh chain, got previous_hash %q", rec.PreviousHash)
	}
}

func TestVerifyChain_validAfterEveryAppend(t *testing.T) {
	trail := audit.NewMemoryTrail()
	id := uuid.New()

	steps := [][2]string{{"", "pending"}, {"pending", "accepted"}, {"accepted", "revoked"}}
	for _, step := range steps {
		if _, err := trail.Append(ctx, audit.EntityDelegation, id, step[0], step[1], 3); err != nil {
			t.Fatal(err)
		}
		if err := trail.VerifyChain(ctx, audit.EntityDelegation, id); err != nil {
			t.Errorf("VerifyChain after %q→%q: %v", step[0], step[1], err)
		}
	}
}

func TestVerifyChain_detectsTampering(t *testing.T) {
	trail := audit.NewMemoryTrail()
	id := uuid.New()

	_, _ = trail.Append(ctx, audit.EntityDelegation, id, "", "pending", 1)
	rec, _ := trail.Append(ctx, audit.EntityDelegation, id, "pending", "accepted", 1)

	// List returns copies; mutate through a fresh append of a forged record
	// is not possible, so simulate tampering by appending an entry whose
	// parent hash no longer matches after altering the middle of the chain.
	records, _ := trail.List(ctx, audit.EntityDelegation, id)
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[1].RecordHash != rec.RecordHash {
		t.Fatal("listed chain should reflect appended entries")
	}

	ok, err := recordhash.Matches(records[1].CanonicalFields(), recordhash.Sentinel, records[1].RecordHash)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("entry hashed against the wrong predecessor must not verify")
	}
}

func TestVerifyChain_emptyChainIsValid(t *testing.T) {
	trail := audit.NewMemoryTrail()
	if err := trail.VerifyChain(ctx, audit.EntityProtocolVersion, uuid.New()); err != nil {
		t.Errorf("empty chain should verify: %v", err)
	}
}

func TestParseEntityType(t *testing.T) {
	if _, err := audit.ParseEntityType("protocol_version"); err != nil {
		t.Errorf("protocol_version should parse: %v", err)
	}
	if _, err := audit.ParseEntityType("bogus"); err == nil {
		t.Error("unknown entity type should fail to parse")
	}
}
