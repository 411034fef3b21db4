package versions_test

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/ProtocolSync/protocolsync-portal-mr-sub000/internal/storage"
	"github.com/ProtocolSync/protocolsync-portal-mr-sub000/internal/versions"
)

// TestSingleCurrentInvariant drives the ledger with randomized sequences of
// uploads and promotes (valid and invalid targets alike) and checks that no
// document master ever holds more than one current version.
func TestSingleCurrentInvariant(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("at most one current version per master", prop.ForAll(
		func(ops []int) bool {
			l, _ := newLedger(t)
			m := registerMaster(t, l)

			var uploaded []uuid.UUID
			for i, op := range ops {
				if op%3 == 0 || len(uploaded) == 0 {
					v, _, err := l.RegisterUpload(ctx, &versions.RegisterUploadRequest{
						DocumentMasterID: m.ID,
						VersionNumber:    versionNumberFor(i),
						UploadedBy:       1,
						FileReference:    "blob://p",
					})
					if err != nil {
						return false
					}
					uploaded = append(uploaded, v.ID)
				} else {
					// Promote an arbitrary known version; invalid targets
					// must fail without disturbing the invariant.
					target := uploaded[op%len(uploaded)]
					_, _, _ = l.Promote(ctx, target)
				}

				if countCurrent(t, l, m.ID) > 1 {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 1000)),
	))

	properties.TestingRun(t)
}

// TestConcurrentPromotesKeepInvariant races promotes of different versions of
// the same master through the keyed-mutex runner and checks the final state.
func TestConcurrentPromotesKeepInvariant(t *testing.T) {
	l, _ := newLedger(t)
	m := registerMaster(t, l)
	runner := storage.NewMemoryTxRunner()
	lockKey := storage.LockKey(m.ID)

	var ids []uuid.UUID
	for _, n := range []string{"1.0", "2.0", "3.0", "4.0"} {
		ids = append(ids, upload(t, l, m.ID, n).ID)
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		id := id
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = runner.InTx(ctx, []int64{lockKey}, func(txCtx context.Context) error {
				_, _, _ = l.Promote(txCtx, id)
				return nil
			})
		}()
	}
	wg.Wait()

	if n := countCurrent(t, l, m.ID); n != 1 {
		t.Errorf("after concurrent promotes: %d current versions, want exactly 1", n)
	}
}

func versionNumberFor(i int) string {
	return "v" + string(rune('a'+i%26))
}
