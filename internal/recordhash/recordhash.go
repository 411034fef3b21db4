// Package recordhash computes the chained record hashes that make every
// mutable compliance record tamper-evident.
//
// A record's hash is the hex-encoded SHA-256 digest of its predecessor hash
// followed by the record's canonical field encoding. The first record of a
// lineage chains from Sentinel (64 hex zeros). The encoding is
// length-prefixed, so field values may contain any byte sequence without
// ambiguity:
//
//	previousHash "|" len(name) ":" name "=" len(value) ":" value "|" ...
//
// Field order is part of the contract: each entity type declares its
// canonical order via a CanonicalFields method, and recomputing the hash from
// the stored fields and previous hash must exactly reproduce the stored
// record_hash. Times are rendered as RFC 3339 with nanoseconds in UTC;
// integers in base 10.
package recordhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/ProtocolSync/protocolsync-portal-mr-sub000/internal/errdefs"
)

// Sentinel is the well-known previous-hash of the first record in a lineage.
const Sentinel = "0000000000000000000000000000000000000000000000000000000000000000"

// Field is one canonical name/value pair of a record.
type Field struct {
	Name  string
	Value string
}

// String builds a canonical string field.
func String(name, value string) Field {
	return Field{Name: name, Value: value}
}

// Int builds a canonical base-10 integer field.
func Int(name string, v int64) Field {
	return Field{Name: name, Value: strconv.FormatInt(v, 10)}
}

// Bool builds a canonical boolean field ("true"/"false").
func Bool(name string, v bool) Field {
	return Field{Name: name, Value: strconv.FormatBool(v)}
}

// Time builds a canonical timestamp field in RFC 3339 nanosecond UTC form.
func Time(name string, t time.Time) Field {
	return Field{Name: name, Value: t.UTC().Format(time.RFC3339Nano)}
}

// TimePtr builds a canonical timestamp field; a nil time encodes as the
// empty string.
func TimePtr(name string, t *time.Time) Field {
	if t == nil {
		return Field{Name: name}
	}
	return Time(name, *t)
}

// UUID builds a canonical UUID field in the standard 36-character form.
func UUID(name string, id uuid.UUID) Field {
	return Field{Name: name, Value: id.String()}
}

// Float builds a canonical float field using the shortest round-trippable
// representation. NaN and infinities cannot be canonicalized.
func Float(name string, v float64) (Field, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Field{}, fmt.Errorf("%w: field %q is not finite", errdefs.ErrEncoding, name)
	}
	return Field{Name: name, Value: strconv.FormatFloat(v, 'g', -1, 64)}, nil
}

// Compute returns the hex-encoded SHA-256 record hash for the given canonical
// fields chained to previousHash. Pass Sentinel for the first record of a
// lineage. Fields are hashed in the order given; the caller owns the order.
func Compute(fields []Field, previousHash string) (string, error) {
	if err := validateHash(previousHash); err != nil {
		return "", err
	}

	h := sha256.New()
	h.Write([]byte(previousHash))
	for _, f := range fields {
		if f.Name == "" {
			return "", fmt.Errorf("%w: empty field name", errdefs.ErrEncoding)
		}
		fmt.Fprintf(h, "|%d:%s=%d:%s", len(f.Name), f.Name, len(f.Value), f.Value)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Matches recomputes the hash of fields chained to previousHash and reports
// whether it equals recordHash. This is the audit-verification primitive.
func Matches(fields []Field, previousHash, recordHash string) (bool, error) {
	computed, err := Compute(fields, previousHash)
	if err != nil {
		return false, err
	}
	return computed == recordHash, nil
}

// validateHash checks that s is a 64-character lowercase hex digest.
func validateHash(s string) error {
	if len(s) != 64 {
		return fmt.Errorf("%w: previous hash must be 64 hex characters, got %d", errdefs.ErrEncoding, len(s))
	}
	if _, err := hex.DecodeString(s); err != nil {
		return fmt.Errorf("%w: previous hash is not hex: %v", errdefs.ErrEncoding, err)
	}
	return nil
}
