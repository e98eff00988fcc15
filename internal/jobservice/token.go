package jobservice

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// ReservationToken is a prepaid right to call Execute once. It must be
// released exactly once (by a successful or failed Execute call); a
// double release would otherwise be a programmer error, so here
// release is guarded to be idempotent instead.
type ReservationToken struct {
	released atomic.Bool
}

func NewReservationToken() *ReservationToken {
	return &ReservationToken{}
}

// release marks the token consumed and reports whether this call was
// the one that performed the release (false if already released).
func (t *ReservationToken) release() bool {
	return t.released.CompareAndSwap(false, true)
}

// OutcomeToken references an archived representation of a placed
// resource or an execution's output directory: a tar.gz blob built by
// one of the from_directory/from_text constructors below. It is an
// immutable value and therefore trivially cloneable — multiple
// dependents may reference the same outcome.
type OutcomeToken struct {
	OutcomeID uuid.UUID
	archive   []byte
}

// NewOutcomeTokenFromText archives a single file named after the
// outcome ID, matching OutcomeToken::from_text.
func NewOutcomeTokenFromText(outcomeID uuid.UUID, text string) (OutcomeToken, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	hdr := &tar.Header{
		Name: outcomeID.String(),
		Mode: 0o644,
		Size: int64(len(text)),
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return OutcomeToken{}, fmt.Errorf("archive outcome %s: %w", outcomeID, err)
	}
	if _, err := tw.Write([]byte(text)); err != nil {
		return OutcomeToken{}, fmt.Errorf("archive outcome %s: %w", outcomeID, err)
	}
	if err := tw.Close(); err != nil {
		return OutcomeToken{}, fmt.Errorf("archive outcome %s: %w", outcomeID, err)
	}
	if err := gz.Close(); err != nil {
		return OutcomeToken{}, fmt.Errorf("archive outcome %s: %w", outcomeID, err)
	}
	return OutcomeToken{OutcomeID: outcomeID, archive: buf.Bytes()}, nil
}

// NewOutcomeTokenFromDirectory archives a single empty directory entry,
// matching OutcomeToken::from_directory.
func NewOutcomeTokenFromDirectory(outcomeID uuid.UUID) (OutcomeToken, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	hdr := &tar.Header{
		Name:     outcomeID.String() + "/",
		Typeflag: tar.TypeDir,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return OutcomeToken{}, fmt.Errorf("archive outcome %s: %w", outcomeID, err)
	}
	if err := tw.Close(); err != nil {
		return OutcomeToken{}, fmt.Errorf("archive outcome %s: %w", outcomeID, err)
	}
	if err := gz.Close(); err != nil {
		return OutcomeToken{}, fmt.Errorf("archive outcome %s: %w", outcomeID, err)
	}
	return OutcomeToken{OutcomeID: outcomeID, archive: buf.Bytes()}, nil
}

// ToBinary returns the archived tar.gz bytes, matching
// OutcomeToken::to_binary.
func (t OutcomeToken) ToBinary() []byte {
	return t.archive
}
