// Package ownership tracks which identity holds each proof token. The
// registry mints tokens into the ledger and reads holders back from it; the
// proof record itself never stores the holder.
package ownership

import (
	"context"
	"errors"

	id "attest/pkg/domain"
)

var (
	// ErrTokenExists is returned when minting an identifier that already has a token.
	ErrTokenExists = errors.New("ownership: token already exists")
	// ErrNotHolder is returned when a transfer is attempted by someone other than the holder.
	ErrNotHolder = errors.New("ownership: caller is not the holder")
)

// Receiver is notified after a token is minted to its recipient and the mint
// has committed. Hooks run with a context the registry marks as in-flight, so
// calls back into registry mutations are refused.
type Receiver interface {
	OnProofReceived(ctx context.Context, proofID id.ProofID, to id.Identity) error
}

// ReceiverFunc adapts a plain function to Receiver.
type ReceiverFunc func(ctx context.Context, proofID id.ProofID, to id.Identity) error

func (f ReceiverFunc) OnProofReceived(ctx context.Context, proofID id.ProofID, to id.Identity) error {
	return f(ctx, proofID, to)
}
