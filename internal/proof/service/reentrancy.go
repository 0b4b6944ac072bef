package service

import (
	"context"

	dErrors "attest/pkg/domain-errors"
)

type mintInFlightKey struct{}

// markMintInFlight tags the context handed to receiver hooks.
func markMintInFlight(ctx context.Context) context.Context {
	return context.WithValue(ctx, mintInFlightKey{}, true)
}

// MintInFlight reports whether ctx belongs to a receiver hook of a mint that
// has not returned yet.
func MintInFlight(ctx context.Context) bool {
	inFlight, _ := ctx.Value(mintInFlightKey{}).(bool)
	return inFlight
}

// guardReentry refuses registry mutations issued from inside a mint's
// notification phase. It runs before any lock is taken.
func guardReentry(ctx context.Context) error {
	if MintInFlight(ctx) {
		return dErrors.New(dErrors.CodeStateConflict, "registry mutation refused while a mint is in flight")
	}
	return nil
}
