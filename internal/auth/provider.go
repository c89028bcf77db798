package auth

import (
	"context"

	"github.com/Toshin-unyu/Zimmeter/internal"
)

// Provider resolves the caller's worker record from an upstream identity value.
type Provider interface {
	Resolve(ctx context.Context, uid string) (*internal.Worker, error)
}
