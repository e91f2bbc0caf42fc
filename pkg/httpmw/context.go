// Package httpmw holds the echo middleware and context helpers shared by the
// control-plane HTTP server, adapted from packages/go-core/middleware.
package httpmw

import "context"

type contextKey string

const (
	// AccountIDKey is the context key for the caller's AWS-style account id,
	// resolved from the X-Amz-Account-Id header (or the default test account
	// when unset — this emulator has no IAM of its own).
	AccountIDKey contextKey = "account_id"
	// RegionKey is the context key for the caller's region, resolved from the
	// X-Amz-Region header.
	RegionKey contextKey = "region"
)

// DefaultAccountID and DefaultRegion are used when a request carries neither
// header, so a bare curl/Postman request against this emulator still works.
const (
	DefaultAccountID = "000000000000"
	DefaultRegion    = "us-east-1"
)

func WithAccountID(ctx context.Context, accountID string) context.Context {
	return context.WithValue(ctx, AccountIDKey, accountID)
}

func WithRegion(ctx context.Context, region string) context.Context {
	return context.WithValue(ctx, RegionKey, region)
}

func GetAccountID(ctx context.Context) string {
	if v, ok := ctx.Value(AccountIDKey).(string); ok && v != "" {
		return v
	}
	return DefaultAccountID
}

func GetRegion(ctx context.Context) string {
	if v, ok := ctx.Value(RegionKey).(string); ok && v != "" {
		return v
	}
	return DefaultRegion
}
