//go:build !legacy

// Package resolve picks an AWS SDK generation for each destination
// facade at compile time, the portable stand-in for spec.md §9's
// dynamic-SDK-package-lookup note (SPEC_FULL.md §6): a binary built
// with no tags uses aws-sdk-go-v2; one built with "-tags legacy" uses
// aws-sdk-go v1 instead (resolve_legacy.go). It lives outside the
// facade package itself so it can import every concrete facade
// implementation without creating an import cycle back into facade.
package resolve

import (
	"context"
	"fmt"

	"github.com/ehsaniara/shiplog/facade/cloudwatch"
	"github.com/ehsaniara/shiplog/facade/kinesis"
	"github.com/ehsaniara/shiplog/facade/sns"
)

// ClientSettings is the subset of internal/config.Client a facade
// needs to construct its underlying SDK client.
type ClientSettings struct {
	Region      string
	Endpoint    string
	AssumedRole string
}

// Resolve builds the facade for destination ("cloudwatch", "kinesis",
// or "sns") using whichever AWS SDK generation this binary was built
// with.
func Resolve(ctx context.Context, destination string, cfg ClientSettings) (any, error) {
	switch destination {
	case "cloudwatch":
		return cloudwatch.New(ctx, cloudwatch.ClientConfig(cfg))
	case "kinesis":
		return kinesis.New(ctx, kinesis.ClientConfig(cfg))
	case "sns":
		return sns.New(ctx, sns.ClientConfig(cfg))
	default:
		return nil, fmt.Errorf("resolve: unknown destination %q", destination)
	}
}
