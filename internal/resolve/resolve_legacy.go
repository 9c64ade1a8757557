//go:build legacy

package resolve

import (
	"context"
	"fmt"

	"github.com/ehsaniara/shiplog/facade/legacy"
)

// ClientSettings is the subset of internal/config.Client a facade
// needs to construct its underlying SDK client.
type ClientSettings struct {
	Region      string
	Endpoint    string
	AssumedRole string
}

// Resolve is the legacy-build variant: it wires aws-sdk-go (v1)
// session-based clients instead of aws-sdk-go-v2. Kinesis and SNS
// legacy facades are not implemented — only CloudWatch Logs has a v1
// reference in the example pack to ground one on — so requesting them
// under this build tag fails loudly rather than silently falling back
// to the modern SDK.
func Resolve(ctx context.Context, destination string, cfg ClientSettings) (any, error) {
	switch destination {
	case "cloudwatch":
		return legacy.NewCloudWatch(legacy.ClientConfig(cfg))
	default:
		return nil, fmt.Errorf("resolve: legacy build has no resolver for destination %q", destination)
	}
}
