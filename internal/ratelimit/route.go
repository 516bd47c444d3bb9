package ratelimit

import (
	"fmt"

	"github.com/danielgtaylor/huma/v2"
)

// MetadataKey is the key used to store route admission config in operation metadata.
const MetadataKey = "rateLimit"

// Route defines per-endpoint admission configuration.
// This can be attached to Huma operations via the Metadata field.
type Route struct {
	// Policies are evaluated after the set's default policies, in order.
	Policies []string

	// Disabled skips admission control entirely for this endpoint, defaults included.
	Disabled bool
}

// GetRoute extracts the Route from operation metadata, if present.
func GetRoute(ctx huma.Context) *Route {
	op := ctx.Operation()
	if op == nil || op.Metadata == nil {
		return nil
	}

	cfg, ok := op.Metadata[MetadataKey].(Route)
	if !ok {
		return nil
	}

	return &cfg
}

// Gated returns operation metadata binding the named policies to a route.
func Gated(policies ...string) map[string]any {
	return map[string]any{MetadataKey: Route{Policies: policies}}
}

// Ungated returns operation metadata that exempts a route from admission control.
func Ungated() map[string]any {
	return map[string]any{MetadataKey: Route{Disabled: true}}
}

// ValidateRoutes checks that every policy named by a registered operation exists in set.
func ValidateRoutes(oapi *huma.OpenAPI, set *PolicySet) error {
	if oapi == nil {
		return nil
	}

	for path, item := range oapi.Paths {
		for _, op := range []*huma.Operation{item.Get, item.Put, item.Post, item.Delete, item.Patch} {
			if op == nil || op.Metadata == nil {
				continue
			}

			route, ok := op.Metadata[MetadataKey].(Route)
			if !ok || route.Disabled {
				continue
			}

			if _, err := set.Resolve(route.Policies); err != nil {
				return fmt.Errorf("%s %s: %w", op.Method, path, err)
			}
		}
	}

	return nil
}
