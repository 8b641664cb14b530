package resource

import "context"

// Provider supplies domain resources for a scope.
type Provider interface {
	// Name identifies the provider in logs and health output.
	Name() string
	// ListResources returns the resources meaningful for scope. A scope the
	// provider does not apply to yields an empty list, not an error.
	ListResources(ctx context.Context, scope Scope) ([]Resource, error)
	// FetchContent resolves a URI this provider advertised. The boolean is
	// false when the URI is not owned by this provider or no longer exists.
	FetchContent(ctx context.Context, uri string) (*Content, bool, error)
}

// ToolProvider is implemented by providers that also advertise tools.
type ToolProvider interface {
	ListTools(ctx context.Context, scope Scope) ([]Tool, error)
}
