// Package graphql traces GraphQL execution. A server calls ExecuteOperation around each
// operation and ResolveField around each resolver.
package graphql

import (
	"context"
	"github.com/Avi18971911/augur-go/pkg/augur"
	"github.com/Avi18971911/augur-go/pkg/event/model"
)

const (
	Origin = "auto.graphql.otel.graphql"

	AttributeOperationType = "graphql.operation.type"
	AttributeSource        = "graphql.source"
	AttributeFieldName     = "graphql.field.name"
	AttributeFieldPath     = "graphql.field.path"
	AttributeFieldType     = "graphql.field.type"

	resolveSpanName = "graphql.resolve"
)

type Operation struct {
	// Type is query, mutation or subscription.
	Type   string
	Name   string
	Source string
}

type Field struct {
	Name string
	// Path is the response path of the field, e.g. "user.orders.0.total".
	Path       string
	ReturnType string
	Source     string
}

// ExecuteOperation runs fn inside a span describing the operation.
func ExecuteOperation(ctx context.Context, operation Operation, fn func(ctx context.Context) error) error {
	attributes := map[string]any{
		AttributeOperationType: operation.Type,
		AttributeSource:        operation.Source,
	}
	if operation.Name != "" {
		attributes["graphql.operation.name"] = operation.Name
	}
	return augur.StartSpan(ctx, augur.SpanOptions{
		Name:       operation.Type,
		Op:         "graphql." + operation.Type,
		Origin:     Origin,
		Attributes: attributes,
	}, run(fn))
}

// ResolveField runs fn inside a graphql.resolve span. Resolvers of trivial fields are not
// worth a span; callers decide which fields to trace.
func ResolveField(ctx context.Context, field Field, fn func(ctx context.Context) error) error {
	return augur.StartSpan(ctx, augur.SpanOptions{
		Name: resolveSpanName,
		Attributes: map[string]any{
			AttributeFieldName: field.Name,
			AttributeFieldPath: field.Path,
			AttributeFieldType: field.ReturnType,
			AttributeSource:    field.Source,
		},
		OnlyIfParent: true,
	}, run(fn))
}

func run(fn func(ctx context.Context) error) func(ctx context.Context, span *augur.Span) error {
	return func(ctx context.Context, span *augur.Span) error {
		err := fn(ctx)
		if err == nil && span.Status() == model.UNSET {
			span.SetStatus(model.OK)
		}
		return err
	}
}
