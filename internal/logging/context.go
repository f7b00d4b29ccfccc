package logging

import (
	"context"

	"go.uber.org/zap"
)

// Context key types
type requestCtxKey struct{}
type customerCtxKey struct{}

// WithRequestID stores the request ID in the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestCtxKey{}, requestID)
}

// RequestIDFromContext returns the request ID, or "" if absent.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestCtxKey{}).(string)
	return id
}

// WithCustomer stores the resolved customer ID in the context.
func WithCustomer(ctx context.Context, customerID string) context.Context {
	if customerID == "" {
		return ctx
	}
	return context.WithValue(ctx, customerCtxKey{}, customerID)
}

// CustomerFromContext returns the customer ID, or "" if absent.
func CustomerFromContext(ctx context.Context) string {
	id, _ := ctx.Value(customerCtxKey{}).(string)
	return id
}

// ContextFields extracts correlation data from context.
func ContextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 2)

	if requestID := RequestIDFromContext(ctx); requestID != "" {
		fields = append(fields, zap.String("request.id", requestID))
	}
	if customerID := CustomerFromContext(ctx); customerID != "" {
		fields = append(fields, zap.String("customer.id", customerID))
	}

	return fields
}
