package services

import "context"

type contextKey string

const (
	jobIDKey       contextKey = "job_id"
	campaignIDKey  contextKey = "campaign_id"
	destinationKey contextKey = "destination"
	requestIDKey   contextKey = "request_id"
)

// WithJobID annotates context with the export job identifier.
func WithJobID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, jobIDKey, id)
}

// JobIDFromContext extracts the export job identifier if present.
func JobIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(jobIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithCampaignID annotates context with the campaign currently being exported.
func WithCampaignID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, campaignIDKey, id)
}

// CampaignIDFromContext returns the campaign identifier if present.
func CampaignIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(campaignIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithDestination annotates context with the delivery destination type.
func WithDestination(ctx context.Context, destination string) context.Context {
	if destination == "" {
		return ctx
	}
	return context.WithValue(ctx, destinationKey, destination)
}

// DestinationFromContext returns the delivery destination type if present.
func DestinationFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(destinationKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
