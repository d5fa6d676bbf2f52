package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "lspkit"

// StartResolveSpan starts a span for one binary resolution.
func StartResolveSpan(ctx context.Context, serverID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "resolve",
		trace.WithAttributes(
			attribute.String("server.id", serverID),
		),
	)
}

// StartReleaseSpan starts a span for a latest-release lookup.
func StartReleaseSpan(ctx context.Context, repo string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "release.latest",
		trace.WithAttributes(
			attribute.String("release.repo", repo),
		),
	)
}

// StartDownloadSpan starts a span for an asset download and extraction.
func StartDownloadSpan(ctx context.Context, serverID, version, url string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "download",
		trace.WithAttributes(
			attribute.String("server.id", serverID),
			attribute.String("release.version", version),
			attribute.String("asset.url", url),
		),
	)
}

// EndSpan records err on span (if any) and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
