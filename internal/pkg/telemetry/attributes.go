package telemetry

import "go.opentelemetry.io/otel/attribute"

// Span attribute keys used for instrumentation.
const (
	AttrLatitude  = attribute.Key("geo.latitude")
	AttrLongitude = attribute.Key("geo.longitude")

	AttrResolver = attribute.Key("aquaripple.resolver")
	AttrOutcome  = attribute.Key("aquaripple.lookup.outcome")
	AttrEntryID  = attribute.Key("aquaripple.cache.entry_id")
)
