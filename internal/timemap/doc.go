package timemap

import "github.com/npillmayer/schuko/tracing"

// tracer traces with key 'kinema.timemap'
func tracer() tracing.Trace {
	return tracing.Select("kinema.timemap")
}
