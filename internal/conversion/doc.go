// Package conversion defines the mapper's three-layer error taxonomy.
//
// # Layers
//
// MessageConversionError is the outermost layer. It annotates any failure
// raised while converting one bus message with the originating topic. The
// converter logs it and moves on to the next message.
//
// Error is the conversion-domain layer: a closed set of kinds (payload,
// size threshold, serialization, transfer, HTTP proxy, entity store,
// registration, unregistered child device, auto-registration disabled,
// elapsed, infrastructure, I/O, unexpected). Each kind is a passthrough
// wrapper: Error() returns the wrapped message unchanged and Unwrap keeps
// the chain intact for errors.Is and errors.As.
//
// InfraError is the lowest layer: bus client, configuration, filesystem
// watch and raw I/O failures. These usually mean the process cannot
// continue normally, so IsInfrastructure lets callers escape per-message
// isolation for them.
//
// # Usage
//
//	if err := proxy.CreateEvent(ctx, ev); err != nil {
//	    return conversion.FromHTTPProxy(err)
//	}
//
//	var convErr *conversion.Error
//	if errors.As(err, &convErr) && convErr.Kind == conversion.KindElapsed {
//	    // the routine ran past its deadline
//	}
package conversion
