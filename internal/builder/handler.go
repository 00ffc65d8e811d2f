package builder

// HandlerFunc is invoked with an incoming event and the handler's bound
// state/input tree, returning the (possibly partial) state update it
// produces.
type HandlerFunc func(event, state interface{}) interface{}

// HandlerOptions configures a Handler factory.
type HandlerOptions struct {
	// Proxy marks the handler as a pass-through event relay rather than a
	// state-mutating reducer (spec.md §4.5 handler variants).
	Proxy bool
}

// HandlerFactory is a reusable event-handler computation, the builder's
// entry point for user interaction / external events (spec.md §4.5).
type HandlerFactory struct {
	eventSchema map[string]interface{}
	stateSchema map[string]interface{}
	fn          HandlerFunc
	opts        HandlerOptions
	source      SourceLocation
}

// Handler registers fn as a reusable handler factory.
func Handler(eventSchema, stateSchema map[string]interface{}, fn HandlerFunc, opts HandlerOptions) *HandlerFactory {
	return &HandlerFactory{
		eventSchema: eventSchema,
		stateSchema: stateSchema,
		fn:          fn,
		opts:        opts,
		source:      sourceLocationOf(fn),
	}
}

// Bind attaches the handler to inputs within frame immediately, returning
// a stream Cell that emits the handler's state updates. The result
// stream's $event input is the stream itself (out); remaining inputs are
// attached as $ctx (spec.md §4.5/§9's handler wire shape).
func (hf *HandlerFactory) Bind(frame *Frame, inputs interface{}) *Cell {
	out := newRootCell(frame, hf.stateSchema, nil)
	out.MarkStream()
	module := Module{
		Type:   ModuleJavaScript,
		Source: hf.source,
		ArgumentSchema: map[string]interface{}{
			"$event": hf.eventSchema,
			"$ctx":   hf.stateSchema,
		},
		ResultSchema: hf.stateSchema,
		Wrapper:      "handler",
	}
	wrapped := map[string]interface{}{"$event": out, "$ctx": inputs}
	newNode(frame, module, wrapped, out)
	propagateClassification(frame, inputs, out)
	return out
}

// BoundHandler defers Bind until the enclosing pattern is ready to attach
// it to a frame, matching the spec's .With(inputs) deferred-binding form.
type BoundHandler struct {
	hf     *HandlerFactory
	inputs interface{}
}

// With captures inputs for later binding.
func (hf *HandlerFactory) With(inputs interface{}) *BoundHandler {
	return &BoundHandler{hf: hf, inputs: inputs}
}

// Bind attaches the deferred handler within frame.
func (b *BoundHandler) Bind(frame *Frame) *Cell {
	return b.hf.Bind(frame, b.inputs)
}
