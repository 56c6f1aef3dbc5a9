// Package unwrap drives the classify/decode loop that peels nested encoding
// layers off an opaque payload until a terminal condition is reached.
package unwrap

import (
	"github.com/SecScholar/Omni-Decoder/internal/codec"
)

// DefaultMaxDepth bounds how many layers a single run will peel. It is the
// only tunable the engine exposes.
const DefaultMaxDepth = 10

// Terminal names the condition that ended a run.
type Terminal string

const (
	// StoppedUnknown means no scheme matched the current content, or the
	// top-priority scheme failed to decode it.
	StoppedUnknown Terminal = "no_match"
	// StoppedBinary means a decode produced bytes outside the printable
	// range; the binary payload is the final result and is not recursed into.
	StoppedBinary Terminal = "binary_payload"
	// StoppedMaxDepth means the depth bound was hit while decodes were still
	// succeeding.
	StoppedMaxDepth Terminal = "max_depth"
)

// Layer records one successful decode step.
type Layer struct {
	Depth   int         `json:"depth"`
	Label   codec.Label `json:"label"`
	Content string      `json:"content"`
}

// Result is the outcome of one run.
type Result struct {
	Terminal Terminal `json:"terminal"`
	Final    string   `json:"final"`
	Layers   []Layer  `json:"layers"`
}

// Sink receives layers as they are produced, in depth order. Implementations
// must not retain the layer beyond the call.
type Sink interface {
	Layer(Layer)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Layer)

func (f SinkFunc) Layer(l Layer) { f(l) }

// Option configures an Engine.
type Option func(*Engine)

// WithMaxDepth overrides the depth bound. Values < 1 fall back to the
// default.
func WithMaxDepth(depth int) Option {
	return func(e *Engine) {
		if depth >= 1 {
			e.maxDepth = depth
		}
	}
}

// WithSink registers a sink for streamed layers. Multiple sinks may be
// registered; each layer is delivered to all of them in registration order.
func WithSink(s Sink) Option {
	return func(e *Engine) {
		if s != nil {
			e.sinks = append(e.sinks, s)
		}
	}
}

// Engine repeatedly classifies and decodes a payload. Engines are stateless
// between runs; each Run owns its loop state, so one Engine may serve
// concurrent runs.
type Engine struct {
	maxDepth int
	sinks    []Sink
}

// New constructs an engine with the default depth bound.
func New(opts ...Option) *Engine {
	e := &Engine{maxDepth: DefaultMaxDepth}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// state is the loop's single-owner mutable state.
type state struct {
	depth   int
	current string
	layers  []Layer
}

// Run unwraps input until a terminal condition is reached. It never fails:
// any classification miss or decode error simply ends the run with the best
// plaintext obtained so far. The run takes at most MaxDepth+1 iterations.
func (e *Engine) Run(input string) Result {
	st := state{current: input}

	for {
		// The label is recorded for reporting; Decode re-derives the scheme
		// from the same rules internally.
		label := codec.Classify(st.current)

		decoded, err := codec.Decode(st.current)
		if err != nil {
			return Result{Terminal: StoppedUnknown, Final: st.current, Layers: st.layers}
		}

		// Binary payloads are the end of the road: report them as the final
		// content without recording a layer or attempting further decodes.
		if !printable(decoded) {
			return Result{Terminal: StoppedBinary, Final: decoded, Layers: st.layers}
		}

		layer := Layer{Depth: st.depth + 1, Label: label, Content: decoded}
		st.layers = append(st.layers, layer)
		st.current = decoded
		st.depth++
		e.emit(layer)

		if st.depth >= e.maxDepth {
			return Result{Terminal: StoppedMaxDepth, Final: st.current, Layers: st.layers}
		}
	}
}

func (e *Engine) emit(l Layer) {
	for _, s := range e.sinks {
		s.Layer(l)
	}
}

// printable reports whether s contains only ASCII bytes in [0x20,0x7E] plus
// tab, newline, and carriage return. Multi-byte text encodings deliberately
// fail this check and are treated as binary payloads.
func printable(s string) bool {
	for i := 0; i < len(s); i++ {
		b := s[i]
		if b >= 0x20 && b <= 0x7e {
			continue
		}
		if b == '\t' || b == '\n' || b == '\r' {
			continue
		}
		return false
	}
	return true
}
