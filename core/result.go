package core

// Provenance labels where a successful answer came from. A fallback strategy
// without tools produces answers recalled from model weights; callers may want
// to flag those differently from answers grounded in retrieved content.
type Provenance string

const (
	// ProvenanceRetrieved marks an answer produced after at least one
	// successful tool round-trip.
	ProvenanceRetrieved Provenance = "retrieved"
	// ProvenanceModelKnowledge marks an answer produced without any tool use.
	ProvenanceModelKnowledge Provenance = "model_knowledge"
)

// RunResult is the terminal outcome of a run: either a payload (free text or
// a schema-validated object) or a typed *Error. Exactly one is present.
type RunResult struct {
	Text       string         `json:"text,omitempty"`
	Object     map[string]any `json:"object,omitempty"`
	Structured bool           `json:"structured"`
	Provenance Provenance     `json:"provenance,omitempty"`
	Strategy   string         `json:"strategy,omitempty"` // Name of the config that produced the payload
	Err        *Error         `json:"error,omitempty"`
}

// Success reports whether the run produced a payload.
func (r RunResult) Success() bool { return r.Err == nil }

// TextResult wraps free text as a successful RunResult.
func TextResult(text string, prov Provenance) RunResult {
	return RunResult{Text: text, Provenance: prov}
}

// StructuredResult wraps a validated object as a successful RunResult.
func StructuredResult(obj map[string]any, prov Provenance) RunResult {
	return RunResult{Object: obj, Structured: true, Provenance: prov}
}

// FailureResult wraps a typed error as a failed RunResult.
func FailureResult(err *Error) RunResult { return RunResult{Err: err} }
