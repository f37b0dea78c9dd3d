// Package verdict classifies judge verdict strings into lifecycle states.
package verdict

import (
	"encoding/json"
	"strings"
)

// Verdict is the closed set of judge lifecycle states.
type Verdict string

const (
	Pending             Verdict = "PENDING"
	Compiling           Verdict = "COMPILING"
	Running             Verdict = "RUNNING"
	Accepted            Verdict = "ACCEPTED"
	WrongAnswer         Verdict = "WRONG_ANSWER"
	RuntimeError        Verdict = "RUNTIME_ERROR"
	CompileError        Verdict = "COMPILE_ERROR"
	TimeLimitExceeded   Verdict = "TIME_LIMIT_EXCEEDED"
	MemoryLimitExceeded Verdict = "MEMORY_LIMIT_EXCEEDED"
	InternalError       Verdict = "INTERNAL_ERROR"
	Unknown             Verdict = "UNKNOWN"
)

// Class partitions verdicts for the polling loop.
type Class int

const (
	InFlight Class = iota
	Terminal
	TerminalUnknown
)

func (c Class) String() string {
	switch c {
	case InFlight:
		return "in_flight"
	case Terminal:
		return "terminal"
	default:
		return "terminal_unknown"
	}
}

// aliases maps normalized wire spellings to verdicts. The judge sends short
// codes for finished states; long names are accepted as well.
var aliases = map[string]Verdict{
	"PENDING":               Pending,
	"QUEUED":                Pending,
	"COMPILING":             Compiling,
	"RUNNING":               Running,
	"JUDGING":               Running,
	"AC":                    Accepted,
	"ACCEPTED":              Accepted,
	"WA":                    WrongAnswer,
	"WRONG_ANSWER":          WrongAnswer,
	"RE":                    RuntimeError,
	"RUNTIME_ERROR":         RuntimeError,
	"CE":                    CompileError,
	"COMPILE_ERROR":         CompileError,
	"COMPILATION_ERROR":     CompileError,
	"TLE":                   TimeLimitExceeded,
	"TIME_LIMIT_EXCEEDED":   TimeLimitExceeded,
	"MLE":                   MemoryLimitExceeded,
	"MEMORY_LIMIT_EXCEEDED": MemoryLimitExceeded,
	"IE":                    InternalError,
	"INTERNAL_ERROR":        InternalError,
}

var labels = map[Verdict]string{
	Pending:             "Pending",
	Compiling:           "Compiling",
	Running:             "Running",
	Accepted:            "Accepted",
	WrongAnswer:         "Wrong Answer",
	RuntimeError:        "Runtime Error",
	CompileError:        "Compile Error",
	TimeLimitExceeded:   "Time Limit Exceeded",
	MemoryLimitExceeded: "Memory Limit Exceeded",
	InternalError:       "Internal Error",
}

var shortCodes = map[Verdict]string{
	Accepted:            "AC",
	WrongAnswer:         "WA",
	RuntimeError:        "RE",
	CompileError:        "CE",
	TimeLimitExceeded:   "TLE",
	MemoryLimitExceeded: "MLE",
	InternalError:       "IE",
}

// Classification is the result of classifying one reported verdict string.
type Classification struct {
	Verdict Verdict
	Class   Class
	Raw     string
}

// Terminal reports whether polling should stop.
func (c Classification) Terminal() bool {
	return c.Class != InFlight
}

// Unknown reports whether the raw string was not recognized.
func (c Classification) Unknown() bool {
	return c.Class == TerminalUnknown
}

// Parse maps a wire string to a Verdict. Unrecognized input yields Unknown.
func Parse(raw string) Verdict {
	key := strings.ToUpper(strings.TrimSpace(raw))
	key = strings.NewReplacer(" ", "_", "-", "_").Replace(key)
	if v, ok := aliases[key]; ok {
		return v
	}
	return Unknown
}

// Classify returns the in-flight/terminal partition for raw.
func Classify(raw string) Classification {
	v := Parse(raw)
	return Classification{Verdict: v, Class: v.Class(), Raw: raw}
}

// Class returns the partition the verdict belongs to.
func (v Verdict) Class() Class {
	switch v {
	case Pending, Compiling, Running:
		return InFlight
	case Accepted, WrongAnswer, RuntimeError, CompileError,
		TimeLimitExceeded, MemoryLimitExceeded, InternalError:
		return Terminal
	default:
		return TerminalUnknown
	}
}

// IsInFlight reports whether the judge is still working on the submission.
func (v Verdict) IsInFlight() bool {
	return v.Class() == InFlight
}

// IsTerminal reports whether no further judging occurs.
func (v Verdict) IsTerminal() bool {
	return v.Class() != InFlight
}

// Label returns a human readable name.
func (v Verdict) Label() string {
	if l, ok := labels[v]; ok {
		return l
	}
	return "Unknown"
}

// Short returns the judge short code for terminal verdicts, the name otherwise.
func (v Verdict) Short() string {
	if s, ok := shortCodes[v]; ok {
		return s
	}
	return string(v)
}

// Reported keeps both the parsed verdict and the raw string the judge sent,
// so unrecognized values can still be shown.
type Reported struct {
	Verdict Verdict
	Raw     string
}

// NewReported parses raw into a Reported value.
func NewReported(raw string) Reported {
	return Reported{Verdict: Parse(raw), Raw: raw}
}

// Classification returns the classification of the reported value.
func (r Reported) Classification() Classification {
	return Classification{Verdict: r.Verdict, Class: r.Verdict.Class(), Raw: r.Raw}
}

// UnmarshalJSON validates the verdict at the decoding boundary.
func (r *Reported) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*r = Reported{Verdict: Unknown}
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = NewReported(raw)
	return nil
}

// MarshalJSON writes the raw string back unchanged.
func (r Reported) MarshalJSON() ([]byte, error) {
	if r.Raw == "" && r.Verdict != Unknown {
		return json.Marshal(string(r.Verdict))
	}
	return json.Marshal(r.Raw)
}

func (r Reported) String() string {
	if r.Verdict == Unknown {
		return r.Raw
	}
	return string(r.Verdict)
}
