package mockldap

import (
	"fmt"
	"reflect"
	"strings"
	"time"
)

// Operation names one simulated directory operation. Seeding and recording
// dispatch over this closed set rather than reflecting over method names.
type Operation string

const (
	OpDial     Operation = "dial"
	OpBind     Operation = "bind"
	OpUnbind   Operation = "unbind"
	OpWhoAmI   Operation = "whoami"
	OpStartTLS Operation = "start_tls"
	OpCompare  Operation = "compare"
	OpSearch   Operation = "search"
	OpAdd      Operation = "add"
	OpDelete   Operation = "delete"
	OpModify   Operation = "modify"
	OpModifyDN Operation = "modify_dn"
)

// Call is one recorded invocation: the operation and its argument signature.
type Call struct {
	Op   Operation
	Args []any
}

// String renders the call the way it was made, for diagnostics.
func (c Call) String() string {
	args := make([]string, len(c.Args))
	for i, a := range c.Args {
		args[i] = fmt.Sprintf("%#v", a)
	}
	return fmt.Sprintf("%s(%s)", c.Op, strings.Join(args, ", "))
}

// logString renders the call for log output with bind credentials masked.
func (c Call) logString() string {
	if c.Op == OpBind && len(c.Args) == 2 {
		return Call{Op: c.Op, Args: []any{c.Args[0], "[REDACTED]"}}.String()
	}
	return c.String()
}

// seedEntry binds one exact argument signature to a canned outcome.
type seedEntry struct {
	args  []any
	value any
	err   error
}

// recorder is the per-connection dispatcher: it keeps the append-only call
// ledger and the seed table, and routes each invocation to either a seeded
// outcome or the default simulation handler.
type recorder struct {
	log       Logger
	singleUse bool
	calls     []Call
	seeds     map[Operation][]*seedEntry
}

func newRecorder(log Logger, singleUse bool) *recorder {
	return &recorder{
		log:       log,
		singleUse: singleUse,
		seeds:     make(map[Operation][]*seedEntry),
	}
}

// addSeed registers a canned outcome for an exact argument signature.
// Newer seeds take precedence over older ones for the same signature.
func (r *recorder) addSeed(op Operation, args []any, value any, err error) {
	entry := &seedEntry{
		args:  copyArgs(args),
		value: deepCopy(value),
		err:   err,
	}
	r.seeds[op] = append([]*seedEntry{entry}, r.seeds[op]...)

	r.log.Debug("Seed registered", map[string]any{
		"operation": op,
		"signature": Call{Op: op, Args: args}.logString(),
		"is_error":  err != nil,
	})
}

// match finds the newest seed whose signature equals args by value.
func (r *recorder) match(op Operation, args []any) (*seedEntry, bool) {
	for i, entry := range r.seeds[op] {
		if reflect.DeepEqual(entry.args, args) {
			if r.singleUse {
				r.seeds[op] = append(r.seeds[op][:i], r.seeds[op][i+1:]...)
			}
			return entry, true
		}
	}
	return nil, false
}

// dispatch records the call, then returns the seeded outcome for its exact
// argument signature if one exists, otherwise runs the default handler. A
// nil handler means the operation has no simulation and must be seeded.
func (r *recorder) dispatch(op Operation, args []any, handler func() (any, error)) (any, error) {
	call := Call{Op: op, Args: copyArgs(args)}
	r.calls = append(r.calls, call)

	start := time.Now()

	if entry, ok := r.match(op, args); ok {
		r.log.Debug("Dispatching seeded outcome", sanitizeFields(map[string]any{
			"operation":   op,
			"call":        call.logString(),
			"is_error":    entry.err != nil,
			"duration_ms": time.Since(start).Milliseconds(),
		}))

		if entry.err != nil {
			// The configured error is surfaced exactly as seeded.
			return nil, entry.err
		}
		return deepCopy(entry.value), nil
	}

	if handler == nil {
		return nil, seedRequired(call, "operation has no default handler")
	}

	value, err := handler()

	fields := sanitizeFields(map[string]any{
		"operation":   op,
		"call":        call.logString(),
		"duration_ms": time.Since(start).Milliseconds(),
	})
	if err != nil {
		fields["error"] = err.Error()
		r.log.Debug("Simulated operation failed", fields)
	} else {
		r.log.Trace("Simulated operation completed", fields)
	}

	return value, err
}

// methodsCalled returns the operations invoked so far, in order.
func (r *recorder) methodsCalled() []Operation {
	out := make([]Operation, len(r.calls))
	for i, call := range r.calls {
		out[i] = call.Op
	}
	return out
}

// calledWith returns the argument signatures of every invocation of op, in
// order. The signatures are copies; mutating them does not disturb the
// ledger.
func (r *recorder) calledWith(op Operation) [][]any {
	var out [][]any
	for _, call := range r.calls {
		if call.Op == op {
			out = append(out, copyArgs(call.Args))
		}
	}
	return out
}

// allCalls returns a copy of the full ledger.
func (r *recorder) allCalls() []Call {
	out := make([]Call, len(r.calls))
	for i, call := range r.calls {
		out[i] = Call{Op: call.Op, Args: copyArgs(call.Args)}
	}
	return out
}

// reset clears both the seed table and the ledger.
func (r *recorder) reset() {
	r.calls = nil
	r.seeds = make(map[Operation][]*seedEntry)
}

// copyArgs deep-copies an argument signature so later mutation by the caller
// cannot corrupt seeds or the ledger.
func copyArgs(args []any) []any {
	if args == nil {
		return nil
	}
	out := make([]any, len(args))
	for i, a := range args {
		out[i] = deepCopy(a)
	}
	return out
}

// seedRequired builds the error returned when the simulation cannot satisfy
// a call and no seed matches.
func seedRequired(call Call, reason string) error {
	e := newError(ErrSeedRequired, "", fmt.Sprintf("%s: %s", call, reason))
	e.Op = call.Op
	return e
}

// SeedSlot is the settable response slot returned by Conn.Seed. Exactly one
// of Return or Fail configures the outcome for the seeded signature.
type SeedSlot struct {
	rec  *recorder
	op   Operation
	args []any
}

// Return makes matching calls return value instead of running the
// simulation. The value is deep-copied on the way in and again on every
// matching call.
func (s *SeedSlot) Return(value any) {
	s.rec.addSeed(s.op, s.args, value, nil)
}

// Fail makes matching calls fail with err instead of running the simulation.
func (s *SeedSlot) Fail(err error) {
	s.rec.addSeed(s.op, s.args, nil, err)
}
