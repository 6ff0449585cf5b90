// Package capability implements the capability-list grammar shared by
// every pkt-line message of the smart protocol: a space-separated list of
// tokens,
// each either a bare flag or a name=value pair, with a handful of
// well-known names constraining how many values they accept.
package capability

import (
	"bytes"
	"errors"
	"os"
	"strings"
)

// Capability is one well-known (or server-extension) capability name.
type Capability string

const (
	MultiACK                 Capability = "multi_ack"
	MultiACKDetailed         Capability = "multi_ack_detailed"
	NoDone                   Capability = "no-done"
	ThinPack                 Capability = "thin-pack"
	Sideband                 Capability = "side-band"
	Sideband64k              Capability = "side-band-64k"
	OFSDelta                 Capability = "ofs-delta"
	Shallow                  Capability = "shallow"
	DeepenSince              Capability = "deepen-since"
	DeepenNot                Capability = "deepen-not"
	DeepenRelative           Capability = "deepen-relative"
	NoProgress               Capability = "no-progress"
	IncludeTag               Capability = "include-tag"
	ReportStatus             Capability = "report-status"
	DeleteRefs               Capability = "delete-refs"
	Quiet                    Capability = "quiet"
	Atomic                   Capability = "atomic"
	PushOptions              Capability = "push-options"
	AllowTipSHA1InWant       Capability = "allow-tip-sha1-in-want"
	AllowReachableSHA1InWant Capability = "allow-reachable-sha1-in-want"
	SymRef                   Capability = "symref"
	Agent                    Capability = "agent"
	ObjectFormat             Capability = "object-format"
	Filter                   Capability = "filter"
	PushCert                 Capability = "push-cert"
)

var known = map[Capability]bool{
	MultiACK: true, MultiACKDetailed: true, NoDone: true, ThinPack: true,
	Sideband: true, Sideband64k: true, OFSDelta: true, Shallow: true,
	DeepenSince: true, DeepenNot: true, DeepenRelative: true, NoProgress: true,
	IncludeTag: true, ReportStatus: true, DeleteRefs: true, Quiet: true,
	Atomic: true, PushOptions: true, AllowTipSHA1InWant: true,
	AllowReachableSHA1InWant: true, SymRef: true, Agent: true,
	ObjectFormat: true, Filter: true, PushCert: true,
}

// noArgument lists capabilities that never carry a value.
var noArgument = map[Capability]bool{
	MultiACK: true, MultiACKDetailed: true, NoDone: true, ThinPack: true,
	Sideband: true, Sideband64k: true, OFSDelta: true, Shallow: true,
	NoProgress: true, IncludeTag: true, ReportStatus: true, DeleteRefs: true,
	Quiet: true, Atomic: true, PushOptions: true, AllowTipSHA1InWant: true,
	AllowReachableSHA1InWant: true,
}

// exclusive lists capabilities that may only be set once.
var exclusive = map[Capability]bool{
	Agent: true, ObjectFormat: true, PushCert: true,
}

var (
	ErrArguments         = errors.New("capability: arguments not allowed")
	ErrArgumentsRequired = errors.New("capability: one or more arguments required")
	ErrEmptyArgument     = errors.New("capability: empty argument not allowed")
	ErrMultipleArguments = errors.New("capability: only one argument allowed")
)

// List is an ordered, duplicate-tolerant set of capabilities, as found on
// a ref advertisement or a fetch/push request line.
type List struct {
	m map[Capability][]string
	o []Capability
}

// NewList returns an empty List, ready to use.
func NewList() *List {
	return &List{m: make(map[Capability][]string)}
}

// IsEmpty reports whether no capability has been recorded.
func (l *List) IsEmpty() bool { return len(l.m) == 0 }

// Get returns the values recorded against c, or nil.
func (l *List) Get(c Capability) []string { return l.m[c] }

// Supports reports whether c was recorded at all (with or without values).
func (l *List) Supports(c Capability) bool {
	_, ok := l.m[c]
	return ok
}

// All returns every distinct capability recorded, in the order first seen.
func (l *List) All() []Capability {
	if len(l.o) == 0 {
		return nil
	}
	out := make([]Capability, len(l.o))
	copy(out, l.o)
	return out
}

// Delete removes every value recorded for c.
func (l *List) Delete(c Capability) {
	if _, ok := l.m[c]; !ok {
		return
	}
	delete(l.m, c)
	for i, x := range l.o {
		if x == c {
			l.o = append(l.o[:i], l.o[i+1:]...)
			break
		}
	}
}

func (l *List) validate(c Capability, values []string) error {
	if !known[c] {
		return nil
	}
	if noArgument[c] {
		if len(values) > 0 {
			return ErrArguments
		}
		return nil
	}
	if len(values) == 0 {
		return ErrArgumentsRequired
	}
	for _, v := range values {
		if v == "" {
			return ErrEmptyArgument
		}
	}
	if exclusive[c] && (len(values) > 1 || len(l.m[c]) > 0) {
		return ErrMultipleArguments
	}
	return nil
}

// Add appends values to c's entry, validating against c's known arity. A
// capability not in the well-known set accepts anything.
func (l *List) Add(c Capability, values ...string) error {
	if err := l.validate(c, values); err != nil {
		return err
	}
	if _, ok := l.m[c]; !ok {
		l.o = append(l.o, c)
	}
	l.m[c] = append(l.m[c], values...)
	return nil
}

// Set replaces whatever was recorded for c with values.
func (l *List) Set(c Capability, values ...string) error {
	l.Delete(c)
	return l.Add(c, values...)
}

// Decode parses a space-separated capability-list, resetting the list
// first.
func (l *List) Decode(data []byte) error {
	l.m = make(map[Capability][]string)
	l.o = nil

	for _, tok := range bytes.Split(data, []byte(" ")) {
		if len(tok) == 0 {
			continue
		}
		name, values := readCapability(tok)
		if err := l.Add(Capability(name), values...); err != nil {
			return err
		}
	}
	return nil
}

func readCapability(data []byte) (name string, values []string) {
	pair := bytes.SplitN(data, []byte{'='}, 2)
	if len(pair) == 2 {
		values = append(values, string(pair[1]))
	}
	return string(pair[0]), values
}

// String renders the list in the order its capabilities were first added,
// one "name" or "name=value" token per value, joined by spaces.
func (l *List) String() string {
	var parts []string
	for _, c := range l.o {
		vals := l.m[c]
		if len(vals) == 0 {
			parts = append(parts, string(c))
			continue
		}
		for _, v := range vals {
			parts = append(parts, string(c)+"="+v)
		}
	}
	return strings.Join(parts, " ")
}

const userAgent = "git-engine/1.0"

// DefaultAgent returns this implementation's agent string, extended with
// whatever GIT_ENGINE_USER_AGENT_EXTRA names in the environment.
func DefaultAgent() string {
	if extra := os.Getenv("GIT_ENGINE_USER_AGENT_EXTRA"); extra != "" {
		return userAgent + " " + extra
	}
	return userAgent
}
