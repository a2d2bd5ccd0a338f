// Package media builds and runs ffmpeg invocations. Builders return an
// Invocation, an argument list that is handed to the process verbatim and
// never passes through a shell.
package media

import "strings"

// Invocation is one fully specified call to the media engine. It is immutable
// once built: accessors return copies.
type Invocation struct {
	name   string
	args   []string
	inputs []string
	output string
}

// NewInvocation creates an Invocation. name labels the call in logs and
// metrics; args excludes the binary itself.
func NewInvocation(name string, args, inputs []string, output string) Invocation {
	return Invocation{
		name:   name,
		args:   append([]string(nil), args...),
		inputs: append([]string(nil), inputs...),
		output: output,
	}
}

// Name returns the label of the invocation, e.g. "trim".
func (i Invocation) Name() string { return i.name }

// Args returns a copy of the argument list.
func (i Invocation) Args() []string { return append([]string(nil), i.args...) }

// Inputs returns a copy of the declared input paths.
func (i Invocation) Inputs() []string { return append([]string(nil), i.inputs...) }

// Output returns the declared output path.
func (i Invocation) Output() string { return i.output }

// String renders the invocation for logs. It is not meant to be executed.
func (i Invocation) String() string {
	return i.name + ": " + strings.Join(i.args, " ")
}
