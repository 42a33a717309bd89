package builtin

// External names the builtins spec.md §1 treats as out-of-scope
// collaborators: their argument parsing and predicate/codec/parser
// internals live in a host binary, not here. This registry never
// dispatches to them directly; a host wires a Handler for each of these
// names into a Registry before handing it to the interpreter/VM.
var External = []string{
	"gzip", "bzip2", "xz", // compression codecs
	"cron",    // cron daemon
	"find",    // find's predicate evaluator
	"netstat", // netstat parsers
}
