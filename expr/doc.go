// Package expr parses and evaluates the small data-selection language used in
// node configuration: item selectors, predicates, and value mappings.
//
// Two forms are accepted. A bare dotted path ("input.items[2].name") selects
// data out of the evaluation environment directly. Anything else is treated
// as a govaluate expression; dotted references inside an expression must be
// bracket-escaped ("[input.user.age] > 18") and are resolved against the same
// environment.
//
// Evaluation is always bounded by a timeout so a pathological expression can
// never block a run. Errors carry the literal expression text and, where the
// caller provides one, the dotted metadata field path, so a configuration UI
// can highlight exactly which field failed.
package expr
