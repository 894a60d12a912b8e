// Package params resolves a task node's parameter expressions against the
// values bound for one run.
//
// A value expression is either a literal or a string containing back-reference
// tokens of the form $(params.NAME), $(params.NAME.KEY) or a context path such
// as $(context.run.id) and, for the finalizer, $(tasks.status). A string that
// is exactly one token takes the referenced value with its type; tokens
// embedded in longer text must reference strings. Substitution is single-pass:
// substituted text is never scanned again.
package params
