// Package condition implements the restricted expression grammar that gates
// stage execution on the results of earlier stages. Expressions are plain
// strings evaluated against a core.Snapshot (stage name to StageResult), so
// pipeline configuration can express dependencies without executing code.
//
// Exactly three forms are recognized, one comparison per expression:
//
//	lint.status == 'success'            status equality (string literal)
//	review.output.score >= 80           dotted path against a literal
//	scan.output.findings.length == 0    length of a sequence at a path
//
// Comparison operators for output paths are ==, >, <, >= and <=. Ordering
// operators require a numeric literal; == also accepts a quoted string.
// Numeric values are compared after coercion to float64 across int, uint
// and float kinds. The length form accepts slices, arrays, maps and
// strings.
//
// Evaluation never fails: an unparsable expression, a stage missing from
// the snapshot, an unresolved path, a non-sequence length target or a type
// mismatch all evaluate to false, so pipelines fail closed instead of
// aborting. Use Parse directly when an error (with position information)
// is wanted, for example when validating configuration at load time.
package condition
