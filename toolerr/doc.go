// Package toolerr classifies tool failures into a fixed taxonomy.
//
// Every failure the engine sees ends up as an [*Error] carrying a
// [Category], a [Severity], a retryable flag and a suggested remedial action.
// [Classify] is pure: an error that already carries a category is returned
// unchanged, anything else is matched against ordered message rules.
//
//	ce := toolerr.Classify(errors.New("dial tcp: connection refused"))
//	ce.Category  // toolerr.Network
//	ce.Retryable // true
//
// Tools that know what went wrong can classify their own errors:
//
//	return tool.Outcome{}, toolerr.New(toolerr.Validation, "path is required")
package toolerr
