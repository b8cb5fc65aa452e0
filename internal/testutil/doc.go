// Package testutil contains helper builders and utilities used across tests
// to reduce boilerplate when constructing snapshots, plans and stage bodies.
// These helpers are intentionally minimal and avoid adding third-party
// dependencies. They are not intended for production usage.
//
// Importing this package pulls in the pipeline package, so tests that
// compile into packages the pipeline itself depends on must build their
// fixtures by hand instead.
package testutil
