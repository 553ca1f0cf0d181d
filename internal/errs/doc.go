// Package errs defines the two error categories of the resolution engine:
// retryable deferrals (a referenced entity is not registered yet) and fatal
// declaration errors carrying document context.
package errs
