// Package platformapi uploads finished renders to social platform endpoints.
//
// Each platform gets its own circuit breaker so a failing platform stops
// receiving uploads for a cooldown period without affecting the others. Client
// errors (4xx) are reported as validation failures and do not trip the breaker.
package platformapi
