// Package notifications announces finished export jobs.
//
// Backends are ntfy (HTTP push), email through the mailer package, and a
// RabbitMQ topic exchange for machine consumers. NewService fans out to every
// configured backend and degrades to a no-op when none are configured. The
// workflow depends only on the two-method Service interface.
package notifications
