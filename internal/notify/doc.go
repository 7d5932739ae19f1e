// Package notify reports the outcome of a translation run. The email
// notifier sends a summary with the rendered book attached; the log
// notifier writes the same summary as a structured log event.
package notify
