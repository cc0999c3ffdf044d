// Package notifier delivers bot messages to the configured chat.
//
// A Notifier sends synchronously through a transport.Sender (e.g. the
// Telegram adapter) and reports any transport failure as an
// apperr.KindDelivery error. It does not deduplicate, retry or rate-limit;
// deciding what to send is the poll loop's job.
package notifier
