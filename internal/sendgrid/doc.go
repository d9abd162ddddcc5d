// Package sendgrid sends transactional mail, such as ticket receipts, through
// the SendGrid v3 API.
package sendgrid
