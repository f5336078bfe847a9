// Package mailer notifies exchange participants of their giftee.
//
// A Mailer renders one plain-text message per recipient from a Template and
// hands it to a Transport:
//
//   - SMTPTransport: SMTP submission via github.com/emersion/go-smtp with
//     PLAIN or LOGIN auth from github.com/emersion/go-sasl.
//   - DisplayTransport: prints messages instead of sending them (dry runs).
//
// An optional IMAPArchiver appends every delivered message to an IMAP mailbox
// through github.com/emersion/go-imap.
//
// # Delivery policy
//
// The Mode decides where a message goes. ModeLive and ModeRemind use each
// participant's own address. ModeTest redirects every participant who is
// neither admin nor test to the admin's address, so a full rehearsal reaches
// only the organizer and designated test accounts. The exchange engine never
// sees these rules.
//
// # Templates
//
// Templates use text/template. The subject comes from a "subject" block:
//
//	{{define "subject"}}{{.Year}} Gift Exchange{{.Reminder}}{{.Test}}{{end}}
//	Hi {{.GifterName}}, you are buying a gift for {{.GifteeName}}.
//	{{.Signature}}
//
// See Data for every available field.
package mailer
