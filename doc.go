// Package giftex is a lightweight index for the subpackages in this module.
//
// This root package is documentation-only. Import specific subpackages to use
// concrete helpers.
//
// Available subpackages:
//   - github.com/spachava753/giftex/exchange
//     Pair drawing: random derangement under blacklist constraints.
//   - github.com/spachava753/giftex/mailer
//     Message rendering, delivery policy, SMTP transport and IMAP archive.
//   - github.com/spachava753/giftex/state
//     Write-once event storage on files, sqlite or badger.
//   - github.com/spachava753/giftex/config
//     Configuration file and environment settings.
//   - github.com/spachava753/giftex/runlog
//     Per-run log capture saved next to the event.
//
// The giftex command in cmd/giftex ties them together:
//   - Run: go doc github.com/spachava753/giftex/exchange
//   - Then drill in with:
//     go doc github.com/spachava753/giftex/mailer
//     go doc github.com/spachava753/giftex/state
package giftex
