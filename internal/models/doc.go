// Package models defines the core domain models for the governance and
// treasury core.
//
// # Models
//
//   - GroupMember: a member's ownership stake and role within a group,
//     supplied by the external membership registry (read-only here)
//   - Proposal: a group decision put to an ownership-weighted vote
//   - Vote: a single member's choice with their share snapshotted as weight
//   - GroupFund: the shared fund aggregate for one group
//   - FundTransaction: one append-only ledger row against a group fund
//
// # Design Principles
//
//  1. **Snapshot weights**: a Vote records the voter's ownership share at
//     cast time and is never re-derived from current membership
//  2. **Append-only ledger**: fund balances are validated against the
//     transaction log; rows are never rewritten except pending approvals
//     moving to completed or rejected
//  3. **Terminal states stay terminal**: a resolved proposal and a settled
//     transaction never transition again
//  4. **Avoid circular references**: relationships use ID strings, not
//     pointers
package models
