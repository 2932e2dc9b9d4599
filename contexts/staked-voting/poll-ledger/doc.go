// Package pollledger implements the staked-voting poll ledger.
//
// Participants stake a fixed amount on one option of a time-boxed poll. After
// the poll ends it is resolved once: the option with the most votes wins (ties
// go to the lowest option index), a 2% house fee is locked and credited to the
// treasury, and the remaining pool is split evenly across winning votes.
// Winners claim individually or the creator pays them out in batch.
//
// All state lives behind ports.Ledger. Every mutation runs in a per-poll unit
// of work, claim flags are written before funds move, and domain events are
// staged in an outbox that workers.OutboxRelay publishes.
package pollledger
