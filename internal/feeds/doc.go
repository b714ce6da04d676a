// Package feeds implements the feed aggregate: feeds, their collaborators and
// their episodes, persisted as one JSON document per feed.
//
// Every mutation runs inside a single docstore update so invariants are checked
// against the current document under its exclusive lock. Audio file side
// effects (directory creation, upload moves, removals) happen outside that
// lock and are ordered so a failure never leaves a record pointing at a
// missing file:
//
//   - uploads are validated and moved into place before the record is added
//   - files are removed before the record that references them
//   - replaced audio is removed only after the record points at the new file
//
// Slugs are reserved through the SQLite slug index, which makes the
// uniqueness check and the claim one transaction.
package feeds
