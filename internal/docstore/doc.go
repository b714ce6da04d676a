// Package docstore persists JSON documents on disk with advisory file locks.
//
// Each document lives at <root>/<name>.json where name is a slash separated
// key such as "feeds/feed_ab12". Reads hold a shared lock, writes and
// read-modify-write updates hold an exclusive lock from the read through the
// rewrite, so concurrent updaters in one process or across processes never lose
// each other's changes. Locks live on sidecar files under <root>/.locks which are
// never removed, so deleting a document cannot strand a waiting writer.
//
// Malformed content is reported as apperr.ErrStorageCorruption and is never
// overwritten by an update. Lock and I/O failures surface as
// apperr.ErrStorageUnavailable; nothing is retried.
package docstore
