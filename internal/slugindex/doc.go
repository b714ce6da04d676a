// Package slugindex keeps the global feed slug registry in SQLite.
//
// Feed documents carry their own slug, but uniqueness across feeds is decided
// here: Reserve probes base, base-1, base-2, ... inside a single write
// transaction and the UNIQUE constraints on both columns reject any concurrent
// claim, so two feeds created with the same title at the same moment still end
// up with distinct slugs. The index also answers slug to feed ID lookups without
// scanning every feed document.
package slugindex
