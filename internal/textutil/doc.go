// Package textutil provides text processing utilities for URL slugs, file
// names, and user-supplied HTML.
//
// The primary use cases are:
//   - Deriving ASCII slugs from feed titles and episode file names
//   - Sanitizing file name segments for safe filesystem use
//   - Stripping unsafe markup from show notes before they are stored
//
// Slugs transliterate German umlauts explicitly (ä becomes ae) and strip
// remaining diacritics through Unicode decomposition.
package textutil
