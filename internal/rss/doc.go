// Package rss renders feeds as RSS 2.0 documents with the iTunes, content and
// Atom namespaces, and checks rendered documents for the elements podcast
// clients require.
//
// Text nodes that contain markup characters are written as CDATA sections;
// everything else is written as escaped character data. Apart from
// lastBuildDate, the output depends only on the feed snapshot and the
// configuration, so repeated renders of an unchanged feed are identical.
package rss
