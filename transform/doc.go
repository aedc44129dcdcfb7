// Package transform provides the production Transformer: an XSLT engine
// backed by libxslt plus the extraction of report rows from the rendered
// document.
//
// The stylesheet source is read once at startup. Because a libxslt
// transform context is not safe for concurrent use, the engine keeps one
// compiled clone per worker in an internal pool; the source itself is
// shared and immutable.
package transform
