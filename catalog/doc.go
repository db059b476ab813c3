// Package catalog loads node kind declarations from JSON files.
//
// Catalogs are validated against an embedded meta-schema before decoding,
// so a malformed catalog is rejected wholesale at startup. Kinds that
// compute context pins reference a named provider supplied in code, since
// the computation cannot live in JSON.
package catalog
