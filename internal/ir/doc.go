// Package ir provides the record model shared by every other spy package.
//
// This package contains type definitions only. All other internal packages
// import ir; ir imports nothing internal. This keeps the record model the
// foundational layer with no circular dependencies.
//
// Key design constraints:
//   - Kind is a closed enumeration; adding a record type means adding a Kind,
//     a grammar, and a dispatch case, nothing else
//   - Field values are sealed: Uint, Ident, Flag and Mask only
//   - Records are immutable once the classifier produces them
//   - All JSON tags use snake_case
package ir
