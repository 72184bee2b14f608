// Package features holds the storage-ready representation of extracted
// feature families.
//
// Every family is an *Array (a vector or a row-major matrix) that encodes as
// plain nested JSON lists. A nil *Array always means "not computed"; it is
// never used for an empty result.
//
// Combined vectors are never sourced independently: Combine derives them
// from the other families stored next to them, so a row can always be
// recombined after one of its families changes.
package features
