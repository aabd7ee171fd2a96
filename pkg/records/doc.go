// Package records stores the application records created by protected
// routes. Every record is stamped with the subject of the verified identity
// that created it, and listings are always filtered by that owner.
package records
