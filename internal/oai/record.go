package oai

import "time"

// Record is one harvested bibliographic entry, assembled from an OAI record
// header and its Dublin Core metadata. Multi-valued fields keep the order in
// which the elements appeared in the response; the first title is the
// primary one.
type Record struct {
	// Identifier is the globally unique OAI identifier, the storage key.
	Identifier string
	// Datestamp is the last-modified date reported by the source. It moves
	// forward when the source revises the record.
	Datestamp time.Time
	// SetSpecs lists the topical set memberships, order as received.
	SetSpecs []string

	Creators       []string
	Dates          []string
	AltIdentifiers []string
	Subjects       []string
	Titles         []string
	Description    string
	Type           string
}
