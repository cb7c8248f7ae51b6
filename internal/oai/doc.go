// Package oai implements the ListRecords slice of the Open Archives
// Initiative Protocol for Metadata Harvesting (OAI-PMH) against the arXiv
// endpoint: request building, Dublin Core response parsing, resumption-token
// pagination and the request pacing the endpoint mandates.
package oai
