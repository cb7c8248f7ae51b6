package oai

import (
	"encoding/xml"
	"strings"
	"time"
)

// ErrCodeNoRecords is the OAI signal for an empty, successful result set. It
// must never surface as a failure.
const ErrCodeNoRecords = "noRecordsMatch"

// ErrCodeParseFailure marks a body that could not be decoded, usually a
// truncated transfer. Always treated as transient.
const ErrCodeParseFailure = "parse-failure"

// resumptionToken is part of OAI flow control (3.5).
type resumptionToken struct {
	Value string `xml:",chardata"`
	// A count of the number of elements of the complete list thus far
	// returned (i.e. cursor starts at 0).
	Cursor string `xml:"cursor,attr"`
	// The cardinality of the complete list; may be only an estimate.
	Size string `xml:"completeListSize,attr"`
}

// header carries the per-record identity and set memberships.
type header struct {
	Identifier string   `xml:"identifier"`
	Datestamp  string   `xml:"datestamp"`
	SetSpecs   []string `xml:"setSpec"`
}

// dublinCore holds the oai_dc metadata children. encoding/xml matches on
// local element names, so the oai_dc/dc namespace prefixes need no special
// handling.
type dublinCore struct {
	Titles       []string `xml:"title"`
	Creators     []string `xml:"creator"`
	Subjects     []string `xml:"subject"`
	Descriptions []string `xml:"description"`
	Dates        []string `xml:"date"`
	Identifiers  []string `xml:"identifier"`
	Types        []string `xml:"type"`
}

// response is the OAI-PMH envelope, reduced to what ListRecords returns.
type response struct {
	Date  string `xml:"responseDate"`
	Error struct {
		Code    string `xml:"code,attr"`
		Message string `xml:",chardata"`
	} `xml:"error"`
	ListRecords struct {
		Records []struct {
			Header   header     `xml:"header"`
			Metadata dublinCore `xml:"metadata>dc"`
		} `xml:"record"`
		Token resumptionToken `xml:"resumptionToken"`
	} `xml:"ListRecords"`
}

// ParseResult is the decoded form of one response body. ErrorCode is set for
// both protocol errors and undecodable payloads; Skipped counts records
// discarded for lacking an identifier.
type ParseResult struct {
	Records         []Record
	ResumptionToken string
	ErrorCode       string
	ErrorMessage    string
	Skipped         int
}

// IsError reports whether the response carried any error code, including the
// empty-result signal.
func (p ParseResult) IsError() bool { return p.ErrorCode != "" }

// EmptyResult reports whether the response was the success-empty signal.
func (p ParseResult) EmptyResult() bool { return p.ErrorCode == ErrCodeNoRecords }

// ParseListRecords decodes a single ListRecords response body. Records
// without an identifier are dropped and counted, never failed; element order
// within each repeated field is preserved.
func ParseListRecords(body []byte) ParseResult {
	var resp response
	if err := xml.Unmarshal(body, &resp); err != nil {
		return ParseResult{ErrorCode: ErrCodeParseFailure, ErrorMessage: err.Error()}
	}
	if resp.Error.Code != "" {
		return ParseResult{
			ErrorCode:    resp.Error.Code,
			ErrorMessage: strings.TrimSpace(resp.Error.Message),
		}
	}
	var out ParseResult
	for _, rec := range resp.ListRecords.Records {
		id := strings.TrimSpace(rec.Header.Identifier)
		if id == "" {
			out.Skipped++
			continue
		}
		out.Records = append(out.Records, Record{
			Identifier:     id,
			Datestamp:      parseDatestamp(rec.Header.Datestamp),
			SetSpecs:       rec.Header.SetSpecs,
			Creators:       rec.Metadata.Creators,
			Dates:          rec.Metadata.Dates,
			AltIdentifiers: rec.Metadata.Identifiers,
			Subjects:       rec.Metadata.Subjects,
			Titles:         rec.Metadata.Titles,
			Description:    collapseSpace(first(rec.Metadata.Descriptions)),
			Type:           strings.TrimSpace(first(rec.Metadata.Types)),
		})
	}
	out.ResumptionToken = strings.TrimSpace(resp.ListRecords.Token.Value)
	return out
}

// parseDatestamp accepts both day and full-timestamp granularity. An
// unparseable stamp yields the zero time; the record itself is still usable.
func parseDatestamp(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC3339, dateLayout} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func first(vals []string) string {
	if len(vals) == 0 {
		return ""
	}
	return vals[0]
}

// collapseSpace folds runs of whitespace, including the newlines arXiv
// wraps abstracts with, into single spaces.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
