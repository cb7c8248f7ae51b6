package oai

import (
	"fmt"
	"net/url"
	"time"
)

// DefaultPrefix should be supported by most endpoints and is the only
// profile this harvester stores.
const DefaultPrefix = "oai_dc"

const dateLayout = "2006-01-02"

// values is a thin wrapper around url.Values.
type values struct {
	url.Values
}

func newValues() values {
	return values{url.Values{}}
}

// addIfExists adds a key value pair only if value is nonempty.
func (v values) addIfExists(key, value string) {
	if value != "" {
		v.Add(key, value)
	}
}

// Request describes a single ListRecords query. A resumption token, when
// set, is an exclusive argument and suppresses all other parameters
// (OAI-PMH 3.5).
type Request struct {
	Endpoint        string
	Set             string
	Prefix          string
	From            time.Time
	Until           time.Time
	ResumptionToken string
}

// URL returns the full URL for this request.
func (r Request) URL() string {
	vals := newValues()
	vals.Add("verb", "ListRecords")
	if r.ResumptionToken != "" {
		vals.Add("resumptionToken", r.ResumptionToken)
		return fmt.Sprintf("%s?%s", r.Endpoint, vals.Encode())
	}
	if !r.From.IsZero() {
		vals.Add("from", r.From.Format(dateLayout))
	}
	if !r.Until.IsZero() {
		vals.Add("until", r.Until.Format(dateLayout))
	}
	vals.addIfExists("metadataPrefix", r.Prefix)
	vals.addIfExists("set", r.Set)
	return fmt.Sprintf("%s?%s", r.Endpoint, vals.Encode())
}
