package oai

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const listRecordsBody = `<?xml version="1.0" encoding="UTF-8"?>
<OAI-PMH xmlns="http://www.openarchives.org/OAI/2.0/">
  <responseDate>2021-05-03T00:00:01Z</responseDate>
  <request verb="ListRecords">http://export.arxiv.org/oai2</request>
  <ListRecords>
    <record>
      <header>
        <identifier>oai:arXiv.org:2105.00001</identifier>
        <datestamp>2021-05-02</datestamp>
        <setSpec>physics</setSpec>
        <setSpec>math</setSpec>
      </header>
      <metadata>
        <oai_dc:dc xmlns:oai_dc="http://www.openarchives.org/OAI/2.0/oai_dc/" xmlns:dc="http://purl.org/dc/elements/1.1/">
          <dc:title>A</dc:title>
          <dc:title>B</dc:title>
          <dc:creator>Doe, J.</dc:creator>
          <dc:creator>Roe, R.</dc:creator>
          <dc:subject>Quantum Physics</dc:subject>
          <dc:description>  An   abstract
            spanning lines.  </dc:description>
          <dc:description>Comment: 12 pages</dc:description>
          <dc:date>2021-04-30</dc:date>
          <dc:identifier>http://arxiv.org/abs/2105.00001</dc:identifier>
          <dc:type>text</dc:type>
        </oai_dc:dc>
      </metadata>
    </record>
    <record>
      <header>
        <identifier>oai:arXiv.org:2105.00002</identifier>
        <datestamp>2021-05-02T09:30:00Z</datestamp>
        <setSpec>physics</setSpec>
      </header>
      <metadata>
        <oai_dc:dc xmlns:oai_dc="http://www.openarchives.org/OAI/2.0/oai_dc/" xmlns:dc="http://purl.org/dc/elements/1.1/">
          <dc:title>C</dc:title>
        </oai_dc:dc>
      </metadata>
    </record>
    <resumptionToken cursor="0" completeListSize="4203">6945858|1001</resumptionToken>
  </ListRecords>
</OAI-PMH>`

func TestParseListRecords(t *testing.T) {
	result := ParseListRecords([]byte(listRecordsBody))
	require.False(t, result.IsError(), "unexpected error code %q", result.ErrorCode)
	require.Len(t, result.Records, 2)
	assert.Equal(t, "6945858|1001", result.ResumptionToken)
	assert.Equal(t, 0, result.Skipped)

	rec := result.Records[0]
	assert.Equal(t, "oai:arXiv.org:2105.00001", rec.Identifier)
	assert.Equal(t, time.Date(2021, 5, 2, 0, 0, 0, 0, time.UTC), rec.Datestamp)
	assert.Equal(t, []string{"physics", "math"}, rec.SetSpecs)
	// Sibling order is meaningful: the primary title comes first.
	assert.Equal(t, []string{"A", "B"}, rec.Titles)
	assert.Equal(t, []string{"Doe, J.", "Roe, R."}, rec.Creators)
	assert.Equal(t, []string{"Quantum Physics"}, rec.Subjects)
	assert.Equal(t, []string{"2021-04-30"}, rec.Dates)
	assert.Equal(t, []string{"http://arxiv.org/abs/2105.00001"}, rec.AltIdentifiers)
	assert.Equal(t, "An abstract spanning lines.", rec.Description)
	assert.Equal(t, "text", rec.Type)

	rec = result.Records[1]
	assert.Equal(t, "oai:arXiv.org:2105.00002", rec.Identifier)
	assert.Equal(t, time.Date(2021, 5, 2, 9, 30, 0, 0, time.UTC), rec.Datestamp)
	assert.Empty(t, rec.Description)
	assert.Empty(t, rec.Type)
}

func TestParseListRecordsNoRecordsMatch(t *testing.T) {
	body := `<?xml version="1.0" encoding="UTF-8"?>
<OAI-PMH xmlns="http://www.openarchives.org/OAI/2.0/">
  <responseDate>2021-05-03T00:00:01Z</responseDate>
  <error code="noRecordsMatch">no records match the given criteria</error>
</OAI-PMH>`
	result := ParseListRecords([]byte(body))
	assert.True(t, result.IsError())
	assert.True(t, result.EmptyResult())
	assert.Empty(t, result.Records)
}

func TestParseListRecordsProtocolError(t *testing.T) {
	body := `<?xml version="1.0" encoding="UTF-8"?>
<OAI-PMH xmlns="http://www.openarchives.org/OAI/2.0/">
  <error code="badArgument">until is before from</error>
</OAI-PMH>`
	result := ParseListRecords([]byte(body))
	assert.Equal(t, "badArgument", result.ErrorCode)
	assert.Equal(t, "until is before from", result.ErrorMessage)
	assert.False(t, result.EmptyResult())
}

func TestParseListRecordsGarbage(t *testing.T) {
	for _, body := range []string{"", "not xml at all <", "<OAI-PMH><ListRecords>"} {
		result := ParseListRecords([]byte(body))
		assert.Equal(t, ErrCodeParseFailure, result.ErrorCode, "body %q", body)
	}
}

func TestParseListRecordsSkipsEmptyIdentifier(t *testing.T) {
	body := `<?xml version="1.0" encoding="UTF-8"?>
<OAI-PMH xmlns="http://www.openarchives.org/OAI/2.0/">
  <ListRecords>
    <record>
      <header>
        <identifier>  </identifier>
        <datestamp>2021-05-02</datestamp>
      </header>
    </record>
    <record>
      <header>
        <identifier>oai:arXiv.org:2105.00003</identifier>
        <datestamp>2021-05-02</datestamp>
      </header>
    </record>
  </ListRecords>
</OAI-PMH>`
	result := ParseListRecords([]byte(body))
	require.Len(t, result.Records, 1)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, "oai:arXiv.org:2105.00003", result.Records[0].Identifier)
}

func TestParseDatestamp(t *testing.T) {
	assert.Equal(t, time.Date(2010, 3, 1, 0, 0, 0, 0, time.UTC), parseDatestamp("2010-03-01"))
	assert.Equal(t, time.Date(2010, 3, 1, 12, 0, 0, 0, time.UTC), parseDatestamp("2010-03-01T12:00:00Z"))
	assert.True(t, parseDatestamp("yesterday").IsZero())
}
