package index

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/euskotrips/euskotrips/internal/document"
)

// ErrPartialBulk is returned by BulkUpsert when the request succeeded but
// some documents were rejected. The accompanying BulkReport lists them.
var ErrPartialBulk = errors.New("bulk upsert partially failed")

// BulkItemError describes one rejected document.
type BulkItemError struct {
	ID     string
	Status int
	Type   string
	Reason string
}

// BulkReport summarizes a bulk upsert.
type BulkReport struct {
	Attempted int
	Indexed   int
	Failed    []BulkItemError
}

// HasErrors reports whether any document was rejected.
func (r BulkReport) HasErrors() bool {
	return len(r.Failed) > 0
}

type bulkAction struct {
	Index bulkMeta `json:"index"`
}

type bulkMeta struct {
	Index string `json:"_index,omitempty"`
	ID    string `json:"_id"`
}

// encodeBulk renders documents as NDJSON index actions keyed by document id.
func encodeBulk(indexName string, docs []document.Document) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for i := range docs {
		if err := enc.Encode(bulkAction{Index: bulkMeta{Index: indexName, ID: docs[i].ID}}); err != nil {
			return nil, fmt.Errorf("encode bulk action for %q: %w", docs[i].ID, err)
		}
		if err := enc.Encode(&docs[i]); err != nil {
			return nil, fmt.Errorf("encode document %q: %w", docs[i].ID, err)
		}
	}
	return buf.Bytes(), nil
}

type bulkResponse struct {
	Errors bool                        `json:"errors"`
	Items  []map[string]bulkItemResult `json:"items"`
}

type bulkItemResult struct {
	ID     string `json:"_id"`
	Status int    `json:"status"`
	Error  *struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error"`
}

// reportFromResponse builds a BulkReport from a decoded _bulk response.
func reportFromResponse(attempted int, resp bulkResponse) BulkReport {
	report := BulkReport{Attempted: attempted}
	for _, item := range resp.Items {
		for _, result := range item {
			if result.Error == nil && result.Status < 300 {
				report.Indexed++
				continue
			}
			failure := BulkItemError{ID: result.ID, Status: result.Status}
			if result.Error != nil {
				failure.Type = result.Error.Type
				failure.Reason = result.Error.Reason
			}
			report.Failed = append(report.Failed, failure)
		}
	}
	return report
}
