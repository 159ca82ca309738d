// Package document defines the canonical tourism-resource document stored in
// the search index and returned by the recommendation API.
package document

// Resource types assigned to datasets.
const (
	ResourceDestination = "destino"
	ResourceRoute       = "ruta_paseo"
	ResourceHotel       = "alojamiento_hotel"
	ResourceRestaurant  = "restauracion"
)

// UnnamedPlaceholder is the name given to a document when neither a name, a
// municipality nor a territory could be resolved.
const UnnamedPlaceholder = "Sin nombre"

// Location is a WGS84 point in the shape Elasticsearch expects for geo_point.
type Location struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Document is the canonical, normalized representation of one tourism
// resource. Optional fields are pointers so that "absent" survives a round
// trip through the index.
type Document struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Description   *string        `json:"description"`
	Municipality  *string        `json:"municipality"`
	Territory     *string        `json:"territory"`
	Country       *string        `json:"country"`
	ResourceType  string         `json:"resource_type"`
	SourceDataset string         `json:"source_dataset"`
	DetailURL     *string        `json:"detail_url"`
	Category      Category       `json:"category"`
	Location      *Location      `json:"location,omitempty"`
	Geohash       string         `json:"geohash,omitempty"`
	RawProperties map[string]any `json:"raw_properties"`
}

// MunicipalityValue returns the municipality or "" when absent.
func (d *Document) MunicipalityValue() string {
	return deref(d.Municipality)
}

// TerritoryValue returns the territory or "" when absent.
func (d *Document) TerritoryValue() string {
	return deref(d.Territory)
}

// Hit is a document returned by a search together with its relevance score.
// Score is nil when the index did not report one.
type Hit struct {
	ID       string
	Score    *float64
	Document Document
}

// GetResult is one entry of a multi-get response. Entries keep the order of
// the requested ids; Found is false for ids missing from the index.
type GetResult struct {
	ID       string
	Found    bool
	Document Document
}

// StringPtr returns a pointer to s, or nil when s is empty.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
