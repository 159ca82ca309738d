package normalize

import (
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"github.com/euskotrips/euskotrips/internal/document"
)

const sampleCollection = `{
  "type": "FeatureCollection",
  "features": [
    {
      "type": "Feature",
      "properties": {
        "documentName": "Hotel Carlton",
        "documentDescription": "",
        "MUNICIPIO": "Bilbao",
        "territory": "Bizkaia",
        "country": "España",
        "friendlyUrl": "https://example.eus/hotel-carlton",
        "lodgingType": "Hotel,0001",
        "id": 1234
      },
      "geometry": {"type": "Point", "coordinates": [-2.9350, 43.2630]}
    },
    {
      "type": "Feature",
      "properties": {"territorio": "Gipuzkoa", "templatetype": "Cultura,Gastronomía,Naturaleza"},
      "geometry": {"type": "LineString", "coordinates": [[-2.1, 43.3], [-2.2, 43.4]]}
    },
    {"type": "Feature", "properties": "not an object", "geometry": "nonsense"},
    {"type": "Feature"}
  ]
}`

func decodeSample(t *testing.T) []RawFeature {
	t.Helper()
	fc, err := DecodeFeatureCollection(strings.NewReader(sampleCollection))
	if err != nil {
		t.Fatalf("DecodeFeatureCollection() error = %v", err)
	}
	if len(fc.Features) != 4 {
		t.Fatalf("expected 4 features, got %d", len(fc.Features))
	}
	return fc.Features
}

func TestFeature_FullRecord(t *testing.T) {
	features := decodeSample(t)

	doc := Feature(features[0], "hoteles", document.ResourceHotel, 0)

	if doc.ID != "hoteles_1234" {
		t.Errorf("ID = %q, want hoteles_1234", doc.ID)
	}
	if doc.Name != "Hotel Carlton" {
		t.Errorf("Name = %q", doc.Name)
	}
	if doc.Description != nil {
		t.Errorf("empty description should be absent, got %q", *doc.Description)
	}
	if doc.MunicipalityValue() != "Bilbao" {
		t.Errorf("Municipality = %q, want Bilbao (upper-case key)", doc.MunicipalityValue())
	}
	if doc.TerritoryValue() != "Bizkaia" {
		t.Errorf("Territory = %q", doc.TerritoryValue())
	}
	if doc.Country == nil || *doc.Country != "España" {
		t.Errorf("Country = %v", doc.Country)
	}
	// friendlyUrl only matches the candidate "friendlyurl" through case variants
	// of the candidate, not of the property key.
	if doc.DetailURL != nil {
		t.Errorf("DetailURL should be absent for a mixed-case key, got %q", *doc.DetailURL)
	}
	if doc.Category.Kind() != document.CategoryAbsent {
		t.Errorf("Category = %v; lodgingType is mixed case and must not match", doc.Category)
	}
	if doc.ResourceType != document.ResourceHotel || doc.SourceDataset != "hoteles" {
		t.Errorf("resource type/dataset = %q/%q", doc.ResourceType, doc.SourceDataset)
	}
	if doc.Location == nil {
		t.Fatal("expected location")
	}
	if doc.Location.Lat != 43.2630 || doc.Location.Lon != -2.9350 {
		t.Errorf("Location = %+v, want lat 43.263 lon -2.935", *doc.Location)
	}
	if len(doc.Geohash) != GeohashPrecision {
		t.Errorf("Geohash = %q, want %d characters", doc.Geohash, GeohashPrecision)
	}
	if doc.RawProperties["documentName"] != "Hotel Carlton" {
		t.Error("raw properties should be retained verbatim")
	}
}

func TestFeature_CategoryKeyPriority(t *testing.T) {
	f := RawFeature{Properties: Properties{
		"templatetype":    "Destino",
		"type":            "Ruta",
		"restorationtype": "Asador,0003",
	}}

	doc := Feature(f, "restaurantes", document.ResourceRestaurant, 0)

	if got := doc.Category.Labels(); len(got) != 1 || got[0] != "Asador" {
		t.Errorf("Category = %v, want restorationtype to win with code stripped", doc.Category)
	}
}

func TestFeature_Fallbacks(t *testing.T) {
	features := decodeSample(t)

	doc := Feature(features[1], "rutas_y_paseos", document.ResourceRoute, 1)

	if doc.ID != "rutas_y_paseos_1" {
		t.Errorf("ID = %q, want positional fallback rutas_y_paseos_1", doc.ID)
	}
	if doc.Name != "Gipuzkoa" {
		t.Errorf("Name = %q, want territory fallback", doc.Name)
	}
	if doc.Location != nil {
		t.Errorf("LineString coordinates should not produce a location, got %+v", *doc.Location)
	}
	if doc.Geohash != "" {
		t.Errorf("Geohash = %q, want empty without location", doc.Geohash)
	}
	if doc.Category.Kind() != document.CategoryMany || len(doc.Category.Labels()) != 3 {
		t.Errorf("Category = %v, want three labels", doc.Category)
	}
}

func TestFeature_NameFallsBackToMunicipalityFirst(t *testing.T) {
	f := RawFeature{Properties: Properties{"locality": "Getaria", "territorio": "Gipuzkoa"}}
	if doc := Feature(f, "destinos_turisticos", document.ResourceDestination, 0); doc.Name != "Getaria" {
		t.Errorf("Name = %q, want municipality fallback", doc.Name)
	}
}

func TestFeature_MalformedNeverPanics(t *testing.T) {
	features := decodeSample(t)

	for i, f := range features[2:] {
		doc := Feature(f, "destinos_turisticos", document.ResourceDestination, i+2)
		if doc.Name != document.UnnamedPlaceholder {
			t.Errorf("feature %d: Name = %q, want placeholder", i+2, doc.Name)
		}
		if doc.Location != nil {
			t.Errorf("feature %d: expected no location", i+2)
		}
		if doc.ID == "" || doc.ResourceType == "" || doc.SourceDataset == "" {
			t.Errorf("feature %d: required fields missing: %+v", i+2, doc)
		}
		if doc.RawProperties == nil {
			t.Errorf("feature %d: raw properties should be an empty object", i+2)
		}
	}
}

func TestFeature_EmptyFeature(t *testing.T) {
	doc := Feature(RawFeature{}, "hoteles", document.ResourceHotel, 9)

	if doc.ID != "hoteles_9" {
		t.Errorf("ID = %q, want hoteles_9", doc.ID)
	}
	if doc.Name != document.UnnamedPlaceholder {
		t.Errorf("Name = %q, want placeholder", doc.Name)
	}
	if doc.Location != nil {
		t.Error("expected no location")
	}
	if !doc.Category.IsAbsent() {
		t.Errorf("Category = %v, want absent", doc.Category)
	}
}

func TestFeature_StableID(t *testing.T) {
	f := RawFeature{Properties: Properties{"codigo": "R-17", "documentName": "Flysch"}}

	first := Feature(f, "rutas_y_paseos", document.ResourceRoute, 3)
	second := Feature(f, "rutas_y_paseos", document.ResourceRoute, 3)

	if first.ID != second.ID || first.ID != "rutas_y_paseos_R-17" {
		t.Errorf("IDs = %q and %q, want both rutas_y_paseos_R-17", first.ID, second.ID)
	}
}

func TestFeature_LargeNumericIdentifier(t *testing.T) {
	fc, err := DecodeFeatureCollection(strings.NewReader(`{"features": [
		{"properties": {"id": 12345678901234567, "documentName": "Parador"}, "geometry": {"coordinates": [-1.98, 43.32]}},
		{"properties": {"id": 0, "code": 7.0}}
	]}`))
	if err != nil {
		t.Fatalf("DecodeFeatureCollection() error = %v", err)
	}

	first := Feature(fc.Features[0], "hoteles", document.ResourceHotel, 0)
	if first.ID != "hoteles_12345678901234567" {
		t.Errorf("ID = %q, want every digit of the source id", first.ID)
	}
	if first.Location == nil || first.Location.Lon != -1.98 || first.Location.Lat != 43.32 {
		t.Errorf("Location = %+v", first.Location)
	}

	// A zero id is not a value, so the next id-like key wins.
	second := Feature(fc.Features[1], "hoteles", document.ResourceHotel, 1)
	if second.ID != "hoteles_7" {
		t.Errorf("ID = %q, want hoteles_7", second.ID)
	}
}

func TestRawFeature_Coordinates(t *testing.T) {
	tests := []struct {
		name   string
		geom   any
		wantOK bool
	}{
		{name: "point", geom: map[string]any{"coordinates": []any{-2.9, 43.2}}, wantOK: true},
		{name: "decoded numbers", geom: map[string]any{"coordinates": []any{json.Number("-2.9"), json.Number("43.2")}}, wantOK: true},
		{name: "point with altitude", geom: map[string]any{"coordinates": []any{-2.9, 43.2, 12.0}}, wantOK: true},
		{name: "single coordinate", geom: map[string]any{"coordinates": []any{-2.9}}, wantOK: false},
		{name: "string coordinates", geom: map[string]any{"coordinates": []any{"-2.9", "43.2"}}, wantOK: false},
		{name: "null coordinates", geom: map[string]any{"coordinates": nil}, wantOK: false},
		{name: "geometry not an object", geom: []any{1.0, 2.0}, wantOK: false},
		{name: "no geometry", geom: nil, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, ok := RawFeature{Geometry: tt.geom}.Coordinates()
			if ok != tt.wantOK {
				t.Errorf("Coordinates() ok = %v, want %v", ok, tt.wantOK)
			}
		})
	}
}
