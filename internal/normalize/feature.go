package normalize

import (
	"strconv"

	"github.com/euskotrips/euskotrips/internal/document"
	"github.com/euskotrips/euskotrips/internal/geo"
)

// Key candidate lists, probed in order.
var (
	NameKeys         = []string{"documentName", "documentname"}
	DescriptionKeys  = []string{"documentDescription", "documentdescription"}
	MunicipalityKeys = []string{"municipio", "municipality", "locality"}
	TerritoryKeys    = []string{"territory", "territorio"}
	CountryKeys      = []string{"country"}
	DetailURLKeys    = []string{"friendlyurl", "physicalurl", "web"}
	IDKeys           = []string{"id", "codigo", "code", "idRecurso", "idrecurso"}

	// CategoryKeys are checked in this order whatever the resource type,
	// since feeds do not always populate the key matching their type.
	CategoryKeys = []string{
		"lodgingtype",     // hotels
		"restorationtype", // restaurants
		"category",        // some lodging feeds
		"type",            // routes
		"templatetype",    // destinations and routes
	}
)

// GeohashPrecision is the geohash length stored alongside each location.
const GeohashPrecision = 7

// Feature normalizes one raw feature of the named dataset. index is the
// feature's position within its dataset and is only used as the identifier
// when the feature carries none.
//
// Feature never fails: missing properties and malformed geometry degrade to
// absent fields, and the id, name, resource type and source dataset are
// always set.
func Feature(f RawFeature, datasetName, resourceType string, index int) document.Document {
	props := f.Properties

	name := props.PickString(NameKeys...)
	description := props.PickString(DescriptionKeys...)
	municipality := props.PickString(MunicipalityKeys...)
	territory := props.PickString(TerritoryKeys...)
	country := props.PickString(CountryKeys...)
	detailURL := props.PickString(DetailURLKeys...)
	category := Category(props.Pick(CategoryKeys...))

	if name == "" {
		name = firstNonEmpty(municipality, territory, document.UnnamedPlaceholder)
	}

	rawID, ok := ScalarString(props.PickOr(strconv.Itoa(index), IDKeys...))
	if !ok || rawID == "" {
		rawID = strconv.Itoa(index)
	}

	doc := document.Document{
		ID:            datasetName + "_" + rawID,
		Name:          name,
		Description:   document.StringPtr(description),
		Municipality:  document.StringPtr(municipality),
		Territory:     document.StringPtr(territory),
		Country:       document.StringPtr(country),
		ResourceType:  resourceType,
		SourceDataset: datasetName,
		DetailURL:     document.StringPtr(detailURL),
		Category:      category,
		RawProperties: rawProperties(props),
	}

	if lon, lat, ok := f.Coordinates(); ok {
		doc.Location = &document.Location{Lat: lat, Lon: lon}
		doc.Geohash = geo.Encode(lat, lon, GeohashPrecision)
	}

	return doc
}

// rawProperties returns the bag as stored in the index; nil becomes an empty
// object so the field is always present.
func rawProperties(p Properties) map[string]any {
	if p == nil {
		return map[string]any{}
	}
	return p
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
