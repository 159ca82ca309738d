package normalize

import (
	"bytes"
	"io"

	"github.com/goccy/go-json"
)

// FeatureCollection is a GeoJSON FeatureCollection as published by the open
// data portals.
type FeatureCollection struct {
	Type     string       `json:"type"`
	Features []RawFeature `json:"features"`
}

// RawFeature is one GeoJSON feature. Decoding never fails on odd shapes:
// a non-object properties member becomes an empty bag and the geometry is
// kept untyped and inspected shape by shape.
type RawFeature struct {
	Properties Properties
	Geometry   any
}

// UnmarshalJSON decodes a feature without rejecting malformed members.
// Numbers are kept as json.Number so large identifiers survive intact.
func (f *RawFeature) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	*f = RawFeature{}

	obj, ok := raw.(map[string]any)
	if !ok {
		return nil
	}
	if props, ok := obj["properties"].(map[string]any); ok {
		f.Properties = props
	}
	f.Geometry = obj["geometry"]
	return nil
}

// DecodeFeatureCollection reads a FeatureCollection from r. A document whose
// features member is missing or null decodes to an empty collection.
func DecodeFeatureCollection(r io.Reader) (*FeatureCollection, error) {
	var fc FeatureCollection
	if err := json.NewDecoder(r).Decode(&fc); err != nil {
		return nil, err
	}
	return &fc, nil
}

// Coordinates extracts [longitude, latitude] from the feature geometry.
// ok is false unless the geometry is an object whose coordinates member is
// a list starting with two numbers.
func (f RawFeature) Coordinates() (lon, lat float64, ok bool) {
	geom, isObj := f.Geometry.(map[string]any)
	if !isObj {
		return 0, 0, false
	}
	coords, isList := geom["coordinates"].([]any)
	if !isList || len(coords) < 2 {
		return 0, 0, false
	}
	lon, lonOK := toFloat(coords[0])
	lat, latOK := toFloat(coords[1])
	if !lonOK || !latOK {
		return 0, 0, false
	}
	return lon, lat, true
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
