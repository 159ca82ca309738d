package document

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestCategoryOf(t *testing.T) {
	tests := []struct {
		name     string
		labels   []string
		wantKind CategoryKind
		want     []string
	}{
		{name: "no labels", labels: nil, wantKind: CategoryAbsent, want: nil},
		{name: "only empty labels", labels: []string{"", ""}, wantKind: CategoryAbsent, want: nil},
		{name: "one label", labels: []string{"Naturaleza"}, wantKind: CategorySingle, want: []string{"Naturaleza"}},
		{name: "duplicates collapse to single", labels: []string{"Playa", "Playa"}, wantKind: CategorySingle, want: []string{"Playa"}},
		{
			name:     "many keeps order",
			labels:   []string{"Cultura", "Gastronomía", "Cultura", "Naturaleza"},
			wantKind: CategoryMany,
			want:     []string{"Cultura", "Gastronomía", "Naturaleza"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := CategoryOf(tt.labels...)
			if c.Kind() != tt.wantKind {
				t.Errorf("Kind() = %v, want %v", c.Kind(), tt.wantKind)
			}
			if !reflect.DeepEqual(c.Labels(), tt.want) {
				t.Errorf("Labels() = %v, want %v", c.Labels(), tt.want)
			}
		})
	}
}

func TestCategory_Intersects(t *testing.T) {
	set := map[string]struct{}{"Naturaleza": {}, "Cultura": {}}

	if !SingleCategory("Cultura").Intersects(set) {
		t.Error("single matching label should intersect")
	}
	if SingleCategory("Playa").Intersects(set) {
		t.Error("single non-matching label should not intersect")
	}
	if !CategoryOf("Playa", "Naturaleza").Intersects(set) {
		t.Error("many with one matching label should intersect")
	}
	if NoCategory().Intersects(set) {
		t.Error("absent category should never intersect")
	}
}

func TestCategory_JSON(t *testing.T) {
	tests := []struct {
		name string
		cat  Category
		json string
	}{
		{name: "absent", cat: NoCategory(), json: `null`},
		{name: "single", cat: SingleCategory("Naturaleza"), json: `"Naturaleza"`},
		{name: "many", cat: CategoryOf("Cultura", "Naturaleza"), json: `["Cultura","Naturaleza"]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.cat)
			if err != nil {
				t.Fatalf("Marshal() error = %v", err)
			}
			if string(data) != tt.json {
				t.Errorf("Marshal() = %s, want %s", data, tt.json)
			}

			var got Category
			if err := json.Unmarshal(data, &got); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.cat) {
				t.Errorf("Unmarshal() = %#v, want %#v", got, tt.cat)
			}
		})
	}
}

func TestCategory_UnmarshalSingleElementArray(t *testing.T) {
	var c Category
	if err := json.Unmarshal([]byte(`["A"]`), &c); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if c.Kind() != CategorySingle || c.Labels()[0] != "A" {
		t.Errorf("expected Single(A), got %v", c)
	}
}

func TestCategory_UnmarshalRejectsNumbers(t *testing.T) {
	var c Category
	if err := json.Unmarshal([]byte(`42`), &c); err != ErrInvalidCategory {
		t.Errorf("expected ErrInvalidCategory, got %v", err)
	}
	if err := json.Unmarshal([]byte(`["A", 1]`), &c); err != ErrInvalidCategory {
		t.Errorf("expected ErrInvalidCategory for mixed array, got %v", err)
	}
}

func TestDocument_JSONOmitsLocationOnly(t *testing.T) {
	doc := Document{
		ID:            "hoteles_1",
		Name:          "Hotel",
		ResourceType:  ResourceHotel,
		SourceDataset: "hoteles",
	}
	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if _, ok := m["location"]; ok {
		t.Error("location should be omitted when absent")
	}
	if v, ok := m["description"]; !ok || v != nil {
		t.Errorf("description should be present as null, got %v (present=%v)", v, ok)
	}
	if v, ok := m["category"]; !ok || v != nil {
		t.Errorf("category should be present as null, got %v (present=%v)", v, ok)
	}
}
