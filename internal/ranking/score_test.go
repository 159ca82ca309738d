package ranking

import (
	"testing"

	"github.com/euskotrips/euskotrips/internal/document"
)

func floatPtr(f float64) *float64 { return &f }

func TestBaseScore(t *testing.T) {
	tests := []struct {
		name  string
		score *float64
		want  float64
	}{
		{"nil", nil, 1.0},
		{"zero", floatPtr(0), 1.0},
		{"reported", floatPtr(2.5), 2.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BaseScore(document.Hit{Score: tt.score}); got != tt.want {
				t.Errorf("BaseScore() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestScore(t *testing.T) {
	profile := NewProfile()
	profile.Categories["Museo"] = struct{}{}
	profile.Categories["Playa"] = struct{}{}
	profile.Municipalities["Bilbao"] = struct{}{}
	profile.Territories["Bizkaia"] = struct{}{}

	bonuses := DefaultBonuses()

	tests := []struct {
		name string
		hit  document.Hit
		want float64
	}{
		{
			name: "all bonuses on half score",
			hit: document.Hit{ID: "c1", Score: floatPtr(0.5), Document: document.Document{
				Category:     document.SingleCategory("Museo"),
				Municipality: document.StringPtr("Bilbao"),
				Territory:    document.StringPtr("Bizkaia"),
			}},
			want: 4.0,
		},
		{
			name: "category and municipality without territory",
			hit: document.Hit{ID: "c5", Score: floatPtr(1.0), Document: document.Document{
				Category:     document.SingleCategory("Playa"),
				Municipality: document.StringPtr("Bilbao"),
				Territory:    document.StringPtr("Gipuzkoa"),
			}},
			want: 4.0,
		},
		{
			name: "many category intersects",
			hit: document.Hit{ID: "c2", Document: document.Document{
				Category: document.CategoryOf("Iglesia", "Playa"),
			}},
			want: 3.0,
		},
		{
			name: "territory only",
			hit: document.Hit{ID: "c3", Score: floatPtr(1.2), Document: document.Document{
				Municipality: document.StringPtr("Getxo"),
				Territory:    document.StringPtr("Bizkaia"),
			}},
			want: 1.7,
		},
		{
			name: "no match",
			hit: document.Hit{ID: "c4", Document: document.Document{
				Category: document.SingleCategory("Hotel"),
			}},
			want: 1.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Score(tt.hit, profile, bonuses)
			if diff := got - tt.want; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("Score() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestScore_EmptyProfile(t *testing.T) {
	hit := document.Hit{Score: floatPtr(3), Document: document.Document{
		Category:     document.SingleCategory("Museo"),
		Municipality: document.StringPtr("Bilbao"),
	}}
	if got := Score(hit, NewProfile(), DefaultBonuses()); got != 3 {
		t.Errorf("Score() with empty profile = %v, want 3", got)
	}
}
