package ranking

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/euskotrips/euskotrips/internal/document"
)

// fakeIndex serves hits in insertion order.
type fakeIndex struct {
	hits       []document.Hit
	searchErr  error
	getErr     error
	searchSize []int
}

func (f *fakeIndex) SearchAll(_ context.Context, size int) ([]document.Hit, error) {
	f.searchSize = append(f.searchSize, size)
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	if size > len(f.hits) {
		size = len(f.hits)
	}
	return append([]document.Hit(nil), f.hits[:size]...), nil
}

func (f *fakeIndex) MultiGet(_ context.Context, ids []string) ([]document.GetResult, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	out := make([]document.GetResult, 0, len(ids))
	for _, id := range ids {
		res := document.GetResult{ID: id}
		for _, h := range f.hits {
			if h.ID == id {
				res.Found = true
				res.Document = h.Document
				break
			}
		}
		out = append(out, res)
	}
	return out, nil
}

type fakeFavorites struct {
	byUser map[int64][]string
	err    error
}

func (f *fakeFavorites) FavoriteDestinationIDs(_ context.Context, userID int64) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.byUser[userID], nil
}

func hit(id, category string, score float64) document.Hit {
	return document.Hit{
		ID:    id,
		Score: &score,
		Document: document.Document{
			ID:       id,
			Name:     id,
			Category: document.SingleCategory(category),
		},
	}
}

func userID(id int64) *int64 { return &id }

func newTestRanker(t *testing.T, idx CandidateIndex, favs FavoriteStore) *Ranker {
	t.Helper()
	r, err := NewRanker(idx, favs, DefaultConfig(), nil, nil)
	if err != nil {
		t.Fatalf("NewRanker() error = %v", err)
	}
	return r
}

func resultIDs(res *Result) []string {
	ids := make([]string, 0, len(res.Results))
	for _, c := range res.Results {
		ids = append(ids, c.ID)
	}
	return ids
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestRank_Generic(t *testing.T) {
	idx := &fakeIndex{hits: []document.Hit{
		hit("a", "Museo", 1),
		hit("b", "Playa", 0),
		{ID: "c", Document: document.Document{ID: "c", Name: "c"}},
	}}
	r := newTestRanker(t, idx, &fakeFavorites{})

	res, err := r.Rank(context.Background(), Request{Size: 2})
	if err != nil {
		t.Fatalf("Rank() error = %v", err)
	}
	if res.Mode != ModeGeneric {
		t.Errorf("Mode = %q, want %q", res.Mode, ModeGeneric)
	}
	if res.UserID != nil {
		t.Errorf("UserID = %v, want nil", *res.UserID)
	}
	if got := resultIDs(res); !equalIDs(got, []string{"a", "b"}) {
		t.Errorf("ids = %v, want [a b]", got)
	}
	if res.Results[1].Score != 1.0 {
		t.Errorf("zero relevance should default to 1.0, got %v", res.Results[1].Score)
	}
}

func TestRank_SizeDefaultsAndClamps(t *testing.T) {
	tests := []struct {
		name string
		size int
		want int
	}{
		{"zero uses default", 0, DefaultSize},
		{"negative clamps to min", -3, MinSize},
		{"oversized clamps to max", 500, MaxSize},
		{"in range", 7, 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx := &fakeIndex{}
			r := newTestRanker(t, idx, &fakeFavorites{})
			if _, err := r.Rank(context.Background(), Request{Size: tt.size}); err != nil {
				t.Fatalf("Rank() error = %v", err)
			}
			if len(idx.searchSize) != 1 || idx.searchSize[0] != tt.want {
				t.Errorf("search sizes = %v, want [%d]", idx.searchSize, tt.want)
			}
		})
	}
}

func TestRank_NoFavorites(t *testing.T) {
	idx := &fakeIndex{hits: []document.Hit{hit("a", "Museo", 1)}}
	r := newTestRanker(t, idx, &fakeFavorites{byUser: map[int64][]string{}})

	res, err := r.Rank(context.Background(), Request{UserID: userID(7), Size: 5})
	if err != nil {
		t.Fatalf("Rank() error = %v", err)
	}
	if res.Mode != ModeNoFavorites {
		t.Errorf("Mode = %q, want %q", res.Mode, ModeNoFavorites)
	}
	if res.UserID == nil || *res.UserID != 7 {
		t.Errorf("UserID = %v, want 7", res.UserID)
	}
}

func TestRank_NoFavoritesDocs(t *testing.T) {
	idx := &fakeIndex{hits: []document.Hit{hit("a", "Museo", 1)}}
	favs := &fakeFavorites{byUser: map[int64][]string{7: {"gone1", "gone2"}}}
	r := newTestRanker(t, idx, favs)

	res, err := r.Rank(context.Background(), Request{UserID: userID(7), Size: 5})
	if err != nil {
		t.Fatalf("Rank() error = %v", err)
	}
	if res.Mode != ModeNoFavoritesDocs {
		t.Errorf("Mode = %q, want %q", res.Mode, ModeNoFavoritesDocs)
	}
	if got := resultIDs(res); !equalIDs(got, []string{"a"}) {
		t.Errorf("ids = %v, want [a]", got)
	}
}

func TestRank_PersonalizedPrefersSharedCategory(t *testing.T) {
	idx := &fakeIndex{hits: []document.Hit{
		hit("fav1", "Naturaleza", 1),
		hit("c2", "Playa", 1),
		hit("c1", "Naturaleza", 1),
	}}
	favs := &fakeFavorites{byUser: map[int64][]string{1: {"fav1"}}}
	r := newTestRanker(t, idx, favs)

	res, err := r.Rank(context.Background(), Request{UserID: userID(1), Size: 10})
	if err != nil {
		t.Fatalf("Rank() error = %v", err)
	}
	if res.Mode != ModePersonalized {
		t.Fatalf("Mode = %q, want %q", res.Mode, ModePersonalized)
	}
	if got := resultIDs(res); !equalIDs(got, []string{"c1", "c2"}) {
		t.Errorf("ids = %v, want [c1 c2]", got)
	}
	if res.Results[0].Score != 3.0 || res.Results[1].Score != 1.0 {
		t.Errorf("scores = %v, %v; want 3, 1", res.Results[0].Score, res.Results[1].Score)
	}
	if len(idx.searchSize) != 1 || idx.searchSize[0] != DefaultCandidatePoolSize {
		t.Errorf("pool search sizes = %v, want [%d]", idx.searchSize, DefaultCandidatePoolSize)
	}
}

func TestRank_PersonalizedNeverReturnsFavorites(t *testing.T) {
	idx := &fakeIndex{hits: []document.Hit{
		hit("f1", "Museo", 5),
		hit("x", "Museo", 1),
		hit("f2", "Playa", 5),
		hit("y", "Playa", 1),
		hit("z", "Hotel", 1),
	}}
	favs := &fakeFavorites{byUser: map[int64][]string{2: {"f1", "f2"}}}
	r := newTestRanker(t, idx, favs)

	res, err := r.Rank(context.Background(), Request{UserID: userID(2), Size: 2})
	if err != nil {
		t.Fatalf("Rank() error = %v", err)
	}
	for _, c := range res.Results {
		if c.ID == "f1" || c.ID == "f2" {
			t.Errorf("favorite %q returned in personalized results", c.ID)
		}
	}
	if got := resultIDs(res); !equalIDs(got, []string{"x", "y"}) {
		t.Errorf("ids = %v, want [x y]", got)
	}
}

func TestRank_ExclusionFallback(t *testing.T) {
	idx := &fakeIndex{hits: []document.Hit{
		hit("f1", "Museo", 1),
		hit("f2", "Playa", 2),
	}}
	favs := &fakeFavorites{byUser: map[int64][]string{3: {"f1", "f2"}}}

	metrics := NewMetrics()
	r, err := NewRanker(idx, favs, DefaultConfig(), metrics, nil)
	if err != nil {
		t.Fatal(err)
	}

	res, err := r.Rank(context.Background(), Request{UserID: userID(3), Size: 10})
	if err != nil {
		t.Fatalf("Rank() error = %v", err)
	}
	if res.Mode != ModePersonalized {
		t.Errorf("Mode = %q, want %q", res.Mode, ModePersonalized)
	}
	// Both favorites score 1 base + 2 category; f2 has the higher base.
	if got := resultIDs(res); !equalIDs(got, []string{"f2", "f1"}) {
		t.Errorf("ids = %v, want [f2 f1]", got)
	}
	if got := counterValue(t, metrics.poolFallbacks); got != 1 {
		t.Errorf("pool fallbacks = %v, want 1", got)
	}
	if got := counterValue(t, metrics.excluded); got != 2 {
		t.Errorf("excluded = %v, want 2", got)
	}
}

func TestRank_EmptyProfileKeepsRelevanceOrder(t *testing.T) {
	bare := document.Hit{ID: "fav", Document: document.Document{ID: "fav", Name: "fav"}}
	idx := &fakeIndex{hits: []document.Hit{
		bare,
		hit("a", "Museo", 1),
		hit("b", "Playa", 3),
	}}
	favs := &fakeFavorites{byUser: map[int64][]string{9: {"fav"}}}

	metrics := NewMetrics()
	r, err := NewRanker(idx, favs, DefaultConfig(), metrics, nil)
	if err != nil {
		t.Fatal(err)
	}

	res, err := r.Rank(context.Background(), Request{UserID: userID(9), Size: 10})
	if err != nil {
		t.Fatalf("Rank() error = %v", err)
	}
	if res.Mode != ModePersonalized {
		t.Errorf("Mode = %q, want %q", res.Mode, ModePersonalized)
	}
	if got := resultIDs(res); !equalIDs(got, []string{"b", "a"}) {
		t.Errorf("ids = %v, want [b a]", got)
	}
	if got := counterValue(t, metrics.emptyProfiles); got != 1 {
		t.Errorf("empty profiles = %v, want 1", got)
	}
	if got := counterValue(t, metrics.poolFallbacks); got != 0 {
		t.Errorf("pool fallbacks = %v, want 0", got)
	}
}

func TestRank_StableTies(t *testing.T) {
	idx := &fakeIndex{hits: []document.Hit{
		hit("fav", "Museo", 1),
		hit("t1", "Playa", 1),
		hit("t2", "Playa", 1),
		hit("t3", "Playa", 1),
	}}
	favs := &fakeFavorites{byUser: map[int64][]string{4: {"fav"}}}
	r := newTestRanker(t, idx, favs)

	res, err := r.Rank(context.Background(), Request{UserID: userID(4), Size: 10})
	if err != nil {
		t.Fatal(err)
	}
	if got := resultIDs(res); !equalIDs(got, []string{"t1", "t2", "t3"}) {
		t.Errorf("tied candidates reordered: %v", got)
	}
}

func TestRank_UpstreamErrors(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name    string
		idx     *fakeIndex
		favs    *fakeFavorites
		user    *int64
		wantErr error
	}{
		{
			name:    "generic search failure",
			idx:     &fakeIndex{searchErr: boom},
			favs:    &fakeFavorites{},
			wantErr: ErrIndexLookup,
		},
		{
			name:    "favorites failure",
			idx:     &fakeIndex{},
			favs:    &fakeFavorites{err: boom},
			user:    userID(1),
			wantErr: ErrFavoritesLookup,
		},
		{
			name:    "multi-get failure",
			idx:     &fakeIndex{getErr: boom},
			favs:    &fakeFavorites{byUser: map[int64][]string{1: {"a"}}},
			user:    userID(1),
			wantErr: ErrIndexLookup,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			metrics := NewMetrics()
			r, err := NewRanker(tt.idx, tt.favs, DefaultConfig(), metrics, nil)
			if err != nil {
				t.Fatal(err)
			}
			_, err = r.Rank(context.Background(), Request{UserID: tt.user})
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Rank() error = %v, want %v", err, tt.wantErr)
			}
			if !errors.Is(err, boom) {
				t.Errorf("Rank() error = %v, should wrap the store error", err)
			}
			if got := counterValue(t, metrics.errors); got != 1 {
				t.Errorf("errors counter = %v, want 1", got)
			}
		})
	}
}

func TestNewRanker_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CandidatePoolSize = 0
	if _, err := NewRanker(&fakeIndex{}, &fakeFavorites{}, cfg, nil, nil); !errors.Is(err, ErrInvalidPoolSize) {
		t.Errorf("NewRanker() error = %v, want %v", err, ErrInvalidPoolSize)
	}
}

func TestMetricsRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := NewMetrics().Register(reg); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := NewMetrics().Register(reg); err == nil {
		t.Error("second Register() should fail with duplicate collectors")
	}
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("failed to read counter: %v", err)
	}
	return m.GetCounter().GetValue()
}
