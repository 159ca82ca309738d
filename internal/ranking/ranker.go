package ranking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/euskotrips/euskotrips/internal/document"
	"github.com/euskotrips/euskotrips/internal/tracing"
	"go.opentelemetry.io/otel/attribute"
)

// Mode describes which branch produced a ranking result.
type Mode string

// Ranking modes.
const (
	ModeGeneric         Mode = "generic"
	ModeNoFavorites     Mode = "no_favorites"
	ModeNoFavoritesDocs Mode = "no_favorites_docs"
	ModePersonalized    Mode = "personalized"
)

// Upstream failures, wrapped together with the underlying store error.
var (
	ErrFavoritesLookup = errors.New("favorites lookup failed")
	ErrIndexLookup     = errors.New("index lookup failed")
)

// CandidateIndex is the read side of the search index.
type CandidateIndex interface {
	// SearchAll returns up to size documents with their relevance scores.
	SearchAll(ctx context.Context, size int) ([]document.Hit, error)

	// MultiGet returns one entry per requested id, in request order.
	MultiGet(ctx context.Context, ids []string) ([]document.GetResult, error)
}

// FavoriteStore reads a user's saved favorites.
type FavoriteStore interface {
	FavoriteDestinationIDs(ctx context.Context, userID int64) ([]string, error)
}

// Request is one ranking request. A nil UserID asks for generic results.
// Size is clamped to the configured bounds; zero means the default size.
type Request struct {
	UserID *int64
	Size   int
}

// ScoredCandidate is a document together with its final score.
type ScoredCandidate struct {
	document.Document
	Score float64 `json:"score"`
}

// Result is the outcome of a ranking request.
type Result struct {
	Mode    Mode
	UserID  *int64
	Results []ScoredCandidate
}

// Ranker produces generic or personalized recommendations. It holds no
// per-request state and is safe for concurrent use.
type Ranker struct {
	index     CandidateIndex
	favorites FavoriteStore
	config    Config
	metrics   *Metrics
	logger    *slog.Logger
}

// NewRanker creates a Ranker. metrics may be nil.
func NewRanker(index CandidateIndex, favorites FavoriteStore, config Config, metrics *Metrics, logger *slog.Logger) (*Ranker, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Ranker{
		index:     index,
		favorites: favorites,
		config:    config,
		metrics:   metrics,
		logger:    logger,
	}, nil
}

// Config returns the ranker configuration.
func (r *Ranker) Config() Config {
	return r.config
}

// Rank resolves the request into one of the four modes.
//
//   - no user: generic index results
//   - user without favorites: generic, mode no_favorites
//   - favorites that are all missing from the index: generic, mode no_favorites_docs
//   - otherwise: personalized re-ranking of an oversampled candidate pool
func (r *Ranker) Rank(ctx context.Context, req Request) (result *Result, err error) {
	start := time.Now()
	size := r.config.DefaultSize
	if req.Size != 0 {
		size = r.config.ClampSize(req.Size)
	}

	ctx, endSpan := tracing.StartSpan(ctx, "ranking.rank",
		attribute.Int("size", size),
		attribute.Bool("has_user", req.UserID != nil))
	defer func() { endSpan(err) }()

	result, err = r.rank(ctx, req.UserID, size)
	if err != nil {
		r.metrics.incErrors()
		return nil, err
	}

	tracing.SetAttributes(ctx,
		attribute.String("ranking.mode", string(result.Mode)),
		attribute.Int("ranking.results", len(result.Results)))
	r.metrics.observeRequest(string(result.Mode), time.Since(start).Seconds())
	return result, nil
}

func (r *Ranker) rank(ctx context.Context, userID *int64, size int) (*Result, error) {
	if userID == nil {
		return r.generic(ctx, ModeGeneric, nil, size)
	}

	favIDs, err := r.favorites.FavoriteDestinationIDs(ctx, *userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFavoritesLookup, err)
	}
	if len(favIDs) == 0 {
		return r.generic(ctx, ModeNoFavorites, userID, size)
	}

	entries, err := r.index.MultiGet(ctx, favIDs)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIndexLookup, err)
	}
	favDocs := make([]document.Document, 0, len(entries))
	for _, e := range entries {
		if e.Found {
			favDocs = append(favDocs, e.Document)
		}
	}
	if len(favDocs) == 0 {
		r.logger.DebugContext(ctx, "favorites missing from index",
			slog.Int64("user_id", *userID),
			slog.Int("favorites", len(favIDs)))
		return r.generic(ctx, ModeNoFavoritesDocs, userID, size)
	}

	profile := BuildProfile(favDocs)
	if profile.IsEmpty() {
		// Every candidate scores its base relevance only.
		r.metrics.incEmptyProfiles()
		r.logger.DebugContext(ctx, "favorites carry no profile fields",
			slog.Int64("user_id", *userID),
			slog.Int("favorites", len(favDocs)))
	}

	pool, err := r.index.SearchAll(ctx, r.config.CandidatePoolSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIndexLookup, err)
	}

	candidates := ExcludeFavorites(pool, favIDs)
	r.metrics.addExcluded(len(pool) - len(candidates))
	if len(candidates) == 0 {
		// Every candidate was a favorite: rank the unfiltered pool.
		r.metrics.incPoolFallbacks()
		tracing.AddEvent(ctx, "pool_fallback", attribute.Int("pool", len(pool)))
		candidates = pool
	}

	scored := ScoreAndSort(candidates, profile, r.config.Bonuses)
	if len(scored) > size {
		scored = scored[:size]
	}

	r.logger.DebugContext(ctx, "personalized ranking complete",
		slog.Int64("user_id", *userID),
		slog.Int("favorites", len(favDocs)),
		slog.Int("pool", len(pool)),
		slog.Int("candidates", len(candidates)),
		slog.Int("returned", len(scored)),
		slog.Any("profile", profile.Summary()))

	return &Result{Mode: ModePersonalized, UserID: userID, Results: scored}, nil
}

// generic returns the first size index documents, scored by relevance only.
func (r *Ranker) generic(ctx context.Context, mode Mode, userID *int64, size int) (*Result, error) {
	hits, err := r.index.SearchAll(ctx, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIndexLookup, err)
	}

	results := make([]ScoredCandidate, 0, len(hits))
	for _, h := range hits {
		results = append(results, toCandidate(h, BaseScore(h)))
	}
	return &Result{Mode: mode, UserID: userID, Results: results}, nil
}

// ExcludeFavorites drops candidates whose id is a favorite, keeping order.
func ExcludeFavorites(pool []document.Hit, favoriteIDs []string) []document.Hit {
	favs := make(map[string]struct{}, len(favoriteIDs))
	for _, id := range favoriteIDs {
		favs[id] = struct{}{}
	}

	out := make([]document.Hit, 0, len(pool))
	for _, h := range pool {
		if _, ok := favs[h.ID]; ok {
			continue
		}
		out = append(out, h)
	}
	return out
}

// ScoreAndSort scores every candidate and sorts by descending score. Ties
// keep the incoming candidate order.
func ScoreAndSort(candidates []document.Hit, profile Profile, bonuses Bonuses) []ScoredCandidate {
	scored := make([]ScoredCandidate, 0, len(candidates))
	for _, h := range candidates {
		scored = append(scored, toCandidate(h, Score(h, profile, bonuses)))
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	return scored
}

func toCandidate(h document.Hit, score float64) ScoredCandidate {
	doc := h.Document
	doc.ID = h.ID
	return ScoredCandidate{Document: doc, Score: score}
}
