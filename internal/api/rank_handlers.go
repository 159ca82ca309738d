package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/euskotrips/euskotrips/internal/index"
	"github.com/euskotrips/euskotrips/internal/middleware"
	"github.com/euskotrips/euskotrips/internal/ranking"
)

// Query parameters of GET /rank. userId is accepted as an alias of usuarioId.
const (
	ParamUserID      = "usuarioId"
	ParamUserIDAlias = "userId"
	ParamSize        = "size"
)

// Ranker produces recommendations for an optional user.
type Ranker interface {
	Rank(ctx context.Context, req ranking.Request) (*ranking.Result, error)
}

// RankHandlers holds dependencies for the recommendation endpoint.
type RankHandlers struct {
	ranker Ranker
	logger *slog.Logger
}

// NewRankHandlers creates a new RankHandlers instance.
func NewRankHandlers(ranker Ranker, logger *slog.Logger) *RankHandlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &RankHandlers{ranker: ranker, logger: logger}
}

// RankResponse is the body of a successful GET /rank. UserID is present
// whenever the request named a user, whatever the mode.
type RankResponse struct {
	Mode    ranking.Mode              `json:"mode"`
	UserID  *int64                    `json:"user_id,omitempty"`
	Results []ranking.ScoredCandidate `json:"results"`
}

// Rank handles GET /rank?usuarioId=<int>&size=<int>.
func (h *RankHandlers) Rank(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		MethodNotAllowed(w, r)
		return
	}

	ctx := r.Context()
	req, field, ok := parseRankRequest(r)
	if !ok {
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, field+" must be an integer")
		return
	}
	if req.UserID != nil {
		ctx = middleware.SetUserID(ctx, strconv.FormatInt(*req.UserID, 10))
	}

	result, err := h.ranker.Rank(ctx, req)
	if err != nil {
		if errors.Is(err, index.ErrUnavailable) {
			h.logger.WarnContext(ctx, "search index unavailable", "error", err)
			WriteError(w, ctx, http.StatusServiceUnavailable, ErrCodeUpstreamUnavailable, "Search index unavailable")
			return
		}
		h.logger.ErrorContext(ctx, "ranking failed", "error", err)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to compute recommendations")
		return
	}

	results := result.Results
	if results == nil {
		results = []ranking.ScoredCandidate{}
	}
	writeJSON(w, r, http.StatusOK, RankResponse{
		Mode:    result.Mode,
		UserID:  req.UserID,
		Results: results,
	})
}

// parseRankRequest reads the user id and size. On failure it returns the
// name of the offending parameter. Blank values count as absent; sizes
// below one are raised to one and the ranker clamps the rest.
func parseRankRequest(r *http.Request) (ranking.Request, string, bool) {
	query := r.URL.Query()
	var req ranking.Request

	param := ParamUserID
	raw := strings.TrimSpace(query.Get(ParamUserID))
	if raw == "" {
		param = ParamUserIDAlias
		raw = strings.TrimSpace(query.Get(ParamUserIDAlias))
	}
	if raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return req, param, false
		}
		req.UserID = &id
	}

	if raw := strings.TrimSpace(query.Get(ParamSize)); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return req, ParamSize, false
		}
		req.Size = max(n, 1)
	}

	return req, "", true
}
