package httpserver

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Clark-Hu/movieclub/internal/domain"
	"github.com/Clark-Hu/movieclub/internal/review"
)

type reviewSubmitRequest struct {
	Score *float64 `json:"score" validate:"required"`
	Text  *string  `json:"text"`
}

type reviewTextRequest struct {
	Text *string `json:"text"`
}

type reviewResponse struct {
	ID        string    `json:"id"`
	MovieID   string    `json:"movieId"`
	UserID    string    `json:"userId"`
	Score     float64   `json:"score"`
	Text      *string   `json:"text,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type reviewSubmitResponse struct {
	Review reviewResponse `json:"review"`
	Movie  movieResponse  `json:"movie"`
}

type reviewListResponse struct {
	Items []reviewResponse `json:"items"`
	Page  int              `json:"page"`
	Size  int              `json:"size"`
	Sort  string           `json:"sort"`
	Order string           `json:"order"`
}

func (s *Server) handleSubmitReview(w http.ResponseWriter, r *http.Request) {
	var req reviewSubmitRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	sub, err := s.reviews.Submit(r.Context(), review.SubmitParams{
		MovieID: chi.URLParam(r, "movieID"),
		UserID:  sessionFrom(r).UserID,
		Score:   *req.Score,
		Text:    req.Text,
	})
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	w.Header().Set("Location", "/movies/"+url.PathEscape(sub.Review.MovieID)+"/reviews/mine")
	s.respondJSON(w, http.StatusCreated, reviewSubmitResponse{
		Review: toReviewResponse(sub.Review),
		Movie:  toMovieResponse(sub.Movie),
	})
}

func (s *Server) handleGetMyReview(w http.ResponseWriter, r *http.Request) {
	found, err := s.reviews.Find(r.Context(), chi.URLParam(r, "movieID"), sessionFrom(r).UserID)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, toReviewResponse(found))
}

func (s *Server) handleUpdateMyReview(w http.ResponseWriter, r *http.Request) {
	var req reviewTextRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	updated, err := s.reviews.UpdateText(r.Context(), chi.URLParam(r, "movieID"), sessionFrom(r).UserID, req.Text)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, toReviewResponse(updated))
}

func (s *Server) handleListMovieReviews(w http.ResponseWriter, r *http.Request) {
	movieID := chi.URLParam(r, "movieID")
	if _, err := s.repo.Movies.GetByID(r.Context(), movieID); err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	s.listReviews(w, r, domain.MovieScope(movieID))
}

func (s *Server) handleListUserReviews(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if _, err := s.accounts.Get(r.Context(), userID); err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	s.listReviews(w, r, domain.UserScope(userID))
}

func (s *Server) listReviews(w http.ResponseWriter, r *http.Request, scope domain.ReviewScope) {
	filter, err := parseReviewFilter(r.URL.Query())
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	filter, err = filter.Normalize()
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	items, err := s.reviews.List(r.Context(), scope, filter)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	resp := reviewListResponse{
		Items: make([]reviewResponse, 0, len(items)),
		Page:  filter.PageIndex,
		Size:  filter.PageSize,
		Sort:  string(filter.SortField),
		Order: string(filter.SortDirection),
	}
	for _, item := range items {
		resp.Items = append(resp.Items, toReviewResponse(item))
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// parseReviewFilter reads sort, order, page and size. Absent values stay zero
// so that ReviewFilter.Normalize applies the defaults.
func parseReviewFilter(query url.Values) (domain.ReviewFilter, error) {
	filter := domain.ReviewFilter{
		SortField:     domain.SortField(strings.ToLower(strings.TrimSpace(query.Get("sort")))),
		SortDirection: domain.SortDirection(strings.ToLower(strings.TrimSpace(query.Get("order")))),
	}
	if val := strings.TrimSpace(query.Get("page")); val != "" {
		page, err := strconv.Atoi(val)
		if err != nil {
			return filter, domain.NewValidationError("page", "must be an integer")
		}
		filter.PageIndex = page
	}
	if val := strings.TrimSpace(query.Get("size")); val != "" {
		size, err := strconv.Atoi(val)
		if err != nil {
			return filter, domain.NewValidationError("size", "must be an integer")
		}
		if size == 0 {
			return filter, domain.NewValidationError("size", "must be between 1 and 100")
		}
		filter.PageSize = size
	}
	return filter, nil
}

func toReviewResponse(rv domain.Review) reviewResponse {
	return reviewResponse{
		ID:        rv.ID,
		MovieID:   rv.MovieID,
		UserID:    rv.UserID,
		Score:     rv.Score,
		Text:      rv.Text,
		CreatedAt: rv.CreatedAt,
		UpdatedAt: rv.UpdatedAt,
	}
}
