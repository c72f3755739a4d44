package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Clark-Hu/movieclub/internal/repository"
)

type listKind int

const (
	listWatchlist listKind = iota
	listFavourites
)

type listEntryResponse struct {
	MovieID   string    `json:"movieId"`
	DateAdded time.Time `json:"dateAdded"`
}

type listResponse struct {
	Items []listEntryResponse `json:"items"`
}

func (s *Server) list(kind listKind) *repository.ListsRepository {
	if kind == listFavourites {
		return s.repo.Favourites
	}
	return s.repo.Watchlist
}

func (s *Server) handleAddToList(kind listKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.list(kind).Add(r.Context(), sessionFrom(r).UserID, chi.URLParam(r, "movieID")); err != nil {
			s.respondServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleRemoveFromList(kind listKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.list(kind).Remove(r.Context(), sessionFrom(r).UserID, chi.URLParam(r, "movieID")); err != nil {
			s.respondServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleListUserList(kind listKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userID")
		if _, err := s.accounts.Get(r.Context(), userID); err != nil {
			s.respondServiceError(w, r, err)
			return
		}
		entries, err := s.list(kind).ListByUser(r.Context(), userID)
		if err != nil {
			s.respondServiceError(w, r, err)
			return
		}
		resp := listResponse{Items: make([]listEntryResponse, 0, len(entries))}
		for _, entry := range entries {
			resp.Items = append(resp.Items, listEntryResponse{MovieID: entry.MovieID, DateAdded: entry.DateAdded})
		}
		s.respondJSON(w, http.StatusOK, resp)
	}
}
