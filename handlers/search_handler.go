package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/songclash/songclash/spotify"
)

// TrackSearcher is the slice of the Spotify client the search endpoint uses.
type TrackSearcher interface {
	Search(ctx context.Context, query string, limit int) ([]spotify.Track, error)
}

type SearchHandler struct {
	searcher TrackSearcher
}

func NewSearchHandler(searcher TrackSearcher) *SearchHandler {
	return &SearchHandler{searcher: searcher}
}

// Search godoc
// @Summary Search the track catalog
// @Tags search
// @Produce json
// @Param q query string true "search query"
// @Param limit query int false "max results"
// @Success 200 {object} map[string]interface{}
// @Router /search [get]
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		badRequestResponse(w, r, errors.New("q query parameter is required"))
		return
	}

	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil {
			badRequestResponse(w, r, errors.New("limit must be an integer"))
			return
		}
		limit = parsed
	}

	tracks, err := h.searcher.Search(r.Context(), query, limit)
	if err != nil {
		serverErrorResponse(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"tracks": tracks}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
