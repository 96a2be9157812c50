package main

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/brewgator/fixpet/internal/auth"
	"github.com/brewgator/fixpet/internal/db"
)

type createPostRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Reward      int64  `json:"reward"`
}

// handleCreatePost handles POST /api/posts. The reward leaves the author's
// balance when the post is created.
func (s *Server) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())

	var req createPostRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if fields := missing("title", req.Title, "description", req.Description); fields != nil {
		s.writeMissingFields(w, fields)
		return
	}
	if req.Reward < 0 {
		s.writeError(w, http.StatusBadRequest, "Reward must not be negative")
		return
	}

	post := &db.Post{
		UserID:      user.ID,
		Title:       strings.TrimSpace(req.Title),
		Description: strings.TrimSpace(req.Description),
		Reward:      req.Reward,
	}
	if err := s.db.CreatePost(r.Context(), post); err != nil {
		s.writeDBError(w, "create post", err)
		return
	}

	s.logger.Info("post created", zap.String("post_id", post.ID), zap.Int64("reward", post.Reward))
	s.writeJSONStatus(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"post":    post,
	})
}

type completePostRequest struct {
	FixerUsername string `json:"fixerUsername"`
}

// handleCompletePost handles POST /api/posts/{id}/complete. Only the author
// may complete a post; the reward goes to the fixer.
func (s *Server) handleCompletePost(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	postID := mux.Vars(r)["id"]

	var req completePostRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if fields := missing("fixerUsername", req.FixerUsername); fields != nil {
		s.writeMissingFields(w, fields)
		return
	}

	fixer, err := s.db.GetProfileByUsername(r.Context(), strings.TrimSpace(req.FixerUsername))
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "Fixer not found")
			return
		}
		s.writeDBError(w, "get fixer", err)
		return
	}

	post, err := s.db.CompletePost(r.Context(), postID, user.ID, fixer.ID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "Post not found")
			return
		}
		s.writeDBError(w, "complete post", err)
		return
	}

	s.logger.Info("post completed", zap.String("post_id", post.ID), zap.String("fixer_id", fixer.ID))
	s.writeJSON(w, map[string]interface{}{
		"success": true,
		"post":    post,
	})
}
