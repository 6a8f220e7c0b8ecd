package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jupiterclapton/agora/internal/core/domain"
	"github.com/jupiterclapton/agora/internal/core/ports"
)

// --- POSTS ---

func (s *Server) createPost(w http.ResponseWriter, r *http.Request) {
	if err := s.parseForm(w, r); err != nil {
		s.writeError(w, r, err)
		return
	}
	privacy, err := formPrivacy(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	commentsEnabled, err := formBool(r, "commentsEnabled", true)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sharesEnabled, err := formBool(r, "sharesEnabled", true)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	uploads, closer, err := uploadsFrom(r, maxMediaFiles)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer closer.Close()

	post, err := s.svc.Posts.CreatePost(r.Context(), ports.CreatePostCmd{
		AuthorID:        principal(r).ProfileID,
		Content:         r.FormValue("content"),
		Privacy:         privacy,
		CommentsEnabled: commentsEnabled,
		SharesEnabled:   sharesEnabled,
		Mentions:        formList(r, "mentions"),
		Uploads:         uploads,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPostDTO(post))
}

func (s *Server) feed(w http.ResponseWriter, r *http.Request) {
	posts, err := s.svc.Feed.GetFeed(r.Context(), principal(r).ProfileID, pageFrom(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPostDTOs(posts))
}

func (s *Server) getPost(w http.ResponseWriter, r *http.Request) {
	post, err := s.svc.Posts.GetPost(r.Context(), principal(r).ProfileID, chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPostDTO(post))
}

func (s *Server) updatePost(w http.ResponseWriter, r *http.Request) {
	if err := s.parseForm(w, r); err != nil {
		s.writeError(w, r, err)
		return
	}

	cmd := ports.UpdatePostCmd{
		ActorID: principal(r).ProfileID,
		PostID:  chi.URLParam(r, "id"),
		Content: r.FormValue("content"),
	}
	if r.FormValue("privacy") != "" {
		privacy, err := formPrivacy(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		cmd.Privacy = &privacy
	}

	uploads, closer, err := uploadsFrom(r, maxMediaFiles)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer closer.Close()
	cmd.Uploads = uploads

	post, err := s.svc.Posts.UpdatePost(r.Context(), cmd)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPostDTO(post))
}

func (s *Server) deletePost(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Posts.DeletePost(r.Context(), principal(r).ProfileID, chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) sharePost(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Posts.SharePost(r.Context(), principal(r).ProfileID, chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusCreated, "post shared")
}

// --- LIKES ---

func (s *Server) likePost(w http.ResponseWriter, r *http.Request) {
	s.toggleLike(w, r, domain.LikeTargetPost, true)
}

func (s *Server) unlikePost(w http.ResponseWriter, r *http.Request) {
	s.toggleLike(w, r, domain.LikeTargetPost, false)
}

func (s *Server) likeComment(w http.ResponseWriter, r *http.Request) {
	s.toggleLike(w, r, domain.LikeTargetComment, true)
}

func (s *Server) unlikeComment(w http.ResponseWriter, r *http.Request) {
	s.toggleLike(w, r, domain.LikeTargetComment, false)
}

func (s *Server) toggleLike(w http.ResponseWriter, r *http.Request, kind domain.LikeTargetType, like bool) {
	target := domain.LikeTarget{Type: kind, ID: chi.URLParam(r, "id")}
	actor := principal(r).ProfileID

	if like {
		if err := s.svc.Likes.Like(r.Context(), actor, target); err != nil {
			s.writeError(w, r, err)
			return
		}
		writeMessage(w, http.StatusOK, "liked")
		return
	}
	if err := s.svc.Likes.Unlike(r.Context(), actor, target); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "unliked")
}

// --- COMMENTAIRES ---

func (s *Server) listComments(w http.ResponseWriter, r *http.Request) {
	comments, err := s.svc.Comments.ListPostComments(r.Context(), principal(r).ProfileID, chi.URLParam(r, "id"), pageFrom(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCommentDTOs(comments))
}

func (s *Server) addComment(w http.ResponseWriter, r *http.Request) {
	s.comment(w, r, ports.AddCommentCmd{PostID: chi.URLParam(r, "id")})
}

// replyToComment : le post est déduit du commentaire parent.
func (s *Server) replyToComment(w http.ResponseWriter, r *http.Request) {
	s.comment(w, r, ports.AddCommentCmd{ParentID: chi.URLParam(r, "id")})
}

func (s *Server) comment(w http.ResponseWriter, r *http.Request, cmd ports.AddCommentCmd) {
	if err := s.parseForm(w, r); err != nil {
		s.writeError(w, r, err)
		return
	}
	upload, closer, err := singleUpload(r, mediaField)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer closer.Close()

	cmd.AuthorID = principal(r).ProfileID
	cmd.Content = r.FormValue("content")
	cmd.Mentions = formList(r, "mentions")
	cmd.Upload = upload

	comment, err := s.svc.Comments.AddComment(r.Context(), cmd)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCommentDTO(comment))
}

func (s *Server) updateComment(w http.ResponseWriter, r *http.Request) {
	if err := s.parseForm(w, r); err != nil {
		s.writeError(w, r, err)
		return
	}
	upload, closer, err := singleUpload(r, mediaField)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer closer.Close()

	comment, err := s.svc.Comments.UpdateComment(r.Context(), ports.UpdateCommentCmd{
		ActorID:   principal(r).ProfileID,
		CommentID: chi.URLParam(r, "id"),
		Content:   r.FormValue("content"),
		Upload:    upload,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCommentDTO(comment))
}

func (s *Server) deleteComment(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Comments.DeleteComment(r.Context(), principal(r).ProfileID, chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- STORIES ---

func (s *Server) createStory(w http.ResponseWriter, r *http.Request) {
	if err := s.parseForm(w, r); err != nil {
		s.writeError(w, r, err)
		return
	}
	privacy, err := formPrivacy(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	upload, closer, err := singleUpload(r, mediaField)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer closer.Close()

	story, err := s.svc.Stories.CreateStory(r.Context(), ports.CreateStoryCmd{
		AuthorID: principal(r).ProfileID,
		Content:  r.FormValue("content"),
		Privacy:  privacy,
		Upload:   upload,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toStoryDTO(story))
}

func (s *Server) storyArchive(w http.ResponseWriter, r *http.Request) {
	stories, err := s.svc.Stories.ListArchive(r.Context(), principal(r).ProfileID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toStoryDTOs(stories))
}

func (s *Server) deleteStory(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Stories.DeleteStory(r.Context(), principal(r).ProfileID, chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
