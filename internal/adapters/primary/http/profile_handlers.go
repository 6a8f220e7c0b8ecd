package http

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/jupiterclapton/agora/internal/core/domain"
	"github.com/jupiterclapton/agora/internal/core/ports"
)

func (s *Server) getMe(w http.ResponseWriter, r *http.Request) {
	me := principal(r).ProfileID
	view, err := s.svc.Profiles.GetProfile(r.Context(), me, me)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProfileDTO(view.Profile))
}

// updateMe : fullName, bio et picture sont tous optionnels.
func (s *Server) updateMe(w http.ResponseWriter, r *http.Request) {
	if err := s.parseForm(w, r); err != nil {
		s.writeError(w, r, err)
		return
	}

	cmd := ports.UpdateProfileCmd{ProfileID: principal(r).ProfileID}
	if _, ok := r.Form["fullName"]; ok {
		v := r.FormValue("fullName")
		cmd.FullName = &v
	}
	if _, ok := r.Form["bio"]; ok {
		v := r.FormValue("bio")
		cmd.Bio = &v
	}

	picture, closer, err := singleUpload(r, "picture")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer closer.Close()
	cmd.Picture = picture

	profile, err := s.svc.Profiles.UpdateProfile(r.Context(), cmd)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProfileDTO(profile))
}

func (s *Server) deactivateMe(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Identity.Deactivate(r.Context(), principal(r).AccountID); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.clearAuthCookies(w)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) searchProfiles(w http.ResponseWriter, r *http.Request) {
	skip, _ := strconv.Atoi(r.URL.Query().Get("skip"))
	profiles, err := s.svc.Profiles.SearchProfiles(r.Context(), r.URL.Query().Get("q"), skip)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProfileDTOs(profiles))
}

func (s *Server) subscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	sub, err := s.svc.Profiles.Subscribe(r.Context(), ports.SubscribeCmd{
		ProfileID: principal(r).ProfileID,
		Type:      domain.NotificationType(req.Type),
		Endpoint:  req.Endpoint,
		P256dh:    req.Keys.P256dh,
		Auth:      req.Keys.Auth,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSubscriptionDTO(sub))
}

func (s *Server) getProfile(w http.ResponseWriter, r *http.Request) {
	view, err := s.svc.Profiles.GetProfile(r.Context(), principal(r).ProfileID, chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profileViewDTO{
		profileDTO: toProfileDTO(view.Profile),
		Relation:   toRelationDTO(view.Relation),
	})
}

func (s *Server) relation(w http.ResponseWriter, r *http.Request) {
	status, err := s.svc.Graph.RelationStatus(r.Context(), principal(r).ProfileID, chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRelationDTO(*status))
}

func (s *Server) followers(w http.ResponseWriter, r *http.Request) {
	profiles, err := s.svc.Graph.ListFollowers(r.Context(), chi.URLParam(r, "id"), pageFrom(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProfileDTOs(profiles))
}

func (s *Server) following(w http.ResponseWriter, r *http.Request) {
	profiles, err := s.svc.Graph.ListFollowing(r.Context(), chi.URLParam(r, "id"), pageFrom(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProfileDTOs(profiles))
}

// --- GRAPHE ---

func (s *Server) follow(w http.ResponseWriter, r *http.Request) {
	s.relate(w, r, s.svc.Graph.Follow, "profile followed")
}

func (s *Server) unfollow(w http.ResponseWriter, r *http.Request) {
	s.relate(w, r, s.svc.Graph.Unfollow, "profile unfollowed")
}

func (s *Server) block(w http.ResponseWriter, r *http.Request) {
	s.relate(w, r, s.svc.Graph.Block, "profile blocked")
}

func (s *Server) unblock(w http.ResponseWriter, r *http.Request) {
	s.relate(w, r, s.svc.Graph.Unblock, "profile unblocked")
}

func (s *Server) relate(w http.ResponseWriter, r *http.Request, action func(context.Context, string, string) error, done string) {
	if err := action(r.Context(), principal(r).ProfileID, chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, done)
}

func (s *Server) profilePosts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	cmd := ports.ListPostsCmd{
		ViewerID: principal(r).ProfileID,
		AuthorID: chi.URLParam(r, "id"),
		Cursor:   q.Get("cursor"),
	}
	cmd.Limit, _ = strconv.Atoi(q.Get("limit"))
	// Filtre optionnel : absent = tous les niveaux visibles.
	if raw := q.Get("privacy"); raw != "" {
		privacy, err := domain.ParsePrivacy(raw)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		cmd.Privacy = privacy
	}

	page, err := s.svc.Posts.ListPostsByAuthor(r.Context(), cmd)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, postPageDTO{Posts: toPostDTOs(page.Posts), NextCursor: page.NextCursor})
}

func (s *Server) profileStories(w http.ResponseWriter, r *http.Request) {
	stories, err := s.svc.Stories.ListStories(r.Context(), principal(r).ProfileID, chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toStoryDTOs(stories))
}
