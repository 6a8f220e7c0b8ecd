package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jupiterclapton/agora/internal/core/ports"
)

func (s *Server) openConversation(w http.ResponseWriter, r *http.Request) {
	var req openConversationRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	conv, err := s.svc.Chat.OpenConversation(r.Context(), principal(r).ProfileID, req.ProfileID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toConversationDTO(conv))
}

func (s *Server) conversationWith(w http.ResponseWriter, r *http.Request) {
	conv, err := s.svc.Chat.GetConversation(r.Context(), principal(r).ProfileID, chi.URLParam(r, "profileId"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toConversationDTO(conv))
}

func (s *Server) listMessages(w http.ResponseWriter, r *http.Request) {
	messages, err := s.svc.Chat.ListMessages(r.Context(), principal(r).ProfileID, chi.URLParam(r, "id"), pageFrom(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toMessageDTOs(messages))
}

func (s *Server) sendMessage(w http.ResponseWriter, r *http.Request) {
	if err := s.parseForm(w, r); err != nil {
		s.writeError(w, r, err)
		return
	}
	uploads, closer, err := uploadsFrom(r, maxMediaFiles)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer closer.Close()

	msg, err := s.svc.Chat.SendMessage(r.Context(), ports.SendMessageCmd{
		SenderID:       principal(r).ProfileID,
		ConversationID: chi.URLParam(r, "id"),
		Content:        r.FormValue("content"),
		Uploads:        uploads,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toMessageDTO(msg))
}

func (s *Server) updateMessage(w http.ResponseWriter, r *http.Request) {
	var req updateMessageRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	msg, err := s.svc.Chat.UpdateMessage(r.Context(), principal(r).ProfileID, chi.URLParam(r, "id"), req.Content)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toMessageDTO(msg))
}

func (s *Server) deleteMessage(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Chat.DeleteMessage(r.Context(), principal(r).ProfileID, chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
