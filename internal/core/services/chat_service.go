package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/jupiterclapton/agora/internal/core/domain"
	"github.com/jupiterclapton/agora/internal/core/ports"
)

const messagesFolder = "messages"

// ChatService gère les conversations à deux et la présence.
// Chaque mutation de message est diffusée sur le canal personnel des deux participants.
type ChatService struct {
	flow   workflow
	store  ports.Store
	live   ports.LiveBroadcaster
	logger *slog.Logger
}

func NewChatService(store ports.Store, uploader ports.MediaUploader, notifier ports.Notifier, live ports.LiveBroadcaster, logger *slog.Logger) *ChatService {
	logger = logger.With("component", "chat")
	return &ChatService{
		flow:   workflow{store: store, uploader: uploader, notifier: notifier, logger: logger},
		store:  store,
		live:   live,
		logger: logger,
	}
}

// OpenConversation est idempotent : (A,B) et (B,A) renvoient la même conversation.
func (s *ChatService) OpenConversation(ctx context.Context, actorID, otherID string) (*domain.Conversation, error) {
	if actorID == otherID {
		return nil, domain.ErrSelfConversation
	}
	if _, err := s.store.GetProfile(ctx, otherID); err != nil {
		return nil, err
	}
	status, err := s.store.GetRelationStatus(ctx, actorID, otherID)
	if err != nil {
		return nil, err
	}
	if status.Blocked() {
		return nil, domain.ErrBlocked
	}
	return s.store.UpsertConversation(ctx, domain.NewConversation(actorID, otherID))
}

func (s *ChatService) GetConversation(ctx context.Context, actorID, otherID string) (*domain.Conversation, error) {
	a, b := domain.OrderedPair(actorID, otherID)
	return s.store.FindConversation(ctx, a, b)
}

func (s *ChatService) SendMessage(ctx context.Context, cmd ports.SendMessageCmd) (*domain.Message, error) {
	if _, err := domain.ValidateContent(cmd.Content); err != nil {
		return nil, err
	}
	conv, err := s.participantConversation(ctx, cmd.SenderID, cmd.ConversationID)
	if err != nil {
		return nil, err
	}

	var msg *domain.Message
	err = s.flow.execute(ctx, cmd.SenderID, messagesFolder, cmd.Uploads, func(repo ports.Repository, media []domain.Media) ([]domain.Recipient, error) {
		sender, err := repo.GetProfile(ctx, cmd.SenderID)
		if err != nil {
			return nil, err
		}
		recipient, err := repo.GetProfile(ctx, conv.Other(cmd.SenderID))
		if err != nil {
			return nil, err
		}
		status, err := repo.GetRelationStatus(ctx, sender.ID, recipient.ID)
		if err != nil {
			return nil, err
		}
		if status.Blocked() {
			return nil, domain.ErrBlocked
		}

		msg, err = domain.NewMessage(conv, sender.ID, cmd.Content, media)
		if err != nil {
			return nil, err
		}
		// Destinataire connecté : la diffusion temps réel vaut livraison.
		if recipient.IsOnline {
			msg.Delivered = true
			msg.DeliveredAt = &msg.CreatedAt
		}
		if err := repo.CreateMessage(ctx, msg); err != nil {
			return nil, err
		}
		if err := repo.TouchConversation(ctx, conv.ID, msg.CreatedAt); err != nil {
			return nil, err
		}

		return []domain.Recipient{{ProfileID: recipient.ID, Notification: domain.MessageNotification(sender, conv.ID)}}, nil
	})
	if err != nil {
		return nil, err
	}

	s.broadcast(ctx, domain.LiveMessageCreated, msg, msg.SenderID, msg.RecipientID)
	return msg, nil
}

func (s *ChatService) UpdateMessage(ctx context.Context, actorID, messageID, content string) (*domain.Message, error) {
	msg, err := s.ownMessage(ctx, actorID, messageID)
	if err != nil {
		return nil, err
	}
	if err := msg.Edit(content); err != nil {
		return nil, err
	}
	if err := s.store.UpdateMessage(ctx, msg); err != nil {
		return nil, err
	}
	s.broadcast(ctx, domain.LiveMessageUpdated, msg, msg.SenderID, msg.RecipientID)
	return msg, nil
}

func (s *ChatService) DeleteMessage(ctx context.Context, actorID, messageID string) error {
	msg, err := s.ownMessage(ctx, actorID, messageID)
	if err != nil {
		return err
	}
	msg.SoftDelete()
	if err := s.store.UpdateMessage(ctx, msg); err != nil {
		return err
	}
	s.broadcast(ctx, domain.LiveMessageDeleted, msg, msg.SenderID, msg.RecipientID)
	return nil
}

func (s *ChatService) ListMessages(ctx context.Context, actorID, conversationID string, page domain.Page) ([]*domain.Message, error) {
	if _, err := s.participantConversation(ctx, actorID, conversationID); err != nil {
		return nil, err
	}
	return s.store.ListMessages(ctx, conversationID, page.Normalize(50, 200))
}

// Connect passe le profil en ligne et marque comme reçus les messages en attente.
// Les expéditeurs concernés sont prévenus sur leur canal.
func (s *ChatService) Connect(ctx context.Context, profileID string) error {
	var delivered []*domain.Message
	err := s.store.WithinTx(ctx, func(repo ports.Repository) error {
		now := time.Now().UTC()
		if err := repo.SetPresence(ctx, profileID, true, now); err != nil {
			return err
		}
		var err error
		delivered, err = repo.MarkDelivered(ctx, profileID, now)
		return err
	})
	if err != nil {
		return err
	}

	for _, msg := range delivered {
		s.broadcast(ctx, domain.LiveMessageUpdated, msg, msg.SenderID)
	}
	return nil
}

func (s *ChatService) Disconnect(ctx context.Context, profileID string) error {
	return s.store.SetPresence(ctx, profileID, false, time.Now().UTC())
}

// --- HELPERS ---

func (s *ChatService) participantConversation(ctx context.Context, actorID, conversationID string) (*domain.Conversation, error) {
	conv, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(actorID) {
		return nil, domain.ErrNotParticipant
	}
	return conv, nil
}

func (s *ChatService) ownMessage(ctx context.Context, actorID, messageID string) (*domain.Message, error) {
	msg, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg.Deleted {
		return nil, domain.ErrMessageNotFound
	}
	if msg.SenderID != actorID {
		return nil, domain.ErrNotOwner
	}
	return msg, nil
}

// broadcast est best-effort : le message est déjà persisté.
func (s *ChatService) broadcast(ctx context.Context, t domain.LiveEventType, msg *domain.Message, profileIDs ...string) {
	event := domain.LiveEvent{Type: t, Payload: msg}
	for _, id := range profileIDs {
		if err := s.live.Broadcast(ctx, domain.ProfileTopic(id), event); err != nil {
			s.logger.Warn("live broadcast failed", "type", t, "profile_id", id, "error", err)
		}
	}
}
