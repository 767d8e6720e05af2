package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/agrilink/internal/apperror"
	"github.com/sakif/agrilink/internal/model"
	"github.com/sakif/agrilink/internal/repository"
)

const MaxMessageLength = 2000

type ChatRepository interface {
	repository.ChatRepository
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetProduct(ctx context.Context, id string) (*model.Product, error)
}

// ChatService is buyer-seller messaging. There is no push channel: clients
// poll Messages with the id of the last message they have.
type ChatService struct {
	repo     ChatRepository
	notifier *NotificationService
	logger   *slog.Logger
}

func NewChatService(repo ChatRepository, notifier *NotificationService, logger *slog.Logger) *ChatService {
	return &ChatService{repo: repo, notifier: notifier, logger: logger}
}

type StartConversationInput struct {
	SellerID  string  `json:"sellerId"`
	ProductID *string `json:"productId"`
}

// Start returns the conversation between the caller (as buyer) and the
// seller about the product, creating it on first contact. When only a
// product is given, its seller is used.
func (s *ChatService) Start(ctx context.Context, userID string, in StartConversationInput) (*model.Conversation, error) {
	sellerID := strings.TrimSpace(in.SellerID)
	productID := in.ProductID
	if productID != nil && strings.TrimSpace(*productID) == "" {
		productID = nil
	}

	if productID != nil {
		p, err := s.repo.GetProduct(ctx, *productID)
		if err != nil {
			return nil, fmt.Errorf("service/chat: loading product %s: %w", *productID, err)
		}
		if !p.IsActive && p.SellerID != userID {
			return nil, apperror.NotFound("product", *productID)
		}
		if sellerID == "" {
			sellerID = p.SellerID
		} else if p.SellerID != sellerID {
			return nil, apperror.ValidationFailed("productId", "product does not belong to this seller")
		}
	}
	if sellerID == "" {
		return nil, apperror.ValidationFailed("sellerId", "sellerId or productId is required")
	}
	if sellerID == userID {
		return nil, apperror.ValidationFailed("sellerId", "you cannot start a conversation with yourself")
	}
	if _, err := s.repo.GetUserByID(ctx, sellerID); err != nil {
		return nil, fmt.Errorf("service/chat: loading seller %s: %w", sellerID, err)
	}

	c, err := s.repo.FindConversation(ctx, userID, sellerID, productID)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("service/chat: finding conversation: %w", err)
	}

	c = &model.Conversation{BuyerID: userID, SellerID: sellerID, ProductID: productID}
	if err := s.repo.CreateConversation(ctx, c); err != nil {
		// Both sides clicked "contact" at once; the other insert won.
		if errors.Is(err, apperror.ErrConflict) {
			return s.repo.FindConversation(ctx, userID, sellerID, productID)
		}
		return nil, fmt.Errorf("service/chat: creating conversation: %w", err)
	}

	s.logger.Info("conversation started",
		slog.String("conversationID", c.ID),
		slog.String("buyerID", userID),
		slog.String("sellerID", sellerID),
	)
	return c, nil
}

func (s *ChatService) List(ctx context.Context, userID string) ([]model.ConversationSummary, error) {
	list, err := s.repo.ListConversations(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/chat: listing conversations of %s: %w", userID, err)
	}
	return list, nil
}

// Conversation loads a conversation the caller takes part in.
func (s *ChatService) Conversation(ctx context.Context, userID, conversationID string) (*model.Conversation, error) {
	c, err := s.repo.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("service/chat: loading conversation %s: %w", conversationID, err)
	}
	if !c.HasParticipant(userID) {
		return nil, apperror.Forbidden("you are not part of this conversation")
	}
	return c, nil
}

// Messages returns messages after afterID (all recent ones when empty).
func (s *ChatService) Messages(ctx context.Context, userID, conversationID, afterID string, limit int) ([]model.Message, error) {
	if _, err := s.Conversation(ctx, userID, conversationID); err != nil {
		return nil, err
	}
	msgs, err := s.repo.ListMessages(ctx, conversationID, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("service/chat: listing messages of %s: %w", conversationID, err)
	}
	return msgs, nil
}

func (s *ChatService) Send(ctx context.Context, userID, conversationID, content string) (*model.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperror.ValidationFailed("content", "message cannot be empty")
	}
	if len([]rune(content)) > MaxMessageLength {
		return nil, apperror.ValidationFailed("content", fmt.Sprintf("message must be at most %d characters", MaxMessageLength))
	}

	c, err := s.Conversation(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}

	m := &model.Message{
		ConversationID: conversationID,
		SenderID:       userID,
		Content:        content,
		MessageType:    model.MessageText,
	}
	if err := s.repo.CreateMessage(ctx, m); err != nil {
		return nil, fmt.Errorf("service/chat: sending message in %s: %w", conversationID, err)
	}

	s.notifier.Notify(ctx, &model.Notification{
		UserID:    c.Counterpart(userID),
		Type:      model.NotifyMessage,
		Title:     "New message",
		Body:      truncate(content, 120),
		Link:      "/conversations/" + conversationID,
		RelatedID: conversationID,
	})
	return m, nil
}

// MarkRead marks the counterpart's messages as read by the caller.
func (s *ChatService) MarkRead(ctx context.Context, userID, conversationID string) (int64, error) {
	if _, err := s.Conversation(ctx, userID, conversationID); err != nil {
		return 0, err
	}
	n, err := s.repo.MarkMessagesRead(ctx, conversationID, userID)
	if err != nil {
		return 0, fmt.Errorf("service/chat: marking %s read: %w", conversationID, err)
	}
	return n, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
