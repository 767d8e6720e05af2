package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/sakif/agrilink/internal/apperror"
	"github.com/sakif/agrilink/internal/model"
	"github.com/sakif/agrilink/internal/repository"
)

// DefaultOfferTTL is how long a pending offer waits for an answer.
const DefaultOfferTTL = 72 * time.Hour

type OfferRepository interface {
	repository.OfferRepository
	GetConversation(ctx context.Context, id string) (*model.Conversation, error)
}

// OfferService runs the negotiation and fulfilment lifecycle. Every change
// is checked against the transition table in the model package, written
// with compare-and-set, announced in the chat and notified to the other
// party.
type OfferService struct {
	repo     OfferRepository
	notifier *NotificationService
	ttl      time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

func NewOfferService(repo OfferRepository, notifier *NotificationService, ttl time.Duration, logger *slog.Logger) *OfferService {
	if ttl <= 0 {
		ttl = DefaultOfferTTL
	}
	return &OfferService{repo: repo, notifier: notifier, ttl: ttl, logger: logger, now: time.Now}
}

// OfferView is an offer plus the statuses the viewer may move it to.
type OfferView struct {
	*model.Offer
	Actions []model.OfferStatus `json:"actions"`
}

func viewFor(o *model.Offer, userID string) OfferView {
	actions := model.NextStatuses(o.Status, o.ActorsFor(userID)...)
	if actions == nil {
		actions = []model.OfferStatus{}
	}
	return OfferView{Offer: o, Actions: actions}
}

type CreateOfferInput struct {
	Price         int64   `json:"price"         validate:"gt=0,max=1000000000000"`
	Quantity      float64 `json:"quantity"      validate:"gt=0,max=1000000000"`
	Unit          string  `json:"unit"          validate:"required,max=20"`
	DeliveryTerms string  `json:"deliveryTerms" validate:"max=500"`
	Note          string  `json:"note"          validate:"max=1000"`
}

// Create makes an offer inside a conversation. Either participant may
// propose; buyer and seller roles come from the conversation.
func (s *OfferService) Create(ctx context.Context, userID, conversationID string, in CreateOfferInput) (*OfferView, error) {
	in.Unit = strings.TrimSpace(in.Unit)
	in.DeliveryTerms = strings.TrimSpace(in.DeliveryTerms)
	in.Note = strings.TrimSpace(in.Note)
	if err := checkInput(in); err != nil {
		return nil, err
	}

	c, err := s.repo.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("service/offer: loading conversation %s: %w", conversationID, err)
	}
	if !c.HasParticipant(userID) {
		return nil, apperror.Forbidden("you are not part of this conversation")
	}

	now := s.now().UTC()
	o := &model.Offer{
		ConversationID: c.ID,
		ProductID:      c.ProductID,
		BuyerID:        c.BuyerID,
		SellerID:       c.SellerID,
		CreatedBy:      userID,
		Price:          in.Price,
		Quantity:       in.Quantity,
		Unit:           in.Unit,
		DeliveryTerms:  in.DeliveryTerms,
		Note:           in.Note,
		Status:         model.OfferPending,
		ExpiresAt:      now.Add(s.ttl),
	}
	msg := &model.Message{
		ConversationID: c.ID,
		SenderID:       userID,
		Content:        describeOffer(o),
		MessageType:    model.MessageOffer,
		CreatedAt:      now,
	}
	if err := s.repo.CreateOffer(ctx, o, msg); err != nil {
		return nil, fmt.Errorf("service/offer: creating offer: %w", err)
	}

	s.notifier.Notify(ctx, &model.Notification{
		UserID:    c.Counterpart(userID),
		Type:      model.NotifyOffer,
		Title:     "New offer",
		Body:      describeOffer(o),
		Link:      "/conversations/" + c.ID,
		RelatedID: o.ID,
	})
	s.logger.Info("offer created",
		slog.String("offerID", o.ID),
		slog.String("conversationID", c.ID),
		slog.String("createdBy", userID),
	)
	v := viewFor(o, userID)
	return &v, nil
}

func (s *OfferService) Get(ctx context.Context, userID, offerID string) (*OfferView, error) {
	o, err := s.participantOffer(ctx, userID, offerID)
	if err != nil {
		return nil, err
	}
	v := viewFor(o, userID)
	return &v, nil
}

func (s *OfferService) List(ctx context.Context, userID string, f model.OfferFilter) ([]OfferView, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, apperror.ValidationFailed("status", "unknown offer status")
	}
	if f.Role != "" && f.Role != model.ActorBuyer && f.Role != model.ActorSeller {
		return nil, apperror.ValidationFailed("role", "role must be buyer or seller")
	}
	f.UserID = userID
	f.Limit = clampLimit(f.Limit)

	offers, err := s.repo.ListOffers(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("service/offer: listing offers of %s: %w", userID, err)
	}
	views := make([]OfferView, len(offers))
	for i := range offers {
		views[i] = viewFor(&offers[i], userID)
	}
	return views, nil
}

type UpdateOfferStatusInput struct {
	Status         model.OfferStatus `json:"status"`
	TrackingNumber string            `json:"trackingNumber"`
}

// UpdateStatus moves an offer along its lifecycle on behalf of userID.
//
//   - not a participant             → Forbidden
//   - edge not in the table         → InvalidState
//   - edge exists, wrong role       → Forbidden
//   - someone else changed it first → Conflict
func (s *OfferService) UpdateStatus(ctx context.Context, userID, offerID string, in UpdateOfferStatusInput) (*OfferView, error) {
	if !in.Status.Valid() {
		return nil, apperror.ValidationFailed("status", "unknown offer status")
	}
	tracking := strings.TrimSpace(in.TrackingNumber)
	if tracking != "" && in.Status != model.OfferShipped {
		return nil, apperror.ValidationFailed("trackingNumber", "a tracking number can only be set when shipping")
	}
	if len(tracking) > 100 {
		return nil, apperror.ValidationFailed("trackingNumber", "trackingNumber must be at most 100 characters")
	}

	o, err := s.participantOffer(ctx, userID, offerID)
	if err != nil {
		return nil, err
	}

	switch model.CheckTransition(o.Status, in.Status, o.ActorsFor(userID)...) {
	case model.TransitionIllegal:
		return nil, apperror.InvalidState("offer", string(o.Status), string(in.Status))
	case model.TransitionNotPermitted:
		return nil, apperror.Forbidden(fmt.Sprintf("you cannot move this offer to %s", in.Status))
	}
	now := s.now().UTC()
	if o.Status == model.OfferPending && in.Status == model.OfferAccepted && now.After(o.ExpiresAt) {
		return nil, &apperror.AppError{Err: apperror.ErrInvalidState, Message: "offer has expired"}
	}

	if err := s.transition(ctx, o, in.Status, userID, tracking, now); err != nil {
		return nil, err
	}
	v := viewFor(o, userID)
	return &v, nil
}

// ExpireOverdue moves every pending offer past its deadline to expired and
// returns how many it changed. Offers answered in the meantime are skipped.
func (s *OfferService) ExpireOverdue(ctx context.Context) (int, error) {
	now := s.now().UTC()
	overdue, err := s.repo.ListOverdueOffers(ctx, now, 0)
	if err != nil {
		return 0, fmt.Errorf("service/offer: listing overdue offers: %w", err)
	}

	expired := 0
	for i := range overdue {
		o := &overdue[i]
		// The creator is the sender of the system message; it has to be a
		// real user and the creator is the one whose offer lapsed.
		err := s.transition(ctx, o, model.OfferExpired, o.CreatedBy, "", now)
		switch {
		case err == nil:
			expired++
		case errors.Is(err, apperror.ErrConflict):
			continue
		default:
			return expired, err
		}
	}
	if expired > 0 {
		s.logger.Info("expired overdue offers", slog.Int("count", expired))
	}
	return expired, nil
}

// transition writes the change, posts the system message and notifies.
// o is updated in place on success.
func (s *OfferService) transition(ctx context.Context, o *model.Offer, to model.OfferStatus, actorID, tracking string, now time.Time) error {
	from := o.Status
	text := describeTransition(to, tracking)
	err := s.repo.UpdateOfferStatus(ctx, repository.OfferStatusUpdate{
		OfferID:        o.ID,
		From:           from,
		To:             to,
		TrackingNumber: tracking,
		At:             now,
		Message: &model.Message{
			ConversationID: o.ConversationID,
			SenderID:       actorID,
			Content:        text,
			MessageType:    model.MessageSystem,
			CreatedAt:      now,
		},
	})
	if err != nil {
		return fmt.Errorf("service/offer: moving %s from %s to %s: %w", o.ID, from, to, err)
	}

	o.Status = to
	o.UpdatedAt = now
	if tracking != "" {
		o.TrackingNumber = tracking
	}

	recipients := []string{o.BuyerID, o.SellerID}
	for _, uid := range recipients {
		if uid == actorID && to != model.OfferExpired {
			continue
		}
		s.notifier.Notify(ctx, &model.Notification{
			UserID:    uid,
			Type:      model.NotifyOffer,
			Title:     text,
			Body:      describeOffer(o),
			Link:      "/conversations/" + o.ConversationID,
			RelatedID: o.ID,
		})
	}

	s.logger.Info("offer status changed",
		slog.String("offerID", o.ID),
		slog.String("from", string(from)),
		slog.String("to", string(to)),
		slog.String("actorID", actorID),
	)
	return nil
}

func (s *OfferService) participantOffer(ctx context.Context, userID, offerID string) (*model.Offer, error) {
	o, err := s.repo.GetOffer(ctx, offerID)
	if err != nil {
		return nil, fmt.Errorf("service/offer: loading offer %s: %w", offerID, err)
	}
	if len(o.ActorsFor(userID)) == 0 {
		return nil, apperror.Forbidden("you are not part of this offer")
	}
	return o, nil
}

func describeOffer(o *model.Offer) string {
	qty := strconv.FormatFloat(o.Quantity, 'f', -1, 64)
	return fmt.Sprintf("Offer: %s %s at %s MMK per %s (total %s MMK)",
		qty, o.Unit, groupThousands(o.Price), o.Unit, groupThousands(o.Total()))
}

var transitionText = map[model.OfferStatus]string{
	model.OfferAccepted:  "Offer accepted",
	model.OfferRejected:  "Offer rejected",
	model.OfferCancelled: "Offer cancelled",
	model.OfferExpired:   "Offer expired",
	model.OfferToShip:    "Order is being prepared for shipping",
	model.OfferShipped:   "Order shipped",
	model.OfferDelivered: "Order delivered",
	model.OfferReceived:  "Order received",
	model.OfferCompleted: "Order completed",
}

func describeTransition(to model.OfferStatus, tracking string) string {
	text := transitionText[to]
	if tracking != "" {
		text += " (tracking " + tracking + ")"
	}
	return text
}

// groupThousands formats 1500000 as "1,500,000".
func groupThousands(n int64) string {
	s := strconv.FormatInt(n, 10)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}
