package model

import (
	"math"
	"time"
)

type OfferStatus string

const (
	OfferPending   OfferStatus = "pending"
	OfferAccepted  OfferStatus = "accepted"
	OfferToShip    OfferStatus = "to_ship"
	OfferShipped   OfferStatus = "shipped"
	OfferDelivered OfferStatus = "delivered"
	OfferReceived  OfferStatus = "received"
	OfferCompleted OfferStatus = "completed"
	OfferRejected  OfferStatus = "rejected"
	OfferCancelled OfferStatus = "cancelled"
	OfferExpired   OfferStatus = "expired"
)

// Valid reports whether s is a known status.
func (s OfferStatus) Valid() bool {
	switch s {
	case OfferPending, OfferAccepted, OfferToShip, OfferShipped, OfferDelivered,
		OfferReceived, OfferCompleted, OfferRejected, OfferCancelled, OfferExpired:
		return true
	}
	return false
}

// Terminal reports whether no further transition is possible from s.
func (s OfferStatus) Terminal() bool {
	switch s {
	case OfferCompleted, OfferRejected, OfferCancelled, OfferExpired:
		return true
	}
	return false
}

// Active reports whether the offer is still in flight.
func (s OfferStatus) Active() bool {
	return s.Valid() && !s.Terminal()
}

type Offer struct {
	ID             string      `json:"id"                       db:"id"`
	ConversationID string      `json:"conversationId"           db:"conversation_id"`
	ProductID      *string     `json:"productId,omitempty"      db:"product_id"`
	BuyerID        string      `json:"buyerId"                  db:"buyer_id"`
	SellerID       string      `json:"sellerId"                 db:"seller_id"`
	CreatedBy      string      `json:"createdBy"                db:"created_by"`
	Price          int64       `json:"price"                    db:"price"`
	Quantity       float64     `json:"quantity"                 db:"quantity"`
	Unit           string      `json:"unit"                     db:"unit"`
	DeliveryTerms  string      `json:"deliveryTerms"            db:"delivery_terms"`
	Note           string      `json:"note"                     db:"note"`
	Status         OfferStatus `json:"status"                   db:"status"`
	TrackingNumber string      `json:"trackingNumber,omitempty" db:"tracking_number"`
	ExpiresAt      time.Time   `json:"expiresAt"                db:"expires_at"`
	CreatedAt      time.Time   `json:"createdAt"                db:"created_at"`
	UpdatedAt      time.Time   `json:"updatedAt"                db:"updated_at"`
}

// Total is the agreed price times the quantity, rounded down to whole kyat
// and clamped to the int64 range.
func (o *Offer) Total() int64 {
	t := float64(o.Price) * o.Quantity
	switch {
	case t >= math.MaxInt64:
		return math.MaxInt64
	case t <= math.MinInt64:
		return math.MinInt64
	}
	return int64(t)
}

// Actor is a role someone plays on an offer. One user can hold several
// roles at once: the buyer who made the offer is both ActorBuyer and
// ActorCreator.
type Actor string

const (
	ActorBuyer     Actor = "buyer"
	ActorSeller    Actor = "seller"
	ActorCreator   Actor = "creator"
	ActorRecipient Actor = "recipient"
	ActorSystem    Actor = "system"
)

// ActorsFor lists the roles userID holds on o. Non-participants hold none.
func (o *Offer) ActorsFor(userID string) []Actor {
	var actors []Actor
	if userID == o.BuyerID {
		actors = append(actors, ActorBuyer)
	}
	if userID == o.SellerID {
		actors = append(actors, ActorSeller)
	}
	if len(actors) == 0 {
		return nil
	}
	if userID == o.CreatedBy {
		actors = append(actors, ActorCreator)
	} else {
		actors = append(actors, ActorRecipient)
	}
	return actors
}

type offerEdge struct {
	from, to OfferStatus
}

// offerTransitions is the whole lifecycle. An edge is legal when at least
// one of the caller's roles is listed for it.
var offerTransitions = map[offerEdge][]Actor{
	{OfferPending, OfferAccepted}:   {ActorRecipient},
	{OfferPending, OfferRejected}:   {ActorRecipient},
	{OfferPending, OfferCancelled}:  {ActorCreator},
	{OfferPending, OfferExpired}:    {ActorSystem},
	{OfferAccepted, OfferToShip}:    {ActorSeller},
	{OfferAccepted, OfferCancelled}: {ActorBuyer, ActorSeller},
	{OfferToShip, OfferShipped}:     {ActorSeller},
	{OfferToShip, OfferCancelled}:   {ActorSeller},
	{OfferShipped, OfferDelivered}:  {ActorSeller},
	{OfferDelivered, OfferReceived}: {ActorBuyer},
	{OfferReceived, OfferCompleted}: {ActorBuyer, ActorSeller},
}

type TransitionCheck int

const (
	TransitionOK TransitionCheck = iota
	// TransitionIllegal means the edge does not exist in the lifecycle.
	TransitionIllegal
	// TransitionNotPermitted means the edge exists but none of the caller's
	// roles may take it.
	TransitionNotPermitted
)

// CheckTransition decides whether actors may move an offer from one status to another.
func CheckTransition(from, to OfferStatus, actors ...Actor) TransitionCheck {
	allowed, ok := offerTransitions[offerEdge{from, to}]
	if !ok {
		return TransitionIllegal
	}
	for _, want := range allowed {
		for _, have := range actors {
			if want == have {
				return TransitionOK
			}
		}
	}
	return TransitionNotPermitted
}

// NextStatuses lists the statuses reachable from s by someone holding actors.
// Clients use it to decide which buttons to show.
func NextStatuses(s OfferStatus, actors ...Actor) []OfferStatus {
	order := []OfferStatus{
		OfferAccepted, OfferToShip, OfferShipped, OfferDelivered, OfferReceived,
		OfferCompleted, OfferRejected, OfferCancelled, OfferExpired,
	}
	var next []OfferStatus
	for _, to := range order {
		if CheckTransition(s, to, actors...) == TransitionOK {
			next = append(next, to)
		}
	}
	return next
}

// OfferFilter narrows an offer listing for one user.
type OfferFilter struct {
	UserID         string
	ConversationID string
	Status         OfferStatus
	// Role limits results to offers where the user is the buyer or the seller.
	Role  Actor
	Since *time.Time
	Limit int
}
