package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sakif/agrilink/internal/apperror"
	"github.com/sakif/agrilink/internal/logging"
	"github.com/sakif/agrilink/internal/model"
	"github.com/sakif/agrilink/internal/repository"
)

// =========================================================================
// FAKE STORE
// =========================================================================
//
// fakeStore keeps every table in maps so service tests run without a
// database. It copies values in and out so a test can't mutate stored
// state through a pointer it got back. Only the behaviour the services
// depend on is modelled; SQL details are covered in sqlstore's own tests.

type fakeStore struct {
	mu     sync.Mutex
	nextID int

	users         map[string]*model.User
	verifications map[string]*model.Verification
	documents     []model.VerificationDocument
	profiles      map[string]*model.FullProfile
	products      map[string]*model.Product
	conversations map[string]*model.Conversation
	messages      []model.Message
	offers        map[string]*model.Offer
	notifications []model.Notification

	// notifyErr, when set, is returned by CreateNotification.
	notifyErr error
	// beforeStatusUpdate runs inside UpdateOfferStatus before the
	// compare-and-set, so tests can simulate a concurrent writer.
	beforeStatusUpdate func(o *model.Offer)
}

var _ repository.Store = (*fakeStore)(nil)

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:         map[string]*model.User{},
		verifications: map[string]*model.Verification{},
		profiles:      map[string]*model.FullProfile{},
		products:      map[string]*model.Product{},
		conversations: map[string]*model.Conversation{},
		offers:        map[string]*model.Offer{},
	}
}

func (f *fakeStore) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

func (f *fakeStore) Ping(context.Context) error { return nil }
func (f *fakeStore) Close() error               { return nil }

// --- users -----------------------------------------------------------------

func (f *fakeStore) CreateUser(_ context.Context, u *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, other := range f.users {
		if u.Email != nil && other.Email != nil && *u.Email == *other.Email {
			return &apperror.AppError{Err: apperror.ErrConflict, Message: "email already registered", Field: "email"}
		}
		if u.Phone != nil && other.Phone != nil && *u.Phone == *other.Phone {
			return &apperror.AppError{Err: apperror.ErrConflict, Message: "phone already registered", Field: "phone"}
		}
	}
	u.ID = f.id("user")
	u.CreatedAt = time.Now().UTC()
	u.UpdatedAt = u.CreatedAt
	stored := *u
	f.users[u.ID] = &stored
	f.verifications[u.ID] = &model.Verification{UserID: u.ID, Status: model.VerificationNotSubmitted}
	return nil
}

func (f *fakeStore) GetUserByID(_ context.Context, id string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	cp := *u
	return &cp, nil
}

func (f *fakeStore) findUser(match func(*model.User) bool, key string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperror.NotFound("user", key)
}

func (f *fakeStore) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	return f.findUser(func(u *model.User) bool { return u.Email != nil && *u.Email == email }, email)
}

func (f *fakeStore) GetUserByPhone(_ context.Context, phone string) (*model.User, error) {
	return f.findUser(func(u *model.User) bool { return u.Phone != nil && *u.Phone == phone }, phone)
}

func (f *fakeStore) GetUserByOAuth(_ context.Context, provider, subject string) (*model.User, error) {
	return f.findUser(func(u *model.User) bool {
		return u.OAuthProvider != nil && *u.OAuthProvider == provider &&
			u.OAuthSubject != nil && *u.OAuthSubject == subject
	}, provider+":"+subject)
}

func (f *fakeStore) UpdatePassword(_ context.Context, userID, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return apperror.NotFound("user", userID)
	}
	u.PasswordHash = hash
	return nil
}

func (f *fakeStore) SetAdmin(_ context.Context, userID string, admin bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return apperror.NotFound("user", userID)
	}
	u.IsAdmin = admin
	return nil
}

// --- profiles --------------------------------------------------------------

func (f *fakeStore) GetFullProfile(_ context.Context, userID string) (*model.FullProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return nil, apperror.NotFound("user", userID)
	}
	fp := model.FullProfile{}
	if stored, ok := f.profiles[userID]; ok {
		fp = *stored
	}
	fp.User = *u
	v := *f.verifications[userID]
	fp.Verification = &v
	return &fp, nil
}

func (f *fakeStore) ApplyProfilePatch(_ context.Context, userID string, p model.ProfilePatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return apperror.NotFound("user", userID)
	}
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.AccountType != nil {
		u.AccountType = *p.AccountType
		if v, ok := f.verifications[userID]; ok {
			var docs []model.VerificationDocument
			for _, d := range f.documents {
				if d.UserID == userID {
					docs = append(docs, d)
				}
			}
			v.Tier = model.ComputeTier(*v, docs, u.AccountType)
		}
	}
	fp, ok := f.profiles[userID]
	if !ok {
		fp = &model.FullProfile{}
		f.profiles[userID] = fp
	}
	if p.Profile != nil {
		fp.Profile = p.Profile
	}
	if p.Business != nil {
		fp.Business = p.Business
	}
	if p.Storefront != nil {
		fp.Storefront = p.Storefront
	}
	if p.Location != nil {
		fp.Location = p.Location
	}
	if p.Social != nil {
		fp.Social = p.Social
	}
	return nil
}

// --- verification ----------------------------------------------------------

func (f *fakeStore) GetVerification(_ context.Context, userID string) (*model.Verification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.verifications[userID]
	if !ok {
		return nil, apperror.NotFound("verification", userID)
	}
	cp := *v
	return &cp, nil
}

func (f *fakeStore) SaveVerification(_ context.Context, v *model.Verification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *v
	f.verifications[v.UserID] = &cp
	return nil
}

func (f *fakeStore) AddDocument(_ context.Context, d *model.VerificationDocument) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d.ID = f.id("doc")
	d.CreatedAt = time.Now().UTC()
	f.documents = append(f.documents, *d)
	return nil
}

func (f *fakeStore) ListDocuments(_ context.Context, userID string) ([]model.VerificationDocument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	docs := []model.VerificationDocument{}
	for _, d := range f.documents {
		if d.UserID == userID {
			docs = append(docs, d)
		}
	}
	return docs, nil
}

func (f *fakeStore) ListPendingVerifications(_ context.Context) ([]model.PendingVerification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	list := []model.PendingVerification{}
	for id, v := range f.verifications {
		if v.Status != model.VerificationPending {
			continue
		}
		u := f.users[id]
		list = append(list, model.PendingVerification{
			Verification: *v, Name: u.Name, UserType: u.UserType, AccountType: u.AccountType,
		})
	}
	return list, nil
}

// --- products --------------------------------------------------------------

func (f *fakeStore) CreateProduct(_ context.Context, p *model.Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p.ID = f.id("product")
	p.CreatedAt = time.Now().UTC()
	p.UpdatedAt = p.CreatedAt
	cp := *p
	f.products[p.ID] = &cp
	return nil
}

func (f *fakeStore) GetProduct(_ context.Context, id string) (*model.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok {
		return nil, apperror.NotFound("product", id)
	}
	cp := *p
	return &cp, nil
}

func (f *fakeStore) UpdateProduct(_ context.Context, p *model.Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.products[p.ID]; !ok {
		return apperror.NotFound("product", p.ID)
	}
	cp := *p
	f.products[p.ID] = &cp
	return nil
}

func (f *fakeStore) DeleteProduct(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.products[id]; !ok {
		return apperror.NotFound("product", id)
	}
	delete(f.products, id)
	return nil
}

func (f *fakeStore) ListProducts(_ context.Context, flt model.ProductFilter) ([]model.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	list := []model.Product{}
	for _, p := range f.products {
		switch {
		case flt.SellerID != "" && p.SellerID != flt.SellerID,
			flt.Category != "" && p.Category != flt.Category,
			flt.ActiveOnly && !p.IsActive,
			flt.Query != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(flt.Query)):
			continue
		}
		list = append(list, *p)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	if flt.Limit > 0 && len(list) > flt.Limit {
		list = list[:flt.Limit]
	}
	return list, nil
}

// --- chat ------------------------------------------------------------------

func sameProduct(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (f *fakeStore) FindConversation(_ context.Context, buyerID, sellerID string, productID *string) (*model.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.conversations {
		if c.BuyerID == buyerID && c.SellerID == sellerID && sameProduct(c.ProductID, productID) {
			cp := *c
			return &cp, nil
		}
	}
	return nil, apperror.NotFound("conversation", buyerID+"/"+sellerID)
}

func (f *fakeStore) CreateConversation(_ context.Context, c *model.Conversation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, other := range f.conversations {
		if other.BuyerID == c.BuyerID && other.SellerID == c.SellerID && sameProduct(other.ProductID, c.ProductID) {
			return apperror.Conflict("conversation", "already exists")
		}
	}
	c.ID = f.id("conv")
	c.CreatedAt = time.Now().UTC()
	cp := *c
	f.conversations[c.ID] = &cp
	return nil
}

func (f *fakeStore) GetConversation(_ context.Context, id string) (*model.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.conversations[id]
	if !ok {
		return nil, apperror.NotFound("conversation", id)
	}
	cp := *c
	return &cp, nil
}

func (f *fakeStore) ListConversations(_ context.Context, userID string) ([]model.ConversationSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	list := []model.ConversationSummary{}
	for _, c := range f.conversations {
		if !c.HasParticipant(userID) {
			continue
		}
		other := c.Counterpart(userID)
		list = append(list, model.ConversationSummary{
			Conversation:  *c,
			OtherUserID:   other,
			OtherUserName: f.users[other].Name,
		})
	}
	return list, nil
}

func (f *fakeStore) insertMessage(m *model.Message) error {
	c, ok := f.conversations[m.ConversationID]
	if !ok {
		return apperror.NotFound("conversation", m.ConversationID)
	}
	m.ID = f.id("msg")
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	if m.MessageType == "" {
		m.MessageType = model.MessageText
	}
	f.messages = append(f.messages, *m)
	c.LastMessage = m.Content
	at := m.CreatedAt
	c.LastMessageAt = &at
	return nil
}

func (f *fakeStore) CreateMessage(_ context.Context, m *model.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.insertMessage(m)
}

func (f *fakeStore) ListMessages(_ context.Context, conversationID, afterID string, limit int) ([]model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	list := []model.Message{}
	seen := afterID == ""
	for _, m := range f.messages {
		if m.ConversationID != conversationID {
			continue
		}
		if !seen {
			seen = m.ID == afterID
			continue
		}
		list = append(list, m)
	}
	if !seen {
		return nil, apperror.NotFound("message", afterID)
	}
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

func (f *fakeStore) MarkMessagesRead(_ context.Context, conversationID, readerID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for i := range f.messages {
		m := &f.messages[i]
		if m.ConversationID == conversationID && m.SenderID != readerID && !m.IsRead {
			m.IsRead = true
			n++
		}
	}
	return n, nil
}

// messagesIn returns the stored messages of one conversation.
func (f *fakeStore) messagesIn(conversationID string) []model.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Message
	for _, m := range f.messages {
		if m.ConversationID == conversationID {
			out = append(out, m)
		}
	}
	return out
}

// --- offers ----------------------------------------------------------------

func (f *fakeStore) CreateOffer(_ context.Context, o *model.Offer, msg *model.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.conversations[o.ConversationID]; !ok {
		return apperror.NotFound("conversation", o.ConversationID)
	}
	o.ID = f.id("offer")
	o.CreatedAt = time.Now().UTC()
	o.UpdatedAt = o.CreatedAt
	cp := *o
	f.offers[o.ID] = &cp
	if msg != nil {
		msg.OfferID = &cp.ID
		return f.insertMessage(msg)
	}
	return nil
}

func (f *fakeStore) GetOffer(_ context.Context, id string) (*model.Offer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.offers[id]
	if !ok {
		return nil, apperror.NotFound("offer", id)
	}
	cp := *o
	return &cp, nil
}

func (f *fakeStore) ListOffers(_ context.Context, flt model.OfferFilter) ([]model.Offer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	list := []model.Offer{}
	for _, o := range f.offers {
		switch {
		case flt.Role == model.ActorBuyer && o.BuyerID != flt.UserID,
			flt.Role == model.ActorSeller && o.SellerID != flt.UserID,
			flt.Role == "" && o.BuyerID != flt.UserID && o.SellerID != flt.UserID,
			flt.ConversationID != "" && o.ConversationID != flt.ConversationID,
			flt.Status != "" && o.Status != flt.Status:
			continue
		}
		list = append(list, *o)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

func (f *fakeStore) UpdateOfferStatus(_ context.Context, u repository.OfferStatusUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.offers[u.OfferID]
	if !ok {
		return apperror.NotFound("offer", u.OfferID)
	}
	if f.beforeStatusUpdate != nil {
		f.beforeStatusUpdate(o)
	}
	if o.Status != u.From {
		return apperror.Conflict("offer", "status is now "+string(o.Status))
	}
	o.Status = u.To
	o.UpdatedAt = u.At
	if u.TrackingNumber != "" {
		o.TrackingNumber = u.TrackingNumber
	}
	if u.Message != nil {
		u.Message.OfferID = &o.ID
		return f.insertMessage(u.Message)
	}
	return nil
}

func (f *fakeStore) ListOverdueOffers(_ context.Context, now time.Time, _ int) ([]model.Offer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	list := []model.Offer{}
	for _, o := range f.offers {
		if o.Status == model.OfferPending && o.ExpiresAt.Before(now) {
			list = append(list, *o)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

// --- notifications ---------------------------------------------------------

func (f *fakeStore) CreateNotification(_ context.Context, n *model.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.notifyErr != nil {
		return f.notifyErr
	}
	n.ID = f.id("notif")
	n.CreatedAt = time.Now().UTC()
	f.notifications = append(f.notifications, *n)
	return nil
}

func (f *fakeStore) ListNotifications(_ context.Context, flt repository.NotificationFilter) ([]model.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	list := []model.Notification{}
	for _, n := range f.notifications {
		if n.UserID != flt.UserID || (flt.UnreadOnly && n.IsRead) {
			continue
		}
		if flt.Since != nil && !n.CreatedAt.After(*flt.Since) {
			continue
		}
		list = append(list, n)
	}
	slices.Reverse(list)
	return list, nil
}

func (f *fakeStore) CountUnreadNotifications(_ context.Context, userID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, x := range f.notifications {
		if x.UserID == userID && !x.IsRead {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) MarkNotificationRead(_ context.Context, userID, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.notifications {
		if n := &f.notifications[i]; n.ID == id && n.UserID == userID {
			n.IsRead = true
			return nil
		}
	}
	return apperror.NotFound("notification", id)
}

func (f *fakeStore) MarkAllNotificationsRead(_ context.Context, userID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for i := range f.notifications {
		if n := &f.notifications[i]; n.UserID == userID && !n.IsRead {
			n.IsRead = true
			count++
		}
	}
	return count, nil
}

// notificationsFor returns what userID has been sent, oldest first.
func (f *fakeStore) notificationsFor(userID string) []model.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Notification
	for _, n := range f.notifications {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out
}

// --- dashboard -------------------------------------------------------------

func (f *fakeStore) DashboardSummary(_ context.Context, userID string) (*model.DashboardSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[userID]; !ok {
		return nil, apperror.NotFound("user", userID)
	}
	sum := &model.DashboardSummary{}
	for _, p := range f.products {
		if p.SellerID == userID {
			sum.Products++
		}
	}
	for _, o := range f.offers {
		if o.BuyerID != userID && o.SellerID != userID {
			continue
		}
		switch {
		case o.Status == model.OfferCompleted:
			sum.CompletedOffers++
		case o.Status.Active():
			sum.ActiveOffers++
		}
	}
	for _, n := range f.notifications {
		if n.UserID == userID && !n.IsRead {
			sum.UnreadNotifications++
		}
	}
	return sum, nil
}

// =========================================================================
// HELPERS
// =========================================================================

func discardLogger() *slog.Logger {
	return logging.Discard()
}

// seedUser stores a user directly, bypassing registration.
func seedUser(f *fakeStore, name string, ut model.UserType) *model.User {
	email := strings.ToLower(name) + "@example.com"
	u := &model.User{Email: &email, Name: name, UserType: ut, AccountType: model.AccountIndividual}
	if err := f.CreateUser(context.Background(), u); err != nil {
		panic(err)
	}
	return u
}
