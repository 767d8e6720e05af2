package sqlstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/agrilink/internal/apperror"
	"github.com/sakif/agrilink/internal/model"
)

type chatFixture struct {
	db     *DB
	buyer  *model.User
	seller *model.User
	prod   *model.Product
	conv   *model.Conversation
}

func newChatFixture(t *testing.T) *chatFixture {
	t.Helper()
	db := newTestDB(t)
	f := &chatFixture{
		db:     db,
		buyer:  createTestUser(t, db, "buyer@example.com", model.UserTypeBuyer),
		seller: createTestUser(t, db, "seller@example.com", model.UserTypeFarmer),
	}
	f.prod = createTestProduct(t, db, f.seller.ID, "Paw San rice")
	f.conv = &model.Conversation{BuyerID: f.buyer.ID, SellerID: f.seller.ID, ProductID: &f.prod.ID}
	require.NoError(t, db.CreateConversation(context.Background(), f.conv))
	return f
}

func (f *chatFixture) send(t *testing.T, from *model.User, content string) *model.Message {
	t.Helper()
	m := &model.Message{ConversationID: f.conv.ID, SenderID: from.ID, Content: content}
	require.NoError(t, f.db.CreateMessage(context.Background(), m))
	return m
}

func TestConversation_FindAndUnique(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()

	found, err := f.db.FindConversation(ctx, f.buyer.ID, f.seller.ID, &f.prod.ID)
	require.NoError(t, err)
	assert.Equal(t, f.conv.ID, found.ID)

	_, err = f.db.FindConversation(ctx, f.buyer.ID, f.seller.ID, nil)
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	dup := &model.Conversation{BuyerID: f.buyer.ID, SellerID: f.seller.ID, ProductID: &f.prod.ID}
	assert.ErrorIs(t, f.db.CreateConversation(ctx, dup), apperror.ErrConflict)

	general := &model.Conversation{BuyerID: f.buyer.ID, SellerID: f.seller.ID}
	require.NoError(t, f.db.CreateConversation(ctx, general))
	again := &model.Conversation{BuyerID: f.buyer.ID, SellerID: f.seller.ID}
	assert.ErrorIs(t, f.db.CreateConversation(ctx, again), apperror.ErrConflict,
		"only one product-less thread per pair")
}

func TestCreateMessage_UpdatesPreview(t *testing.T) {
	f := newChatFixture(t)
	f.send(t, f.buyer, "Is the rice still available?")

	c, err := f.db.GetConversation(context.Background(), f.conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "Is the rice still available?", c.LastMessage)
	require.NotNil(t, c.LastMessageAt)
}

func TestCreateMessage_UnknownConversation(t *testing.T) {
	f := newChatFixture(t)
	err := f.db.CreateMessage(context.Background(), &model.Message{
		ConversationID: "nope", SenderID: f.buyer.ID, Content: "hi",
	})
	assert.Error(t, err)
}

func TestListMessages_Cursor(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()

	m1 := f.send(t, f.buyer, "one")
	m2 := f.send(t, f.seller, "two")
	m3 := f.send(t, f.buyer, "three")

	all, err := f.db.ListMessages(ctx, f.conv.ID, "", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{m1.ID, m2.ID, m3.ID}, []string{all[0].ID, all[1].ID, all[2].ID})

	latest, err := f.db.ListMessages(ctx, f.conv.ID, "", 2)
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, m2.ID, latest[0].ID, "without a cursor the newest page comes back oldest first")
	assert.Equal(t, m3.ID, latest[1].ID)

	after, err := f.db.ListMessages(ctx, f.conv.ID, m1.ID, 0)
	require.NoError(t, err)
	require.Len(t, after, 2)
	assert.Equal(t, m2.ID, after[0].ID)

	none, err := f.db.ListMessages(ctx, f.conv.ID, m3.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = f.db.ListMessages(ctx, f.conv.ID, "unknown", 0)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestListConversations_Summary(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()

	f.send(t, f.buyer, "hello")
	f.send(t, f.buyer, "anyone there?")

	sellerInbox, err := f.db.ListConversations(ctx, f.seller.ID)
	require.NoError(t, err)
	require.Len(t, sellerInbox, 1)
	s := sellerInbox[0]
	assert.Equal(t, f.buyer.ID, s.OtherUserID)
	assert.Equal(t, f.buyer.Name, s.OtherUserName)
	require.NotNil(t, s.ProductName)
	assert.Equal(t, "Paw San rice", *s.ProductName)
	assert.Equal(t, 2, s.UnreadCount)
	assert.Equal(t, "anyone there?", s.LastMessage)

	buyerInbox, err := f.db.ListConversations(ctx, f.buyer.ID)
	require.NoError(t, err)
	require.Len(t, buyerInbox, 1)
	assert.Equal(t, 0, buyerInbox[0].UnreadCount, "own messages are never unread")

	n, err := f.db.MarkMessagesRead(ctx, f.conv.ID, f.seller.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	sellerInbox, err = f.db.ListConversations(ctx, f.seller.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, sellerInbox[0].UnreadCount)
}

func TestListConversations_OrderedByActivity(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()

	other := &model.Conversation{BuyerID: f.buyer.ID, SellerID: f.seller.ID}
	require.NoError(t, f.db.CreateConversation(ctx, other))

	time.Sleep(2 * time.Millisecond)
	f.send(t, f.buyer, "bump")

	inbox, err := f.db.ListConversations(ctx, f.buyer.ID)
	require.NoError(t, err)
	require.Len(t, inbox, 2)
	assert.Equal(t, f.conv.ID, inbox[0].ID)
	assert.Nil(t, inbox[1].ProductName)
}

func TestPreview(t *testing.T) {
	long := make([]rune, messagePreviewLen+10)
	for i := range long {
		long[i] = 'က'
	}
	assert.Len(t, []rune(preview(string(long))), messagePreviewLen)
	assert.Equal(t, "short", preview("short"))
}
