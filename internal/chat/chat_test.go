package chat

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"petit-storefront/internal/backend"
	"petit-storefront/internal/domain"
	"petit-storefront/internal/session"
	"petit-storefront/internal/store"
)

type MockAssistantAPI struct {
	mock.Mock
}

func (m *MockAssistantAPI) BuyerChat(ctx context.Context, in backend.BuyerChatRequest) ([]byte, error) {
	args := m.Called(ctx, in)
	b, _ := args.Get(0).([]byte)
	return b, args.Error(1)
}

func (m *MockAssistantAPI) SellerChat(ctx context.Context, token string, in backend.SellerChatRequest) ([]byte, error) {
	args := m.Called(ctx, token, in)
	b, _ := args.Get(0).([]byte)
	return b, args.Error(1)
}

func buyerLocal(t *testing.T) *store.Local {
	t.Helper()
	local := store.NewLocal(store.NewMemoryStore(), "client-1", nil)
	local.SetString(context.Background(), domain.RoleBuyer.UserKey(), `{"name":"Bo"}`)
	return local
}

func TestSendBuyer_PersistsTranscript(t *testing.T) {
	ctx := context.Background()
	api := new(MockAssistantAPI)
	api.On("BuyerChat", mock.Anything, mock.MatchedBy(func(in backend.BuyerChatRequest) bool {
		return in.Message == "hi" && len(in.History) == 0 && string(in.Buyer) == `{"name":"Bo"}`
	})).Return([]byte(`{"reply":"Hello Bo"}`), nil).Once()
	api.On("BuyerChat", mock.Anything, mock.MatchedBy(func(in backend.BuyerChatRequest) bool {
		return in.Message == "mugs?" && len(in.History) == 2
	})).Return([]byte(`{"raw":{"choices":[{"message":{"content":"Try the Blue Mug"}}]}}`), nil).Once()
	svc := NewService(api)
	local := buyerLocal(t)

	_, err := svc.SendBuyer(ctx, local, "hi")
	require.NoError(t, err)
	msgs, err := svc.SendBuyer(ctx, local, "mugs?")
	require.NoError(t, err)

	require.Len(t, msgs, 4)
	assert.Equal(t, domain.ChatMessage{Role: "assistant", Content: "Hello Bo"}, msgs[1])
	assert.Equal(t, "Try the Blue Mug", msgs[3].Content)
	assert.Equal(t, msgs, Transcript(ctx, local))
	api.AssertExpectations(t)

	ClearTranscript(ctx, local)
	assert.Empty(t, Transcript(ctx, local))
}

func TestBuyerReply(t *testing.T) {
	tests := []struct {
		name string
		body string
		err  error
		want string
	}{
		{"reply", `{"reply":"ok"}`, nil, "ok"},
		{"empty reply kept", `{"reply":"","raw":{"choices":[{"message":{"content":"x"}}]}}`, nil, ""},
		{"raw choice", `{"raw":{"choices":[{"message":{"content":"x"}}]}}`, nil, "x"},
		{"nothing", `{}`, nil, "No reply"},
		{"not json", `hello`, nil, "No reply"},
		{"upstream error", "", &backend.APIError{StatusCode: 500, Body: "model overloaded"}, "Error: model overloaded"},
		{"network", "", errors.New("dial tcp: refused"), "Network error"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, buyerReply([]byte(tc.body), tc.err))
		})
	}
}

func TestSendBuyer_RequiresBuyer(t *testing.T) {
	local := store.NewLocal(store.NewMemoryStore(), "anon", nil)
	_, err := NewService(new(MockAssistantAPI)).SendBuyer(context.Background(), local, "hi")
	assert.ErrorIs(t, err, ErrNotBuyer)
	assert.Equal(t, http.StatusForbidden, backend.StatusOf(err))
}

func TestSendBuyer_BlankMessageIsNoop(t *testing.T) {
	api := new(MockAssistantAPI)
	msgs, err := NewService(api).SendBuyer(context.Background(), buyerLocal(t), "   ")
	require.NoError(t, err)
	assert.Empty(t, msgs)
	api.AssertNotCalled(t, "BuyerChat", mock.Anything, mock.Anything)
}

func sellerLocal(t *testing.T, user string) *store.Local {
	t.Helper()
	ctx := context.Background()
	local := store.NewLocal(store.NewMemoryStore(), "client-1", nil)
	local.SetString(ctx, domain.RoleSeller.TokenKey(), "stok")
	if user != "" {
		local.SetString(ctx, domain.RoleSeller.UserKey(), user)
	}
	return local
}

func TestSendSeller(t *testing.T) {
	ctx := context.Background()
	api := new(MockAssistantAPI)
	api.On("SellerChat", mock.Anything, "stok", mock.MatchedBy(func(in backend.SellerChatRequest) bool {
		return in.Message == "open a bakery" && in.Seller.Name != nil && *in.Seller.Name == "Ann"
	})).Return([]byte(`{"reply":"Done","created":{"id":"local-1","name":"Bakery"}}`), nil).Once()

	reply, err := NewService(api).SendSeller(ctx, sellerLocal(t, `{"name":"Ann"}`), " open a bakery ")
	require.NoError(t, err)
	assert.Equal(t, "Done", reply.Reply)
	assert.JSONEq(t, `{"id":"local-1","name":"Bakery"}`, string(reply.Created))
}

func TestSendSeller_NoNameSendsNull(t *testing.T) {
	api := new(MockAssistantAPI)
	api.On("SellerChat", mock.Anything, "stok", mock.MatchedBy(func(in backend.SellerChatRequest) bool {
		return in.Seller.Name == nil
	})).Return([]byte(`plain text answer`), nil).Once()

	reply, err := NewService(api).SendSeller(context.Background(), sellerLocal(t, ""), "hi")
	require.NoError(t, err)
	assert.Equal(t, "plain text answer", reply.Reply)
}

func TestSendSeller_Failures(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"server message", &backend.APIError{StatusCode: 400, Message: "bad prompt"}, "Error: bad prompt"},
		{"bare status", &backend.APIError{StatusCode: 503}, "Error: HTTP 503"},
		{"network", errors.New("connection refused"), "Error contacting seller AI: connection refused"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			api := new(MockAssistantAPI)
			api.On("SellerChat", mock.Anything, "stok", mock.Anything).Return(nil, tc.err)
			reply, err := NewService(api).SendSeller(context.Background(), sellerLocal(t, ""), "hi")
			require.NoError(t, err)
			assert.Equal(t, tc.want, reply.Reply)
		})
	}
}

func TestSellerReply(t *testing.T) {
	assert.Equal(t, `{"a":1}`, sellerReply([]byte(`{"raw":{"a":1}}`)).Reply)
	assert.Equal(t, "No reply", sellerReply([]byte(`{}`)).Reply)
	assert.Equal(t, "No reply", sellerReply(nil).Reply)
}

func TestSendSeller_RequiresToken(t *testing.T) {
	local := store.NewLocal(store.NewMemoryStore(), "anon", nil)
	_, err := NewService(new(MockAssistantAPI)).SendSeller(context.Background(), local, "hi")
	assert.ErrorIs(t, err, session.ErrNotSignedIn)
}
