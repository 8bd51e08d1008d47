package dynamo

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-subtracker/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockAPI struct{ mock.Mock }

func (m *mockAPI) GetItem(ctx context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dynamodb.GetItemOutput), args.Error(1)
}

func (m *mockAPI) PutItem(ctx context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dynamodb.PutItemOutput), args.Error(1)
}

func (m *mockAPI) UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dynamodb.UpdateItemOutput), args.Error(1)
}

func (m *mockAPI) DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dynamodb.DeleteItemOutput), args.Error(1)
}

func (m *mockAPI) Query(ctx context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dynamodb.QueryOutput), args.Error(1)
}

func (m *mockAPI) Scan(ctx context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dynamodb.ScanOutput), args.Error(1)
}

func (m *mockAPI) BatchWriteItem(ctx context.Context, in *dynamodb.BatchWriteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dynamodb.BatchWriteItemOutput), args.Error(1)
}

func marshalItem(t *testing.T, v interface{}) map[string]types.AttributeValue {
	t.Helper()
	item, err := attributevalue.MarshalMap(v)
	require.NoError(t, err)
	return item
}

func TestUserRepo_Get_NotFound(t *testing.T) {
	api := &mockAPI{}
	api.On("GetItem", mock.Anything, mock.Anything).Return(&dynamodb.GetItemOutput{}, nil)

	_, err := NewUserRepo(api, "users").Get(context.Background(), "u1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUserRepo_Get_RoundTripsNotifications(t *testing.T) {
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	u := domain.User{
		UserID: "u1",
		Email:  "a@b.c",
		Notifications: []domain.Notification{
			{ID: "s1-3", SubscriptionID: "s1", DayOffset: 3, Type: domain.NotificationPayment, CreatedAt: created},
		},
	}
	api := &mockAPI{}
	api.On("GetItem", mock.Anything, mock.Anything).Return(&dynamodb.GetItemOutput{Item: marshalItem(t, u)}, nil)

	got, err := NewUserRepo(api, "users").Get(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, got.Notifications, 1)
	assert.Equal(t, "s1-3", got.Notifications[0].ID)
	assert.True(t, created.Equal(got.Notifications[0].CreatedAt))
	assert.Nil(t, got.NotificationPreferences)
}

func TestUserRepo_Put_ConflictOnExistingID(t *testing.T) {
	api := &mockAPI{}
	api.On("PutItem", mock.Anything, mock.Anything).
		Return(nil, &types.ConditionalCheckFailedException{Message: aws.String("exists")})

	err := NewUserRepo(api, "users").Put(context.Background(), &domain.User{UserID: "u1"})
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestUserRepo_UpdateNotifications_WritesEmptyListAndBumpsVersion(t *testing.T) {
	api := &mockAPI{}
	api.On("UpdateItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.UpdateItemInput) bool {
		l, ok := in.ExpressionAttributeValues[":n"].(*types.AttributeValueMemberL)
		return ok && len(l.Value) == 0 &&
			*in.UpdateExpression == "SET #n = :n, #u = :u ADD #v :one" &&
			in.ExpressionAttributeNames["#v"] == fieldNotificationsVersion &&
			*in.ConditionExpression == "attribute_exists(user_id)"
	})).Return(&dynamodb.UpdateItemOutput{}, nil)

	err := NewUserRepo(api, "users").UpdateNotifications(context.Background(), "u1", nil)
	require.NoError(t, err)
	api.AssertExpectations(t)
}

func TestUserRepo_ReplaceNotifications_ConditionOnVersion(t *testing.T) {
	api := &mockAPI{}
	api.On("UpdateItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.UpdateItemInput) bool {
		ver, ok := in.ExpressionAttributeValues[":ver"].(*types.AttributeValueMemberN)
		return ok && ver.Value == "7" &&
			*in.ConditionExpression == "attribute_exists(user_id) AND (attribute_not_exists(#v) OR #v = :ver)"
	})).Return(&dynamodb.UpdateItemOutput{}, nil)

	ns := []domain.Notification{{ID: "s1-3", SubscriptionID: "s1", DayOffset: 3}}
	require.NoError(t, NewUserRepo(api, "users").ReplaceNotifications(context.Background(), "u1", ns, 7))
	api.AssertExpectations(t)
}

func TestUserRepo_ReplaceNotifications_StaleVersionIsConflict(t *testing.T) {
	api := &mockAPI{}
	api.On("UpdateItem", mock.Anything, mock.Anything).
		Return(nil, &types.ConditionalCheckFailedException{Message: aws.String("stale")})
	repo := NewUserRepo(api, "users")

	err := repo.ReplaceNotifications(context.Background(), "u1", nil, 3)
	assert.ErrorIs(t, err, domain.ErrConflict)

	err = repo.UpdateNotifications(context.Background(), "u1", nil)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUserRepo_Update_MissingUser(t *testing.T) {
	api := &mockAPI{}
	api.On("UpdateItem", mock.Anything, mock.Anything).
		Return(nil, &types.ConditionalCheckFailedException{Message: aws.String("missing")})

	err := NewUserRepo(api, "users").Update(context.Background(), "u1", map[string]interface{}{"first_name": "A"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUserRepo_ScanPage_Cursor(t *testing.T) {
	api := &mockAPI{}
	api.On("Scan", mock.Anything, mock.MatchedBy(func(in *dynamodb.ScanInput) bool {
		return in.ExclusiveStartKey == nil
	})).Return(&dynamodb.ScanOutput{
		Items:            []map[string]types.AttributeValue{marshalItem(t, domain.User{UserID: "u1", Enable: true})},
		LastEvaluatedKey: strKey(fieldUserID, "u1"),
	}, nil)

	users, next, err := NewUserRepo(api, "users").ScanPage(context.Background(), 1, "")
	require.NoError(t, err)
	assert.Len(t, users, 1)
	assert.Equal(t, encodeCursor("u1"), next)

	_, _, err = NewUserRepo(api, "users").ScanPage(context.Background(), 1, "%%%")
	assert.ErrorIs(t, err, domain.ErrBadRequest)
}

func TestSubscriptionRepo_ListByUser_FollowsPages(t *testing.T) {
	s1 := domain.Subscription{SubscriptionID: "s1", UserID: "u1", Price: domain.MustPrice("9.99"), NextBillingDate: domain.NewDate(2026, 5, 1)}
	s2 := domain.Subscription{SubscriptionID: "s2", UserID: "u1", Price: domain.MustPrice("1.00")}

	api := &mockAPI{}
	api.On("Query", mock.Anything, mock.MatchedBy(func(in *dynamodb.QueryInput) bool {
		return in.ExclusiveStartKey == nil
	})).Return(&dynamodb.QueryOutput{
		Items:            []map[string]types.AttributeValue{marshalItem(t, s1)},
		LastEvaluatedKey: strKey("subscription_id", "s1"),
	}, nil).Once()
	api.On("Query", mock.Anything, mock.MatchedBy(func(in *dynamodb.QueryInput) bool {
		return in.ExclusiveStartKey != nil
	})).Return(&dynamodb.QueryOutput{
		Items: []map[string]types.AttributeValue{marshalItem(t, s2)},
	}, nil).Once()

	subs, err := NewSubscriptionRepo(api, "subscriptions").ListByUser(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Equal(t, "9.99", subs[0].Price.String())
	assert.Equal(t, "2026-05-01", subs[0].NextBillingDate.String())
	assert.True(t, subs[1].NextBillingDate.IsZero())
}

func TestSubscriptionRepo_ListByUser_QueryError(t *testing.T) {
	api := &mockAPI{}
	api.On("Query", mock.Anything, mock.Anything).Return(nil, errors.New("throttled"))

	_, err := NewSubscriptionRepo(api, "subscriptions").ListByUser(context.Background(), "u1")
	assert.ErrorContains(t, err, "throttled")
}

func TestSubscriptionRepo_RemoveListID(t *testing.T) {
	api := &mockAPI{}
	api.On("UpdateItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.UpdateItemInput) bool {
		return *in.UpdateExpression == "REMOVE #l SET #u = :u" && in.ExpressionAttributeNames["#l"] == "list_id"
	})).Return(&dynamodb.UpdateItemOutput{}, nil)

	require.NoError(t, NewSubscriptionRepo(api, "subscriptions").RemoveListID(context.Background(), "s1"))
	api.AssertExpectations(t)
}

func batchOf(n int) func(*dynamodb.BatchWriteItemInput) bool {
	return func(in *dynamodb.BatchWriteItemInput) bool { return len(in.RequestItems["subscriptions"]) == n }
}

func TestSubscriptionRepo_PutBatch_ChunksAndRetriesUnprocessed(t *testing.T) {
	batchBackoff = time.Millisecond
	t.Cleanup(func() { batchBackoff = 50 * time.Millisecond })

	subs := make([]domain.Subscription, 30)
	for i := range subs {
		subs[i] = domain.Subscription{SubscriptionID: fmt.Sprintf("s%d", i), UserID: "u1", Name: "x", Price: domain.MustPrice("1")}
	}
	leftover := []types.WriteRequest{{PutRequest: &types.PutRequest{Item: marshalItem(t, &subs[0])}}}

	api := &mockAPI{}
	api.On("BatchWriteItem", mock.Anything, mock.MatchedBy(batchOf(25))).Return(&dynamodb.BatchWriteItemOutput{
		UnprocessedItems: map[string][]types.WriteRequest{"subscriptions": leftover},
	}, nil).Once()
	api.On("BatchWriteItem", mock.Anything, mock.MatchedBy(batchOf(1))).Return(&dynamodb.BatchWriteItemOutput{}, nil).Once()
	api.On("BatchWriteItem", mock.Anything, mock.MatchedBy(batchOf(5))).Return(&dynamodb.BatchWriteItemOutput{}, nil).Once()

	require.NoError(t, NewSubscriptionRepo(api, "subscriptions").PutBatch(context.Background(), subs))
	api.AssertExpectations(t)
	api.AssertNumberOfCalls(t, "BatchWriteItem", 3)
}

func TestSubscriptionRepo_PutBatch_GivesUpOnPersistentBacklog(t *testing.T) {
	batchBackoff = time.Millisecond
	t.Cleanup(func() { batchBackoff = 50 * time.Millisecond })

	sub := domain.Subscription{SubscriptionID: "s1", UserID: "u1", Price: domain.MustPrice("1")}
	leftover := []types.WriteRequest{{PutRequest: &types.PutRequest{Item: marshalItem(t, &sub)}}}

	api := &mockAPI{}
	api.On("BatchWriteItem", mock.Anything, mock.Anything).Return(&dynamodb.BatchWriteItemOutput{
		UnprocessedItems: map[string][]types.WriteRequest{"subscriptions": leftover},
	}, nil)

	err := NewSubscriptionRepo(api, "subscriptions").PutBatch(context.Background(), []domain.Subscription{sub})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 items left unprocessed")
	api.AssertNumberOfCalls(t, "BatchWriteItem", batchWriteAttempts)
}
