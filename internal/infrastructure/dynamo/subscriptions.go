package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-subtracker/internal/domain"
)

const (
	batchWriteLimit    = 25
	batchWriteAttempts = 5
)

// batchBackoff is the pause before retrying unprocessed items; it doubles per attempt.
var batchBackoff = 50 * time.Millisecond

// SubscriptionRepo provides typed DynamoDB operations for the subscriptions table.
type SubscriptionRepo struct {
	client    API
	tableName string
}

func NewSubscriptionRepo(client API, tableName string) *SubscriptionRepo {
	return &SubscriptionRepo{client: client, tableName: tableName}
}

// Put creates or fully replaces a subscription.
func (r *SubscriptionRepo) Put(ctx context.Context, s *domain.Subscription) error {
	item, err := attributevalue.MarshalMap(s)
	if err != nil {
		return fmt.Errorf("marshal subscription: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

// PutBatch writes subs in chunks of 25. Items DynamoDB leaves unprocessed are
// retried with backoff; any still left afterwards fail the call.
func (r *SubscriptionRepo) PutBatch(ctx context.Context, subs []domain.Subscription) error {
	for start := 0; start < len(subs); start += batchWriteLimit {
		end := min(start+batchWriteLimit, len(subs))
		reqs := make([]types.WriteRequest, 0, end-start)
		for i := start; i < end; i++ {
			item, err := attributevalue.MarshalMap(&subs[i])
			if err != nil {
				return fmt.Errorf("marshal subscription: %w", err)
			}
			reqs = append(reqs, types.WriteRequest{PutRequest: &types.PutRequest{Item: item}})
		}
		if err := r.writeBatch(ctx, reqs); err != nil {
			return err
		}
	}
	return nil
}

func (r *SubscriptionRepo) writeBatch(ctx context.Context, reqs []types.WriteRequest) error {
	wait := batchBackoff
	for attempt := 1; ; attempt++ {
		out, err := r.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]types.WriteRequest{r.tableName: reqs},
		})
		if err != nil {
			return err
		}
		reqs = out.UnprocessedItems[r.tableName]
		if len(reqs) == 0 {
			return nil
		}
		if attempt == batchWriteAttempts {
			return fmt.Errorf("batch write: %d items left unprocessed", len(reqs))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		wait *= 2
	}
}

func (r *SubscriptionRepo) Get(ctx context.Context, subscriptionID string) (*domain.Subscription, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("subscription_id", subscriptionID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("subscription not found: %w", domain.ErrNotFound)
	}
	var s domain.Subscription
	if err := attributevalue.UnmarshalMap(out.Item, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// ListByUser returns every subscription owned by userID, unfiltered and unsorted.
func (r *SubscriptionRepo) ListByUser(ctx context.Context, userID string) ([]domain.Subscription, error) {
	return queryAll[domain.Subscription](ctx, r.client, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String(indexUserID),
		KeyConditionExpression: aws.String("user_id = :uid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uid": &types.AttributeValueMemberS{Value: userID},
		},
	})
}

func (r *SubscriptionRepo) Delete(ctx context.Context, subscriptionID string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("subscription_id", subscriptionID),
	})
	return err
}

// RemoveListID drops the weak list reference from a subscription.
func (r *SubscriptionRepo) RemoveListID(ctx context.Context, subscriptionID string) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(r.tableName),
		Key:              strKey("subscription_id", subscriptionID),
		UpdateExpression: aws.String("REMOVE #l SET #u = :u"),
		ExpressionAttributeNames: map[string]string{
			"#l": fieldListID,
			"#u": fieldUpdatedAt,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":u": &types.AttributeValueMemberS{Value: now()},
		},
		ConditionExpression: aws.String("attribute_exists(subscription_id)"),
	})
	if isConditionFailed(err) {
		return fmt.Errorf("subscription not found: %w", domain.ErrNotFound)
	}
	return err
}
