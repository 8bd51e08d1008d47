package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-subtracker/internal/domain"
)

// PriceHistoryRepo provides typed DynamoDB operations for the price_history table.
type PriceHistoryRepo struct {
	client    API
	tableName string
}

func NewPriceHistoryRepo(client API, tableName string) *PriceHistoryRepo {
	return &PriceHistoryRepo{client: client, tableName: tableName}
}

func (r *PriceHistoryRepo) Put(ctx context.Context, h *domain.PriceHistory) error {
	item, err := attributevalue.MarshalMap(h)
	if err != nil {
		return fmt.Errorf("marshal price history: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *PriceHistoryRepo) ListBySubscription(ctx context.Context, subscriptionID string) ([]domain.PriceHistory, error) {
	return queryAll[domain.PriceHistory](ctx, r.client, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String(indexSubscriptionID),
		KeyConditionExpression: aws.String("subscription_id = :sid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":sid": &types.AttributeValueMemberS{Value: subscriptionID},
		},
	})
}

func (r *PriceHistoryRepo) ListByUser(ctx context.Context, userID string) ([]domain.PriceHistory, error) {
	return queryAll[domain.PriceHistory](ctx, r.client, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String(indexUserID),
		KeyConditionExpression: aws.String("user_id = :uid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uid": &types.AttributeValueMemberS{Value: userID},
		},
	})
}
