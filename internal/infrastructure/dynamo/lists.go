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

// ListRepo provides typed DynamoDB operations for the lists table.
type ListRepo struct {
	client    API
	tableName string
}

func NewListRepo(client API, tableName string) *ListRepo {
	return &ListRepo{client: client, tableName: tableName}
}

func (r *ListRepo) Put(ctx context.Context, l *domain.List) error {
	item, err := attributevalue.MarshalMap(l)
	if err != nil {
		return fmt.Errorf("marshal list: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *ListRepo) Get(ctx context.Context, listID string) (*domain.List, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("list_id", listID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("list not found: %w", domain.ErrNotFound)
	}
	var l domain.List
	if err := attributevalue.UnmarshalMap(out.Item, &l); err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *ListRepo) ListByUser(ctx context.Context, userID string) ([]domain.List, error) {
	return queryAll[domain.List](ctx, r.client, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String(indexUserID),
		KeyConditionExpression: aws.String("user_id = :uid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uid": &types.AttributeValueMemberS{Value: userID},
		},
	})
}

func (r *ListRepo) Delete(ctx context.Context, listID string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("list_id", listID),
	})
	return err
}
