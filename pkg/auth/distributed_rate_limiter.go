package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoDBAPI is the part of the DynamoDB client the limiter needs
type DynamoDBAPI interface {
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

// DistributedRateLimiter is a fixed-window counter kept in DynamoDB, so
// limits hold across Lambda instances. Counter rows expire through the
// table's TTL attribute an hour after their window closes.
type DistributedRateLimiter struct {
	client    DynamoDBAPI
	tableName string
	limit     int
	window    time.Duration
	keyPrefix string
	now       func() time.Time
}

type counterKey struct {
	PK string `dynamodbav:"PK"`
}

type counterRow struct {
	Count int   `dynamodbav:"Count"`
	TTL   int64 `dynamodbav:"TTL"`
}

// NewDistributedRateLimiter allows limit calls per key in each window.
func NewDistributedRateLimiter(client DynamoDBAPI, tableName string, limit int, window time.Duration, keyPrefix string) *DistributedRateLimiter {
	return &DistributedRateLimiter{
		client:    client,
		tableName: tableName,
		limit:     limit,
		window:    window,
		keyPrefix: keyPrefix,
		now:       time.Now,
	}
}

func (r *DistributedRateLimiter) itemKey(key string, windowStart time.Time) (map[string]types.AttributeValue, error) {
	return attributevalue.MarshalMap(counterKey{
		PK: fmt.Sprintf("RATELIMIT#%s#%s#%d", r.keyPrefix, key, windowStart.Unix()),
	})
}

// Allow counts one call for key. Store failures fail open and are returned
// so the caller can log them.
func (r *DistributedRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	if r.client == nil {
		return true, nil
	}

	windowStart := r.now().Truncate(r.window)
	itemKey, err := r.itemKey(key, windowStart)
	if err != nil {
		return true, fmt.Errorf("rate limiter key (failing open): %w", err)
	}
	expires := windowStart.Add(r.window + time.Hour).Unix()

	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 itemKey,
		UpdateExpression:    aws.String("ADD #count :one SET #ttl = if_not_exists(#ttl, :ttl)"),
		ConditionExpression: aws.String("attribute_not_exists(#count) OR #count < :limit"),
		ExpressionAttributeNames: map[string]string{
			"#count": "Count",
			"#ttl":   "TTL",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one":   &types.AttributeValueMemberN{Value: "1"},
			":limit": &types.AttributeValueMemberN{Value: strconv.Itoa(r.limit)},
			":ttl":   &types.AttributeValueMemberN{Value: strconv.FormatInt(expires, 10)},
		},
		ReturnValues: types.ReturnValueAllNew,
	})
	if err != nil {
		var over *types.ConditionalCheckFailedException
		if errors.As(err, &over) {
			return false, nil
		}
		return true, fmt.Errorf("rate limiter store (failing open): %w", err)
	}

	var row counterRow
	if err := attributevalue.UnmarshalMap(out.Attributes, &row); err != nil {
		return true, fmt.Errorf("rate limiter row (failing open): %w", err)
	}
	return row.Count <= r.limit, nil
}
