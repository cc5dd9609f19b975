// Package dynamo implements journal.Journal on DynamoDB.
//
// DynamoDB gives the journal what a blobstore cannot: per-item atomic
// upserts with immediate read-back, so several processes sharing one store
// can coordinate recovery.
//
// Table schema:
//   - Partition key: scope (string) - one fragdb store instance
//   - Sort key: entry_id (string) - the journal entry id
//
// Create the table with:
//
//	aws dynamodb create-table \
//	  --table-name fragdb-journal \
//	  --attribute-definitions AttributeName=scope,AttributeType=S AttributeName=entry_id,AttributeType=S \
//	  --key-schema AttributeName=scope,KeyType=HASH AttributeName=entry_id,KeyType=RANGE \
//	  --billing-mode PAY_PER_REQUEST
package dynamo

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/fragdb/fragdb/journal"
)

// Client is the subset of the DynamoDB API the journal depends on.
// *dynamodb.Client satisfies it; tests substitute a mock.
type Client interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// Journal implements journal.Journal backed by a DynamoDB table.
type Journal struct {
	client    Client
	tableName string
	scope     string
}

// New creates a DynamoDB journal. scope partitions entries per store
// instance so several stores can share one table.
func New(client Client, tableName, scope string) *Journal {
	return &Journal{
		client:    client,
		tableName: tableName,
		scope:     scope,
	}
}

// Record upserts an entry.
func (j *Journal) Record(ctx context.Context, entry journal.Entry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	_, err = j.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(j.tableName),
		Item: map[string]types.AttributeValue{
			"scope":    &types.AttributeValueMemberS{Value: j.scope},
			"entry_id": &types.AttributeValueMemberS{Value: entry.ID},
			"phase":    &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", entry.Phase)},
			"payload":  &types.AttributeValueMemberS{Value: string(payload)},
		},
	})
	if err != nil {
		return fmt.Errorf("journal put: %w", err)
	}
	return nil
}

// Pending returns all incomplete entries, oldest first.
func (j *Journal) Pending(ctx context.Context) ([]journal.Entry, error) {
	var out []journal.Entry
	var startKey map[string]types.AttributeValue

	for {
		resp, err := j.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(j.tableName),
			KeyConditionExpression: aws.String("#s = :scope"),
			ExpressionAttributeNames: map[string]string{
				"#s": "scope",
			},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":scope": &types.AttributeValueMemberS{Value: j.scope},
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("journal query: %w", err)
		}

		for _, item := range resp.Items {
			payload, ok := item["payload"].(*types.AttributeValueMemberS)
			if !ok {
				return nil, fmt.Errorf("journal item missing payload attribute")
			}
			var e journal.Entry
			if err := json.Unmarshal([]byte(payload.Value), &e); err != nil {
				return nil, fmt.Errorf("journal item decode: %w", err)
			}
			if e.Phase == journal.PhaseComplete {
				continue
			}
			out = append(out, e)
		}

		if resp.LastEvaluatedKey == nil {
			break
		}
		startKey = resp.LastEvaluatedKey
	}

	sort.Slice(out, func(i, k int) bool {
		if !out[i].UpdatedAt.Equal(out[k].UpdatedAt) {
			return out[i].UpdatedAt.Before(out[k].UpdatedAt)
		}
		return out[i].ID < out[k].ID
	})
	return out, nil
}

// Complete removes the entry.
func (j *Journal) Complete(ctx context.Context, id string) error {
	_, err := j.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(j.tableName),
		Key: map[string]types.AttributeValue{
			"scope":    &types.AttributeValueMemberS{Value: j.scope},
			"entry_id": &types.AttributeValueMemberS{Value: id},
		},
	})
	if err != nil {
		return fmt.Errorf("journal delete: %w", err)
	}
	return nil
}
