package dynamo

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fragdb/fragdb/journal"
)

type mockDDBClient struct {
	mock.Mock
}

func (m *mockDDBClient) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dynamodb.PutItemOutput), args.Error(1)
}

func (m *mockDDBClient) Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dynamodb.QueryOutput), args.Error(1)
}

func (m *mockDDBClient) DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dynamodb.DeleteItemOutput), args.Error(1)
}

func TestRecord(t *testing.T) {
	client := new(mockDDBClient)
	j := New(client, "fragdb-journal", "store-1")

	entry := journal.Entry{
		ID:        "del-1",
		Kind:      journal.KindDeletion,
		VectorIDs: []uint64{1, 2},
		Phase:     journal.PhaseMetadataMarked,
		UpdatedAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}

	client.On("PutItem", mock.Anything, mock.MatchedBy(func(input *dynamodb.PutItemInput) bool {
		scope := input.Item["scope"].(*types.AttributeValueMemberS)
		id := input.Item["entry_id"].(*types.AttributeValueMemberS)
		return *input.TableName == "fragdb-journal" && scope.Value == "store-1" && id.Value == "del-1"
	})).Return(&dynamodb.PutItemOutput{}, nil).Once()

	require.NoError(t, j.Record(context.Background(), entry))
	client.AssertExpectations(t)
}

func TestPendingFiltersAndSorts(t *testing.T) {
	client := new(mockDDBClient)
	j := New(client, "fragdb-journal", "store-1")

	mkItem := func(e journal.Entry) map[string]types.AttributeValue {
		payload, err := json.Marshal(e)
		require.NoError(t, err)
		return map[string]types.AttributeValue{
			"scope":    &types.AttributeValueMemberS{Value: "store-1"},
			"entry_id": &types.AttributeValueMemberS{Value: e.ID},
			"payload":  &types.AttributeValueMemberS{Value: string(payload)},
		}
	}

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	client.On("Query", mock.Anything, mock.Anything).Return(&dynamodb.QueryOutput{
		Items: []map[string]types.AttributeValue{
			mkItem(journal.Entry{ID: "b", Phase: journal.PhaseRequested, UpdatedAt: base.Add(time.Hour)}),
			mkItem(journal.Entry{ID: "a", Phase: journal.PhaseMetadataMarked, UpdatedAt: base}),
			mkItem(journal.Entry{ID: "c", Phase: journal.PhaseComplete, UpdatedAt: base}),
		},
	}, nil).Once()

	pending, err := j.Pending(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "a", pending[0].ID)
	assert.Equal(t, "b", pending[1].ID)
}

func TestComplete(t *testing.T) {
	client := new(mockDDBClient)
	j := New(client, "fragdb-journal", "store-1")

	client.On("DeleteItem", mock.Anything, mock.MatchedBy(func(input *dynamodb.DeleteItemInput) bool {
		id := input.Key["entry_id"].(*types.AttributeValueMemberS)
		return id.Value == "del-1"
	})).Return(&dynamodb.DeleteItemOutput{}, nil).Once()

	require.NoError(t, j.Complete(context.Background(), "del-1"))
	client.AssertExpectations(t)
}
