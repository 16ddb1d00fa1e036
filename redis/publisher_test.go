package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/qubic/chains-status/domain"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublisher_Publish(t *testing.T) {
	server := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: server.Addr()})
	defer client.Close()

	subscription := client.Subscribe(context.Background(), "chains-status-updates")
	defer subscription.Close()
	_, err := subscription.Receive(context.Background()) // wait for confirmation
	require.NoError(t, err)

	publisher := NewPublisher(client, "chains-status", "chains-status-updates", time.Hour)
	snapshot := &domain.Snapshot{
		Generation: 5,
		Chains: domain.StatusList{
			{ID: "ethereum", ShortName: "ETH", LatestBlock: 100, Synced: true},
		},
	}

	err = publisher.Publish(context.Background(), snapshot)
	require.NoError(t, err)

	stored, err := server.Get("chains-status")
	require.NoError(t, err)
	var decoded domain.Snapshot
	require.NoError(t, json.Unmarshal([]byte(stored), &decoded))
	assert.Equal(t, uint64(5), decoded.Generation)
	assert.Equal(t, "ETH", decoded.Chains[0].ShortName)
	assert.True(t, server.TTL("chains-status") > 0)

	select {
	case message := <-subscription.Channel():
		assert.JSONEq(t, stored, message.Payload)
	case <-time.After(2 * time.Second):
		t.Fatal("no message published")
	}
}

func TestPublisher_GivenServerDown_ThenError(t *testing.T) {
	server := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: server.Addr(), MaxRetries: -1})
	defer client.Close()
	server.Close()

	publisher := NewPublisher(client, "chains-status", "", 0)
	err := publisher.Publish(context.Background(), &domain.Snapshot{Generation: 1})
	assert.Error(t, err)
}
