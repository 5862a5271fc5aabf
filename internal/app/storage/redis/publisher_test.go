package redis

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/nft_exchange/internal/app/domain/chain"
	"github.com/R3E-Network/nft_exchange/internal/app/events"
	"github.com/R3E-Network/nft_exchange/pkg/logger"
)

func TestHistoryKey(t *testing.T) {
	p := NewPublisher(nil, "nft_exchange.events", 10, logger.NewDiscard())
	assert.Equal(t, "nft_exchange.events:history", p.HistoryKey())

	got, err := p.Recent(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestPublisherIntegration(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set; skipping redis integration test")
	}
	ctx := context.Background()
	channel := "nft_exchange.test." + uuid.NewString()
	p := Dial(addr, channel, 2, logger.NewDiscard())
	require.NoError(t, p.Start(ctx))
	defer p.Stop(ctx)
	defer p.client.Del(ctx, p.HistoryKey())

	sub := p.client.Subscribe(ctx, channel)
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	var ids []string
	for i := uint64(1); i <= 3; i++ {
		ev := events.New(events.ListingCreated, "0xnft", i, "0xseller").WithAmount(chain.NativeCurrency, nil)
		require.NoError(t, p.Record(ctx, ev))
		ids = append(ids, ev.ID)
	}

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)
	assert.Contains(t, msg.Payload, ids[0])

	recent, err := p.Recent(ctx, 5)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, ids[1], recent[0].ID)
	assert.Equal(t, ids[2], recent[1].ID)
}
