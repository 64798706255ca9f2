package core

import (
	"context"
	"time"

	"github.com/oswaldbot/relay-go/pkg/embedder"
	"github.com/oswaldbot/relay-go/pkg/profile"
	"github.com/oswaldbot/relay-go/pkg/storage"
)

// persistTimeout bounds the background recording of one exchange.
const persistTimeout = 2 * time.Minute

// persist records the exchange in a background goroutine tracked by Wait.
// Nothing is scheduled once the client is closed.
func (c *Client) persist(ctx context.Context, username, prompt, response string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.logger.Warn("client closed, exchange not recorded", "user", username)
		return
	}
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()

		ctx, cancel := context.WithTimeout(ctx, persistTimeout)
		defer cancel()

		if err := c.record(ctx, username, prompt, response); err != nil {
			c.logger.Error("failed to record exchange", "user", username, "error", err)
		}
	}()
}

// record embeds and stores one exchange, then refreshes the user's profile.
// A profile failure leaves the stored chat log in place.
func (c *Client) record(ctx context.Context, username, prompt, response string) error {
	vectors, err := c.embedder.EmbedBatch(ctx, []string{prompt, response})
	if err != nil {
		return NewRelayError("record", wrapf(ErrEmbeddingFailed, err))
	}
	if len(vectors) != 2 {
		return NewRelayError("record", ErrEmbeddingFailed)
	}
	if err := embedder.CheckDimensions(c.embedder.Dimensions(), vectors...); err != nil {
		return NewRelayError("record", wrapf(ErrEmbeddingFailed, err))
	}

	log := &storage.ChatLog{
		ID:                c.snowflakeNode.Generate().Int64(),
		Username:          username,
		Prompt:            prompt,
		Response:          response,
		PromptEmbedding:   vectors[0],
		ResponseEmbedding: vectors[1],
		CreatedAt:         time.Now().UTC(),
	}
	if err := c.store.Insert(ctx, log); err != nil {
		return NewRelayError("record", wrapf(ErrStorageOperation, err))
	}
	c.logger.Debug("exchange recorded", "user", username, "id", log.ID)

	if c.maintainer == nil {
		return nil
	}
	updated, err := c.maintainer.Refresh(ctx, username, profile.FormatInteraction(prompt, response))
	if err != nil {
		return NewRelayError("record", err)
	}
	if updated {
		c.logger.Info("profile refreshed", "user", username)
	}
	return nil
}
