package floor_test

import (
	"context"
	"log/slog"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/indoorloc/fleet/internal/floor"
	"github.com/indoorloc/fleet/internal/radio"
)

func TestBroadcasterReturnsOnContextDone(t *testing.T) {
	fake := radio.NewFake()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	b := floor.NewBroadcaster(fake, 3, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := b.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
