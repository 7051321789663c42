package services

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okonkwo-dev/Ingesta/internal/core"
)

// endlessReader serves an unbounded stream while counting the bytes handed
// out, so tests can verify the guard stops reading early.
type endlessReader struct {
	served int64
}

func (r *endlessReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 'x'
	}
	r.served += int64(len(p))
	return len(p), nil
}

func TestReadAndHash(t *testing.T) {
	t.Run("digest and size", func(t *testing.T) {
		got, err := readAndHash(context.Background(), bytes.NewReader([]byte("abc")), 1<<20)
		require.NoError(t, err)
		assert.Equal(t, []byte("abc"), got.Data)
		assert.Equal(t, int64(3), got.Size)
		assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", got.HexDigest)
	})

	t.Run("empty stream", func(t *testing.T) {
		got, err := readAndHash(context.Background(), bytes.NewReader(nil), 1<<20)
		require.NoError(t, err)
		assert.Equal(t, int64(0), got.Size)
	})

	t.Run("oversize aborts before the stream is consumed", func(t *testing.T) {
		const limit = 64 * 1024
		src := &endlessReader{}

		_, err := readAndHash(context.Background(), src, limit)
		require.Error(t, err)
		assert.True(t, core.IsOversize(err))

		// The guard must trip on the first chunk past the limit, not after
		// draining some arbitrarily larger amount.
		assert.LessOrEqual(t, src.served, int64(limit+2*hashReadChunk))
	})

	t.Run("exactly at the limit passes", func(t *testing.T) {
		data := bytes.Repeat([]byte("a"), 1024)
		got, err := readAndHash(context.Background(), bytes.NewReader(data), 1024)
		require.NoError(t, err)
		assert.Equal(t, int64(1024), got.Size)
	})

	t.Run("cancelled context stops the read", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
		defer cancel()
		time.Sleep(5 * time.Millisecond)

		_, err := readAndHash(ctx, &endlessReader{}, 0)
		require.Error(t, err)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}
