package services

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/okonkwo-dev/Ingesta/internal/core"
)

// hashedUpload is a fully-materialized upload body with its content digest.
type hashedUpload struct {
	Data      []byte
	HexDigest string
	Size      int64
}

const hashReadChunk = 32 * 1024

// readAndHash consumes the upload stream incrementally, feeding a SHA-256
// digest and a byte counter as it goes. The read aborts the moment the
// counter crosses maxBytes, before the rest of the stream is consumed, so
// memory stays bounded and doomed uploads never pay full hashing cost. The
// caller bounds wall-clock time through ctx; the deadline is checked between
// chunk reads since plain io.Reader reads cannot be interrupted.
func readAndHash(ctx context.Context, r io.Reader, maxBytes int64) (*hashedUpload, error) {
	hasher := sha256.New()
	var buf bytes.Buffer
	var total int64
	chunk := make([]byte, hashReadChunk)

	for {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("upload read aborted: %w", err)
		}

		n, err := r.Read(chunk)
		if n > 0 {
			total += int64(n)
			if maxBytes > 0 && total > maxBytes {
				return nil, &core.OversizeError{Limit: maxBytes}
			}
			hasher.Write(chunk[:n])
			buf.Write(chunk[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read upload stream: %w", err)
		}
	}

	return &hashedUpload{
		Data:      buf.Bytes(),
		HexDigest: hex.EncodeToString(hasher.Sum(nil)),
		Size:      total,
	}, nil
}
