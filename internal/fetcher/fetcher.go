package fetcher

import (
	"context"
)

// VolumeFetcher supplies the external DEX volume signal that sizes the reward pool.
type VolumeFetcher interface {
	FetchVolume(ctx context.Context) (uint64, error)
}

// StaticVolume reports a fixed volume. Useful for operators without a feed.
type StaticVolume uint64

// FetchVolume returns the configured value.
func (s StaticVolume) FetchVolume(context.Context) (uint64, error) {
	return uint64(s), nil
}

var _ VolumeFetcher = StaticVolume(0)
