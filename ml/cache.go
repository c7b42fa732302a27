package ml

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"

	lru "github.com/hashicorp/golang-lru/v2"

	"injurywatch/pipeline"
)

// resultCache caches decoded predictions keyed by the feature matrix,
// so re-submitting an identical week skips the model call.
type resultCache struct {
	lru *lru.Cache[string, *PredictionResult]
}

func newResultCache(size int) *resultCache {
	if size <= 0 {
		return &resultCache{}
	}
	cache, err := lru.New[string, *PredictionResult](size)
	if err != nil {
		return &resultCache{}
	}
	return &resultCache{lru: cache}
}

func (c *resultCache) get(key string) (*PredictionResult, bool) {
	if c.lru == nil {
		return nil, false
	}
	return c.lru.Get(key)
}

func (c *resultCache) add(key string, result *PredictionResult) {
	if c.lru == nil {
		return
	}
	c.lru.Add(key, result)
}

// batchKey hashes the 7x8 projected feature matrix. Player ids and
// dates are not part of the key, matching what is sent to the model.
func batchKey(batch *pipeline.WeeklyBatch) string {
	h := sha256.New()
	var buf [8]byte
	for _, rec := range batch.Records {
		for _, v := range rec.Features() {
			binary.BigEndian.PutUint64(buf[:], math.Float64bits(v))
			h.Write(buf[:])
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}
