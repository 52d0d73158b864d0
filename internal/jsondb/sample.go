package jsondb

import (
	"math/rand/v2"
	"slices"
)

// Sample draws keys without replacement. Each draw picks a uniformly random
// index in the keys not drawn yet. The first offset draws are discarded and up
// to limit of the following draws are returned in draw order. A negative
// limit means no limit. A nil seed uses a random one; otherwise the same seed,
// limit, offset and key order always produce the same output.
func Sample(keys []string, seed *int64, limit, offset int) []string {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(keys) || limit == 0 {
		return []string{}
	}
	remaining := len(keys) - offset
	if limit < 0 || limit > remaining {
		limit = remaining
	}
	var src rand.Source
	if seed != nil {
		src = rand.NewPCG(uint64(*seed), 0)
	} else {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	r := rand.New(src)
	pool := slices.Clone(keys)
	out := make([]string, 0, limit)
	for draw := 0; draw < offset+limit; draw++ {
		i := r.IntN(len(pool))
		k := pool[i]
		pool = slices.Delete(pool, i, i+1)
		if draw >= offset {
			out = append(out, k)
		}
	}
	return out
}
