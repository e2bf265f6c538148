// Package scheduler partitions a campaign's run pool across worker OS
// processes and drives each worker's shard sequentially against one engine
// instance.
package scheduler

import "github.com/kangkelidis/robot-assisted-evacuation/internal/sim"

// BuildBatches assigns descriptors to at most n workers round-robin by index
// (i mod n). Empty shards are dropped, so a pool smaller than n yields fewer
// batches.
func BuildBatches(pool []*sim.Descriptor, n int) [][]*sim.Descriptor {
	if n < 1 {
		n = 1
	}
	batches := make([][]*sim.Descriptor, n)
	for i, d := range pool {
		batches[i%n] = append(batches[i%n], d)
	}
	nonEmpty := batches[:0]
	for _, batch := range batches {
		if len(batch) > 0 {
			nonEmpty = append(nonEmpty, batch)
		}
	}
	return nonEmpty
}
