// Package flowlog parses flow log records and aggregates them into tag and
// port/protocol counts.
package flowlog

const (
	// MinFields is the minimum number of whitespace separated fields a
	// record needs to be counted.
	MinFields = 8

	dstPortField  = 6
	protocolField = 7

	// UnknownProtocol replaces protocol numbers missing from the protocol map.
	UnknownProtocol = "unknown"
	// Untagged is the tag for combinations missing from the tag lookup.
	Untagged = "Untagged"
)

// Record is the part of a flow log line we consult.
type Record struct {
	DstPort uint16
	// Protocol is the raw protocol number token, e.g. "6".
	Protocol string
}

// Combination is a destination port paired with a resolved protocol name.
type Combination struct {
	Port     uint16
	Protocol string
}

// Counts is a frequency table that remembers the order in which keys were
// first seen. The zero value is ready to use.
type Counts[K comparable] struct {
	order  []K
	counts map[K]int
}

// Inc adds one occurrence of k.
func (c *Counts[K]) Inc(k K) {
	if c.counts == nil {
		c.counts = make(map[K]int)
	}
	if _, ok := c.counts[k]; !ok {
		c.order = append(c.order, k)
	}
	c.counts[k]++
}

// Get returns the count for k, or 0.
func (c *Counts[K]) Get(k K) int {
	return c.counts[k]
}

// Len returns the number of distinct keys.
func (c *Counts[K]) Len() int {
	return len(c.order)
}

// Keys returns the keys in first-seen order.
func (c *Counts[K]) Keys() []K {
	out := make([]K, len(c.order))
	copy(out, c.order)
	return out
}

// Total returns the sum of all counts.
func (c *Counts[K]) Total() int {
	var n int
	for _, v := range c.counts {
		n += v
	}
	return n
}

// Each calls fn for every key in first-seen order.
func (c *Counts[K]) Each(fn func(k K, n int)) {
	for _, k := range c.order {
		fn(k, c.counts[k])
	}
}

// TagCounts counts lines per tag.
type TagCounts = Counts[string]

// CombinationCounts counts lines per (port, protocol) combination.
type CombinationCounts = Counts[Combination]

// Result is the outcome of aggregating one flow log.
//
// Counted == Tags.Total() == Combinations.Total() always holds.
type Result struct {
	Tags         TagCounts
	Combinations CombinationCounts

	Counted int
	Skipped int
}
