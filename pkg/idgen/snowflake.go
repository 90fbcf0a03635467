package idgen

import (
	"fmt"

	"github.com/bwmarrin/snowflake"
)

// Snowflake issues time-ordered int64 ids. Ids from a single node are
// strictly increasing, which gives ledger entries their append order.
type Snowflake struct {
	node *snowflake.Node
}

// NewSnowflake creates a generator for the given node (0-1023).
func NewSnowflake(nodeID int64) (*Snowflake, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("init snowflake node %d: %w", nodeID, err)
	}
	return &Snowflake{node: node}, nil
}

// NextID returns the next id.
func (s *Snowflake) NextID() int64 {
	return s.node.Generate().Int64()
}
