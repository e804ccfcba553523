package utilities

import (
	"os"
	"strconv"
	"sync"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/segmentio/ksuid"
)

var (
	nodeOnce sync.Once
	node     *snowflake.Node
)

// NewKSUID generates a new globally unique KSUID string.
func NewKSUID() string {
	return ksuid.New().String()
}

// NewUUID returns a random UUID string, used for identity keys.
func NewUUID() string {
	return uuid.NewString()
}

// IsUUID reports whether s parses as a UUID.
func IsUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

func snowflakeNode() *snowflake.Node {
	nodeOnce.Do(func() {
		nodeID := int64(1)
		if v, err := strconv.ParseInt(os.Getenv("SNOWFLAKE_NODE"), 10, 64); err == nil {
			nodeID = v
		}
		n, err := snowflake.NewNode(nodeID)
		if err != nil {
			// out of range node ids fall back to node 1
			n, _ = snowflake.NewNode(1)
		}
		node = n
	})
	return node
}

// NextID returns a snowflake ID for numeric primary keys. The node comes from
// SNOWFLAKE_NODE (default 1) and is created once per process so IDs
// generated in the same millisecond stay unique.
func NextID() int64 {
	return snowflakeNode().Generate().Int64()
}
