package id

import (
	"strconv"
	"sync"

	"github.com/bwmarrin/snowflake"
)

var (
	node *snowflake.Node
	once sync.Once
)

// Init initializes the Snowflake node with the given node ID.
func Init(nodeID int64) error {
	var err error
	once.Do(func() {
		node, err = snowflake.NewNode(nodeID)
	})
	return err
}

// New generates a new unique int64 ID using the Snowflake algorithm.
// IDs are time-ordered and never repeat within a node, even when generated
// within the same millisecond. Node 0 is used when Init was never called.
func New() int64 {
	_ = Init(0)
	return node.Generate().Int64()
}

// NewString returns New formatted in base 10.
func NewString() string {
	return strconv.FormatInt(New(), 10)
}

// Temporary returns an ID for a locally created record that has not been
// confirmed by the server yet.
func Temporary() string {
	return "tmp-" + NewString()
}
