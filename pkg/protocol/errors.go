package protocol

import "fmt"

// ErrorKind classifies a per-node execution failure. These are never fatal
// to the run: the node is marked failed and the scan continues.
type ErrorKind string

const (
	KindTimeout  ErrorKind = "timeout"
	KindProvider ErrorKind = "provider"
	KindConfig   ErrorKind = "config"
)

// NodeError wraps a node execution failure with its classification.
type NodeError struct {
	NodeID string
	Kind   ErrorKind
	Err    error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("node %s: %s error: %v", e.NodeID, e.Kind, e.Err)
}

func (e *NodeError) Unwrap() error {
	return e.Err
}

// NewTimeoutError marks a node failure caused by exceeding its deadline.
func NewTimeoutError(nodeID string, err error) *NodeError {
	return &NodeError{NodeID: nodeID, Kind: KindTimeout, Err: err}
}

// NewProviderError marks a node failure caused by the model provider.
func NewProviderError(nodeID string, err error) *NodeError {
	return &NodeError{NodeID: nodeID, Kind: KindProvider, Err: err}
}

// NewConfigError marks a node failure caused by invalid configuration.
func NewConfigError(nodeID string, err error) *NodeError {
	return &NodeError{NodeID: nodeID, Kind: KindConfig, Err: err}
}
