package checkpoint

import (
	"bytes"
	"encoding/json"
	"fmt"

	errs "igcrawler/pkg/errors"
	"igcrawler/pkg/nodeiter"
)

// Version is written into every snapshot envelope
var Version = "dev"

const nodeType = "FrozenIterator"

type envelope struct {
	Node json.RawMessage `json:"node"`
	Meta envelopeMeta    `json:"igcrawler"`
}

type envelopeMeta struct {
	Version  string `json:"version"`
	NodeType string `json:"node_type"`
}

func encode(frozen nodeiter.FrozenIterator) ([]byte, error) {
	node, err := json.Marshal(frozen)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	data, err := json.MarshalIndent(envelope{
		Node: node,
		Meta: envelopeMeta{Version: Version, NodeType: nodeType},
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return data, nil
}

// decode unwraps a snapshot. Anything that is not a FrozenIterator envelope is
// reported as InvalidArgument so callers can skip it.
func decode(data []byte) (*nodeiter.FrozenIterator, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, errs.Wrap(errs.ErrorTypeInvalidArgument, err, "malformed snapshot")
	}
	if env.Meta.NodeType != nodeType {
		return nil, errs.New(errs.ErrorTypeInvalidArgument,
			"snapshot holds %q, not %s", env.Meta.NodeType, nodeType)
	}
	if len(env.Node) == 0 || bytes.Equal(env.Node, []byte("null")) {
		return nil, errs.New(errs.ErrorTypeInvalidArgument, "snapshot has no node")
	}

	dec := json.NewDecoder(bytes.NewReader(env.Node))
	dec.UseNumber()
	var frozen nodeiter.FrozenIterator
	if err := dec.Decode(&frozen); err != nil {
		return nil, errs.Wrap(errs.ErrorTypeInvalidArgument, err, "malformed snapshot node")
	}
	return &frozen, nil
}
