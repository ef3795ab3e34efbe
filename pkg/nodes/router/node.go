// Package router provides the multi-way branch node: it compares an
// already-resolved value against its cases and reports which route matched.
package router

import (
	"context"
	"errors"
	"fmt"

	"github.com/loomworks/loom/pkg/protocol"
)

const DefaultRoute = "default"

// RouterNode selects a route by comparing its rendered value against the
// configured cases. Downstream nodes read the "route" output field to decide
// whether their branch was taken.
type RouterNode struct {
	id    string
	value any
	cases map[string]string // case value -> route name
}

func NewRouterNode(id string, config map[string]any) (*RouterNode, error) {
	value, ok := config["value"]
	if !ok {
		return nil, protocol.NewConfigError(id, errors.New("missing required field 'value'"))
	}

	cases := make(map[string]string)

	casesConfig, ok := config["cases"].([]any)
	if !ok {
		return nil, protocol.NewConfigError(id, errors.New("missing required field 'cases'"))
	}

	for i, caseAny := range casesConfig {
		caseMap, ok := caseAny.(map[string]any)
		if !ok {
			return nil, protocol.NewConfigError(id, fmt.Errorf("case %d must be an object", i))
		}

		caseValue, ok := caseMap["value"].(string)
		if !ok {
			return nil, protocol.NewConfigError(id, fmt.Errorf("case %d missing 'value'", i))
		}

		route, ok := caseMap["route"].(string)
		if !ok {
			return nil, protocol.NewConfigError(id, fmt.Errorf("case %d missing 'route'", i))
		}

		cases[caseValue] = route
	}

	return &RouterNode{id: id, value: value, cases: cases}, nil
}

func (n *RouterNode) ID() string {
	return n.id
}

func (n *RouterNode) Execute(_ context.Context) (map[string]any, error) {
	valueStr := fmt.Sprintf("%v", n.value)

	route, matched := n.cases[valueStr]
	if !matched {
		route = DefaultRoute
	}

	return map[string]any{
		"route":         route,
		"matched_value": valueStr,
		"matched":       matched,
	}, nil
}
