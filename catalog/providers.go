package catalog

import (
	"fmt"

	"github.com/c360/flowkit/node"
	"github.com/c360/flowkit/pin"
)

// BranchOutputs returns a context-pin provider that exposes one numbered
// exec output per branch, reading the branch count from the node's config
// under configKey. Counts come from JSON-decoded config, so both int and
// float64 are accepted; anything else yields no context pins.
func BranchOutputs(configKey string) node.ContextPinProvider {
	return node.ContextPinFunc{
		Outputs: func(n *node.Node) []pin.Spec {
			count := 0
			switch v := n.Config[configKey].(type) {
			case int:
				count = v
			case float64:
				count = int(v)
			}
			if count <= 0 {
				return nil
			}
			specs := make([]pin.Spec, 0, count)
			for i := 0; i < count; i++ {
				specs = append(specs, pin.Spec{
					Name:     fmt.Sprintf("Branch %d", i),
					Category: pin.CategoryExec,
				})
			}
			return specs
		},
	}
}
