package builder

import "fmt"

// CycleError reports a circular dependency among a frame's registered
// nodes: node A's inputs reach node B's output, which in turn reaches
// node A's output.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	s := "circular node dependency: "
	for i, p := range e.Path {
		if i > 0 {
			s += " -> "
		}
		s += p
	}
	return s
}

// nodeName returns a stable label for a node for use in cycle-path
// error messages, preferring its output's assigned name.
func nodeName(n *Node) string {
	if name := n.Output.Name(); name != "" {
		return name
	}
	return fmt.Sprintf("node@%p", n)
}

// ValidateAcyclic checks a frame's node graph for circular dependencies,
// adapted from the teacher's recursion-stack depth-first cycle check
// (used there over stored workflow actions; here over in-memory
// builder nodes reachable before serialization).
func ValidateAcyclic(frame *Frame) error {
	nodes := frame.Nodes()

	byOutput := make(map[*Cell]*Node, len(nodes))
	for _, n := range nodes {
		byOutput[n.Output.Root()] = n
	}

	visited := make(map[*Node]bool)
	stack := make(map[*Node]bool)

	var visit func(n *Node, path []string) error
	visit = func(n *Node, path []string) error {
		visited[n] = true
		stack[n] = true
		path = append(path, nodeName(n))

		var deps []*Node
		walkCells(n.Inputs, func(c *Cell) {
			if dep, ok := byOutput[c.Root()]; ok {
				deps = append(deps, dep)
			}
		})

		for _, dep := range deps {
			if !visited[dep] {
				if err := visit(dep, path); err != nil {
					return err
				}
			} else if stack[dep] {
				return &CycleError{Path: append(path, nodeName(dep))}
			}
		}
		stack[n] = false
		return nil
	}

	for _, n := range nodes {
		if !visited[n] {
			if err := visit(n, nil); err != nil {
				return err
			}
		}
	}
	return nil
}

// ExecutionOrder returns frame's nodes in topological order (Kahn's
// algorithm, adapted from the teacher's action scheduler), the order a
// non-reactive evaluator would compute them in.
func ExecutionOrder(frame *Frame) ([]*Node, error) {
	nodes := frame.Nodes()
	byOutput := make(map[*Cell]*Node, len(nodes))
	for _, n := range nodes {
		byOutput[n.Output.Root()] = n
	}

	inDegree := make(map[*Node]int, len(nodes))
	dependents := make(map[*Node][]*Node)
	for _, n := range nodes {
		inDegree[n] = 0
	}
	for _, n := range nodes {
		walkCells(n.Inputs, func(c *Cell) {
			if dep, ok := byOutput[c.Root()]; ok {
				inDegree[n]++
				dependents[dep] = append(dependents[dep], n)
			}
		})
	}

	var queue []*Node
	for _, n := range nodes {
		if inDegree[n] == 0 {
			queue = append(queue, n)
		}
	}

	var order []*Node
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		order = append(order, n)
		for _, dep := range dependents[n] {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}

	if len(order) != len(nodes) {
		return nil, ValidateAcyclic(frame)
	}
	return order, nil
}
