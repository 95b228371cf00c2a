package sched

import "fmt"

// Node describes a worker which hosts tasks
type Node struct {
	ID   string
	Host string
	Port int
}

// String returns a textual representation of this Node
func (n Node) String() string {
	if len(n.Host) == 0 {
		return n.ID
	}
	return fmt.Sprintf("%s@%s:%d", n.ID, n.Host, n.Port)
}
