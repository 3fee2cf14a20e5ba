package node

import (
	"github.com/sirupsen/logrus"
)

type NodeOption func(*Node) error

func WithLogger(l *logrus.Logger) NodeOption {
	return func(n *Node) error {
		n.logger = l
		return nil
	}
}
