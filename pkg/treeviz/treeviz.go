// Package treeviz draws component trees with graphviz.
package treeviz

import (
	"bytes"
	"fmt"
	"io"
	"strconv"

	"github.com/goccy/go-graphviz"
	"github.com/goccy/go-graphviz/cgraph"

	"github.com/synnaxlabs/synnax-sub025/pkg/aether"
)

const rootName = "(root)"

// Render draws nodes, as listed by aether.Tree.Snapshot, in the given format.
// Nodes with an entry in levels show their quality level.
func Render(w io.Writer, nodes []aether.NodeInfo, levels map[string]int, format graphviz.Format) error {
	g := graphviz.New()
	defer g.Close()
	graph, err := g.Graph()
	if err != nil {
		return fmt.Errorf("failed to setup graph: %w", err)
	}
	defer graph.Close()

	root, err := graph.CreateNode(rootName)
	if err != nil {
		return fmt.Errorf("failed to create node: %w", err)
	}
	root.SetShape(cgraph.PointShape)
	nodeMap := map[string]*cgraph.Node{"": root}
	for i, info := range nodes {
		name := info.Path.String()
		n, err := graph.CreateNode(name)
		if err != nil {
			return fmt.Errorf("failed to create node: %w", err)
		}
		n.SetLabel(label(info, levels))
		if info.Composite {
			n.SetShape(cgraph.BoxShape)
		} else {
			n.SetShape(cgraph.EllipseShape)
		}
		nodeMap[name] = n
		parent, ok := nodeMap[info.Path.Parent().String()]
		if !ok {
			return fmt.Errorf("%s listed before its parent", name)
		}
		if _, err := graph.CreateEdge(strconv.Itoa(i), parent, n); err != nil {
			return fmt.Errorf("failed to create edge: %w", err)
		}
	}

	if err := g.Render(graph, format, w); err != nil {
		return fmt.Errorf("failed to render: %w", err)
	}
	return nil
}

func label(info aether.NodeInfo, levels map[string]int) string {
	s := info.Path.Key() + "\n" + info.Type
	if level, ok := levels[info.Path.String()]; ok {
		s += fmt.Sprintf("\nlevel %d", level)
	}
	return s
}

// SVG is Render with the SVG format into a byte slice.
func SVG(nodes []aether.NodeInfo, levels map[string]int) ([]byte, error) {
	var buf bytes.Buffer
	if err := Render(&buf, nodes, levels, graphviz.SVG); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
