package sumo

import (
	"encoding/xml"
	"fmt"
	"os"
	"sort"

	"github.com/urbantwin/hybridsim/internal/geo"
)

type networkNode struct {
	ID string  `xml:"id,attr"`
	X  float64 `xml:"x,attr"`
	Y  float64 `xml:"y,attr"`
}

type networkLink struct {
	ID   string `xml:"id,attr"`
	From string `xml:"from,attr"`
	To   string `xml:"to,attr"`
}

type networkFile struct {
	Nodes []networkNode `xml:"nodes>node"`
	Links []networkLink `xml:"links>link"`
}

// NetworkIndex maps link identifiers to the geographic area they cover,
// derived from the mesoscopic network file. It is the basis for cutting a
// micro-simulation bounding box around a hotspot.
type NetworkIndex struct {
	nodes map[string]networkNode
	links map[string]networkLink
}

// LoadNetworkIndex parses a network XML file (nodes with x/y coordinates,
// links referencing their endpoint nodes).
func LoadNetworkIndex(path string) (*NetworkIndex, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening network: %w", err)
	}
	defer f.Close()

	var net networkFile
	if err := xml.NewDecoder(f).Decode(&net); err != nil {
		return nil, fmt.Errorf("decoding network: %w", err)
	}

	idx := &NetworkIndex{
		nodes: make(map[string]networkNode, len(net.Nodes)),
		links: make(map[string]networkLink, len(net.Links)),
	}
	for _, n := range net.Nodes {
		idx.nodes[n.ID] = n
	}
	for _, l := range net.Links {
		idx.links[l.ID] = l
	}
	return idx, nil
}

// BBoxFor returns the bounding box spanned by the link's endpoints, padded
// by padKm on every side. The second return is false when the link or one
// of its nodes is unknown.
func (idx *NetworkIndex) BBoxFor(linkID string, padKm float64) (geo.BBox, bool) {
	link, ok := idx.links[linkID]
	if !ok {
		return geo.BBox{}, false
	}
	from, okFrom := idx.nodes[link.From]
	to, okTo := idx.nodes[link.To]
	if !okFrom || !okTo {
		return geo.BBox{}, false
	}
	box := geo.FromPoints([]float64{from.Y, to.Y}, []float64{from.X, to.X})
	return box.Pad(padKm), true
}

// LinkCount reports how many links the index covers.
func (idx *NetworkIndex) LinkCount() int {
	return len(idx.links)
}

// WriteArea cuts the part of the network inside the box and writes it as a
// standalone network file: nodes within the box plus the links whose
// endpoints both survive the cut. Output is sorted by identifier so repeated
// cuts of the same area are byte-identical. Returns the number of links
// written.
func (idx *NetworkIndex) WriteArea(path string, box geo.BBox) (int, error) {
	kept := make(map[string]bool, len(idx.nodes))
	nodeIDs := make([]string, 0, len(idx.nodes))
	for id, n := range idx.nodes {
		if n.Y < box.South || n.Y > box.North || n.X < box.West || n.X > box.East {
			continue
		}
		kept[id] = true
		nodeIDs = append(nodeIDs, id)
	}
	sort.Strings(nodeIDs)

	linkIDs := make([]string, 0, len(idx.links))
	for id, l := range idx.links {
		if kept[l.From] && kept[l.To] {
			linkIDs = append(linkIDs, id)
		}
	}
	sort.Strings(linkIDs)

	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("creating network cut: %w", err)
	}
	defer f.Close()

	fmt.Fprintln(f, "<network>")
	fmt.Fprintln(f, "  <nodes>")
	for _, id := range nodeIDs {
		n := idx.nodes[id]
		fmt.Fprintf(f, "    <node id=%q x=\"%g\" y=\"%g\"/>\n", n.ID, n.X, n.Y)
	}
	fmt.Fprintln(f, "  </nodes>")
	fmt.Fprintln(f, "  <links>")
	for _, id := range linkIDs {
		l := idx.links[id]
		fmt.Fprintf(f, "    <link id=%q from=%q to=%q/>\n", l.ID, l.From, l.To)
	}
	fmt.Fprintln(f, "  </links>")
	fmt.Fprintln(f, "</network>")
	return len(linkIDs), nil
}
