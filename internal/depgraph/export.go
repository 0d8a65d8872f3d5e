package depgraph

import (
	"fmt"
	"sort"
	"strings"
)

// BlastRadius is the subgraph reachable from one vendor.
type BlastRadius struct {
	Vendor   string            `json:"vendor"`
	Key      string            `json:"identity_key"`
	Services []AffectedService `json:"services"`
}

// Processes returns the sorted, deduplicated business processes.
func (br *BlastRadius) Processes() []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range br.Services {
		for _, p := range s.BusinessProcesses {
			if p != "" && !seen[p] {
				seen[p] = true
				out = append(out, p)
			}
		}
	}
	sort.Strings(out)
	return out
}

// ExportDOT generates a Graphviz DOT representation of a blast radius.
func ExportDOT(br *BlastRadius) string {
	var b strings.Builder
	b.WriteString("digraph blast_radius {\n")
	b.WriteString("  rankdir=RL;\n")
	b.WriteString("  node [fontname=\"Helvetica\"];\n")
	b.WriteString("  edge [fontname=\"Helvetica\" fontsize=10];\n\n")

	vendorID := "v_" + sanitizeID(br.Key)
	b.WriteString(fmt.Sprintf("  %s [label=\"%s\" shape=%s style=filled fillcolor=\"%s\"];\n",
		vendorID, br.Vendor, nodeShape(LabelVendor), nodeColor(LabelVendor)))
	for _, p := range br.Processes() {
		b.WriteString(fmt.Sprintf("  %s [label=\"%s\" shape=%s style=filled fillcolor=\"%s\"];\n",
			"bp_"+sanitizeID(p), p, nodeShape(LabelBusinessProcess), nodeColor(LabelBusinessProcess)))
	}
	b.WriteString("\n")

	for _, s := range br.Services {
		serviceID := "s_" + sanitizeID(s.ResourceIdentity)
		b.WriteString(fmt.Sprintf("  %s [label=\"%s\" shape=%s style=filled fillcolor=\"%s\"];\n",
			serviceID, serviceLabel(s), nodeShape(LabelService), nodeColor(LabelService)))
		b.WriteString(fmt.Sprintf("  %s -> %s [label=\"%s\" style=%s color=\"%s\"];\n",
			serviceID, vendorID, EdgeDependsOn, edgeStyle(EdgeDependsOn), edgeColor(EdgeDependsOn)))
		for _, p := range s.BusinessProcesses {
			b.WriteString(fmt.Sprintf("  %s -> %s [label=\"%s\" style=%s color=\"%s\"];\n",
				serviceID, "bp_"+sanitizeID(p), EdgeSupports, edgeStyle(EdgeSupports), edgeColor(EdgeSupports)))
		}
	}

	b.WriteString("}\n")
	return b.String()
}

// ExportMermaid generates a Mermaid diagram of a blast radius.
func ExportMermaid(br *BlastRadius) string {
	var b strings.Builder
	b.WriteString("graph RL\n")

	vendorID := "v_" + sanitizeID(br.Key)
	b.WriteString(fmt.Sprintf("  %s%s\n", vendorID, mermaidNodeShape(LabelVendor, br.Vendor)))
	for _, s := range br.Services {
		serviceID := "s_" + sanitizeID(s.ResourceIdentity)
		b.WriteString(fmt.Sprintf("  %s%s\n", serviceID, mermaidNodeShape(LabelService, serviceLabel(s))))
		b.WriteString(fmt.Sprintf("  %s %s %s\n", serviceID, mermaidArrow(EdgeDependsOn), vendorID))
		for _, p := range s.BusinessProcesses {
			processID := "bp_" + sanitizeID(p)
			b.WriteString(fmt.Sprintf("  %s%s\n", processID, mermaidNodeShape(LabelBusinessProcess, p)))
			b.WriteString(fmt.Sprintf("  %s %s %s\n", serviceID, mermaidArrow(EdgeSupports), processID))
		}
	}

	return b.String()
}

// FormatStats returns a human-readable summary of graph statistics.
func FormatStats(s GraphStats) string {
	var b strings.Builder
	b.WriteString("Vendor Graph Statistics\n")
	b.WriteString("=======================\n\n")
	b.WriteString(fmt.Sprintf("Vendors:             %d\n", s.Vendors))
	b.WriteString(fmt.Sprintf("Services:            %d\n", s.Services))
	b.WriteString(fmt.Sprintf("Business Processes:  %d\n", s.BusinessProcesses))
	b.WriteString(fmt.Sprintf("Compliance Controls: %d\n", s.ComplianceControls))
	b.WriteString(fmt.Sprintf("Relationships:       %d\n", s.Relationships))
	return b.String()
}

func serviceLabel(s AffectedService) string {
	if s.Name != "" {
		return s.Name
	}
	if i := strings.LastIndex(s.ResourceIdentity, "/"); i >= 0 && i < len(s.ResourceIdentity)-1 {
		return s.ResourceIdentity[i+1:]
	}
	return s.ResourceIdentity
}

func sanitizeID(s string) string {
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			return r
		}
		return '_'
	}, s)
}

func nodeShape(label Label) string {
	switch label {
	case LabelVendor:
		return "box3d"
	case LabelService:
		return "box"
	case LabelBusinessProcess:
		return "ellipse"
	case LabelComplianceControl:
		return "diamond"
	default:
		return "box"
	}
}

func nodeColor(label Label) string {
	switch label {
	case LabelVendor:
		return "#f85149"
	case LabelService:
		return "#1f6feb"
	case LabelBusinessProcess:
		return "#238636"
	case LabelComplianceControl:
		return "#d29922"
	default:
		return "#30363d"
	}
}

func edgeStyle(kind EdgeKind) string {
	switch kind {
	case EdgeDependsOn:
		return "bold"
	case EdgeSupports:
		return "dashed"
	case EdgeSatisfies:
		return "dotted"
	default:
		return "solid"
	}
}

func edgeColor(kind EdgeKind) string {
	switch kind {
	case EdgeDependsOn:
		return "#f85149"
	case EdgeSupports:
		return "#3fb950"
	case EdgeSatisfies:
		return "#d29922"
	default:
		return "#c9d1d9"
	}
}

func mermaidNodeShape(label Label, name string) string {
	switch label {
	case LabelVendor:
		return fmt.Sprintf("[[\"%s\"]]", name)
	case LabelBusinessProcess:
		return fmt.Sprintf("([\"%s\"])", name)
	case LabelComplianceControl:
		return fmt.Sprintf("{\"%s\"}", name)
	default:
		return fmt.Sprintf("[\"%s\"]", name)
	}
}

func mermaidArrow(kind EdgeKind) string {
	switch kind {
	case EdgeDependsOn:
		return "===>"
	case EdgeSupports:
		return "-.->"
	default:
		return "-->"
	}
}
