package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/go-go-golems/loom/pkg/canvas"
	"github.com/go-go-golems/loom/pkg/graph"
)

func newCanvasCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "canvas",
		Short: "Inspect the canvas",
	}

	var output string
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Load the canvas and print its projected graph",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := engine.LoadCanvas(cmd.Context())
			if err != nil {
				return err
			}
			g := graph.Project(c, engine)
			switch output {
			case "yaml":
				return yaml.NewEncoder(cmd.OutOrStdout()).Encode(g)
			case "json":
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(g)
			default:
				printGraph(cmd, c, g)
				return nil
			}
		},
	}
	showCmd.Flags().StringVarP(&output, "output", "o", "text", "output format: text, yaml, json")
	cmd.AddCommand(showCmd)

	return cmd
}

func printGraph(cmd *cobra.Command, c *canvas.Canvas, g *graph.Graph) {
	cmd.Printf("canvas %s (%d trees, %d visual nodes, %d edges)\n", c.Name, len(c.Trees), len(g.Nodes), len(g.Edges))
	for _, vn := range g.Nodes {
		switch vn.Kind {
		case graph.NodeKindTreeHeader:
			cmd.Printf("\n[%s] %s at (%.0f, %.0f)\n", vn.TreeID, vn.Label, vn.Position.X, vn.Position.Y)
		case graph.NodeKindConversation:
			prompt := vn.Node.Prompt
			if prompt == "" {
				prompt = "<awaiting input>"
			}
			marker := ""
			if vn.Loading || vn.Node.IsGenerating {
				marker = " (generating)"
			}
			cmd.Printf("  %s%s %s\n", vn.ID, marker, truncate(prompt, 60))
			if len(vn.Node.Attachments) > 0 {
				for _, a := range vn.Node.Attachments {
					inherited := ""
					if a.IsInherited {
						inherited = fmt.Sprintf(" (inherited from %s)", a.InheritedFromNodeID)
					}
					cmd.Printf("    + %s%s\n", a.Filename, inherited)
				}
			}
		}
	}
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func newTreeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tree",
		Short: "Manage conversation trees",
	}

	var description string
	var x, y float64
	createCmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a new conversation tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			treeID, err := engine.CreateTree(cmd.Context(), args[0], description, canvas.Position{X: x, Y: y})
			if err != nil {
				return err
			}
			cmd.Println(treeID)
			return nil
		},
	}
	createCmd.Flags().StringVar(&description, "description", "", "tree description")
	createCmd.Flags().Float64Var(&x, "x", 0, "canvas x position")
	createCmd.Flags().Float64Var(&y, "y", 0, "canvas y position")
	cmd.AddCommand(createCmd)

	rmCmd := &cobra.Command{
		Use:   "rm <tree-id>",
		Short: "Delete a tree and everything in it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			treeID, err := parseTreeArg(args[0])
			if err != nil {
				return err
			}
			return engine.DeleteTree(cmd.Context(), treeID)
		},
	}
	cmd.AddCommand(rmCmd)

	var mx, my float64
	moveCmd := &cobra.Command{
		Use:   "move <tree-id>",
		Short: "Move a tree on the canvas",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			treeID, err := parseTreeArg(args[0])
			if err != nil {
				return err
			}
			return engine.UpdateTreePosition(cmd.Context(), treeID, canvas.Position{X: mx, Y: my})
		},
	}
	moveCmd.Flags().Float64Var(&mx, "x", 0, "canvas x position")
	moveCmd.Flags().Float64Var(&my, "y", 0, "canvas y position")
	cmd.AddCommand(moveCmd)

	return cmd
}

func newNodeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "node",
		Short: "Manage conversation nodes",
	}

	branchCmd := &cobra.Command{
		Use:   "branch <tree-id> <parent-node-id>",
		Short: "Add an empty branch node under a parent",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			treeID, err := parseTreeArg(args[0])
			if err != nil {
				return err
			}
			parentID, err := parseNodeArg(args[1])
			if err != nil {
				return err
			}
			nodeID, err := engine.CreateNodeBranch(cmd.Context(), treeID, parentID)
			if err != nil {
				return err
			}
			if nodeID.IsZero() {
				cmd.Println("parent not found, nothing created")
				return nil
			}
			cmd.Println(nodeID)
			return nil
		},
	}
	cmd.AddCommand(branchCmd)

	rmCmd := &cobra.Command{
		Use:   "rm <tree-id> <node-id>",
		Short: "Delete a node and its subtree (the root deletes the tree)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			treeID, err := parseTreeArg(args[0])
			if err != nil {
				return err
			}
			nodeID, err := parseNodeArg(args[1])
			if err != nil {
				return err
			}
			return engine.DeleteNode(cmd.Context(), treeID, nodeID)
		},
	}
	cmd.AddCommand(rmCmd)

	var nx, ny float64
	moveCmd := &cobra.Command{
		Use:   "move <tree-id> <node-id>",
		Short: "Move a node",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			treeID, err := parseTreeArg(args[0])
			if err != nil {
				return err
			}
			nodeID, err := parseNodeArg(args[1])
			if err != nil {
				return err
			}
			return engine.UpdateNodePosition(cmd.Context(), treeID, nodeID, canvas.Position{X: nx, Y: ny})
		},
	}
	moveCmd.Flags().Float64Var(&nx, "x", 0, "canvas x position")
	moveCmd.Flags().Float64Var(&ny, "y", 0, "canvas y position")
	cmd.AddCommand(moveCmd)

	attachCmd := &cobra.Command{
		Use:   "attach <tree-id> <node-id> <file>",
		Short: "Upload a file attachment to a node",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			treeID, err := parseTreeArg(args[0])
			if err != nil {
				return err
			}
			nodeID, err := parseNodeArg(args[1])
			if err != nil {
				return err
			}
			f, err := os.Open(args[2])
			if err != nil {
				return err
			}
			defer func(f *os.File) {
				_ = f.Close()
			}(f)

			attachment, err := engine.UploadAttachment(cmd.Context(), treeID, nodeID, filepath.Base(args[2]), f)
			if err != nil {
				return err
			}
			cmd.Println(attachment.ID)
			return nil
		},
	}
	cmd.AddCommand(attachCmd)

	return cmd
}

func parseTreeArg(s string) (canvas.TreeID, error) {
	treeID, err := canvas.ParseTreeID(s)
	if err != nil {
		return canvas.NullTree, fmt.Errorf("invalid tree id %q: %w", s, err)
	}
	return treeID, nil
}

func parseNodeArg(s string) (canvas.NodeID, error) {
	nodeID, err := canvas.ParseNodeID(s)
	if err != nil {
		return canvas.NullNode, fmt.Errorf("invalid node id %q: %w", s, err)
	}
	return nodeID, nil
}
