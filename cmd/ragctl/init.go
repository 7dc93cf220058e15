//go:build cgo

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/K-Tikaraya/File-Based-Multimodal-RAG-for-Test-Case-Use-Case-Generation/internal/embeddings"
)

func addPlatformCommands(root *cobra.Command) {
	root.AddCommand(newInitCmd())
}

func newInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Download the ONNX runtime used for local embeddings",
		Long: `Download the ONNX runtime library required by the fastembed provider into
~/.config/ragctl/lib/. If ONNX_PATH is set, that path takes precedence.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !force {
				if path := embeddings.GetONNXLibraryPath(); path != "" {
					cmd.Printf("ONNX runtime already installed at: %s\n", path)
					cmd.Println("Use --force to re-download.")
					return nil
				}
			}
			cmd.Printf("Downloading ONNX runtime v%s...\n", embeddings.DefaultONNXRuntimeVersion)
			if err := embeddings.DownloadONNXRuntime(cmd.Context(), "", embeddings.ONNXInstallDir()); err != nil {
				return fmt.Errorf("failed to download ONNX runtime: %w", err)
			}
			path := embeddings.GetONNXLibraryPath()
			if path == "" {
				return fmt.Errorf("download completed but library not found")
			}
			cmd.Printf("Successfully installed ONNX runtime to: %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "re-download even if the runtime exists")
	return cmd
}
