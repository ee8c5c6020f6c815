package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "shaderworkshop",
	Short:         "Assemble modular GLSL fragment shaders and preview them live",
	Long:          "shaderworkshop resolves #include directives, extracts annotated uniforms as live controls and reloads browser previews when shader sources change.",
	SilenceErrors: true,
	SilenceUsage:  true,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(fragCmd)
	rootCmd.AddCommand(depsCmd)
}
