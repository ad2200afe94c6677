package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lgili/stacklens/internal/server"
)

var (
	servePort int
	serveDir  string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve saved analysis runs over HTTP",
	Long: `Start a local HTTP server exposing saved runs as a JSON API.

The server provides:
- Run history with per-run counters
- The largest stack frames of any run
- Entry point candidates from the stored call graph
- Worst-case paths solved on demand for any function`,
	RunE: func(cmd *cobra.Command, args []string) error {
		srv, err := server.New(server.Config{
			Port:       servePort,
			ProjectDir: serveDir,
		})
		if err != nil {
			return fmt.Errorf("starting server: %w", err)
		}
		return srv.Start()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8080, "port to serve on")
	serveCmd.Flags().StringVar(&serveDir, "dir", ".", "project directory containing .stacklens")
}
