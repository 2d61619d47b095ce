package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/taridex/declaration-processor/internal/server"
	"github.com/taridex/declaration-processor/internal/store"
)

var (
	serverAddr   string
	serverDebug  bool
	dbPath       string
	readTimeout  time.Duration
	writeTimeout time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start an HTTP API server for computing declarations.

The API provides endpoints for:
  - POST   /api/v1/declarations                      - Create a declaration
  - GET    /api/v1/declarations                      - List declarations
  - POST   /api/v1/declarations/:id/documents        - Upload an extracted document
  - DELETE /api/v1/declarations/:id/documents/:type  - Unlink documents of one type
  - GET    /api/v1/declarations/:id/fields           - Recompute the field map
  - POST   /api/v1/declarations/:id/fields           - Apply field overrides
  - GET    /api/v1/declarations/:id/xml              - Export ESADout_CU XML
  - GET    /health                                   - Health check

Examples:
  # Start server on default port
  declaration-processor serve

  # Start with a persistent database
  declaration-processor serve --db declarations.db

  # Start in debug mode
  declaration-processor serve --debug`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serverAddr, "address", ":8080", "Server listen address")
	serveCmd.Flags().BoolVar(&serverDebug, "debug", false, "Enable debug mode")
	serveCmd.Flags().StringVar(&dbPath, "db", "", "Path to the sqlite database (in-memory store when empty)")
	serveCmd.Flags().DurationVar(&readTimeout, "read-timeout", 30*time.Second, "HTTP read timeout")
	serveCmd.Flags().DurationVar(&writeTimeout, "write-timeout", time.Minute, "HTTP write timeout")
}

func runServe(cmd *cobra.Command, args []string) error {
	var (
		st  store.Store
		err error
	)
	if dbPath != "" {
		st, err = store.Open(dbPath)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
	} else {
		st = store.NewMemory()
	}
	defer st.Close()

	config := &server.Config{
		Address:      serverAddr,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		Debug:        serverDebug,
	}

	srv := server.NewServer(config, st, newRateSource(), newOfficeDirectory())

	// Handle graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		fmt.Println("\nShutting down server...")
		st.Close()
		os.Exit(0)
	}()

	fmt.Printf("Starting server on %s\n", serverAddr)
	if dbPath != "" {
		fmt.Printf("Using sqlite database %s\n", dbPath)
	} else {
		fmt.Println("Using in-memory store (state is lost on exit)")
	}

	return srv.Run()
}
