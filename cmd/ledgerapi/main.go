package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"ledgerapi/account"
	"ledgerapi/internal/journal"
	"ledgerapi/internal/web"
	"ledgerapi/ledger"
	"ledgerapi/postgres"
	"ledgerapi/transaction"
)

func main() {
	cli := &cli{}

	cmd := &cobra.Command{
		Use:     "ledgerapi",
		Short:   "ledgerapi: a balance ledger behind an HTTP API",
		PreRunE: cli.setupConfig,
		RunE:    cli.run,
	}

	if err := setupFlags(cmd); err != nil {
		log.Fatal(err)
	}

	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

type cfg struct {
	HTTPAddr             string
	JournalDir           string
	JournalMaxStoreBytes uint64
	JournalMaxIndexBytes uint64
}

type cli struct {
	cfg cfg
}

// Reads the config fields from flags or a file
func (c *cli) setupConfig(cmd *cobra.Command, args []string) error {
	configFile, err := cmd.Flags().GetString("config-file")
	if err != nil {
		return err
	}

	if configFile != "" {
		viper.SetConfigFile(configFile)

		if err = viper.ReadInConfig(); err != nil {
			// allow non-existent config file
			if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
				return err
			}
		}
	}

	c.cfg.HTTPAddr = viper.GetString("http-addr")
	c.cfg.JournalDir = viper.GetString("journal-dir")
	c.cfg.JournalMaxStoreBytes = viper.GetUint64("journal-max-store-bytes")
	c.cfg.JournalMaxIndexBytes = viper.GetUint64("journal-max-index-bytes")

	return nil
}

func (c *cli) run(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// postgres settings come from POSTGRES_* env vars or flags
	_ = godotenv.Load()

	pgConfig, err := postgres.Parse()
	if err != nil {
		return err
	}

	db, err := postgres.Connect(pgConfig)
	if err != nil {
		return err
	}
	defer db.Close()

	accounts, err := account.NewPostgresRepo(db)
	if err != nil {
		return err
	}
	transactions, err := transaction.NewPostgresRepo(db)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(c.cfg.JournalDir, 0755); err != nil {
		return err
	}
	journalConfig := journal.Config{}
	journalConfig.Segment.MaxStoreBytes = c.cfg.JournalMaxStoreBytes
	journalConfig.Segment.MaxIndexBytes = c.cfg.JournalMaxIndexBytes
	operationJournal, err := journal.NewJournal(c.cfg.JournalDir, journalConfig)
	if err != nil {
		return err
	}

	engine, err := ledger.NewEngine(&ledger.Config{
		DB:           db,
		Accounts:     accounts,
		Transactions: transactions,
		Journal:      operationJournal,
	})
	if err != nil {
		return err
	}

	server := web.NewHTTPServer(c.cfg.HTTPAddr, &web.Config{
		Ledger:   engine,
		Accounts: accounts,
	})

	go func() {
		log.Printf("ledgerapi listening on %s", c.cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()

	log.Println("shutdown signal received, stopping server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("stopping server: %v", err)
	}
	if err := operationJournal.Close(); err != nil {
		log.Printf("closing journal: %v", err)
	}

	return nil
}

func setupFlags(cmd *cobra.Command) error {
	fs := cmd.Flags()

	fs.String("config-file", "", "Path to config file")
	fs.String("http-addr", ":8080", "Address for the HTTP API")

	journalDir := path.Join(os.TempDir(), "ledgerapi", "journal")
	fs.String("journal-dir", journalDir, "Directory to store the operation journal")
	fs.Uint64("journal-max-store-bytes", 0, "Max size of a journal store segment, 0 for the default")
	fs.Uint64("journal-max-index-bytes", 0, "Max size of a journal index segment, 0 for the default")

	return viper.BindPFlags(cmd.Flags())
}
