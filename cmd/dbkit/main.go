package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/saltyorg/dbkit/internal/config"
	"github.com/saltyorg/dbkit/internal/database"
	"github.com/saltyorg/dbkit/internal/logging"
	"github.com/saltyorg/dbkit/internal/models"
	"github.com/saltyorg/dbkit/internal/orm"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const defaultDBPath = "./dbkit.db"

// CLI flags
var (
	driver    string
	dbPath    string
	host      string
	port      int
	user      string
	password  string
	options   map[string]string
	verbosity int
	logFile   string

	dropFirst bool
	schedule  string
	vacuum    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "dbkit",
		Short: "dbkit - schema and database tooling",
		Long:  `dbkit generates DDL for the declared record types, provisions databases and runs maintenance.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			loader := config.NewLoader(config.Chain{
				config.MapSettings(options),
				config.EnvSettings{Prefix: "DBKIT"},
			})
			path := logFile
			if path == "auto" {
				path = logging.FilePathForDB(engineConfig().Database)
			}
			logging.Apply(logging.LevelForVerbosity(verbosity), loader, path)
		},
		SilenceUsage: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&driver, "driver", config.DefaultDriver, "Database driver (sqlite, sqlite3, mysql)")
	flags.StringVarP(&dbPath, "db", "d", defaultDBPath, "Database name or SQLite path (or set DB_PATH env var)")
	flags.StringVar(&host, "host", config.DefaultHost, "Database host for network drivers")
	flags.IntVar(&port, "port", config.DefaultPort, "Database port for network drivers")
	flags.StringVarP(&user, "user", "u", "", "Database user")
	flags.StringVar(&password, "password", "", "Database password (or set DB_PASSWORD env var)")
	flags.StringToStringVarP(&options, "option", "o", nil, "Driver option key=value (repeatable)")
	flags.CountVarP(&verbosity, "verbose", "v", "Increase verbosity (-v debug, -vv trace)")
	flags.StringVar(&logFile, "log-file", "", "Also write logs to this rotating file (\"auto\" places it beside the database)")

	ddlCmd := &cobra.Command{
		Use:   "ddl [type...]",
		Short: "Print CREATE TABLE statements for the declared record types",
		RunE:  runDDL,
	}

	provisionCmd := &cobra.Command{
		Use:   "provision",
		Short: "Create the tables of every declared record type",
		RunE:  runProvision,
	}
	provisionCmd.Flags().BoolVar(&dropFirst, "drop", false, "Drop existing tables first")

	maintainCmd := &cobra.Command{
		Use:   "maintain",
		Short: "Run SQLite maintenance once or on a cron schedule",
		RunE:  runMaintain,
	}
	maintainCmd.Flags().StringVar(&schedule, "schedule", "", "Cron schedule (e.g. \"@daily\"); runs once when empty")
	maintainCmd.Flags().BoolVar(&vacuum, "vacuum", false, "Also VACUUM after optimizing")

	rootCmd.AddCommand(ddlCmd, provisionCmd, maintainCmd, &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("dbkit %s (commit: %s, built: %s)\n", version, commit, date)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func engineConfig() config.EngineConfig {
	if dbPath == defaultDBPath {
		if envDB := os.Getenv("DB_PATH"); envDB != "" {
			dbPath = envDB
		}
	}
	if password == "" {
		password = os.Getenv("DB_PASSWORD")
	}
	return config.EngineConfig{
		Driver:   driver,
		Host:     host,
		Port:     port,
		User:     user,
		Password: password,
		Database: dbPath,
		Options:  options,
	}
}

func selectSchemas(names []string) ([]*orm.Schema, error) {
	reg, err := models.Registry()
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return reg.Schemas(), nil
	}
	schemas := make([]*orm.Schema, 0, len(names))
	for _, name := range names {
		s, ok := reg.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("unknown record type %q", name)
		}
		schemas = append(schemas, s)
	}
	return schemas, nil
}

func runDDL(cmd *cobra.Command, args []string) error {
	schemas, err := selectSchemas(args)
	if err != nil {
		return err
	}
	for i, s := range schemas {
		if i > 0 {
			fmt.Fprintln(cmd.OutOrStdout())
		}
		fmt.Fprintln(cmd.OutOrStdout(), orm.GenerateDDL(s))
	}
	return nil
}

func runProvision(cmd *cobra.Command, args []string) error {
	schemas, err := selectSchemas(nil)
	if err != nil {
		return err
	}

	engine, err := database.Init(engineConfig())
	if err != nil {
		return err
	}
	defer database.Shutdown()

	err = provision(cmd.Context(), engine, schemas, dropFirst)
	if err != nil {
		return err
	}
	log.Info().Int("tables", len(schemas)).Msg("Provisioning complete")
	return nil
}

// provision creates every table in one transaction, dropping in reverse
// dependency order first when asked.
func provision(ctx context.Context, engine *database.Engine, schemas []*orm.Schema, drop bool) error {
	return engine.WithTransaction(ctx, func(ctx context.Context) error {
		if drop {
			for _, s := range slices.Backward(schemas) {
				if _, err := engine.Exec(ctx, orm.DropDDL(s)); err != nil {
					return fmt.Errorf("failed to drop %s: %w", s.Table(), err)
				}
			}
		}
		for _, s := range schemas {
			log.Info().Str("table", s.Table()).Msg("Creating table")
			if _, err := engine.Exec(ctx, orm.GenerateDDL(s)); err != nil {
				return fmt.Errorf("failed to create %s: %w", s.Table(), err)
			}
		}
		return nil
	})
}

func runMaintain(cmd *cobra.Command, args []string) error {
	engine, err := database.Init(engineConfig())
	if err != nil {
		return err
	}
	defer database.Shutdown()

	ctx := cmd.Context()
	if schedule == "" {
		return maintain(ctx, engine, vacuum)
	}

	c := cron.New()
	if _, err := c.AddFunc(schedule, func() {
		if err := maintain(ctx, engine, vacuum); err != nil {
			log.Error().Err(err).Msg("Scheduled maintenance failed")
		}
	}); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", schedule, err)
	}
	c.Start()
	log.Info().Str("schedule", schedule).Bool("vacuum", vacuum).Msg("Maintenance scheduler started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	stopped := c.Stop()
	<-stopped.Done()
	return nil
}

func maintain(ctx context.Context, engine *database.Engine, vacuum bool) error {
	if err := engine.Optimize(ctx); err != nil {
		return err
	}
	if vacuum {
		return engine.Vacuum(ctx)
	}
	return nil
}
