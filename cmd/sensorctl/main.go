package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"sensorlog/internal/logger"
	"sensorlog/internal/metrics"
	"sensorlog/internal/repository/sqlite"
	"sensorlog/internal/service"
	"sensorlog/internal/store"
)

var (
	dbPath string

	db   *sqlite.DB
	st   *store.Store
	repo *service.SensorRepository
)

var rootCmd = &cobra.Command{
	Use:   "sensorctl",
	Short: "sensorctl - inspect and maintain the sensor log database",
	Long: `sensorctl works directly on the SQLite file used by the sensor logger
server. It lists, counts, deletes, imports and exports measurements.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
		var err error
		if db, err = sqlite.New(dbPath); err != nil {
			return err
		}
		st = store.New(sqlite.NewMeasurementRepository(db), logger.New(os.Stderr), metrics.New())
		repo = service.NewSensorRepository(st)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		closeStore()
	},
}

func init() {
	defaultPath := os.Getenv("DB_PATH")
	if defaultPath == "" {
		defaultPath = filepath.Join("data", "sensors.db")
	}
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", defaultPath, "Database path")
}

func closeStore() {
	if st != nil {
		st.Close()
		st = nil
	}
	if db != nil {
		db.Close()
		db = nil
	}
}

func main() {
	err := rootCmd.Execute()
	closeStore()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
