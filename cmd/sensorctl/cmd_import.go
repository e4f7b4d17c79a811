package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"sensorlog/internal/model"
)

var skipInvalid bool

var importCmd = &cobra.Command{
	Use:   "import <file.csv>",
	Short: "Bulk insert measurements from a CSV file",
	Long: `Bulk insert measurements from a CSV file with the columns written by
export. All rows are inserted in one transaction.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write every measurement as CSV to stdout",
	RunE:  runExport,
}

func init() {
	importCmd.Flags().BoolVar(&skipInvalid, "skip-invalid", false, "Skip rows that fail to parse instead of aborting")
	rootCmd.AddCommand(importCmd, exportCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	measurements, skipped, err := readMeasurements(f, skipInvalid)
	if err != nil {
		return err
	}
	for _, s := range skipped {
		fmt.Fprintf(cmd.ErrOrStderr(), "Skipping %s\n", s)
	}
	if len(measurements) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No measurements found to import")
		return nil
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Inserting %d measurements into database...\n", len(measurements))
	if err := st.InsertBatch(cmd.Context(), measurements); err != nil {
		return fmt.Errorf("failed to insert measurements: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Imported %d measurements\n", len(measurements))
	if len(skipped) > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "Skipped %d rows\n", len(skipped))
	}
	return nil
}

// readMeasurements parses a CSV stream with a header row. With skip set,
// bad rows are reported in skipped instead of failing the whole read.
func readMeasurements(r io.Reader, skip bool) (measurements []model.Measurement, skipped []string, err error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	if len(header) == 0 || header[0] != csvHeader[0] {
		return nil, nil, fmt.Errorf("missing header row, expected %q first", csvHeader[0])
	}

	for line := 2; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return measurements, skipped, nil
		}
		if err != nil {
			return nil, nil, err
		}
		m, err := decodeRecord(row)
		if err != nil {
			if !skip {
				return nil, nil, fmt.Errorf("line %d: %w", line, err)
			}
			skipped = append(skipped, fmt.Sprintf("line %d: %v", line, err))
			continue
		}
		measurements = append(measurements, m)
	}
}

func runExport(cmd *cobra.Command, args []string) error {
	measurements, err := repo.Query(cmd.Context(), model.MeasurementFilter{})
	if err != nil {
		return err
	}

	w := csv.NewWriter(cmd.OutOrStdout())
	if err := w.Write(csvHeader); err != nil {
		return err
	}
	// Oldest first so a re-import preserves insertion order.
	for i := len(measurements) - 1; i >= 0; i-- {
		if err := w.Write(encodeRecord(measurements[i])); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
