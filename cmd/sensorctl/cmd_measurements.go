package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"sensorlog/internal/dto"
	"sensorlog/internal/model"
)

var (
	listType   string
	listLimit  int
	listOffset int
	listSince  string
	listUntil  string
	countType  string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List measurements, newest first",
	RunE:  runList,
}

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one measurement",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

var countCmd = &cobra.Command{
	Use:   "count",
	Short: "Count measurements",
	RunE:  runCount,
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete one measurement",
	Long:  `Delete one measurement. Deleting an id that does not exist is not an error.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every measurement",
	Long:  `Delete every measurement. Photo files referenced by camera records stay on disk.`,
	RunE:  runClear,
}

func init() {
	listCmd.Flags().StringVar(&listType, "type", "", "Sensor type (GPS, ACCELEROMETER, CAMERA)")
	listCmd.Flags().IntVar(&listLimit, "limit", 50, "Maximum number of rows, 0 for all")
	listCmd.Flags().IntVar(&listOffset, "offset", 0, "Rows to skip")
	listCmd.Flags().StringVar(&listSince, "since", "", "Earliest capture time (RFC 3339 or ms since epoch)")
	listCmd.Flags().StringVar(&listUntil, "until", "", "Latest capture time (RFC 3339 or ms since epoch)")
	countCmd.Flags().StringVar(&countType, "type", "", "Sensor type (GPS, ACCELEROMETER, CAMERA)")

	rootCmd.AddCommand(listCmd, showCmd, countCmd, deleteCmd, clearCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	filter, err := buildFilter(listType, listSince, listUntil)
	if err != nil {
		return err
	}
	filter.Limit = listLimit
	filter.Offset = listOffset

	measurements, err := repo.Query(cmd.Context(), filter)
	if err != nil {
		return err
	}
	if len(measurements) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No measurements")
		return nil
	}
	return printTable(cmd.OutOrStdout(), measurements)
}

func runShow(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	m, err := repo.MeasurementByID(cmd.Context(), id)
	if err != nil {
		return err
	}
	if m == nil {
		return fmt.Errorf("measurement %d not found", id)
	}
	return printTable(cmd.OutOrStdout(), []model.Measurement{*m})
}

func runCount(cmd *cobra.Command, args []string) error {
	filter, err := buildFilter(countType, "", "")
	if err != nil {
		return err
	}
	n, err := repo.Count(cmd.Context(), filter)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), n)
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	if err := repo.DeleteMeasurement(cmd.Context(), model.Measurement{ID: id}); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted measurement %d\n", id)
	return nil
}

func runClear(cmd *cobra.Command, args []string) error {
	n, err := repo.DeleteAllMeasurements(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d measurements\n", n)
	return nil
}

func buildFilter(sensorType, since, until string) (model.MeasurementFilter, error) {
	var filter model.MeasurementFilter
	if sensorType != "" {
		t, err := model.ParseSensorType(sensorType)
		if err != nil {
			return filter, err
		}
		filter.SensorType = t
	}
	var err error
	if filter.Since, err = parseTime(since); err != nil {
		return filter, fmt.Errorf("invalid --since: %w", err)
	}
	if filter.Until, err = parseTime(until); err != nil {
		return filter, fmt.Errorf("invalid --until: %w", err)
	}
	return filter, nil
}

// parseTime accepts RFC 3339 or milliseconds since epoch. Empty means 0.
func parseTime(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ms, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return 0, err
	}
	return t.UnixMilli(), nil
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("id must be a positive integer")
	}
	return id, nil
}

func printTable(w io.Writer, measurements []model.Measurement) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTIME\tTYPE\tVALUE")
	for _, m := range measurements {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", m.ID, m.Time().Format(dto.TimeLayout), m.SensorType, describe(m))
	}
	return tw.Flush()
}

func describe(m model.Measurement) string {
	switch m.SensorType {
	case model.SensorGPS:
		if m.Latitude != nil && m.Longitude != nil {
			return fmt.Sprintf("%.6f, %.6f", *m.Latitude, *m.Longitude)
		}
	case model.SensorAccelerometer:
		if magnitude, ok := m.Magnitude(); ok {
			return fmt.Sprintf("x=%.3f y=%.3f z=%.3f |a|=%.3f", *m.AccelerationX, *m.AccelerationY, *m.AccelerationZ, magnitude)
		}
	case model.SensorCamera:
		if m.PhotoPath != nil {
			s := *m.PhotoPath
			if m.Notes != nil {
				s += " (" + *m.Notes + ")"
			}
			return s
		}
	}
	return "-"
}
