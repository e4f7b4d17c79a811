package handler

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/gorilla/mux"

	"sensorlog/internal/logger"
)

var logFiles = map[string]string{
	"info":    logger.InfoFile,
	"warning": logger.WarningFile,
	"error":   logger.ErrorFile,
}

// ShowLogsHandler serves the {level} log file as text/plain.
func ShowLogsHandler(log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filename, ok := logFiles[mux.Vars(r)["level"]]
		if !ok || log.Dir() == "" {
			http.NotFound(w, r)
			return
		}
		serveLogFile(w, r, log.Dir(), filename)
	}
}

// serveLogFile is a helper that sets headers and serves a log file if it exists.
func serveLogFile(w http.ResponseWriter, r *http.Request, logDir, filename string) {
	filePath := filepath.Join(logDir, filename)

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("Log file not found: " + filename))
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")

	http.ServeFile(w, r, filePath)
}

// ClearLogsHandler truncates the {level} log file.
func ClearLogsHandler(log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filename, ok := logFiles[mux.Vars(r)["level"]]
		if !ok {
			http.NotFound(w, r)
			return
		}
		if err := log.CleanLogs(filename); err != nil {
			log.Error("Failed to clear %s: %v", filename, err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
