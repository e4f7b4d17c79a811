package handler

import (
	"net/http"
	"sync"

	"sensorlog/internal/dto"
	"sensorlog/internal/logger"
	"sensorlog/internal/viewmodel"
)

// HistoryHandler returns the history list, switching the filter first when
// ?filter= names a different one. Requests are serialized so each one answers
// with the filter it asked for.
func HistoryHandler(history *viewmodel.History, logger *logger.Logger) http.HandlerFunc {
	var mu sync.Mutex

	return func(w http.ResponseWriter, r *http.Request) {
		var filter viewmodel.Filter
		raw := r.URL.Query().Get("filter")
		if raw != "" {
			var err error
			if filter, err = viewmodel.ParseFilter(raw); err != nil {
				writeError(w, logger, err)
				return
			}
		}

		mu.Lock()
		state, err := historyState(r, history, filter)
		mu.Unlock()
		if err != nil {
			writeError(w, logger, err)
			return
		}
		if state.Err != nil {
			logger.Error("History state is stale: %v", state.Err)
			writeError(w, logger, state.Err)
			return
		}
		writeJSON(w, logger, http.StatusOK, dto.NewHistoryInfo(state))
	}
}

// historyState switches to filter when it is set and differs, or when the
// current query has failed, then reads the state. Callers hold the handler lock.
func historyState(r *http.Request, history *viewmodel.History, filter viewmodel.Filter) (viewmodel.HistoryState, error) {
	current := history.State()
	if filter == "" {
		filter = current.Filter
	}
	if filter != current.Filter || current.Err != nil {
		if err := history.SetFilter(r.Context(), filter); err != nil {
			return viewmodel.HistoryState{}, err
		}
	}
	return history.State(), nil
}
