package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"trafficlens/internal/domain"
	"trafficlens/internal/replay"
	"trafficlens/internal/usecase"
)

func filterFromQuery(r *http.Request) (usecase.TransactionFilter, error) {
	q := r.URL.Query()
	f := usecase.TransactionFilter{
		Method:   q.Get("method"),
		Host:     q.Get("host"),
		Protocol: q.Get("protocol"),
		Search:   q.Get("q"),
		Limit:    50,
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return f, errors.Join(domain.ErrInvalidQuery, err)
		}
		f.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return f, errors.Join(domain.ErrInvalidQuery, err)
		}
		f.Offset = n
	}
	if v := q.Get("status"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return f, errors.Join(domain.ErrInvalidQuery, err)
		}
		f.Status = &n
	}
	return f, nil
}

func handleList(d *Deps, w http.ResponseWriter, r *http.Request) {
	f, err := filterFromQuery(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	items, total, err := d.Svc.List(r.Context(), f)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "total": total})
}

func handleClear(d *Deps, w http.ResponseWriter, r *http.Request) {
	n, err := d.Svc.Clear(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	d.Logger.Info().Int("removed", n).Msg("store cleared")
	writeJSON(w, http.StatusOK, map[string]any{"removed": n})
}

func handleStats(d *Deps, w http.ResponseWriter, r *http.Request) {
	f, err := filterFromQuery(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	st, err := d.Svc.Stats(r.Context(), f)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func handleSessionReport(d *Deps, w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	report, err := d.Analyzer.AnalyzeSession(r.Context(), d.Svc, limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// handleTransactionSubtree serves /api/transactions/{id}[/findings|/replay|/notes].
func handleTransactionSubtree(d *Deps, w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/transactions/")
	parts := strings.SplitN(rest, "/", 2)
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "BAD_ID", "transaction id must be an integer", nil)
		return
	}
	sub := ""
	if len(parts) == 2 {
		sub = parts[1]
	}

	switch {
	case sub == "" && r.Method == http.MethodGet:
		tx, err := d.Svc.Get(r.Context(), id)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, tx)

	case sub == "findings" && r.Method == http.MethodGet:
		tx, err := d.Svc.Get(r.Context(), id)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		findings := d.Analyzer.Analyze(tx)
		if err := d.Svc.MarkAnalyzed(r.Context(), id); err != nil {
			d.Logger.Warn().Err(err).Int64("id", id).Msg("mark analyzed failed")
		}
		writeJSON(w, http.StatusOK, map[string]any{"findings": findings})

	case sub == "notes" && r.Method == http.MethodPut:
		var body struct {
			Notes string `json:"notes"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "DECODE_FAILED", err.Error(), nil)
			return
		}
		if err := d.Svc.UpdateNotes(r.Context(), id, body.Notes); err != nil {
			writeDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	case sub == "replay" && r.Method == http.MethodPost:
		handleReplay(d, w, r, id)

	default:
		writeError(w, http.StatusNotFound, "", "unknown route", nil)
	}
}

type replayBody struct {
	Method  *string        `json:"method"`
	URL     *string        `json:"url"`
	Body    *string        `json:"body"`
	Headers domain.Headers `json:"headers"`
}

func handleReplay(d *Deps, w http.ResponseWriter, r *http.Request, id int64) {
	var body replayBody
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "DECODE_FAILED", err.Error(), nil)
			return
		}
	}
	res, err := d.Replayer.Replay(r.Context(), d.Svc, id, replayOverrides(body))
	if err != nil {
		d.Metrics.ReplaysTotal.WithLabelValues("error").Inc()
		writeDomainError(w, err)
		return
	}
	d.Metrics.ReplaysTotal.WithLabelValues("ok").Inc()
	writeJSON(w, http.StatusOK, res)
}

func replayOverrides(b replayBody) replay.Overrides {
	return replay.Overrides{Method: b.Method, URL: b.URL, Body: b.Body, Headers: b.Headers}
}
