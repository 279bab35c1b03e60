package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func serveCmd(ctx context.Context, a *app, args []string) error {
	fs, season := newFlags("serve", a)
	addr := fs.String("addr", a.cfg.MetricsAddr, "listen address")
	trials := fs.Int("trials", a.cfg.Trials, "trial count of the refreshed projection")
	every := fs.Duration("every", a.cfg.RefreshEvery, "refresh interval")
	if err := fs.Parse(args); err != nil {
		return err
	}
	logger := a.logger.Sugar()

	srv := &http.Server{
		Addr:              *addr,
		Handler:           a.router(*trials),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Infow("listening", "addr", *addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	a.refresh(ctx, *season, *trials)
	ticker := time.NewTicker(*every)
	defer ticker.Stop()

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case err := <-errCh:
			if err != nil {
				return err
			}
			break loop
		case <-ticker.C:
			a.refresh(ctx, *season, *trials)
		}
	}

	logger.Infow("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// refresh reads both projections so stale ones get rebuilt under the
// configured policy.
func (a *app) refresh(ctx context.Context, season, trials int) {
	logger := a.logger.Sugar()
	if _, err := a.projections.Season(ctx, season, trials); err != nil {
		logger.Errorw("season refresh failed", "season", season, "trials", trials, "error", err)
	}
	if _, err := a.projections.Rounds(ctx, season); err != nil {
		logger.Errorw("rounds refresh failed", "season", season, "error", err)
	}
}

func (a *app) router(trials int) http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	router.HandleFunc("/seasons/{season:[0-9]+}/signature", func(w http.ResponseWriter, r *http.Request) {
		season, _ := strconv.Atoi(mux.Vars(r)["season"])
		n := trials
		if q := r.URL.Query().Get("trials"); q != "" {
			v, err := strconv.Atoi(q)
			if err != nil || v <= 0 {
				http.Error(w, "invalid trials", http.StatusBadRequest)
				return
			}
			n = v
		}
		st, err := a.projections.SeasonStatus(r.Context(), season, n)
		if err != nil {
			a.logger.Sugar().Errorw("status failed", "season", season, "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(st)
	}).Methods("GET")
	return router
}
