package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/aquamon-pt/aquamon/pkg/api/v1/meter"
	"github.com/aquamon-pt/aquamon/pkg/version"
)

// Server exposes health, metrics and the last published meter states over
// HTTP.
type Server struct {
	addr         string
	cache        *meter.Cache
	activeAlarms func() []string
}

func New(addr string, cache *meter.Cache, activeAlarms func() []string) *Server {
	return &Server{
		addr:         addr,
		cache:        cache,
		activeAlarms: activeAlarms,
	}
}

func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/health", s.health).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	router.HandleFunc("/api/v1/meters", s.listMeters).Methods("GET")
	router.HandleFunc("/api/v1/meters/{number}", s.getMeter).Methods("GET")
	return router
}

func (s *Server) Start(ctx context.Context, wg *sync.WaitGroup) {
	srv := &http.Server{
		Addr:    s.addr,
		Handler: s.Router(),
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		logrus.Infof("http api listening on %s", s.addr)
		err := srv.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			logrus.Error(err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		if err != nil {
			logrus.Error(err)
		}
	}()
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"version": version.Version,
		"alarms":  s.activeAlarms(),
	})
}

func (s *Server) listMeters(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.cache.All())
}

func (s *Server) getMeter(w http.ResponseWriter, r *http.Request) {
	number := mux.Vars(r)["number"]
	st := s.cache.Get(number)
	if st == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown meter"})
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		logrus.Error(err)
	}
}
