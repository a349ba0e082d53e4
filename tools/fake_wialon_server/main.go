// Command fake_wialon_server emulates enough of the Wialon remote API to run
// the report sync locally: core/login, report execution, status polling,
// row selection and cleanup.
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

type fakeWialonServer struct {
	start        time.Time
	latency      time.Duration
	failLogin    bool
	pollsNeeded  int
	rowsPerTable int

	mu         sync.Mutex
	sessionSeq int64
	sessions   map[string]time.Time
	execs      map[string]*execState
	totalCalls int64
}

type execState struct {
	polls int
}

func main() {
	addr := getenvDefault("FAKE_WIALON_ADDR", ":18081")
	latencyMs := getenvIntDefault("FAKE_WIALON_LATENCY_MS", 0)
	pollsNeeded := getenvIntDefault("FAKE_WIALON_POLLS", 1)
	rowsPerTable := getenvIntDefault("FAKE_WIALON_ROWS", 2)
	failLogin := os.Getenv("FAKE_WIALON_FAIL_LOGIN") == "1"

	srv := &fakeWialonServer{
		start:        time.Now().UTC(),
		latency:      time.Duration(latencyMs) * time.Millisecond,
		failLogin:    failLogin,
		pollsNeeded:  pollsNeeded,
		rowsPerTable: rowsPerTable,
		sessions:     make(map[string]time.Time),
		execs:        make(map[string]*execState),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", srv.handleHealth)
	mux.HandleFunc("/stats", srv.handleStats)
	mux.HandleFunc("/wialon/ajax.html", srv.handleAjax)

	log.Printf("fake wialon server listening on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatal(err)
	}
}

func (s *fakeWialonServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *fakeWialonServer) handleStats(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, map[string]any{
		"started_at": s.start.Format(time.RFC3339),
		"total":      atomic.LoadInt64(&s.totalCalls),
		"sessions":   len(s.sessions),
	})
}

func (s *fakeWialonServer) handleAjax(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	if s.latency > 0 {
		time.Sleep(s.latency)
	}
	atomic.AddInt64(&s.totalCalls, 1)

	if err := r.ParseForm(); err != nil {
		writeJSON(w, map[string]any{"error": 4})
		return
	}
	svc := r.PostFormValue("svc")
	sid := r.PostFormValue("sid")

	if svc == "core/login" {
		s.handleLogin(w)
		return
	}
	if !s.validSession(sid) {
		// Code 1 is the invalid-session error of the real API.
		writeJSON(w, map[string]any{"error": 1})
		return
	}

	switch svc {
	case "report/exec_report":
		s.mu.Lock()
		s.execs[sid] = &execState{}
		s.mu.Unlock()
		writeJSON(w, map[string]any{"remoteExec": 1})
	case "report/get_report_status":
		s.handleStatus(w, sid)
	case "report/apply_report_result":
		writeJSON(w, map[string]any{
			"reportResult": map[string]any{
				"tables": []any{
					map[string]any{"name": "unit_zones_visit", "rows": s.rowsPerTable},
				},
			},
		})
	case "report/select_result_rows":
		s.handleSelectRows(w)
	case "report/cleanup_result":
		s.mu.Lock()
		delete(s.execs, sid)
		s.mu.Unlock()
		writeJSON(w, map[string]any{"error": 0})
	default:
		writeJSON(w, map[string]any{"error": 2})
	}
}

func (s *fakeWialonServer) handleLogin(w http.ResponseWriter) {
	if s.failLogin {
		writeJSON(w, map[string]any{"error": 8})
		return
	}
	s.mu.Lock()
	sid := fmt.Sprintf("sid-%d", atomic.AddInt64(&s.sessionSeq, 1))
	s.sessions[sid] = time.Now()
	s.mu.Unlock()
	writeJSON(w, map[string]any{"eid": sid, "nm": "fake-operator"})
}

func (s *fakeWialonServer) validSession(sid string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[sid]
	return ok
}

func (s *fakeWialonServer) handleStatus(w http.ResponseWriter, sid string) {
	s.mu.Lock()
	state := s.execs[sid]
	if state == nil {
		state = &execState{}
		s.execs[sid] = state
	}
	state.polls++
	done := state.polls >= s.pollsNeeded
	s.mu.Unlock()

	if done {
		writeJSON(w, map[string]any{"status": "4"})
		return
	}
	writeJSON(w, map[string]any{"status": 2})
}

func (s *fakeWialonServer) handleSelectRows(w http.ResponseWriter) {
	rows := make([]any, 0, s.rowsPerTable)
	base := time.Now().Add(-2 * time.Hour)
	for i := 0; i < s.rowsPerTable; i++ {
		entry := base.Add(time.Duration(i) * 20 * time.Minute)
		exit := entry.Add(15 * time.Minute)
		rows = append(rows, map[string]any{
			"n":   1,
			"uid": 600000000 + i,
			"c": []any{
				fmt.Sprintf("PM%03d", i+1),
				"FERASA",
				"-----",
				"-----",
				"0:15:00",
			},
			"r": []any{
				map[string]any{
					"n":   1,
					"uid": 600000000 + i,
					"c": []any{
						fmt.Sprintf("PM%03d", i+1),
						"FERASA",
						map[string]any{
							"t": entry.Format("02.01.2006 15:04:05"),
							"v": 1, "x": -79.9, "y": -2.2, "u": 600000000 + i,
						},
						map[string]any{
							"t": exit.Format("02.01.2006 15:04:05"),
							"v": 1, "x": -79.9, "y": -2.2, "u": 600000000 + i,
						},
						"0:15:00",
					},
				},
			},
		})
	}
	writeJSON(w, rows)
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}
