// Command station runs one fabrication station's vision pipeline: it
// pulls frames from a configured source, feeds them through the cut
// sensor, gates emitted events against an offline lease, validates
// timestamps, and appends accepted events to the station's event log. It
// also serves an HTTP report endpoint and, optionally, monitors a
// physical trigger device for cross-checking.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/rebar-platform/edgevision/internal/config"
	"github.com/rebar-platform/edgevision/internal/framesource"
	"github.com/rebar-platform/edgevision/internal/fsutil"
	"github.com/rebar-platform/edgevision/internal/ledger"
	"github.com/rebar-platform/edgevision/internal/monitoring"
	"github.com/rebar-platform/edgevision/internal/report"
	"github.com/rebar-platform/edgevision/internal/timeutil"
	"github.com/rebar-platform/edgevision/internal/triggerinput"
	"github.com/rebar-platform/edgevision/internal/version"
	"github.com/rebar-platform/edgevision/internal/vision/cutsensor"
	"github.com/rebar-platform/edgevision/internal/vision/event"
	"github.com/rebar-platform/edgevision/internal/vision/frame"
	"github.com/rebar-platform/edgevision/internal/vision/lease"
	"github.com/rebar-platform/edgevision/internal/vision/store"
	"github.com/rebar-platform/edgevision/internal/vision/validator"
)

var (
	configPath  = flag.String("config", "", "path to the station's JSON configuration file")
	framesPath  = flag.String("frames", "", "path to a replay fixture file of frames (dev/offline mode)")
	triggerPort = flag.String("trigger-port", "", "serial device path for the optional trigger-input monitor")
	listen      = flag.String("listen", ":8080", "HTTP listen address for the report/admin server")
	ledgerPath  = flag.String("ledger", "", "path to the lease audit ledger (defaults to <data-dir>/ledger.sqlite)")
	showVersion = flag.Bool("version", false, "print version information and exit")
)

// frameFixture is the on-disk JSON shape of one replay frame, used by
// -frames for deterministic offline runs.
type frameFixture struct {
	Width  int     `json:"width"`
	Height int     `json:"height"`
	Pixels []uint8 `json:"pixels"`
}

func loadReplayFrames(path string) ([]frame.Grid, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading frame fixture: %w", err)
	}
	var fixtures []frameFixture
	if err := json.Unmarshal(data, &fixtures); err != nil {
		return nil, fmt.Errorf("parsing frame fixture: %w", err)
	}
	grids := make([]frame.Grid, 0, len(fixtures))
	for _, f := range fixtures {
		g := frame.NewGrid(f.Width, f.Height)
		copy(g.Pixels, f.Pixels)
		grids = append(grids, g)
	}
	return grids, nil
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("station %s (%s, %s)\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}

	if *configPath == "" {
		log.Fatal("-config is required")
	}
	cfg, err := config.LoadStationConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load station config: %v", err)
	}
	stationID := cfg.GetStationID()
	if stationID == "" {
		log.Fatal("station config must set station_id")
	}

	dataDir := cfg.GetDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		log.Fatalf("failed to create data directory %q: %v", dataDir, err)
	}

	eventStore, err := store.New(fsutil.OSFileSystem{}, filepath.Join(dataDir, stationID+".events.log"), dataDir)
	if err != nil {
		log.Fatalf("failed to open event store: %v", err)
	}

	lgPath := *ledgerPath
	if lgPath == "" {
		lgPath = filepath.Join(dataDir, "ledger.sqlite")
	}
	auditLedger, err := ledger.Open(lgPath)
	if err != nil {
		log.Fatalf("failed to open audit ledger: %v", err)
	}
	defer auditLedger.Close()

	clock := timeutil.RealClock{}

	x, y, w, h := cfg.GetROI()
	sensor, err := cutsensor.New(cutsensor.Config{
		ROI:             frame.ROI{X: x, Y: y, Width: w, Height: h},
		PersistenceMS:   cfg.GetPersistenceMS(),
		MinAreaPx:       cfg.GetMinAreaPx(),
		StabilizationMS: cfg.GetStabilizationMS(),
		Direction:       cutsensor.Direction(cfg.GetDirection()),
	}, stationID, clock)
	if err != nil {
		log.Fatalf("failed to construct cut sensor: %v", err)
	}

	tsValidator := validator.New(validator.Config{
		MaxSkew: time.Duration(cfg.GetMaxClockSkewSeconds()) * time.Second,
	}, clock)

	signer := lease.NewSigner(cfg.GetLeaseSecret())
	enforcer := newSyncEnforcer(signer)
	enforcer.issue(auditLedger, stationID, cfg.GetLeaseDurationHours(), clock)

	var src framesource.Source
	if *framesPath != "" {
		frames, err := loadReplayFrames(*framesPath)
		if err != nil {
			log.Fatalf("failed to load replay frames: %v", err)
		}
		src = framesource.NewReplaySource(frames)
	} else {
		log.Fatal("no frame source configured: pass -frames (camera capture requires a host-specific CameraReader wired in by the caller)")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup

	if *triggerPort != "" {
		realMux, err := triggerinput.NewRealMux(*triggerPort, triggerinput.DefaultMode())
		if err != nil {
			log.Fatalf("failed to open trigger port: %v", err)
		}
		defer realMux.Close()

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := realMux.Monitor(ctx); err != nil && err != context.Canceled {
				monitoring.Logf("station[%s]: trigger monitor stopped: %v", stationID, err)
			}
		}()

		wg.Add(1)
		go func() {
			defer wg.Done()
			id, pulses := realMux.Subscribe()
			defer realMux.Unsubscribe(id)
			for {
				select {
				case pulse, ok := <-pulses:
					if !ok {
						return
					}
					monitoring.Logf("station[%s]: trigger pulse observed: %s", stationID, pulse)
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		runFrameLoop(ctx, stationID, src, sensor, tsValidator, enforcer, eventStore)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		renewalInterval := time.Duration(cfg.GetLeaseDurationHours()) * time.Hour / 4
		if renewalInterval <= 0 {
			renewalInterval = time.Hour
		}
		ticker := clock.NewTicker(renewalInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C():
				enforcer.reconcileAndRenew(auditLedger, eventStore, stationID, cfg.GetLeaseDurationHours(), clock)
			case <-ctx.Done():
				enforcer.reconcileAndRenew(auditLedger, eventStore, stationID, cfg.GetLeaseDurationHours(), clock)
				return
			}
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		runHTTPServer(ctx, *listen, stationID, eventStore)
	}()

	log.Printf("station %q started (version=%s)", stationID, version.Version)
	wg.Wait()
	log.Printf("station %q shut down cleanly", stationID)
}

// syncEnforcer serializes access to a lease.Enforcer across the frame
// loop (AcceptEvent/Buffer) and the renewal loop (SetLease/
// ReconcileBufferedEvents), which run on separate goroutines.
type syncEnforcer struct {
	mu             sync.Mutex
	en             *lease.Enforcer
	signer         lease.Signer
	currentLeaseID string
}

func newSyncEnforcer(signer lease.Signer) *syncEnforcer {
	return &syncEnforcer{en: lease.NewEnforcer(signer), signer: signer}
}

func (s *syncEnforcer) issue(lg *ledger.Ledger, stationID string, durationHours int, clock timeutil.Clock) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, err := s.signer.Sign(uuid.New().String(), clock.Now(), durationHours)
	if err != nil {
		log.Fatalf("failed to issue lease: %v", err)
	}
	s.en.SetLease(l)
	s.currentLeaseID = l.LeaseID
	if err := lg.RecordIssuance(stationID, l); err != nil {
		monitoring.Logf("station[%s]: failed to record lease issuance: %v", stationID, err)
	}
}

func (s *syncEnforcer) acceptAndBuffer(e event.Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.en.AcceptEvent(e) {
		return false
	}
	s.en.Buffer(e)
	return true
}

// reconcileAndRenew reconciles the current buffer against onlineTimestamp,
// appends accepted events to st, records the outcome in the ledger, and
// issues a fresh lease so the offline window keeps rolling forward.
func (s *syncEnforcer) reconcileAndRenew(lg *ledger.Ledger, st *store.EventStore, stationID string, durationHours int, clock timeutil.Clock) {
	s.mu.Lock()
	onlineTimestamp := clock.Now()
	accepted, rejected := s.en.ReconcileBufferedEvents(onlineTimestamp)
	leaseID := s.currentLeaseID
	s.mu.Unlock()

	for _, e := range accepted {
		if err := st.Append(e); err != nil {
			monitoring.Logf("station[%s]: failed to append reconciled event %s: %v", stationID, e.EventID(), err)
		}
	}
	if len(accepted) > 0 || len(rejected) > 0 {
		monitoring.Logf("station[%s]: reconciled %d accepted, %d rejected", stationID, len(accepted), len(rejected))
		if err := lg.RecordReconciliation(stationID, leaseID, onlineTimestamp, len(accepted), len(rejected)); err != nil {
			monitoring.Logf("station[%s]: failed to record reconciliation: %v", stationID, err)
		}
	}

	s.issue(lg, stationID, durationHours, clock)
}

func runFrameLoop(ctx context.Context, stationID string, src framesource.Source, sensor *cutsensor.Sensor, v *validator.Validator, en *syncEnforcer, st *store.EventStore) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		full, err := src.NextFrame(ctx)
		if err != nil {
			if err == framesource.ErrExhausted {
				monitoring.Logf("station[%s]: frame source exhausted", stationID)
				return
			}
			monitoring.Logf("station[%s]: frame source error: %v", stationID, err)
			return
		}

		e, emitted, err := sensor.ProcessFrame(full)
		if err != nil {
			monitoring.Logf("station[%s]: cut sensor error: %v", stationID, err)
			continue
		}
		if !emitted {
			continue
		}

		result := v.Validate(e)
		if !result.OK() {
			monitoring.Logf("station[%s]: event %s flagged violations: %v", stationID, e.EventID(), result.Violations)
		}

		if !en.acceptAndBuffer(e) {
			monitoring.Logf("station[%s]: event %s rejected by lease enforcer", stationID, e.EventID())
			continue
		}
	}
}

func runHTTPServer(ctx context.Context, addr, stationID string, st *store.EventStore) {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})

	mux.HandleFunc("/report", func(w http.ResponseWriter, r *http.Request) {
		events, err := st.ReadAll()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		summary, err := report.Summarize(stationID, events)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		html, err := report.RenderHourlyChart(summary)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, html)
	})

	server := &http.Server{Addr: addr, Handler: mux}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("station[%s]: HTTP server error: %v", stationID, err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("station[%s]: HTTP server shutdown error: %v", stationID, err)
	}
}
