// Package monitoring serves the progress and statistics of running simulators
// over HTTP.
package monitoring

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/xid"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"

	"github.com/sarchlab/cachesim/mem/cache"
	"github.com/sarchlab/cachesim/monitoring/web"
	"github.com/sarchlab/cachesim/sim/hooking"
)

// SimulatorState is a snapshot of a simulator, taken on the goroutine that
// runs it.
type SimulatorState struct {
	Name       string
	Policy     string
	Geometry   cache.Geometry
	Now        uint64
	Stats      cache.Stats
	LastAccess cache.AccessEvent
	Finished   bool
}

type simulatorEntry struct {
	bar   *ProgressBar
	state SimulatorState
}

// Monitor turns a replay into a server that can be inspected while it runs.
// It is a hook of the simulators it monitors.
type Monitor struct {
	portNumber      int
	profileDuration time.Duration
	registry        *prometheus.Registry
	metrics         *Metrics

	lock         sync.Mutex
	simulators   map[string]*simulatorEntry
	progressBars []*ProgressBar

	listener net.Listener
}

// NewMonitor creates a new Monitor.
func NewMonitor() *Monitor {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Monitor{
		profileDuration: time.Second,
		registry:        registry,
		metrics:         NewMetrics(registry),
		simulators:      make(map[string]*simulatorEntry),
	}
}

// WithPortNumber sets the port number of the monitor.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber != 0 && portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"Port number %d is assigned to the monitoring server, "+
				"which is not allowed. Using a random port instead.\n", portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// Metrics returns the Prometheus metrics updated by the monitor.
func (m *Monitor) Metrics() *Metrics {
	return m.metrics
}

// RegisterSimulator starts monitoring a simulator. The total is the number of
// records to replay, or 0 if it is unknown. Simulator names must be unique.
func (m *Monitor) RegisterSimulator(s *cache.Simulator, total uint64) *ProgressBar {
	m.lock.Lock()
	defer m.lock.Unlock()

	if _, ok := m.simulators[s.Name()]; ok {
		panic(fmt.Sprintf("simulator %s is already monitored", s.Name()))
	}

	bar := m.createProgressBar(s.Name(), total)
	m.simulators[s.Name()] = &simulatorEntry{
		bar:   bar,
		state: snapshot(s),
	}

	s.AcceptHook(m)

	return bar
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	m.lock.Lock()
	defer m.lock.Unlock()

	return m.createProgressBar(name, total)
}

func (m *Monitor) createProgressBar(name string, total uint64) *ProgressBar {
	bar := &ProgressBar{
		ID:        xid.New().String(),
		Name:      name,
		StartTime: time.Now(),
		Total:     total,
	}

	m.progressBars = append(m.progressBars, bar)

	return bar
}

// CompleteProgressBar removes a bar to be shown on the webpage.
func (m *Monitor) CompleteProgressBar(pb *ProgressBar) {
	m.lock.Lock()
	defer m.lock.Unlock()

	newBars := make([]*ProgressBar, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		if b != pb {
			newBars = append(newBars, b)
		}
	}

	m.progressBars = newBars
}

// Func updates the snapshot of the simulator that invoked the hook.
func (m *Monitor) Func(ctx hooking.HookCtx) {
	s, ok := ctx.Domain.(*cache.Simulator)
	if !ok {
		return
	}

	switch ctx.Pos {
	case cache.HookPosAccess:
		e := ctx.Item.(cache.AccessEvent)
		m.metrics.ObserveAccess(s.Name(), e)
		m.updateState(s, func(entry *simulatorEntry) {
			entry.state.LastAccess = e
			entry.bar.IncrementFinished(1)
		})
	case cache.HookPosRunEnd:
		m.metrics.ObserveRunEnd(s.Name(), ctx.Item.(cache.Stats))
		m.updateState(s, func(entry *simulatorEntry) {
			entry.state.Finished = true
			entry.bar.MarkDone()
		})
	}
}

func (m *Monitor) updateState(s *cache.Simulator, update func(*simulatorEntry)) {
	m.lock.Lock()
	defer m.lock.Unlock()

	entry, ok := m.simulators[s.Name()]
	if !ok {
		return
	}

	last := entry.state.LastAccess
	entry.state = snapshot(s)
	entry.state.LastAccess = last

	update(entry)
}

func snapshot(s *cache.Simulator) SimulatorState {
	return SimulatorState{
		Name:     s.Name(),
		Policy:   s.Policy().String(),
		Geometry: s.Geometry(),
		Now:      s.Now(),
		Stats:    s.Stats(),
	}
}

// Handler returns the HTTP handler that serves the monitor.
func (m *Monitor) Handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/simulators", m.listSimulators)
	r.HandleFunc("/api/stats", m.listStats)
	r.HandleFunc("/api/state/{name}", m.simulatorState)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)
	r.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	r.PathPrefix("/").Handler(http.FileServer(web.GetAssets()))

	return r
}

// StartServer starts the monitor as a web server and returns its URL.
func (m *Monitor) StartServer() (string, error) {
	listener, err := net.Listen("tcp", ":"+strconv.Itoa(m.portNumber))
	if err != nil {
		return "", fmt.Errorf("starting monitor: %w", err)
	}

	m.listener = listener

	url := fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)
	fmt.Fprintf(os.Stderr, "Monitoring simulation with %s\n", url)

	handler := m.Handler()

	go func() {
		err := http.Serve(listener, handler)
		if err != nil && !errors.Is(err, net.ErrClosed) {
			fmt.Fprintf(os.Stderr, "Monitor stopped: %v\n", err)
		}
	}()

	return url, nil
}

// StopServer closes the listener opened by StartServer.
func (m *Monitor) StopServer() error {
	if m.listener == nil {
		return nil
	}

	return m.listener.Close()
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.lock.Lock()
	bars := make([]*ProgressBar, len(m.progressBars))
	copy(bars, m.progressBars)
	m.lock.Unlock()

	writeJSON(w, bars)
}

func (m *Monitor) sortedNames() []string {
	names := make([]string, 0, len(m.simulators))
	for name := range m.simulators {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

func (m *Monitor) listSimulators(w http.ResponseWriter, _ *http.Request) {
	m.lock.Lock()
	names := m.sortedNames()
	m.lock.Unlock()

	writeJSON(w, names)
}

type statsRsp struct {
	cache.Stats
	MissRate float64 `json:"miss_rate"`
}

func (m *Monitor) listStats(w http.ResponseWriter, _ *http.Request) {
	m.lock.Lock()
	rsp := make(map[string]statsRsp, len(m.simulators))
	for name, entry := range m.simulators {
		rsp[name] = statsRsp{
			Stats:    entry.state.Stats,
			MissRate: entry.state.Stats.MissRate(),
		}
	}
	m.lock.Unlock()

	writeJSON(w, rsp)
}

func (m *Monitor) simulatorState(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	m.lock.Lock()
	entry, ok := m.simulators[name]
	var state SimulatorState
	if ok {
		state = entry.state
	}
	m.lock.Unlock()

	if !ok {
		http.Error(w, "Simulator not found", http.StatusNotFound)
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(&state)
	serializer.SetMaxDepth(2)

	buf := new(bytes.Buffer)
	if err := serializer.Serialize(buf); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(buf.Bytes())
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	cpuPercent, err := proc.CPUPercent()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	memoryInfo, err := proc.MemoryInfo()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memoryInfo.RSS,
	})
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	if err := pprof.StartCPUProfile(buf); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	time.Sleep(m.profileDuration)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, prof)
}

func writeJSON(w http.ResponseWriter, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}
