// Package monitoring serves the state of registered reconcilers over HTTP.
package monitoring

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"reflect"
	"runtime/pprof"
	"slices"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/rs/xid"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"

	"github.com/sarchlab/lagbuffer/hooking"
	"github.com/sarchlab/lagbuffer/naming"
	"github.com/sarchlab/lagbuffer/tracing"
)

// A Buffer is a reconciler that can be monitored.
type Buffer interface {
	naming.Named
	hooking.Hookable
}

type lengthReporter interface {
	Len() int
}

type capacityReporter interface {
	Capacity() int
}

// Monitor turns a program that uses reconcilers into a server that reports
// what the reconcilers are doing.
type Monitor struct {
	lock       sync.Mutex
	buffers    []Buffer
	counter    *tracing.CountTracer
	portNumber int
	listener   net.Listener

	profileDuration time.Duration

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar
}

// NewMonitor creates a new Monitor.
func NewMonitor() *Monitor {
	return &Monitor{
		counter:         tracing.NewCountTracer(),
		profileDuration: time.Second,
	}
}

// WithPortNumber sets the port number of the monitor.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"Port number %d is assigned to the monitoring server, "+
				"which is not allowed. Using a random port instead.\n", portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// RegisterBuffer registers a reconciler to be monitored. The monitor counts
// what happens in the reconciler from now on. Registering two buffers with the
// same name panics.
func (m *Monitor) RegisterBuffer(b Buffer) {
	m.lock.Lock()
	defer m.lock.Unlock()

	for _, registered := range m.buffers {
		if registered.Name() == b.Name() {
			panic(fmt.Sprintf("buffer %s is already registered", b.Name()))
		}
	}

	m.buffers = append(m.buffers, b)
	tracing.CollectTrace(b, m.counter)
}

// Do runs f while no request reads the registered buffers. Buffers that are
// updated while the server runs must be updated through Do.
func (m *Monitor) Do(f func()) {
	m.lock.Lock()
	defer m.lock.Unlock()

	f()
}

// Counter returns the tracer that counts the records of all registered
// buffers.
func (m *Monitor) Counter() *tracing.CountTracer {
	return m.counter
}

// CreateProgressBar creates a progress bar of total events and reports it
// until it is completed.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := &ProgressBar{
		id:    xid.New().String(),
		name:  name,
		start: time.Now(),
		total: total,
	}

	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	m.progressBars = append(m.progressBars, bar)

	return bar
}

// CompleteProgressBar removes a bar from the reported ones.
func (m *Monitor) CompleteProgressBar(pb *ProgressBar) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	newBars := make([]*ProgressBar, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		if b != pb {
			newBars = append(newBars, b)
		}
	}

	m.progressBars = newBars
}

// Router returns the handler of the monitoring API.
func (m *Monitor) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/api/list_buffers", m.listBuffers)
	r.HandleFunc("/api/buffer/{name}", m.bufferDetails)
	r.HandleFunc("/api/field/{json}", m.listFieldValue)
	r.HandleFunc("/api/counts/{name}", m.bufferCounts)
	r.HandleFunc("/api/levels", m.bufferLevels)
	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)

	return r
}

// StartServer starts the monitor as a web server and returns the port it
// listens on.
func (m *Monitor) StartServer() int {
	actualPort := ":0"
	if m.portNumber > 1000 {
		actualPort = ":" + strconv.Itoa(m.portNumber)
	}

	listener, err := net.Listen("tcp", actualPort)
	dieOnErr(err)

	m.listener = listener
	port := listener.Addr().(*net.TCPAddr).Port

	fmt.Fprintf(os.Stderr,
		"Monitoring reconcilers with http://localhost:%d/api/list_buffers\n", port)

	router := m.Router()
	go func() {
		err := http.Serve(listener, router)
		if err != nil && !errors.Is(err, net.ErrClosed) {
			dieOnErr(err)
		}
	}()

	return port
}

// StopServer closes the listener opened by StartServer.
func (m *Monitor) StopServer() {
	if m.listener == nil {
		return
	}

	err := m.listener.Close()
	dieOnErr(err)

	m.listener = nil
}

// OpenInBrowser opens the buffer list of a started server in the default
// browser.
func (m *Monitor) OpenInBrowser() error {
	if m.listener == nil {
		return errors.New("monitoring server is not started")
	}

	port := m.listener.Addr().(*net.TCPAddr).Port

	return browser.OpenURL(
		fmt.Sprintf("http://localhost:%d/api/list_buffers", port))
}

func (m *Monitor) listBuffers(w http.ResponseWriter, _ *http.Request) {
	m.lock.Lock()
	names := make([]string, 0, len(m.buffers))
	for _, b := range m.buffers {
		names = append(names, b.Name())
	}
	m.lock.Unlock()

	writeJSON(w, names)
}

func (m *Monitor) bufferDetails(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	b := m.findBufferOr404(w, name)
	if b == nil {
		return
	}

	m.lock.Lock()
	defer m.lock.Unlock()

	serializer := goseth.NewSerializer()
	serializer.SetRoot(b)
	serializer.SetMaxDepth(1)
	err := serializer.Serialize(w)

	dieOnErr(err)
}

type fieldReq struct {
	BufferName string `json:"buffer_name,omitempty"`
	FieldName  string `json:"field_name,omitempty"`
}

func (m *Monitor) listFieldValue(w http.ResponseWriter, r *http.Request) {
	req := fieldReq{}

	err := json.Unmarshal([]byte(mux.Vars(r)["json"]), &req)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "Error: %s", err)
		return
	}

	b := m.findBufferOr404(w, req.BufferName)
	if b == nil {
		return
	}

	m.lock.Lock()
	defer m.lock.Unlock()

	serializer := goseth.NewSerializer()
	serializer.SetRoot(b)
	serializer.SetMaxDepth(1)

	err = serializer.SetEntryPoint(strings.Split(req.FieldName, "."))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "Error: %s", err)
		return
	}

	err = serializer.Serialize(w)
	dieOnErr(err)
}

type countsRsp struct {
	Buffer   string            `json:"buffer"`
	Counts   map[string]uint64 `json:"counts"`
	Replayed uint64            `json:"replayed"`
}

func (m *Monitor) bufferCounts(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	if m.findBufferOr404(w, name) == nil {
		return
	}

	writeJSON(w, countsRsp{
		Buffer:   name,
		Counts:   m.counter.Counts(name),
		Replayed: m.counter.Replayed(name),
	})
}

type levelRsp struct {
	Buffer   string `json:"buffer"`
	Kind     string `json:"kind"`
	Level    int    `json:"level"`
	Capacity int    `json:"cap"`
}

func (l levelRsp) percent() float64 {
	if l.Capacity == 0 {
		return 0
	}

	return float64(l.Level) / float64(l.Capacity)
}

func (m *Monitor) bufferLevels(w http.ResponseWriter, r *http.Request) {
	sortMethod, limit, offset, err := levelsParseParams(r)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "Error: %s", err)
		return
	}

	writeJSON(w, m.sortAndSelectLevels(sortMethod, limit, offset))
}

func levelsParseParams(r *http.Request) (sortMethod string, limit, offset int, err error) {
	sortMethod = r.URL.Query().Get("sort")
	if sortMethod == "" {
		sortMethod = "percent"
	}

	if sortMethod != "level" && sortMethod != "percent" {
		return "", 0, 0, fmt.Errorf(
			"invalid sort method: %s, allowed values are `level` and `percent`",
			sortMethod)
	}

	limit, err = intParam(r, "limit")
	if err != nil {
		return "", 0, 0, err
	}

	offset, err = intParam(r, "offset")
	if err != nil {
		return "", 0, 0, err
	}

	return sortMethod, limit, offset, nil
}

func intParam(r *http.Request, key string) (int, error) {
	str := r.URL.Query().Get(key)
	if str == "" {
		return 0, nil
	}

	n, err := strconv.Atoi(str)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}

	if n < 0 {
		return 0, fmt.Errorf("invalid %s: %d is negative", key, n)
	}

	return n, nil
}

// sortAndSelectLevels returns the levels of the buffers that report their
// length. A zero limit selects all buffers after the offset.
func (m *Monitor) sortAndSelectLevels(
	sortMethod string,
	limit, offset int,
) []levelRsp {
	m.lock.Lock()
	levels := make([]levelRsp, 0, len(m.buffers))
	for _, b := range m.buffers {
		lr, ok := b.(lengthReporter)
		if !ok {
			continue
		}

		level := levelRsp{Buffer: b.Name(), Kind: typeName(b), Level: lr.Len()}
		if cr, ok := b.(capacityReporter); ok {
			level.Capacity = cr.Capacity()
		}

		levels = append(levels, level)
	}
	m.lock.Unlock()

	sort.SliceStable(levels, func(i, j int) bool {
		if sortMethod == "level" {
			if levels[i].Level != levels[j].Level {
				return levels[i].Level > levels[j].Level
			}

			return levels[i].percent() > levels[j].percent()
		}

		if levels[i].percent() != levels[j].percent() {
			return levels[i].percent() > levels[j].percent()
		}

		return levels[i].Level > levels[j].Level
	})

	offset = min(offset, len(levels))
	end := len(levels)
	if limit > 0 {
		end = min(offset+limit, end)
	}

	return levels[offset:end]
}

func (m *Monitor) findBufferOr404(w http.ResponseWriter, name string) Buffer {
	m.lock.Lock()
	defer m.lock.Unlock()

	for _, b := range m.buffers {
		if b.Name() == name {
			return b
		}
	}

	w.WriteHeader(http.StatusNotFound)
	_, err := w.Write([]byte("Buffer not found"))
	dieOnErr(err)

	return nil
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	bars := slices.Clone(m.progressBars)
	m.progressBarsLock.Unlock()

	now := time.Now()
	rsp := make([]progressRsp, 0, len(bars))
	for _, b := range bars {
		rsp = append(rsp, b.status(now))
	}

	writeJSON(w, rsp)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	pid := os.Getpid()
	process, err := process.NewProcess(int32(pid))
	dieOnErr(err)

	cpuPercent, err := process.CPUPercent()
	dieOnErr(err)

	memorySize, err := process.MemoryInfo()
	dieOnErr(err)

	writeJSON(w, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memorySize.RSS,
	})
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	if err != nil {
		w.WriteHeader(http.StatusConflict)
		fmt.Fprintf(w, "Error: %s", err)
		return
	}

	time.Sleep(m.profileDuration)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	dieOnErr(err)

	writeJSON(w, prof)
}

func writeJSON(w http.ResponseWriter, v any) {
	bytes, err := json.Marshal(v)
	dieOnErr(err)

	w.Header().Set("Content-Type", "application/json")
	_, err = w.Write(bytes)
	dieOnErr(err)
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}

// typeName returns the type name of a buffer without type arguments.
func typeName(b Buffer) string {
	t := reflect.TypeOf(b)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	name, _, _ := strings.Cut(t.Name(), "[")

	return name
}
