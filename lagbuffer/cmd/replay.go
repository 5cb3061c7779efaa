package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math/rand"
	"os/signal"
	"slices"
	"strings"
	"syscall"

	"github.com/rs/xid"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/sarchlab/lagbuffer"
	"github.com/sarchlab/lagbuffer/datarecording"
	"github.com/sarchlab/lagbuffer/examples/liststate"
	"github.com/sarchlab/lagbuffer/monitoring"
	"github.com/sarchlab/lagbuffer/naming"
	"github.com/sarchlab/lagbuffer/tracing"
)

const replayName = "Replay"

type list = *liststate.State

type buffer = lagbuffer.LagBuffer[list, liststate.Event]

var errMismatch = errors.New("reconciled state differs from the full replay")

// replayOptions are the settings of a replay that are not part of the
// scenario.
type replayOptions struct {
	record      string
	monitorPort int
	open        bool
	verbose     bool
	metrics     bool
}

func newReplayCmd() *cobra.Command {
	var (
		opts       replayOptions
		configFile string
		envFile    string
		flagSc     = defaultScenario()
	)

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay a jittered event stream through a reconciler.",
		Long: "`replay` generates a stream of list events, shuffles it by a " +
			"bounded jitter, feeds it to the chosen reconciler and compares " +
			"the result with a full replay. Settings come from the defaults, " +
			"then LAGBUFFER_* variables (also read from --env-file), then " +
			"--config, then flags.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sc := defaultScenario()

			err := sc.applyEnv(envFile)
			if err != nil {
				return err
			}

			if configFile != "" {
				err = sc.applyFile(configFile)
				if err != nil {
					return err
				}
			}

			applyChangedFlags(cmd, &sc, flagSc)

			err = sc.validate()
			if err != nil {
				return err
			}

			if opts.verbose {
				log.SetOutput(cmd.ErrOrStderr())
			}

			return runReplay(cmd.Context(), cmd.OutOrStdout(), sc, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&flagSc.Strategy, "strategy", flagSc.Strategy,
		"reconciler to use: windowed, double, manual or naive")
	flags.IntVar(&flagSc.Capacity, "capacity", flagSc.Capacity,
		"window size of the windowed and double-buffered reconcilers")
	flags.IntVar(&flagSc.Events, "events", flagSc.Events, "number of events")
	flags.IntVar(&flagSc.Jitter, "jitter", flagSc.Jitter,
		"maximum displacement of an event in the stream")
	flags.Int64Var(&flagSc.Seed, "seed", flagSc.Seed, "random seed")
	flags.IntVar(&flagSc.ReplaceEvery, "replace-every", flagSc.ReplaceEvery,
		"about one in this many events replaces a value, 0 disables replaces")
	flags.IntVar(&flagSc.CompactEvery, "compact-every", flagSc.CompactEvery,
		"events between snapshots of the manual reconciler, 0 disables them")
	flags.StringVar(&configFile, "config", "", "YAML scenario file")
	flags.StringVar(&envFile, "env-file", ".env", "file with LAGBUFFER_* variables")
	flags.StringVar(&opts.record, "record", "",
		"record every reconciler record into this SQLite database")
	flags.IntVar(&opts.monitorPort, "monitor", -1,
		"serve the monitoring API on this port until interrupted, 0 picks a port")
	flags.BoolVar(&opts.open, "open", false,
		"open the monitoring API in a browser")
	flags.BoolVar(&opts.verbose, "verbose", false, "log every reconciler record")
	flags.BoolVar(&opts.metrics, "metrics", false,
		"collect OpenTelemetry metrics of the reconciler and print them")

	return cmd
}

func applyChangedFlags(cmd *cobra.Command, sc *scenario, flagSc scenario) {
	flags := cmd.Flags()

	if flags.Changed("strategy") {
		sc.Strategy = flagSc.Strategy
	}

	if flags.Changed("capacity") {
		sc.Capacity = flagSc.Capacity
	}

	if flags.Changed("events") {
		sc.Events = flagSc.Events
	}

	if flags.Changed("jitter") {
		sc.Jitter = flagSc.Jitter
	}

	if flags.Changed("seed") {
		sc.Seed = flagSc.Seed
	}

	if flags.Changed("replace-every") {
		sc.ReplaceEvery = flagSc.ReplaceEvery
	}

	if flags.Changed("compact-every") {
		sc.CompactEvery = flagSc.CompactEvery
	}
}

func newBuffer(sc scenario) buffer {
	initial := liststate.New()

	switch sc.Strategy {
	case strategyWindowed:
		return lagbuffer.MakeWindowedBuilder[list, liststate.Event, uint64]().
			WithCapacity(sc.Capacity).
			Build(naming.BuildName(replayName, "Windowed"), initial)
	case strategyDouble:
		return lagbuffer.MakeDoubleBufferedBuilder[list, liststate.Event, uint64]().
			WithCapacity(sc.Capacity).
			Build(naming.BuildName(replayName, "DoubleBuffered"), initial)
	case strategyManual:
		return lagbuffer.NewManual[list, liststate.Event, uint64](
			naming.BuildName(replayName, "Manual"), initial)
	case strategyNaive:
		return lagbuffer.NewNaive[list, liststate.Event, uint64](
			naming.BuildName(replayName, "Naive"), initial)
	default:
		panic("unknown strategy " + sc.Strategy)
	}
}

// replayResult summarizes a replay.
type replayResult struct {
	RunID     string
	Buffer    string
	State     []int
	Reference []int
	Counts    map[string]uint64
	Replayed  uint64
	Metrics   []string
}

// Match tells if the reconciled state equals the full replay.
func (r replayResult) Match() bool {
	return slices.Equal(r.State, r.Reference)
}

func runReplay(
	ctx context.Context,
	out io.Writer,
	sc scenario,
	opts replayOptions,
) error {
	if ctx == nil {
		ctx = context.Background()
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var monitor *monitoring.Monitor
	if opts.monitorPort >= 0 {
		monitor = startMonitor(opts.monitorPort, opts.open)
		defer monitor.StopServer()
	}

	res, err := replay(sc, opts, monitor)
	if err != nil {
		return err
	}

	printResult(out, sc, res)

	if monitor != nil {
		<-ctx.Done()
	}

	if !res.Match() {
		return errMismatch
	}

	return nil
}

// startMonitor serves the monitoring API so that a replay can be followed
// while it runs.
func startMonitor(port int, open bool) *monitoring.Monitor {
	m := monitoring.NewMonitor().WithPortNumber(port)
	m.StartServer()

	if open {
		err := m.OpenInBrowser()
		if err != nil {
			log.Printf("cannot open browser: %v", err)
		}
	}

	return m
}

// replay feeds a generated stream to the reconciler of the scenario and to a
// full replay. If monitor is not nil, the reconciler is registered with it and
// the replay reports its progress.
func replay(
	sc scenario,
	opts replayOptions,
	monitor *monitoring.Monitor,
) (replayResult, error) {
	res := replayResult{RunID: xid.New().String()}

	rng := rand.New(rand.NewSource(sc.Seed))
	events := liststate.Stream(rng, sc.Events, sc.Jitter, sc.ReplaceEvery)

	b := newBuffer(sc)
	res.Buffer = b.Name()

	counter := tracing.NewCountTracer()
	tracing.CollectTrace(b, counter)

	if opts.verbose {
		tracing.CollectTrace(b, tracing.NewLogTracer(log.Default()))
	}

	if opts.record != "" {
		recorder := datarecording.New(opts.record)
		dbTracer := tracing.NewDBTracer(recorder)
		tracing.CollectTrace(b, dbTracer)

		defer func() {
			dbTracer.Terminate()
			recorder.Close()
		}()
	}

	var reader *sdkmetric.ManualReader
	if opts.metrics {
		reader = sdkmetric.NewManualReader()
		provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

		metricsTracer, err := tracing.NewMetricsTracer(provider.Meter(replayName))
		if err != nil {
			return res, err
		}

		tracing.CollectTrace(b, metricsTracer)
	}

	manual, _ := b.(*lagbuffer.Manual[list, liststate.Event, uint64])
	ref := lagbuffer.NewNaive[list, liststate.Event, uint64](
		naming.BuildName(replayName, "Reference"), liststate.New())

	guard := func(f func()) { f() }

	var bar *monitoring.ProgressBar
	if monitor != nil {
		monitor.RegisterBuffer(b)
		bar = monitor.CreateProgressBar(b.Name(), uint64(len(events)))
		guard = monitor.Do
	}

	for i, evt := range events {
		if bar != nil {
			bar.Submit(1)
		}

		guard(func() {
			b.Update(evt)

			if manual != nil && sc.CompactEvery > 0 && (i+1)%sc.CompactEvery == 0 {
				manual.Compact()
			}
		})

		ref.Update(evt)

		if bar != nil {
			bar.Reconcile(1)
		}
	}

	if bar != nil {
		monitor.CompleteProgressBar(bar)
	}

	res.State = b.State().Data
	res.Reference = ref.State().Data
	res.Counts = counter.Counts(b.Name())
	res.Replayed = counter.Replayed(b.Name())

	if reader != nil {
		metrics, err := collectMetrics(reader)
		if err != nil {
			return res, err
		}

		res.Metrics = metrics
	}

	return res, nil
}

// collectMetrics reads the metrics of the reader as sorted text lines.
func collectMetrics(reader *sdkmetric.ManualReader) ([]string, error) {
	var rm metricdata.ResourceMetrics

	err := reader.Collect(context.Background(), &rm)
	if err != nil {
		return nil, err
	}

	var lines []string
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					lines = append(lines, fmt.Sprintf("%s{%s}: %d",
						m.Name, attrString(dp.Attributes), dp.Value))
				}
			case metricdata.Histogram[int64]:
				for _, dp := range data.DataPoints {
					lines = append(lines, fmt.Sprintf("%s{%s}: count %d, sum %d",
						m.Name, attrString(dp.Attributes), dp.Count, dp.Sum))
				}
			}
		}
	}

	slices.Sort(lines)

	return lines, nil
}

func attrString(set attribute.Set) string {
	parts := make([]string, 0, set.Len())

	iter := set.Iter()
	for iter.Next() {
		kv := iter.Attribute()
		parts = append(parts, string(kv.Key)+"="+kv.Value.Emit())
	}

	return strings.Join(parts, ",")
}

func printResult(out io.Writer, sc scenario, res replayResult) {
	fmt.Fprintf(out, "run %s: %s, capacity %d, %d events, jitter %d, seed %d\n",
		res.RunID, sc.Strategy, sc.Capacity, sc.Events, sc.Jitter, sc.Seed)

	names := make([]string, 0, len(res.Counts))
	for name := range res.Counts {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		fmt.Fprintf(out, "%s: %d\n", name, res.Counts[name])
	}

	fmt.Fprintf(out, "replayed: %d\n", res.Replayed)

	for _, line := range res.Metrics {
		fmt.Fprintf(out, "metric %s\n", line)
	}

	if res.Match() {
		fmt.Fprintf(out, "state: %d values, matches the full replay\n", len(res.State))
	} else {
		fmt.Fprintf(out, "state: %d values, differs from the full replay\n", len(res.State))
	}
}
