// Command tritsim runs a ternary ISA program on a configured platform.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/sarchlab/akita/v4/monitoring"
	"github.com/sarchlab/tritsim/config"
	"github.com/sarchlab/tritsim/core"
	"github.com/sarchlab/tritsim/tracing"
	"github.com/tebeka/atexit"
)

type options struct {
	configPath string
	maxCycles  uint64
	input      string
	outputs    int
	logLevel   string
	logFile    string
	traceOut   string
	dbPath     string
	listRuns   bool
	monitor    bool
	showState  bool
	profile    bool
	lastN      int
}

func parseFlags() options {
	var o options

	flag.StringVar(&o.configPath, "config", "", "TOML platform configuration (defaults if empty)")
	flag.Uint64Var(&o.maxCycles, "max-cycles", 0, "Cycle limit, overrides [sim] max-cycles when set")
	flag.StringVar(&o.input, "input", "", "Comma-separated host words fed to the core on vector 1")
	flag.IntVar(&o.outputs, "outputs", 0, "Number of host words to collect from the core")
	flag.StringVar(&o.logLevel, "log-level", "warn", "Log level: trace, debug, info, warn, error")
	flag.StringVar(&o.logFile, "log-file", "", "Write JSON logs to this file instead of stderr")
	flag.StringVar(&o.traceOut, "trace-out", "", "Write a CBOR trace snapshot to this file")
	flag.StringVar(&o.dbPath, "db", "", "SQLite run store to save the run in")
	flag.BoolVar(&o.listRuns, "list-runs", false, "List the runs in -db and exit")
	flag.BoolVar(&o.monitor, "monitor", false, "Start the akita monitoring server")
	flag.BoolVar(&o.showState, "state", false, "Print the final machine state")
	flag.BoolVar(&o.profile, "profile", false, "Print cycles per opcode")
	flag.IntVar(&o.lastN, "trace", 0, "Print the last n trace records")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: tritsim [options] <program.tasm|program.yaml>\n\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  tritsim -state factorial.tasm\n")
		fmt.Fprintf(os.Stderr, "  tritsim -input 2,-3,4 -outputs 3 square.tasm\n")
		fmt.Fprintf(os.Stderr, "  tritsim -db runs.db -list-runs\n")
	}
	flag.Parse()

	return o
}

func setupLogging(o options) error {
	var level slog.Level
	if strings.EqualFold(o.logLevel, "trace") {
		level = core.LevelTrace
	} else if err := level.UnmarshalText([]byte(o.logLevel)); err != nil {
		return fmt.Errorf("bad log level %q: %w", o.logLevel, err)
	}

	opts := &slog.HandlerOptions{Level: level}

	if o.logFile == "" {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, opts)))
		return nil
	}

	f, err := os.Create(o.logFile)
	if err != nil {
		return err
	}

	atexit.Register(func() { f.Close() })
	slog.SetDefault(slog.New(slog.NewJSONHandler(f, opts)))

	return nil
}

func parseInput(s string) ([]int64, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}

	var out []int64

	for _, f := range strings.Split(s, ",") {
		v, err := strconv.ParseInt(strings.TrimSpace(f), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad input word %q: %w", f, err)
		}

		out = append(out, v)
	}

	return out, nil
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	atexit.Exit(1)
}

func main() {
	o := parseFlags()

	if err := setupLogging(o); err != nil {
		fail("%v", err)
	}

	if o.listRuns {
		listRuns(o.dbPath)
		atexit.Exit(0)
	}

	if flag.NArg() != 1 {
		flag.Usage()
		atexit.Exit(2)
	}

	cfg := config.DefaultConfig()
	if o.configPath != "" {
		var err error
		if cfg, err = config.Load(o.configPath); err != nil {
			fail("loading config: %v", err)
		}
	}

	if o.maxCycles > 0 {
		cfg.Sim.MaxCycles = o.maxCycles
	}

	prog, err := core.LoadProgramFile(flag.Arg(0))
	if err != nil {
		fail("loading program: %v", err)
	}

	in, err := parseInput(o.input)
	if err != nil {
		fail("%v", err)
	}

	builder := config.PlatformBuilder{}.WithConfig(cfg)

	var monitor *monitoring.Monitor
	if o.monitor {
		monitor = monitoring.NewMonitor()
		builder = builder.WithMonitor(monitor)
	}

	platform, err := builder.Build("Platform")
	if err != nil {
		fail("building platform: %v", err)
	}

	if monitor != nil {
		monitor.StartServer()
	}

	out, runErr := platform.RunProgram(prog, in, o.outputs)

	m := platform.Core.Machine()
	res := result(m, runErr)

	report(o, m, res, out, runErr)

	if err := export(o, tracing.NewSnapshot(m, res)); err != nil {
		fail("%v", err)
	}

	if res.Reason != core.StopHalted {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}

// result classifies how the run ended.
func result(m *core.Machine, runErr error) core.Result {
	st := m.Stats()
	res := core.Result{
		Reason:  core.StopHalted,
		Cycles:  st.Cycles,
		Retired: st.Retired,
		PC:      m.PC(),
	}

	var f *core.Fault

	switch {
	case errors.As(runErr, &f):
		res.Reason = core.StopFault
	case errors.Is(runErr, core.ErrWatchdog):
		res.Reason = core.StopWatchdog
	case !m.Halted():
		res.Reason = core.StopCancelled
	}

	return res
}

func report(o options, m *core.Machine, res core.Result, out []int64, runErr error) {
	fmt.Printf("Program %s stopped: %s after %d cycles, %d retired\n",
		m.Program().Name, res.Reason, res.Cycles, res.Retired)

	if runErr != nil {
		fmt.Printf("Error: %v\n", runErr)
	}

	if len(out) > 0 {
		fmt.Printf("Collected: %v\n", out)
	}

	if rest := m.DrainOutput(); len(rest) > 0 {
		words := make([]string, len(rest))
		for i, w := range rest {
			words[i] = w.Big().String()
		}

		fmt.Printf("Output: [%s]\n", strings.Join(words, " "))
	}

	fmt.Println(core.RenderStats(m.Stats()))

	if o.showState {
		fmt.Println(core.RenderState(m))
	}

	if o.profile {
		tracing.WriteProfile(os.Stdout, tracing.Profile(m.Trace()))
	}

	if o.lastN > 0 {
		if err := tracing.WriteTable(os.Stdout, m.Trace(), o.lastN); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
	}
}

func export(o options, snap tracing.Snapshot) error {
	if o.traceOut != "" {
		f, err := os.Create(o.traceOut)
		if err != nil {
			return err
		}
		defer f.Close()

		if err := tracing.WriteSnapshot(f, snap); err != nil {
			return fmt.Errorf("writing snapshot: %w", err)
		}
	}

	if o.dbPath != "" {
		store, err := tracing.OpenStore(o.dbPath)
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.SaveRun(snap); err != nil {
			return err
		}

		fmt.Printf("Saved run %s\n", snap.RunID)
	}

	return nil
}

func listRuns(dbPath string) {
	if dbPath == "" {
		fail("-list-runs needs -db")
	}

	store, err := tracing.OpenStore(dbPath)
	if err != nil {
		fail("%v", err)
	}
	defer store.Close()

	runs, err := store.ListRuns()
	if err != nil {
		fail("%v", err)
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"ID", "Program", "Reason", "Cycles", "Retired", "Created"})

	for _, r := range runs {
		t.AppendRow(table.Row{r.ID, r.Program, r.Reason, r.Cycles, r.Retired,
			r.Created.Format("2006-01-02 15:04:05")})
	}

	t.Render()
}
