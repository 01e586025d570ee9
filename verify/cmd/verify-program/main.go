package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/sarchlab/tritsim/config"
	"github.com/sarchlab/tritsim/core"
	"github.com/sarchlab/tritsim/verify"
	"github.com/tebeka/atexit"
)

func main() {
	configPath := flag.String("config", "", "TOML platform configuration (defaults if empty)")
	maxSteps := flag.Int("max-steps", 100000, "Functional simulator step limit")
	reportPath := flag.String("report", "", "Also write the report to this file")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: verify-program [options] <program.tasm|program.yaml>\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		atexit.Exit(2)
	}

	cfg := config.DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			atexit.Exit(1)
		}
	}

	prog, err := core.LoadProgramFile(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading program: %v\n", err)
		atexit.Exit(1)
	}

	arch := verify.LoadArchInfoFromConfig(
		cfg.Core.HotRegisters, cfg.Core.WorkingRegisters, cfg.Core.ParkingRegisters)

	report := verify.GenerateReport(prog, arch, *maxSteps)
	report.WriteReport(os.Stdout)

	if *reportPath != "" {
		if err := report.SaveReportToFile(*reportPath); err != nil {
			fmt.Fprintf(os.Stderr, "Error saving report: %v\n", err)
			atexit.Exit(1)
		}
	}

	if !report.Agreement() || len(report.StructIssues) > 0 {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}
