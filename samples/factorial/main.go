package main

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/sarchlab/tritsim/core"
	"github.com/sarchlab/tritsim/trit"
	"github.com/tebeka/atexit"
)

//go:embed factorial.tasm
var program string

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	})))

	prog := core.MustParseProgram("factorial", program)

	m, err := core.MakeBuilder().WithTierLatencies(1, 2, 4).BuildMachine()
	if err != nil {
		panic(err)
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"n", "n!", "Cycles", "CPI", "Predictor"})

	for n := int64(0); n <= 20; n++ {
		if err := m.LoadProgram(prog); err != nil {
			panic(err)
		}

		if err := m.SetRegister("R0", trit.WordFromInt64(n)); err != nil {
			panic(err)
		}

		res, err := m.Run(context.Background(), 100000)
		if err != nil {
			panic(err)
		}

		out := m.DrainOutput()
		st := m.Stats()

		t.AppendRow(table.Row{
			n,
			out[0].Big().String(),
			res.Cycles,
			fmt.Sprintf("%.2f", st.CPI()),
			fmt.Sprintf("%.0f%%", 100*st.PredictorAccuracy()),
		})
	}

	t.Render()
	atexit.Exit(0)
}
