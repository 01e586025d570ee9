package main

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"

	"github.com/sarchlab/tritsim/core"
	"github.com/sarchlab/tritsim/tracing"
	"github.com/tebeka/atexit"
)

//go:embed migrate.tasm
var program string

func main() {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: core.LevelTrace,
	})
	slog.SetDefault(slog.New(handler))

	m, err := core.MakeBuilder().BuildMachine()
	if err != nil {
		panic(err)
	}

	if err := m.LoadProgram(core.MustParseProgram("migrate", program)); err != nil {
		panic(err)
	}

	res, err := m.Run(context.Background(), 10000)
	if err != nil {
		panic(err)
	}

	for _, w := range m.DrainOutput() {
		fmt.Println("out:", w.Big())
	}

	fmt.Printf("stopped: %s after %d cycles\n", res.Reason, res.Cycles)
	fmt.Println(core.RenderState(m))
	fmt.Println(core.RenderStats(m.Stats()))
	tracing.WriteProfile(os.Stdout, tracing.Profile(m.Trace()))

	atexit.Exit(0)
}
