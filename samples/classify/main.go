package main

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"

	"github.com/sarchlab/tritsim/config"
	"github.com/sarchlab/tritsim/core"
	"github.com/sarchlab/tritsim/util/valgen"
	"github.com/tebeka/atexit"
)

//go:embed classify.tasm
var program string

const length = 8

func classify(platform *config.Platform) {
	gen := valgen.MakeIntGen(2024, -100, 100)

	src := make([]int64, length)
	for i := range src {
		src[i] = gen()
	}
	src[3] = 0

	dst, err := platform.RunProgram(core.MustParseProgram("classify", program), src, length)
	if err != nil {
		panic(err)
	}

	mismatch := 0
	for i, v := range src {
		want := int64(0)
		if v > 0 {
			want = 1
		} else if v < 0 {
			want = -1
		}

		fmt.Printf("%5d -> %2d\n", v, dst[i])

		if dst[i] != want {
			mismatch++
		}
	}

	if mismatch == 0 {
		fmt.Println("✅ every word classified")
	} else {
		fmt.Printf("❌ %d words misclassified\n", mismatch)
	}

	fmt.Println(core.RenderStats(platform.Core.Machine().Stats()))
}

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	})))

	platform, err := config.PlatformBuilder{}.Build("Platform")
	if err != nil {
		panic(err)
	}

	classify(platform)
	atexit.Exit(0)
}
