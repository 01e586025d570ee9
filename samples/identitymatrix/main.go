package main

import (
	"fmt"
	"math"

	"github.com/sarchlab/tritsim/matrix"
	"github.com/sarchlab/tritsim/trit"
	"github.com/sarchlab/tritsim/util/valgen"
	"github.com/tebeka/atexit"
)

const size = 9

func main() {
	sim, err := matrix.MakeBuilder().
		WithArraySize(size).
		WithTritsPerValue(matrix.DefaultTritsPerValue).
		Build()
	if err != nil {
		panic(err)
	}

	if err := sim.LoadWeights(valgen.Identity(size, 1)); err != nil {
		panic(err)
	}

	v := valgen.Vector(size, valgen.MakeUniformGen(7, -1, 1))

	out, err := sim.Compute(v)
	if err != nil {
		panic(err)
	}

	bound := trit.MaxError(sim.TritsPerValue())
	worst := 0.0

	for i := range v {
		diff := math.Abs(out[i] - v[i])
		worst = math.Max(worst, diff)
		fmt.Printf("%+.4f -> %+.4f  (err %.4f)\n", v[i], out[i], diff)
	}

	fmt.Printf("worst error %.4f, bound %.4f\n", worst, bound)

	if worst <= bound {
		fmt.Println("✅ identity within quantization bound")
	} else {
		fmt.Println("❌ identity exceeds quantization bound")
	}

	st := sim.Stats()
	fmt.Printf("%dx%d array, %d MACs/cycle, %.1f GOPS at %.0f MHz\n",
		st.ArraySize, st.ArraySize, st.MACsPerCycle, st.ThroughputGOPS, st.ClockMHz)

	atexit.Exit(0)
}
