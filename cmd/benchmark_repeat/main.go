package main

import (
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	"github.com/delaneyj/observatory/binding"
	"github.com/delaneyj/observatory/dom"
	"github.com/delaneyj/observatory/expr"
	"github.com/delaneyj/observatory/observation"
	"github.com/delaneyj/observatory/scope"
	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
)

func main() {
	log.Print("Starting repeat benchmark, please wait...")
	defer log.Print("Finished repeat benchmark")

	cfgs := []repeatTestConfig{
		{name: "push", rows: 1_000, iterations: 200, mutate: func(a *observation.Array, i int, _ *rand.Rand) {
			a.Push(row(i))
		}},
		{name: "splice middle", rows: 1_000, iterations: 200, mutate: func(a *observation.Array, i int, _ *rand.Rand) {
			a.Splice(a.Len()/2, 1, row(i))
		}},
		{name: "swap two", rows: 1_000, iterations: 200, mutate: func(a *observation.Array, _ int, r *rand.Rand) {
			x, y := r.Intn(a.Len()), r.Intn(a.Len())
			vx, vy := a.At(x), a.At(y)
			a.SetAt(x, vy)
			a.SetAt(y, vx)
		}},
		{name: "reverse", rows: 1_000, iterations: 50, mutate: func(a *observation.Array, _ int, _ *rand.Rand) {
			a.Reverse()
		}},
		{name: "shift push", rows: 10_000, iterations: 100, mutate: func(a *observation.Array, i int, _ *rand.Rand) {
			a.Shift()
			a.Push(row(i))
		}},
		{name: "replace", rows: 1_000, iterations: 20, replace: true},
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"test", "rows", "nTimes", "time", "per flush", "inserted", "removed", "title"})

	testRepeats := 3
	for _, cfg := range cfgs {
		log.Printf("Running '%s' config", cfg.name)

		best := &results{duration: time.Hour}
		for i := 0; i < testRepeats; i++ {
			res := runRepeat(&cfg)
			if res.duration < best.duration {
				best = res
			}
		}

		perFlush := best.duration / time.Duration(cfg.iterations)
		table.Append([]string{
			cfg.name,
			humanize.Comma(int64(cfg.rows)),
			humanize.Comma(int64(cfg.iterations)),
			fmt.Sprint(best.duration),
			fmt.Sprint(perFlush),
			humanize.Comma(best.inserted),
			humanize.Comma(best.removed),
			fmt.Sprintf("%s rows, %s DOM moves", humanize.SIWithDigits(float64(cfg.rows), 0, ""), humanize.Comma(best.inserted+best.removed)),
		})
	}
	table.Render()
}

type repeatTestConfig struct {
	name       string
	rows       int
	iterations int
	mutate     func(a *observation.Array, i int, r *rand.Rand)
	// replace swaps in a fresh array holding the same rows shuffled.
	replace bool
}

type results struct {
	duration          time.Duration
	inserted, removed int64
}

func row(i int) *observation.Object {
	return observation.NewObject("id", i, "label", fmt.Sprintf("row %d", i))
}

func runRepeat(cfg *repeatTestConfig) *results {
	sys := observation.NewSystem(observation.WithErrorHandler(func(_ any, err error) {
		log.Panic(err)
	}))
	defer sys.Stop()

	items := make([]any, cfg.rows)
	for i := range items {
		items[i] = row(i)
	}
	source := observation.NewArray(items...)
	vm := observation.NewObject("rows", source)

	tbody := dom.NewElement("tbody")
	r := binding.NewRepeat(sys, &expr.ForOf{Declaration: "row", Iterable: expr.Path("rows")}, func() binding.View {
		tr := dom.NewElement("tr")
		text := dom.NewText("")
		tr.AppendChild(text)
		return binding.NewTemplateView([]dom.Node{tr},
			binding.NewInterpolationBinding(sys,
				[]string{"", " ", ""},
				[]expr.Expression{expr.Path("$index"), expr.Path("row.label")},
				text, ""))
	}, tbody)
	if err := r.Bind(scope.New(vm, nil, false)); err != nil {
		log.Fatal(err)
	}

	res := &results{}
	tbody.OnMutation = func(m dom.Mutation) {
		switch m.Kind {
		case dom.ChildInserted:
			res.inserted++
		case dom.ChildRemoved:
			res.removed++
		}
	}

	random := rand.New(rand.NewSource(0))
	next := cfg.rows
	start := time.Now()
	for i := 0; i < cfg.iterations; i++ {
		if cfg.replace {
			shuffled := source.Items()
			random.Shuffle(len(shuffled), func(x, y int) { shuffled[x], shuffled[y] = shuffled[y], shuffled[x] })
			source = observation.NewArray(shuffled...)
			if err := vm.Set("rows", source); err != nil {
				log.Fatal(err)
			}
		} else {
			cfg.mutate(source, next, random)
			next++
		}
		sys.Flush()
	}
	res.duration = time.Since(start)

	if tbody.ChildCount() != source.Len() {
		log.Fatalf("%s: %d rows rendered, want %d", cfg.name, tbody.ChildCount(), source.Len())
	}
	r.Unbind()
	return res
}
