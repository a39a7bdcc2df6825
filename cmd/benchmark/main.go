package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"runtime/pprof"
	"time"

	"github.com/delaneyj/observatory/binding"
	"github.com/delaneyj/observatory/config"
	"github.com/delaneyj/observatory/dom"
	"github.com/delaneyj/observatory/expr"
	"github.com/delaneyj/observatory/observation"
	"github.com/delaneyj/observatory/scope"
	"github.com/jamiealquiza/tachymeter"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v3"
)

const (
	configKey  = "config"
	itersKey   = "iters"
	profileKey = "profile"
)

var (
	ww = []int{1, 10, 100, 1_000}
	hh = []int{1, 10, 100}
)

func main() {
	cmd := &cli.Command{
		Name:  "benchmark",
		Usage: "Measure change propagation through computed chains and bindings",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  configKey,
				Usage: "Optional YAML config file",
			},
			&cli.UintFlag{
				Name:  itersKey,
				Usage: "Timed updates per benchmark",
				Value: 100,
			},
			&cli.StringFlag{
				Name:  profileKey,
				Usage: "Write a CPU profile to this file",
			},
		},
		Action: run,
	}
	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.Load(cmd.String(configKey))
	if err != nil {
		return err
	}
	if path := cmd.String(profileKey); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			return err
		}
		defer pprof.StopCPUProfile()
	}

	iters := int(cmd.Uint(itersKey))
	log.Printf("warming up")
	benchmarkComputed(cfg, iters, io.Discard)
	benchmarkComputed(cfg, iters, os.Stdout)
	benchmarkBindings(cfg, iters, os.Stdout)
	return nil
}

func newSystem(cfg *config.Config) *observation.System {
	opts := cfg.Options(cfg.Logger(os.Stderr))
	opts = append(opts, observation.WithErrorHandler(func(from any, err error) {
		log.Panic(err)
	}))
	return observation.NewSystem(opts...)
}

func newTable(title string, out io.Writer) table.Writer {
	tbl := table.NewWriter()
	tbl.SetTitle(title)
	tbl.SetOutputMirror(out)
	tbl.AppendHeader(table.Row{"benchmark", "avg", "min", "p75", "p99", "max"})
	return tbl
}

func appendCalc(tbl table.Writer, name string, calc *tachymeter.Metrics) {
	tbl.AppendRow(table.Row{
		name,
		calc.Time.Avg,
		calc.Time.Min,
		calc.Time.P75,
		calc.Time.P99,
		calc.Time.Max,
	})
}

// benchmarkComputed builds w chains of h computed properties hanging off
// one source, each watched by an effect, and times write plus flush.
func benchmarkComputed(cfg *config.Config, iters int, out io.Writer) {
	tbl := newTable("Computed chains", out)

	for _, w := range ww {
		for _, h := range hh {
			tach := tachymeter.New(&tachymeter.Config{Size: iters})

			sys := newSystem(cfg)
			src := observation.NewObject("v", 1)
			for i := 0; i < w; i++ {
				last := src
				for j := 0; j < h; j++ {
					prev := last
					next := observation.NewObject()
					if err := next.DefineComputed("v", func(watch observation.Watcher, _ *observation.Object) any {
						return prev.Read(watch, "v").(int) + 1
					}); err != nil {
						log.Fatal(err)
					}
					last = next
				}
				observation.Effect(sys, func(watch observation.Watcher) error {
					last.Read(watch, "v")
					return nil
				})
			}
			sys.Flush()

			for i := 0; i < iters; i++ {
				start := time.Now()
				if err := src.Set("v", src.Get("v").(int)+1); err != nil {
					log.Fatal(err)
				}
				sys.Flush()
				tach.AddTime(time.Since(start))
			}
			sys.Stop()

			appendCalc(tbl, fmt.Sprintf("propagate: %d * %d", w, h), tach.Calc())
		}
	}
	tbl.Render()
}

// benchmarkBindings binds w text nodes to one view-model property and times
// write plus flush.
func benchmarkBindings(cfg *config.Config, iters int, out io.Writer) {
	tbl := newTable("Text bindings", out)

	for _, w := range ww {
		tach := tachymeter.New(&tachymeter.Config{Size: iters})

		sys := newSystem(cfg)
		vm := observation.NewObject("message", 0)
		s := scope.New(vm, nil, false)
		root := dom.NewElement("div")
		for i := 0; i < w; i++ {
			text := dom.NewText("")
			root.AppendChild(text)
			b := binding.NewInterpolationBinding(sys, []string{"#", ""}, []expr.Expression{expr.Path("message")}, text, "")
			if err := b.Bind(s); err != nil {
				log.Fatal(err)
			}
		}

		for i := 0; i < iters; i++ {
			start := time.Now()
			if err := vm.Set("message", i+1); err != nil {
				log.Fatal(err)
			}
			sys.Flush()
			tach.AddTime(time.Since(start))
		}
		sys.Stop()

		appendCalc(tbl, fmt.Sprintf("interpolate: %d", w), tach.Calc())
	}
	tbl.Render()
}
