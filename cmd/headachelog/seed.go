package main

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/spf13/cobra"

	"github.com/headachelog/internal/config"
	"github.com/headachelog/internal/journal"
)

var sampleTriggers = []string{"", "", "weather", "stress", "poor sleep", "screen time", "skipped meal", "alcohol"}

// sampleEntries 生成最近 days 天的演示数据，大约五分之四的日子有记录。
func sampleEntries(today string, days int, rnd *rand.Rand) journal.Collection {
	out := journal.Collection{}
	for i := 0; i < days; i++ {
		if rnd.Intn(5) == 0 {
			continue
		}
		date := journal.MustAddDays(today, -i)
		pain := rnd.Intn(5)
		e := journal.Entry{
			PainLevel:   pain,
			PeakPain:    pain + rnd.Intn(5-pain),
			Tinnitus:    rnd.Intn(3),
			Ocular:      rnd.Intn(2),
			SleepIssues: rnd.Intn(3),
			Triggers:    sampleTriggers[rnd.Intn(len(sampleTriggers))],
		}
		if pain >= 2 {
			e.Paracetamol = rnd.Intn(3)
			e.Ibuprofen = rnd.Intn(2)
		}
		if pain >= 3 && rnd.Intn(2) == 0 {
			e.Triptan = 1
		}
		if pain >= 1 && rnd.Intn(3) == 0 {
			e.Codeine = 1
		}
		out[date] = e
	}
	return out
}

func addSeed(topLevel *cobra.Command, cfg *config.AppConfig) {
	to := &targetOptions{}
	var days int
	var seed int64

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Fill storage with sample entries for demos",
		Example: `
headachelog seed --device 3f0c2a8e-5d1b-4c7e-9a51-2b6f8d4e7c10 --days 120
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if days <= 0 {
				return fmt.Errorf("--days must be positive")
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			store, cleanup, err := openStore(ctx, cfg, *to)
			if err != nil {
				return err
			}
			defer cleanup()

			if seed == 0 {
				seed = time.Now().UnixNano()
			}
			entries := sampleEntries(journal.FormatDate(time.Now()), days, rand.New(rand.NewSource(seed)))
			n, err := store.Import(ctx, entries)
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d entries\n", n)
			return err
		},
	}
	addTargetArgs(cmd, to)
	cmd.Flags().IntVar(&days, "days", 90, "number of days to cover, counting back from today")
	cmd.Flags().Int64Var(&seed, "seed", 0, "random seed (default: current time)")
	topLevel.AddCommand(cmd)
}
