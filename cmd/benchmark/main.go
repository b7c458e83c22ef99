// Command benchmark builds Chord and Pastry overlays at a range of
// sizes, bulk-inserts keys, and reports the mean hop count of
// concurrent lookups, the experimental comparison the instrumented hop
// counter exists for. Bulk-insert hops are recorded only in a trace span.
package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"

	"dhtcompare/internal/chord"
	"dhtcompare/internal/config"
	"dhtcompare/internal/dataset"
	"dhtcompare/internal/logger"
	zapfactory "dhtcompare/internal/logger/zap"
	"dhtcompare/internal/network"
	"dhtcompare/internal/pastry"
	"dhtcompare/internal/ring"
	"dhtcompare/internal/telemetry"
	"dhtcompare/internal/telemetry/lookuptrace"

	"github.com/spf13/cobra"
)

var (
	configPath     string
	datasetPath    string
	sizes          []int
	lookupsPerSize int
	workerPoolSize int
)

var rootCmd = &cobra.Command{
	Use:   "benchmark",
	Short: "Compare Chord and Pastry hop counts across network sizes",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file (defaults built in if empty)")
	rootCmd.PersistentFlags().StringVar(&datasetPath, "dataset", "", "path to a movies CSV to draw keys/values from (synthetic keys if empty)")
	rootCmd.PersistentFlags().IntSliceVar(&sizes, "sizes", []int{8, 16, 32, 64, 128}, "network sizes to benchmark")
	rootCmd.PersistentFlags().IntVar(&lookupsPerSize, "lookups", 100, "number of random lookups issued per network size")
	rootCmd.PersistentFlags().IntVar(&workerPoolSize, "worker-pool-size", 0, "worker pool size for concurrent lookups (0 = use config default)")

	rootCmd.AddCommand(chordCmd, pastryCmd)
}

var chordCmd = &cobra.Command{
	Use:   "chord",
	Short: "Benchmark the Chord overlay",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCmd("chord")
	},
}

var pastryCmd = &cobra.Command{
	Use:   "pastry",
	Short: "Benchmark the Pastry overlay",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCmd("pastry")
	},
}

func loadConfig() (*config.Config, logger.Logger, func(context.Context) error, error) {
	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadConfig(configPath)
	} else {
		cfg = config.Default()
	}
	if err != nil {
		return nil, nil, nil, fmt.Errorf("loading config: %w", err)
	}
	cfg.ApplyEnvOverrides()
	if err := cfg.ValidateConfig(); err != nil {
		return nil, nil, nil, fmt.Errorf("invalid config: %w", err)
	}

	var lgr logger.Logger = &logger.NopLogger{}
	if cfg.Logger.Active {
		zapLog, err := zapfactory.New(cfg.Logger)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("initializing logger: %w", err)
		}
		lgr = zapfactory.NewZapAdapter(zapLog)
	}
	cfg.LogConfig(lgr)

	shutdown, err := telemetry.Init(cfg.Telemetry, "dhtcompare-benchmark")
	if err != nil {
		return nil, nil, nil, fmt.Errorf("initializing telemetry: %w", err)
	}
	return cfg, lgr, shutdown, nil
}

func loadKeysAndValues(n int) ([]string, []string) {
	if datasetPath != "" {
		records, err := dataset.LoadMovies(datasetPath)
		if err == nil && len(records) > 0 {
			keys := make([]string, 0, n)
			values := make([]string, 0, n)
			for i := 0; i < n && i < len(records); i++ {
				keys = append(keys, records[i].Title)
				values = append(values, records[i].Blob)
			}
			return keys, values
		}
		fmt.Fprintf(os.Stderr, "warning: could not load dataset %s, falling back to synthetic keys\n", datasetPath)
	}
	keys := make([]string, n)
	values := make([]string, n)
	for i := 0; i < n; i++ {
		keys[i] = fmt.Sprintf("movie:%d", i)
		values[i] = fmt.Sprintf("Title %d", i)
	}
	return keys, values
}

func runCmd(protocol string) error {
	cfg, lgr, shutdown, err := loadConfig()
	if err != nil {
		return err
	}
	defer shutdown(context.Background())

	pool := workerPoolSize
	if pool <= 0 {
		pool = cfg.DHT.WorkerPoolSize
	}

	sp, err := ring.NewSpace(cfg.DHT.HashBitSize)
	if err != nil {
		return fmt.Errorf("identifier space: %w", err)
	}

	for _, size := range sizes {
		var stats network.Stats
		var lookupHops network.BulkStats
		switch protocol {
		case "chord":
			nw := network.New[*chord.Node](
				func(name string) (*chord.Node, error) {
					return chord.New(name, sp, cfg.DHT.Chord.FingerTableSize, cfg.DHT.Index.BPlusTreeOrder, chord.WithLogger(lgr))
				},
				network.WithPostJoin[*chord.Node](func(nodes []*chord.Node) {
					for r := 0; r < cfg.DHT.StabilizationRounds; r++ {
						for _, n := range nodes {
							n.StabilizeRound()
						}
					}
				}),
			)
			stats, lookupHops, err = runNetwork(nw, size, pool, lgr)
		case "pastry":
			nw := network.New[*pastry.Node](func(name string) (*pastry.Node, error) {
				return pastry.New(name, sp, cfg.DHT.Pastry.B, cfg.DHT.Pastry.LeafSize, cfg.DHT.Index.BPlusTreeOrder, pastry.WithLogger(lgr))
			})
			stats, lookupHops, err = runNetwork(nw, size, pool, lgr)
		default:
			return fmt.Errorf("unknown protocol %q", protocol)
		}
		if err != nil {
			return err
		}
		fmt.Printf("%s n=%d nodes=%d keys=%d mean_lookup_hops=%.2f routing_table_avg=%.2f\n",
			protocol, size, stats.NodeCount, stats.TotalKeys, lookupHops.AverageHops(), stats.RoutingTableSizeAvg)
	}
	return nil
}

func runNetwork[T network.Node[T]](nw *network.Network[T], size, workerPoolSize int, lgr logger.Logger) (network.Stats, network.BulkStats, error) {
	if _, err := nw.BuildNetwork(size, "node_"); err != nil {
		return network.Stats{}, network.BulkStats{}, fmt.Errorf("build_network: %w", err)
	}

	keys, values := loadKeysAndValues(lookupsPerSize)
	items := make([]network.Item, len(keys))
	for i := range keys {
		items[i] = network.Item{Key: keys[i], Value: values[i]}
	}
	if _, err := lookuptrace.Trace(context.Background(), protocolName(nw), "bulk_insert", func(ctx context.Context) (int, error) {
		s := nw.BulkInsert(items)
		return s.TotalHops, nil
	}); err != nil {
		return network.Stats{}, network.BulkStats{}, err
	}

	lookupKeys := make([]string, lookupsPerSize)
	for i := range lookupKeys {
		lookupKeys[i] = keys[rand.Intn(len(keys))]
	}
	var hops network.BulkStats
	_, err := lookuptrace.Trace(context.Background(), protocolName(nw), "concurrent_lookup", func(ctx context.Context) (int, error) {
		var err error
		hops, err = nw.ConcurrentLookup(ctx, lookupKeys, workerPoolSize)
		return hops.TotalHops, err
	})
	if err != nil {
		return network.Stats{}, network.BulkStats{}, err
	}

	return nw.GetNetworkStats(), hops, nil
}

func protocolName[T network.Node[T]](nw *network.Network[T]) string {
	nodes := nw.Nodes()
	if len(nodes) == 0 {
		return "unknown"
	}
	switch any(nodes[0]).(type) {
	case *chord.Node:
		return "chord"
	case *pastry.Node:
		return "pastry"
	default:
		return "unknown"
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
