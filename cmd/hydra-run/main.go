// Copyright (c) 2025 Neomantra Corp

package main

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/NimbleMarkets/hydra-go"
	hydra_file "github.com/NimbleMarkets/hydra-go/internal/file"
	"github.com/dustin/go-humanize"
	"github.com/gocarina/gocsv"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/neomantra/ymdflag"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var _ pflag.Value = (*ymdflag.YMDFlag)(nil)

///////////////////////////////////////////////////////////////////////////////

var (
	verbose bool

	logLevel     int
	startingCash float64

	startDate ymdflag.YMDFlag // fast-forward the clock to this date before trading

	smaFast int
	smaSlow int
	maxHold int

	ordersJsonFile    string
	ordersParquetFile string
	valuesParquetFile string

	replayCheck bool

	fetchOutput string
)

func requireNoError(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err.Error())
		os.Exit(1)
	}
}

///////////////////////////////////////////////////////////////////////////////

func main() {
	cobra.OnInitialize()

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	rootCmd.AddCommand(runCmd)
	runCmd.Flags().IntVarP(&logLevel, "log-level", "l", 0, "Engine logging level (0 silent, 1 major events, 2 per-tick)")
	runCmd.Flags().Float64VarP(&startingCash, "cash", "c", 100000, "Master portfolio starting cash")
	runCmd.Flags().VarP(&startDate, "start", "s", "Fast-forward to this date (YYYYMMDD) before trading")
	runCmd.Flags().IntVar(&smaFast, "fast", 10, "Fast moving-average window, in ticks")
	runCmd.Flags().IntVar(&smaSlow, "slow", 30, "Slow moving-average window, in ticks")
	runCmd.Flags().IntVar(&maxHold, "max-hold", 10, "Maximum number of assets held at once")
	runCmd.Flags().StringVar(&ordersJsonFile, "orders-json", "", "Write order/trade history JSON to this file ('-' for stdout, '.zst' compresses)")
	runCmd.Flags().StringVar(&ordersParquetFile, "orders-parquet", "", "Write order history Parquet to this file")
	runCmd.Flags().StringVar(&valuesParquetFile, "values-parquet", "", "Write per-portfolio value history Parquet to this file")
	runCmd.Flags().BoolVar(&replayCheck, "replay-check", false, "Replay the backtest and verify the final NLV is identical")

	rootCmd.AddCommand(fetchCmd)
	fetchCmd.Flags().StringVarP(&fetchOutput, "output", "o", "", "Destination file (defaults to the URL's base name)")

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

///////////////////////////////////////////////////////////////////////////////

var rootCmd = &cobra.Command{
	Use:   "hydra-run",
	Short: "hydra-run backtests bar files with the hydra engine",
	Long:  "hydra-run backtests bar files with the hydra engine",
}

///////////////////////////////////////////////////////////////////////////////

var runCmd = &cobra.Command{
	Use:   "run file...",
	Short: "Runs a moving-average-cross backtest over the given bar files",
	Long: `Runs a moving-average-cross backtest over the given bar files or
directories.  Files may be CSV (DATE,OPEN,CLOSE) or newline-delimited JSON
bars; '.zst' files are decompressed.  Each file becomes one asset named after
its base name.`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		engine := hydra.NewHydra(logLevel, startingCash)
		_, err := engine.NewBroker("broker")
		requireNoError(err)
		exchange, err := engine.NewExchange("exchange")
		requireNoError(err)

		files, err := expandBarFiles(args)
		requireNoError(err)
		for _, file := range files {
			asset, err := loadBarFile(file)
			requireNoError(err)
			requireNoError(exchange.RegisterAsset(asset))
		}

		strategy := NewSmaCrossStrategy(engine, "exchange", smaFast, smaSlow, maxHold)
		requireNoError(engine.RegisterStrategy(strategy, "sma-cross"))
		requireNoError(engine.Build())

		if !startDate.IsZero() {
			requireNoError(engine.GotoDatetime(startDate.AsTime().UnixNano()))
		}

		startTime := time.Now()
		requireNoError(engine.Run())
		elapsed := time.Since(startTime)

		master := engine.GetMasterPortfolio()
		nlvHistory := master.GetNLVHistory()
		finalNLV := 0.0
		if len(nlvHistory) != 0 {
			finalNLV = nlvHistory[len(nlvHistory)-1]
		}

		candlesPerSec := float64(engine.GetCandles()) / elapsed.Seconds()
		fmt.Printf("processed %s candles over %s ticks in %s (%s candles/sec)\n",
			humanize.Comma(int64(engine.GetCandles())),
			humanize.Comma(int64(len(engine.GetDatetimeIndexView()))),
			elapsed.Round(time.Microsecond),
			humanize.CommafWithDigits(candlesPerSec, 0))
		fmt.Printf("final master NLV: %s\n", humanize.CommafWithDigits(finalNLV, 4))
		if verbose {
			fmt.Printf("orders: %d  trades: %d  closed positions: %d\n",
				len(engine.GetOrderHistory()), len(engine.GetTradeHistory()), len(engine.GetPositionHistory()))
		}

		if replayCheck {
			requireNoError(engine.Replay())
			replayHistory := master.GetNLVHistory()
			replayNLV := 0.0
			if len(replayHistory) != 0 {
				replayNLV = replayHistory[len(replayHistory)-1]
			}
			if replayNLV != finalNLV {
				requireNoError(fmt.Errorf("replay mismatch: %v != %v", replayNLV, finalNLV))
			}
			fmt.Println("replay-check passed")
		}

		if ordersJsonFile != "" {
			writer, closer, err := hydra.MakeCompressedWriter(ordersJsonFile, false)
			requireNoError(err)
			err = hydra_file.WriteHistoryAsJson(engine, writer)
			closer()
			requireNoError(err)
		}
		if ordersParquetFile != "" {
			requireNoError(hydra_file.WriteOrderHistoryAsParquet(engine, ordersParquetFile))
		}
		if valuesParquetFile != "" {
			requireNoError(hydra_file.WriteValueHistoryAsParquet(engine, valuesParquetFile))
		}
	},
}

// expandBarFiles flattens directory arguments into their bar files, sorted so
// asset registration order is stable.
func expandBarFiles(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}
		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			if !entry.IsDir() {
				files = append(files, filepath.Join(arg, entry.Name()))
			}
		}
	}
	sort.Strings(files)
	return files, nil
}

func loadBarFile(file string) (*hydra.Asset, error) {
	assetID := hydra.AssetIDFromPath(file)
	name := strings.TrimSuffix(file, ".zst")
	name = strings.TrimSuffix(name, ".zstd")
	if strings.HasSuffix(name, ".json") {
		reader, closer, err := hydra.MakeCompressedReader(file, false)
		if err != nil {
			return nil, err
		}
		defer closer()
		return hydra.AssetFromJSON(reader, strings.TrimSuffix(assetID, ".json"), "exchange", "broker", 0)
	}
	if name != file {
		reader, closer, err := hydra.MakeCompressedReader(file, false)
		if err != nil {
			return nil, err
		}
		defer closer()
		var bars []*hydra.Bar
		if err := gocsv.Unmarshal(reader, &bars); err != nil {
			return nil, err
		}
		return hydra.AssetFromBars(hydra.AssetIDFromPath(name), "exchange", "broker", 0, bars)
	}
	return hydra.AssetFromCSV(file, assetID, "exchange", "broker", 0)
}

///////////////////////////////////////////////////////////////////////////////

var fetchCmd = &cobra.Command{
	Use:   "fetch url...",
	Short: "Downloads bar files over HTTP",
	Long:  "Downloads bar files over HTTP, retrying transient failures",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		for _, rawUrl := range args {
			requireNoError(fetchFile(rawUrl, fetchOutput))
		}
	},
}

func fetchFile(rawUrl, destFile string) error {
	if destFile == "" {
		destFile = filepath.Base(rawUrl)
	}

	req, err := retryablehttp.NewRequest("GET", rawUrl, nil)
	if err != nil {
		return err
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 10
	retryClient.Logger = log.New(io.Discard, "", log.LstdFlags)
	resp, err := retryClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s", resp.Status)
	}

	// Download to a tmp extension so a partial fetch never clobbers the file.
	tmpFile, err := os.Create(destFile + ".tmp")
	if err != nil {
		return err
	}
	if _, err := io.Copy(tmpFile, resp.Body); err != nil {
		tmpFile.Close()
		return err
	}
	if err := tmpFile.Close(); err != nil {
		return err
	}
	if err := os.Rename(destFile+".tmp", destFile); err != nil {
		return err
	}
	if verbose {
		fmt.Printf("fetched %s -> %s\n", rawUrl, destFile)
	}
	return nil
}
