// Command ingest populates the 1-minute and daily bar stores from
// polygon.io historical aggregates. Grounded on the teacher's
// cmd/market/main.go urfave/cli/v3 wiring and
// pkg/marketdata/provider/polygon.go's ListAggs iteration/progress-bar
// shape, redirected from the teacher's pluggable writer.MarketDataWriter
// into this engine's marketdata.Store.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	polygon "github.com/polygon-io/client-go/rest"
	"github.com/polygon-io/client-go/rest/models"
	"github.com/schollz/progressbar/v3"
	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v3"

	"github.com/kisquant/daytrader/internal/marketdata"
)

func downloadAction(ctx context.Context, cmd *cli.Command) error {
	ticker := cmd.String("ticker")
	start := cmd.Timestamp("start")
	end := cmd.Timestamp("end")
	oneMinutePath := cmd.String("one-minute-db")
	dailyPath := cmd.String("daily-db")

	apiKey := os.Getenv("POLYGON_API_KEY")
	if apiKey == "" {
		return fmt.Errorf("POLYGON_API_KEY environment variable is required")
	}

	md, err := marketdata.Open(oneMinutePath, ":memory:", dailyPath)
	if err != nil {
		return fmt.Errorf("opening market data store: %w", err)
	}
	defer md.Close()

	client := polygon.New(apiKey)

	if err := downloadMinuteBars(ctx, client, md, ticker, start, end); err != nil {
		return err
	}

	return downloadDailyBars(ctx, client, md, ticker, start, end)
}

func downloadMinuteBars(ctx context.Context, client *polygon.Client, md *marketdata.Store, ticker string, start, end time.Time) error {
	totalDays := int(end.Sub(start).Hours()/24) + 1
	bar := progressbar.NewOptions(totalDays, progressbar.OptionSetDescription(fmt.Sprintf("Downloading %s 1m bars", ticker)), progressbar.OptionShowCount())

	//nolint:exhaustruct // third-party struct with many optional fields
	params := models.ListAggsParams{
		Ticker:     ticker,
		Multiplier: 1,
		Timespan:   models.Minute,
		From:       models.Millis(start),
		To:         models.Millis(end),
	}.WithLimit(50000)

	iter := client.ListAggs(ctx, params)

	count := 0

	for iter.Next() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		agg := iter.Item()
		ts := time.Time(agg.Timestamp)

		if err := md.InsertOneMinuteBar(marketdata.Bar{
			Symbol: ticker,
			Date:   ts.Format("20060102"),
			Time:   ts.Format("1504"),
			Open:   decimal.NewFromFloat(agg.Open),
			High:   decimal.NewFromFloat(agg.High),
			Low:    decimal.NewFromFloat(agg.Low),
			Close:  decimal.NewFromFloat(agg.Close),
			Volume: int64(agg.Volume),
		}); err != nil {
			return fmt.Errorf("inserting 1-minute bar for %s: %w", ts, err)
		}

		count++
		if count%1000 == 0 {
			_ = bar.Set(int(ts.Sub(start).Hours() / 24))
		}
	}

	if err := iter.Err(); err != nil {
		return fmt.Errorf("downloading 1-minute bars: %w", err)
	}

	_ = bar.Finish()

	return nil
}

func downloadDailyBars(ctx context.Context, client *polygon.Client, md *marketdata.Store, ticker string, start, end time.Time) error {
	//nolint:exhaustruct // third-party struct with many optional fields
	params := models.ListAggsParams{
		Ticker:     ticker,
		Multiplier: 1,
		Timespan:   models.Day,
		From:       models.Millis(start),
		To:         models.Millis(end),
	}.WithLimit(50000)

	iter := client.ListAggs(ctx, params)

	for iter.Next() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		agg := iter.Item()
		ts := time.Time(agg.Timestamp)

		if err := md.InsertDailyBar(marketdata.Bar{
			Symbol: ticker,
			Date:   ts.Format("20060102"),
			Open:   decimal.NewFromFloat(agg.Open),
			High:   decimal.NewFromFloat(agg.High),
			Low:    decimal.NewFromFloat(agg.Low),
			Close:  decimal.NewFromFloat(agg.Close),
			Volume: int64(agg.Volume),
		}); err != nil {
			return fmt.Errorf("inserting daily bar for %s: %w", ts, err)
		}
	}

	return iter.Err()
}

func main() {
	cmd := &cli.Command{
		Name:  "ingest",
		Usage: "Download historical 1-minute and daily bars from polygon.io into the engine's market data store",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "ticker", Aliases: []string{"t"}, Usage: "Stock ticker symbol", Required: true},
			&cli.TimestampFlag{
				Name: "start", Aliases: []string{"s"}, Usage: "Start date (YYYY-MM-DD)", Required: true,
				Config: cli.TimestampConfig{Layouts: []string{"2006-01-02"}},
			},
			&cli.TimestampFlag{
				Name: "end", Aliases: []string{"e"}, Usage: "End date (YYYY-MM-DD), defaults to today", Value: time.Now(),
				Config: cli.TimestampConfig{Layouts: []string{"2006-01-02"}},
			},
			&cli.StringFlag{Name: "one-minute-db", Usage: "Path to the 1-minute bar DuckDB file", Required: true},
			&cli.StringFlag{Name: "daily-db", Usage: "Path to the daily bar DuckDB file", Required: true},
		},
		Action: downloadAction,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
