package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"flash-trader/internal/engine"
	"flash-trader/internal/service"
)

// Export renders the leaderboard as CSV and/or a PNG bar chart, and the archive as CSV.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" && opts.ArchiveCSVPath == "" {
		return errors.New("at least one of --csv, --archive-csv or --png must be provided")
	}
	if opts.ArchiveLimit < 0 {
		return fmt.Errorf("archive limit must not be negative, got %d", opts.ArchiveLimit)
	}

	return a.withService(ctx, func(svc *service.Service) error {
		board, err := svc.Leaderboard(ctx)
		if err != nil {
			return err
		}

		if opts.CSVPath != "" {
			if err := writeLeaderboardCSV(opts.CSVPath, board); err != nil {
				return err
			}
			a.Logger.Info().Str("path", opts.CSVPath).Int("rows", len(board.Traders)).Msg("leaderboard exported")
		}

		if opts.PNGPath != "" {
			if err := a.writeLeaderboardPNG(opts.PNGPath, board); err != nil {
				return err
			}
		}

		if opts.ArchiveCSVPath != "" {
			entries, err := svc.Archive(ctx, opts.ArchiveLimit)
			if err != nil {
				return err
			}
			if err := writeArchiveCSV(opts.ArchiveCSVPath, entries); err != nil {
				return err
			}
			a.Logger.Info().Str("path", opts.ArchiveCSVPath).Int("entries", len(entries)).Msg("archive exported")
		}
		return nil
	})
}

func writeLeaderboardCSV(path string, board engine.Leaderboard) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"rank", "trader", "one_min_count", "five_min_count", "fifteen_min_count", "streak_counter", "last_trade_time"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for i, t := range board.Traders {
		record := []string{
			strconv.Itoa(i + 1),
			t.Trader.String(),
			strconv.FormatUint(t.OneMinCount, 10),
			strconv.FormatUint(t.FiveMinCount, 10),
			strconv.FormatUint(t.FifteenMinCount, 10),
			strconv.FormatUint(t.StreakCounter, 10),
			unixRFC3339(t.LastTradeTime),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func writeArchiveCSV(path string, entries []engine.ArchiveEntry) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{"reset_at", "rank", "trader"}); err != nil {
		return err
	}
	for _, e := range entries {
		for i, trader := range e.TopTraders {
			record := []string{unixRFC3339(e.Timestamp), strconv.Itoa(i + 1), trader.String()}
			if err := writer.Write(record); err != nil {
				return err
			}
		}
	}

	writer.Flush()
	return writer.Error()
}

func (a *App) writeLeaderboardPNG(path string, board engine.Leaderboard) error {
	total, err := board.TotalActivity()
	if err != nil {
		return err
	}
	if total == 0 {
		a.Logger.Warn().Msg("leaderboard has no activity this cycle; skipping chart")
		return nil
	}

	if err := ensureDir(path); err != nil {
		return err
	}

	bars := make([]chart.Value, len(board.Traders))
	for i, t := range board.Traders {
		bars[i] = chart.Value{Label: t.Trader.Short(), Value: float64(t.OneMinCount)}
	}

	graph := chart.BarChart{
		Title:    "Trades in the current 1m window",
		Width:    a.Config.Export.ChartWidth,
		Height:   a.Config.Export.ChartHeight,
		BarWidth: 60,
		Background: chart.Style{
			Padding: chart.Box{Top: 40},
		},
		YAxis: chart.YAxis{
			ValueFormatter: func(v interface{}) string {
				return chart.FloatValueFormatterWithFormat(v, "%.0f")
			},
		},
		Bars: bars,
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := graph.Render(chart.PNG, file); err != nil {
		return err
	}
	a.Logger.Info().Str("path", path).Int("bars", len(bars)).Msg("chart exported")
	return nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func unixRFC3339(ts int64) string {
	if ts == 0 {
		return ""
	}
	return time.Unix(ts, 0).UTC().Format(time.RFC3339)
}
