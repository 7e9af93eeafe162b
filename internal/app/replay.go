package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"flash-trader/internal/identity"
	"flash-trader/internal/service"
	"flash-trader/internal/storage"
	"flash-trader/internal/storage/memory"
)

// replayEvent is one row of a replay file: timestamp,action,value.
type replayEvent struct {
	line   int
	at     time.Time
	action string
	value  string
}

// Replay feeds a recorded CSV of trades and resets through the service in order.
// Rows are "timestamp,action,value" where action is trade (value = trader) or
// reset (value = DEX volume, empty to use the configured source).
func (a *App) Replay(ctx context.Context, opts ReplayOptions) error {
	events, err := readReplayFile(opts.Path)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return errors.New("回放文件为空")
	}

	var repo storage.Repository
	if opts.DryRun {
		a.Logger.Warn().Msg("回放 dry-run：不会写入数据库")
		repo = memory.NewRepository()
	} else {
		var closeRepo func()
		repo, closeRepo, err = a.openRepository(ctx)
		if err != nil {
			return err
		}
		defer closeRepo()
	}

	svc, err := a.newService(repo, nil, nil)
	if err != nil {
		return err
	}

	trades, resets, failed := 0, 0, 0
	for _, ev := range events {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := a.applyReplayEvent(ctx, svc, ev); err != nil {
			failed++
			a.Logger.Error().Err(err).Int("line", ev.line).Msg("回放事件失败")
			continue
		}
		if ev.action == "trade" {
			trades++
		} else {
			resets++
		}
	}

	a.Logger.Info().Int("trades", trades).Int("resets", resets).Int("failed", failed).Msg("回放完成")
	fmt.Fprintf(a.Out, "replayed %d trade(s), %d reset(s), %d failed\n", trades, resets, failed)
	if failed > 0 {
		return errors.New("部分事件回放失败，请检查日志")
	}
	return nil
}

func (a *App) applyReplayEvent(ctx context.Context, svc *service.Service, ev replayEvent) error {
	switch ev.action {
	case "trade":
		trader, err := identity.ParseWallet(ev.value)
		if err != nil {
			return err
		}
		_, err = svc.RecordTradeAt(ctx, trader, ev.at)
		return err
	case "reset":
		var volume *uint64
		if ev.value != "" {
			v, err := ParseVolume(ev.value)
			if err != nil {
				return err
			}
			volume = &v
		}
		v, err := a.resolveVolume(ctx, volume)
		if err != nil {
			return err
		}
		outcome, err := svc.ResetCycleAt(ctx, v, ev.at)
		if err != nil {
			return err
		}
		a.printCycle(outcome, false)
		return nil
	default:
		return fmt.Errorf("unknown action %q", ev.action)
	}
}

func readReplayFile(path string) ([]replayEvent, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return parseReplay(file)
}

func parseReplay(r io.Reader) ([]replayEvent, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.Comment = '#'

	var (
		events []replayEvent
		last   time.Time
		line   int
	)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		line++
		if line == 1 && strings.EqualFold(record[0], "timestamp") {
			continue
		}
		if len(record) < 2 {
			return nil, fmt.Errorf("line %d: expected timestamp,action[,value]", line)
		}

		at, err := parseTimestamp(record[0])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if at.Before(last) {
			return nil, fmt.Errorf("line %d: timestamp %s goes backwards", line, at.Format(time.RFC3339))
		}
		last = at

		ev := replayEvent{line: line, at: at, action: strings.ToLower(strings.TrimSpace(record[1]))}
		if len(record) > 2 {
			ev.value = strings.TrimSpace(record[2])
		}
		events = append(events, ev)
	}
	return events, nil
}

func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("timestamp %q is neither unix seconds nor RFC3339", s)
	}
	return t.UTC(), nil
}
