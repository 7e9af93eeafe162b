package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"filippo.io/edwards25519"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flash-trader/internal/config"
	"flash-trader/internal/engine"
	"flash-trader/internal/identity"
	"flash-trader/internal/storage/memory"
)

// wallet returns n*G, a valid ed25519 public key.
func wallet(n int) identity.Pubkey {
	p := edwards25519.NewGeneratorPoint()
	for i := 1; i < n; i++ {
		p = new(edwards25519.Point).Add(p, edwards25519.NewGeneratorPoint())
	}
	var pk identity.Pubkey
	copy(pk[:], p.Bytes())
	return pk
}

func newTestApp(t *testing.T, extra string) (*App, *memory.Repository, *bytes.Buffer) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("app:\n  name: test\n"+extra), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	repo := memory.NewRepository()
	out := &bytes.Buffer{}
	a := NewApp(cfg, zerolog.Nop())
	a.Out = out
	a.repo = repo
	return a, repo, out
}

func TestRecordTradeAndShow(t *testing.T) {
	a, _, out := newTestApp(t, "")
	ctx := context.Background()

	require.NoError(t, a.RecordTrade(ctx, wallet(1).String()))
	require.NoError(t, a.RecordTrade(ctx, wallet(1).String()))
	require.NoError(t, a.RecordTrade(ctx, wallet(2).String()))
	assert.Contains(t, out.String(), "rank=1")

	out.Reset()
	require.NoError(t, a.Show(ctx, ShowOptions{}))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], wallet(1).String())
	assert.Contains(t, lines[2], wallet(2).String())

	out.Reset()
	require.NoError(t, a.Show(ctx, ShowOptions{Trader: wallet(2).String()}))
	assert.Contains(t, out.String(), "rank=2")
}

func TestRecordTradeRejectsOffCurveKey(t *testing.T) {
	a, _, _ := newTestApp(t, "")

	// Roughly half of all y coordinates have no matching x.
	var offCurve identity.Pubkey
	for b := byte(2); ; b++ {
		offCurve = identity.Pubkey{b}
		if !offCurve.IsOnCurve() {
			break
		}
	}

	err := a.RecordTrade(context.Background(), offCurve.String())
	assert.ErrorIs(t, err, identity.ErrInvalidPubkey)
}

func TestResetCycleAndArchive(t *testing.T) {
	a, repo, out := newTestApp(t, "")
	ctx := context.Background()

	require.NoError(t, a.RecordTrade(ctx, wallet(3).String()))
	volume := uint64(2_000_000)
	require.NoError(t, a.ResetCycle(ctx, &volume))
	assert.Contains(t, out.String(), "pool=500.000000")
	assert.Contains(t, out.String(), "reward=500.000000")

	entries, err := repo.ListArchive(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	out.Reset()
	require.NoError(t, a.Show(ctx, ShowOptions{Archive: true, Limit: 5}))
	assert.Contains(t, out.String(), wallet(3).Short())
}

func TestResetCycleUsesStaticVolume(t *testing.T) {
	a, _, out := newTestApp(t, "volume:\n  static: 10\n")
	require.NoError(t, a.ResetCycle(context.Background(), nil))
	assert.Contains(t, out.String(), "volume=10 pool=50.000000")
	assert.Contains(t, out.String(), "no activity")
}

func TestStakeUnstakeAllocate(t *testing.T) {
	a, _, out := newTestApp(t, "")
	ctx := context.Background()
	owner := wallet(4).String()

	require.NoError(t, a.Stake(ctx, owner, "150", 0))
	assert.Contains(t, out.String(), "staked=150.000000 tier=2")

	err := a.Unstake(ctx, owner, "150.000001")
	assert.ErrorIs(t, err, engine.ErrInsufficientStake)

	out.Reset()
	require.NoError(t, a.Allocate(ctx, owner))
	assert.Contains(t, out.String(), ": 2")

	out.Reset()
	require.NoError(t, a.Show(ctx, ShowOptions{Allocations: true}))
	assert.Contains(t, out.String(), owner)

	_, err = engine.ParseTokenAmount("1.0000001")
	assert.Error(t, err)
	assert.Error(t, a.Stake(ctx, owner, "1.0000001", 0))
}

func TestFlashLoanAndBurn(t *testing.T) {
	a, _, out := newTestApp(t, "transfer:\n  burn_vault: "+wallet(9).String()+"\n")
	ctx := context.Background()

	require.NoError(t, a.FlashLoan(ctx, wallet(5).String(), "12.5"))
	assert.Contains(t, out.String(), "12.500000 (sent)")

	assert.ErrorIs(t, a.FlashLoan(ctx, wallet(5).String(), "0"), engine.ErrZeroAmount)

	out.Reset()
	require.NoError(t, a.Burn(ctx, "3"))
	assert.Contains(t, out.String(), wallet(9).String())
}

func TestBurnWithoutVault(t *testing.T) {
	a, _, _ := newTestApp(t, "")
	assert.Error(t, a.Burn(context.Background(), "1"))
}

func TestSimulateCycleCommitsNothing(t *testing.T) {
	a, repo, out := newTestApp(t, "")
	ctx := context.Background()

	require.NoError(t, a.RecordTrade(ctx, wallet(6).String()))
	volume := uint64(0)
	require.NoError(t, a.SimulateCycle(ctx, &volume, false))
	assert.Contains(t, out.String(), "cycle preview")

	entries, err := repo.ListArchive(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, entries)

	assert.Error(t, a.SimulateCycle(ctx, &volume, true))
}

func TestExport(t *testing.T) {
	a, _, _ := newTestApp(t, "export:\n  chart_width: 800\n  chart_height: 400\n")
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		for j := 0; j < i; j++ {
			require.NoError(t, a.RecordTrade(ctx, wallet(i).String()))
		}
	}
	dir := t.TempDir()
	opts := ExportOptions{
		CSVPath:        filepath.Join(dir, "out", "board.csv"),
		ArchiveCSVPath: filepath.Join(dir, "archive.csv"),
		PNGPath:        filepath.Join(dir, "board.png"),
	}
	require.NoError(t, a.Export(ctx, opts))

	csvData, err := os.ReadFile(opts.CSVPath)
	require.NoError(t, err)
	rows := strings.Split(strings.TrimSpace(string(csvData)), "\n")
	require.Len(t, rows, 4)
	assert.True(t, strings.HasPrefix(rows[1], "1,"+wallet(3).String()+",3,"))

	png, err := os.ReadFile(opts.PNGPath)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))

	archive, err := os.ReadFile(opts.ArchiveCSVPath)
	require.NoError(t, err)
	assert.Equal(t, "reset_at,rank,trader", strings.TrimSpace(string(archive)))
}

func TestExportRequiresTarget(t *testing.T) {
	a, _, _ := newTestApp(t, "")
	assert.Error(t, a.Export(context.Background(), ExportOptions{}))
}

func TestExportRejectsNegativeArchiveLimit(t *testing.T) {
	a, _, _ := newTestApp(t, "")
	path := filepath.Join(t.TempDir(), "archive.csv")

	err := a.Export(context.Background(), ExportOptions{ArchiveCSVPath: path, ArchiveLimit: -1})
	require.Error(t, err)
	assert.NoFileExists(t, path)
}

func TestReplay(t *testing.T) {
	a, repo, out := newTestApp(t, "")
	ctx := context.Background()

	w1, w2 := wallet(7).String(), wallet(8).String()
	body := strings.Join([]string{
		"timestamp,action,value",
		"1700000000,trade," + w1,
		"1700000010,trade," + w1,
		"# comment lines are skipped",
		"1700000020,trade," + w2,
		"2023-11-14T22:15:00Z,reset,2000000",
		"1700001000,trade," + w2,
	}, "\n")
	path := filepath.Join(t.TempDir(), "events.csv")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	require.NoError(t, a.Replay(ctx, ReplayOptions{Path: path}))
	assert.Contains(t, out.String(), "replayed 4 trade(s), 1 reset(s), 0 failed")

	entries, err := repo.ListArchive(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(1700000100), entries[0].Timestamp)
	assert.Equal(t, []identity.Pubkey{wallet(7), wallet(8)}, entries[0].TopTraders)

	board, err := repo.GetLeaderboard(ctx)
	require.NoError(t, err)
	require.Len(t, board.Traders, 2)
	assert.Equal(t, wallet(8), board.Traders[0].Trader)
}

func TestParseReplayRejectsBackwardsTime(t *testing.T) {
	_, err := parseReplay(strings.NewReader("100,trade,x\n50,trade,y\n"))
	assert.Error(t, err)

	_, err = parseReplay(strings.NewReader("yesterday,trade,x\n"))
	assert.Error(t, err)
}
