package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/volume-bot/internal/executor"
	"github.com/rovshanmuradov/volume-bot/internal/wallet"
)

const testPrice = 0.001 // SOL per token used by the fake venue

// fakeExecutor fills every trade instantly at a fixed price.
type fakeExecutor struct {
	mu       sync.Mutex
	failAll  bool
	executed int
}

func (f *fakeExecutor) Execute(_ context.Context, req *executor.Request) (*executor.Result, error) {
	f.mu.Lock()
	f.executed++
	failAll := f.failAll
	f.mu.Unlock()

	if failAll {
		return &executor.Result{Success: false, Err: "venue unavailable"}, nil
	}

	if req.Direction == executor.DirectionBuy {
		return &executor.Result{
			Success:      true,
			AmountSol:    req.AmountSol,
			AmountTokens: req.AmountSol / testPrice,
			Signature:    "sig",
		}, nil
	}
	return &executor.Result{
		Success:      true,
		AmountSol:    req.AmountTokens * testPrice,
		AmountTokens: req.AmountTokens,
		Signature:    "sig",
	}, nil
}

func testWallets(t *testing.T, n int) []*wallet.Wallet {
	t.Helper()
	out := make([]*wallet.Wallet, 0, n)
	for i := 0; i < n; i++ {
		generated := solana.NewWallet()
		w, err := wallet.NewWallet(generated.PrivateKey.String())
		require.NoError(t, err)
		out = append(out, w)
	}
	return out
}

func newTestScheduler(t *testing.T, exec executor.Executor) *Scheduler {
	t.Helper()
	return NewScheduler(&SchedulerConfig{
		Logger:   zaptest.NewLogger(t),
		Executor: exec,
	})
}

func waitForStatus(t *testing.T, s *Scheduler, owner, mint string, want Status, timeout time.Duration) Snapshot {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if snap := s.GetStatus(owner, mint); snap != nil && snap.Status == want {
			return *snap
		}
		time.Sleep(5 * time.Millisecond)
	}
	snap := s.GetStatus(owner, mint)
	t.Fatalf("session did not reach status %s; last: %+v", want, snap)
	return Snapshot{}
}

func TestScheduler_Start_Validation(t *testing.T) {
	s := newTestScheduler(t, &fakeExecutor{})
	wallets := testWallets(t, 1)

	_, err := s.Start("owner", "mint", nil, Settings{TargetVolumeSol: 1}, "pumpfun", testPrice)
	assert.ErrorIs(t, err, ErrNoWallets)

	_, err = s.Start("owner", "mint", wallets, Settings{TargetVolumeSol: 0}, "pumpfun", testPrice)
	assert.ErrorIs(t, err, ErrInvalidSettings)

	_, err = s.Start("owner", "mint", wallets, Settings{TargetVolumeSol: 1, BuyPressurePercent: 120}, "pumpfun", testPrice)
	assert.ErrorIs(t, err, ErrInvalidSettings)

	// No session state was created by the rejected starts.
	assert.Nil(t, s.GetStatus("owner", "mint"))
	assert.Empty(t, s.ListActive("owner"))
}

func TestScheduler_Start_AlreadyRunning(t *testing.T) {
	s := newTestScheduler(t, &fakeExecutor{})
	defer func() { _ = s.Shutdown(context.Background()) }()

	settings := Settings{TargetVolumeSol: 1000, TradeIntervalMs: 60000}
	_, err := s.Start("owner", "mint", testWallets(t, 2), settings, "pumpfun", testPrice)
	require.NoError(t, err)

	_, err = s.Start("owner", "mint", testWallets(t, 2), settings, "pumpfun", testPrice)
	assert.ErrorIs(t, err, ErrAlreadyRunning)

	// A different token for the same owner is its own session.
	_, err = s.Start("owner", "other_mint", testWallets(t, 2), settings, "pumpfun", testPrice)
	assert.NoError(t, err)
}

func TestScheduler_Start_MergesDefaults(t *testing.T) {
	s := newTestScheduler(t, &fakeExecutor{})
	defer func() { _ = s.Shutdown(context.Background()) }()

	snap, err := s.Start("owner", "mint", testWallets(t, 1), Settings{TargetVolumeSol: 5, TradeIntervalMs: 60000}, "pumpfun", testPrice)
	require.NoError(t, err)

	assert.Equal(t, StrategyBalanced, snap.Settings.Strategy)
	assert.Equal(t, 100, snap.Settings.SlippageBps)
	assert.Equal(t, StatusRunning, snap.Status)
	assert.Equal(t, 5.0, snap.TargetVolumeSol)
}

func TestScheduler_RunsToTarget(t *testing.T) {
	exec := &fakeExecutor{}
	s := newTestScheduler(t, exec)

	settings := Settings{
		TargetVolumeSol:    2,
		BuyPressurePercent: 50,
		TradeIntervalMs:    1,
		MinTradeSol:        0.05,
		MaxTradeSol:        0.1,
	}
	_, err := s.Start("owner", "mint", testWallets(t, 3), settings, "pumpfun", testPrice)
	require.NoError(t, err)

	snap := waitForStatus(t, s, "owner", "mint", StatusStopped, 10*time.Second)

	assert.Equal(t, "target_reached", snap.StopReason)
	assert.GreaterOrEqual(t, snap.ExecutedVolumeSol, 2.0)
	// The final trade may overshoot by at most one trade's worth.
	assert.LessOrEqual(t, snap.ExecutedVolumeSol, 2.0+settings.MaxTradeSol)
	assert.Equal(t, snap.TotalTrades, snap.SuccessfulTrades)
	assert.Equal(t, snap.TotalTrades, snap.BuyCount+snap.SellCount)
}

func TestScheduler_BuyPressureConvergence(t *testing.T) {
	exec := &fakeExecutor{}
	s := newTestScheduler(t, exec)

	settings := Settings{
		TargetVolumeSol:    50,
		BuyPressurePercent: 70,
		TradeIntervalMs:    1,
		MinTradeSol:        0.05,
		MaxTradeSol:        0.1,
	}
	_, err := s.Start("owner", "mint", testWallets(t, 3), settings, "pumpfun", testPrice)
	require.NoError(t, err)

	snap := waitForStatus(t, s, "owner", "mint", StatusStopped, 30*time.Second)

	require.Greater(t, snap.BuyCount+snap.SellCount, 100)
	ratio := float64(snap.BuyCount) / float64(snap.BuyCount+snap.SellCount)
	// Probabilistic pacing converges statistically, not per-window.
	assert.InDelta(t, 0.70, ratio, 0.15)
}

func TestScheduler_Stop(t *testing.T) {
	s := newTestScheduler(t, &fakeExecutor{})

	settings := Settings{TargetVolumeSol: 1000, TradeIntervalMs: 5}
	_, err := s.Start("owner", "mint", testWallets(t, 2), settings, "pumpfun", testPrice)
	require.NoError(t, err)

	assert.True(t, s.Stop("owner", "mint", "manual"))

	snap := s.GetStatus("owner", "mint")
	require.NotNil(t, snap)
	assert.Equal(t, StatusStopped, snap.Status)
	assert.Equal(t, "manual", snap.StopReason)

	// Idempotent: a second stop finds no live session.
	assert.False(t, s.Stop("owner", "mint", "manual"))
	assert.False(t, s.Stop("owner", "unknown", "manual"))
}

func TestScheduler_NoMutationAfterStop(t *testing.T) {
	s := newTestScheduler(t, &fakeExecutor{})

	settings := Settings{TargetVolumeSol: 1000, TradeIntervalMs: 1}
	_, err := s.Start("owner", "mint", testWallets(t, 3), settings, "pumpfun", testPrice)
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	require.True(t, s.Stop("owner", "mint", "manual"))

	before := *s.GetStatus("owner", "mint")
	time.Sleep(100 * time.Millisecond)
	after := *s.GetStatus("owner", "mint")

	assert.Equal(t, before.TotalTrades, after.TotalTrades)
	assert.Equal(t, before.ExecutedVolumeSol, after.ExecutedVolumeSol)
	assert.Equal(t, before.Status, after.Status)
}

func TestScheduler_EmergencyStop(t *testing.T) {
	s := newTestScheduler(t, &fakeExecutor{})

	settings := Settings{TargetVolumeSol: 1000, TradeIntervalMs: 60000}
	_, err := s.Start("owner", "mint", testWallets(t, 1), settings, "pumpfun", testPrice)
	require.NoError(t, err)

	assert.True(t, s.EmergencyStop("owner", "mint", "panic", time.Now()))

	snap := s.GetStatus("owner", "mint")
	require.NotNil(t, snap)
	assert.Equal(t, StatusEmergencyStopped, snap.Status)

	assert.False(t, s.EmergencyStop("owner", "never_existed", "panic", time.Now()))
}

func TestScheduler_EmergencyStopOverridesStopped(t *testing.T) {
	s := newTestScheduler(t, &fakeExecutor{})

	settings := Settings{TargetVolumeSol: 1000, TradeIntervalMs: 60000}
	_, err := s.Start("owner", "mint", testWallets(t, 1), settings, "pumpfun", testPrice)
	require.NoError(t, err)

	require.True(t, s.Stop("owner", "mint", "manual"))
	require.Equal(t, StatusStopped, s.GetStatus("owner", "mint").Status)

	// The panic button works even after normal completion.
	assert.True(t, s.EmergencyStop("owner", "mint", "panic", time.Now()))
	assert.Equal(t, StatusEmergencyStopped, s.GetStatus("owner", "mint").Status)
}

func TestScheduler_RestartAfterTerminal(t *testing.T) {
	s := newTestScheduler(t, &fakeExecutor{})
	defer func() { _ = s.Shutdown(context.Background()) }()

	settings := Settings{TargetVolumeSol: 1000, TradeIntervalMs: 60000}
	_, err := s.Start("owner", "mint", testWallets(t, 1), settings, "pumpfun", testPrice)
	require.NoError(t, err)
	require.True(t, s.Stop("owner", "mint", "manual"))

	_, err = s.Start("owner", "mint", testWallets(t, 1), settings, "pumpfun", testPrice)
	assert.NoError(t, err)
}

func TestScheduler_FailuresDoNotStopSession(t *testing.T) {
	exec := &fakeExecutor{failAll: true}
	s := newTestScheduler(t, exec)
	defer func() { _ = s.Shutdown(context.Background()) }()

	settings := Settings{TargetVolumeSol: 1000, TradeIntervalMs: 1, BuyPressurePercent: 100}
	_, err := s.Start("owner", "mint", testWallets(t, 2), settings, "pumpfun", testPrice)
	require.NoError(t, err)

	deadline := time.Now().Add(5 * time.Second)
	var snap *Snapshot
	for time.Now().Before(deadline) {
		snap = s.GetStatus("owner", "mint")
		if snap.TotalTrades >= 6 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	require.NotNil(t, snap)
	assert.GreaterOrEqual(t, snap.TotalTrades, 6)
	assert.Equal(t, 0, snap.SuccessfulTrades)
	assert.Equal(t, 0.0, snap.ExecutedVolumeSol)
	// Failures suspend wallets but never kill the session.
	assert.Equal(t, StatusRunning, snap.Status)
}

// panicExecutor blows up on its first calls, then fills like fakeExecutor.
type panicExecutor struct {
	fakeExecutor
	panicsLeft int
}

func (p *panicExecutor) Execute(ctx context.Context, req *executor.Request) (*executor.Result, error) {
	p.mu.Lock()
	if p.panicsLeft > 0 {
		p.panicsLeft--
		p.mu.Unlock()
		panic("venue client crashed")
	}
	p.mu.Unlock()
	return p.fakeExecutor.Execute(ctx, req)
}

func TestScheduler_WalletReleasedOnExecutorPanic(t *testing.T) {
	exec := &panicExecutor{panicsLeft: 2}
	s := newTestScheduler(t, exec)

	// A single wallet makes a leak fatal: if the panicking tick never
	// returned it to the pool, no later tick could trade at all.
	settings := Settings{
		TargetVolumeSol:    0.2,
		BuyPressurePercent: 100,
		TradeIntervalMs:    1,
		MinTradeSol:        0.05,
		MaxTradeSol:        0.1,
	}
	_, err := s.Start("owner", "mint", testWallets(t, 1), settings, "pumpfun", testPrice)
	require.NoError(t, err)

	snap := waitForStatus(t, s, "owner", "mint", StatusStopped, 10*time.Second)
	assert.Equal(t, "target_reached", snap.StopReason)
	assert.GreaterOrEqual(t, snap.ExecutedVolumeSol, 0.2)
}

func TestScheduler_ListActive(t *testing.T) {
	s := newTestScheduler(t, &fakeExecutor{})
	defer func() { _ = s.Shutdown(context.Background()) }()

	settings := Settings{TargetVolumeSol: 1000, TradeIntervalMs: 60000}
	_, err := s.Start("alice", "mint_a", testWallets(t, 1), settings, "pumpfun", testPrice)
	require.NoError(t, err)
	_, err = s.Start("alice", "mint_b", testWallets(t, 1), settings, "pumpfun", testPrice)
	require.NoError(t, err)
	_, err = s.Start("bob", "mint_a", testWallets(t, 1), settings, "pumpfun", testPrice)
	require.NoError(t, err)

	require.True(t, s.Stop("alice", "mint_b", "manual"))

	active := s.ListActive("alice")
	require.Len(t, active, 1)
	assert.Equal(t, "mint_a", active[0].TokenMint)
	assert.Len(t, s.ListActive("bob"), 1)
	assert.Empty(t, s.ListActive("carol"))
}
