package game

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okralab/optionbot/telemetry"
)

func TestMain(m *testing.M) {
	telemetry.Init()
	os.Exit(m.Run())
}

// fakeOracle answers price queries from configurable functions.
type fakeOracle struct {
	mu           sync.Mutex
	currentCalls int
	currentFn    func(asset string) (string, error)
	predictFn    func(asset, timeframe string) (string, error)
}

func (f *fakeOracle) Current(_ context.Context, asset string) (string, error) {
	f.mu.Lock()
	f.currentCalls++
	f.mu.Unlock()
	return f.currentFn(asset)
}

func (f *fakeOracle) Predict(_ context.Context, asset, timeframe string) (string, error) {
	return f.predictFn(asset, timeframe)
}

func (f *fakeOracle) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.currentCalls
}

// fakeTransport records everything sent to the chat.
type fakeTransport struct {
	mu       sync.Mutex
	texts    []string
	polls    []string
	textErr  error
	pollErr  error
	nextPoll int
}

func (f *fakeTransport) SendText(_ context.Context, chatID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.textErr != nil {
		return f.textErr
	}
	f.texts = append(f.texts, text)
	return nil
}

func (f *fakeTransport) CreatePoll(_ context.Context, chatID int64, question string, options []string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pollErr != nil {
		return 0, f.pollErr
	}
	f.polls = append(f.polls, question)
	f.nextPoll++
	return f.nextPoll, nil
}

func (f *fakeTransport) sentTexts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.texts))
	copy(out, f.texts)
	return out
}

func (f *fakeTransport) sentPolls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.polls))
	copy(out, f.polls)
	return out
}

func countContaining(texts []string, substr string) int {
	n := 0
	for _, s := range texts {
		if strings.Contains(s, substr) {
			n++
		}
	}
	return n
}

type fakeAuditor struct {
	started atomic.Int32
	settled atomic.Int32
}

func (f *fakeAuditor) GameStarted(context.Context, Game) { f.started.Add(1) }
func (f *fakeAuditor) GameSettled(context.Context, Game) { f.settled.Add(1) }

func steadyOracle(current, predicted string) *fakeOracle {
	return &fakeOracle{
		currentFn: func(string) (string, error) { return current, nil },
		predictFn: func(string, string) (string, error) { return predicted, nil },
	}
}

func newTestManager(o PriceOracle, tr Transport, a Auditor) *Manager {
	return NewManager(NewStore(), o, tr, a, Options{DefaultTimeframe: "5m"})
}

func waitForState(t *testing.T, m *Manager, id string, want State) Game {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		g, err := m.Store().Get(id)
		if err == nil && g.State == want {
			return g
		}
		time.Sleep(5 * time.Millisecond)
	}
	g, err := m.Store().Get(id)
	t.Fatalf("game %s never reached %s (state=%v err=%v)", id, want, g.State, err)
	return Game{}
}

func TestStartGameHappyPath(t *testing.T) {
	tr := &fakeTransport{}
	audit := &fakeAuditor{}
	m := newTestManager(steadyOracle("current price is 100", "prediction: 90"), tr, audit)
	defer m.Shutdown()

	res, err := m.StartGame(context.Background(), 1, "btc", "5m")
	if err != nil {
		t.Fatalf("StartGame: %v", err)
	}
	if res.Outcome != OutcomeSuccess || res.Payload.GameID == "" {
		t.Fatalf("result = %+v, want success with game id", res)
	}

	g, err := m.Store().Get(res.Payload.GameID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if g.State != StateActive {
		t.Errorf("state = %s, want active", g.State)
	}
	if g.Asset != "BTC" {
		t.Errorf("asset = %s, want canonical BTC", g.Asset)
	}
	if g.StartPrice.String() != "100" || g.PredictedPrice.String() != "90" {
		t.Errorf("prices = %s/%s, want 100/90", g.StartPrice, g.PredictedPrice)
	}
	if g.PollMessageID == 0 {
		t.Error("poll message id not recorded")
	}
	if m.PendingTimers() != 1 {
		t.Errorf("PendingTimers = %d, want 1", m.PendingTimers())
	}
	if len(tr.sentPolls()) != 1 {
		t.Errorf("polls sent = %d, want 1", len(tr.sentPolls()))
	}
	if countContaining(tr.sentTexts(), "Option game for BTC started") != 1 {
		t.Errorf("start message missing, texts: %v", tr.sentTexts())
	}
	if audit.started.Load() != 1 {
		t.Errorf("audit started = %d, want 1", audit.started.Load())
	}
}

func TestStartGameDefaultTimeframe(t *testing.T) {
	tr := &fakeTransport{}
	m := newTestManager(steadyOracle("100", "90"), tr, nil)
	defer m.Shutdown()

	res, err := m.StartGame(context.Background(), 1, "BTC", "")
	if err != nil {
		t.Fatalf("StartGame: %v", err)
	}
	g, _ := m.Store().Get(res.Payload.GameID)
	if g.Timeframe != "5m" {
		t.Errorf("timeframe = %s, want default 5m", g.Timeframe)
	}
}

func TestStartGameInvalidTimeframe(t *testing.T) {
	m := newTestManager(steadyOracle("100", "90"), &fakeTransport{}, nil)
	defer m.Shutdown()

	if _, err := m.StartGame(context.Background(), 1, "BTC", "soon"); err == nil {
		t.Fatal("expected error for unparsable timeframe")
	}
	if n := len(m.Store().List()); n != 0 {
		t.Errorf("games stored = %d, want 0", n)
	}
}

func TestStartGameOracleFailure(t *testing.T) {
	tr := &fakeTransport{}
	o := &fakeOracle{
		currentFn: func(string) (string, error) { return "", fmt.Errorf("connection refused") },
		predictFn: func(string, string) (string, error) { return "90", nil },
	}
	m := newTestManager(o, tr, nil)
	defer m.Shutdown()

	_, err := m.StartGame(context.Background(), 1, "BTC", "5m")
	if !errors.Is(err, ErrOracleUnavailable) {
		t.Fatalf("error = %v, want ErrOracleUnavailable", err)
	}
	if n := len(m.Store().List()); n != 0 {
		t.Errorf("games stored = %d, want 0 after failed start", n)
	}
	if m.PendingTimers() != 0 {
		t.Errorf("PendingTimers = %d, want 0", m.PendingTimers())
	}
	if got := countContaining(tr.sentTexts(), "⚠️"); got != 1 {
		t.Errorf("error notices = %d, want exactly 1 (texts: %v)", got, tr.sentTexts())
	}
}

func TestStartGameUnparsablePrediction(t *testing.T) {
	tr := &fakeTransport{}
	o := &fakeOracle{
		currentFn: func(string) (string, error) { return "100", nil },
		predictFn: func(string, string) (string, error) { return "the oracle is silent", nil },
	}
	m := newTestManager(o, tr, nil)
	defer m.Shutdown()

	_, err := m.StartGame(context.Background(), 1, "BTC", "5m")
	if !errors.Is(err, ErrPriceParse) {
		t.Fatalf("error = %v, want ErrPriceParse", err)
	}
	if n := len(m.Store().List()); n != 0 {
		t.Errorf("games stored = %d, want 0", n)
	}
}

func TestStartGamePollFailureRollsBack(t *testing.T) {
	tr := &fakeTransport{pollErr: fmt.Errorf("chat gone")}
	m := newTestManager(steadyOracle("100", "90"), tr, nil)
	defer m.Shutdown()

	_, err := m.StartGame(context.Background(), 1, "BTC", "5m")
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("error = %v, want ErrTransport", err)
	}
	if n := len(m.Store().List()); n != 0 {
		t.Errorf("games stored = %d, want 0 after poll failure", n)
	}
	if m.PendingTimers() != 0 {
		t.Errorf("PendingTimers = %d, want 0", m.PendingTimers())
	}
}

func TestStartGameAnnounceFailureTearsDown(t *testing.T) {
	tr := &fakeTransport{textErr: fmt.Errorf("chat gone")}
	m := newTestManager(steadyOracle("100", "90"), tr, nil)
	defer m.Shutdown()

	_, err := m.StartGame(context.Background(), 1, "BTC", "5m")
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("error = %v, want ErrTransport", err)
	}
	if n := len(m.Store().List()); n != 0 {
		t.Errorf("games stored = %d, want 0 after announce failure", n)
	}
	if m.PendingTimers() != 0 {
		t.Errorf("PendingTimers = %d, want 0 (no unannounced settlement)", m.PendingTimers())
	}
}

func TestScheduledSettlementEndToEnd(t *testing.T) {
	tr := &fakeTransport{}
	audit := &fakeAuditor{}
	m := newTestManager(steadyOracle("100", "90"), tr, audit)
	defer m.Shutdown()

	// End price 100 stays above the 90 prediction, so Higher wins when the
	// short timer fires.
	res, err := m.StartGame(context.Background(), 1, "BTC", "30ms")
	if err != nil {
		t.Fatalf("StartGame: %v", err)
	}
	g := waitForState(t, m, res.Payload.GameID, StateSettled)
	if g.WinningSide != SideHigher {
		t.Errorf("winning side = %s, want Higher", g.WinningSide)
	}
	if got := countContaining(tr.sentTexts(), "Winning side:"); got != 1 {
		t.Errorf("result messages = %d, want 1 (texts: %v)", got, tr.sentTexts())
	}
	if audit.settled.Load() != 1 {
		t.Errorf("audit settled = %d, want 1", audit.settled.Load())
	}
	if m.PendingTimers() != 0 {
		t.Errorf("PendingTimers = %d after settle, want 0", m.PendingTimers())
	}
}

func TestCheckResultsTieResolvesLower(t *testing.T) {
	tr := &fakeTransport{}
	m := newTestManager(steadyOracle("100", "100"), tr, nil)
	defer m.Shutdown()

	res, err := m.StartGame(context.Background(), 1, "BTC", "1h")
	if err != nil {
		t.Fatalf("StartGame: %v", err)
	}
	out, err := m.CheckResults(context.Background(), 1, res.Payload.GameID)
	if err != nil {
		t.Fatalf("CheckResults: %v", err)
	}
	if out.Payload.WinningSide != SideLower {
		t.Errorf("winning side = %s, want Lower on exact tie", out.Payload.WinningSide)
	}
}

func TestCheckResultsByAsset(t *testing.T) {
	tr := &fakeTransport{}
	m := newTestManager(steadyOracle("95", "90"), tr, nil)
	defer m.Shutdown()

	if _, err := m.StartGame(context.Background(), 1, "BTC", "1h"); err != nil {
		t.Fatalf("StartGame: %v", err)
	}
	out, err := m.CheckResults(context.Background(), 1, "btc")
	if err != nil {
		t.Fatalf("CheckResults by asset: %v", err)
	}
	if out.Outcome != OutcomeSuccess || out.Payload.WinningSide != SideHigher {
		t.Errorf("result = %+v, want Higher win", out)
	}
}

func TestCheckResultsUnknown(t *testing.T) {
	m := newTestManager(steadyOracle("100", "90"), &fakeTransport{}, nil)
	defer m.Shutdown()

	if _, err := m.CheckResults(context.Background(), 1, "DOGE"); !errors.Is(err, ErrGameNotFound) {
		t.Errorf("error = %v, want ErrGameNotFound", err)
	}
}

func TestCheckResultsIdempotent(t *testing.T) {
	tr := &fakeTransport{}
	m := newTestManager(steadyOracle("95", "90"), tr, nil)
	defer m.Shutdown()

	res, err := m.StartGame(context.Background(), 1, "BTC", "1h")
	if err != nil {
		t.Fatalf("StartGame: %v", err)
	}
	if _, err := m.CheckResults(context.Background(), 1, res.Payload.GameID); err != nil {
		t.Fatalf("first check: %v", err)
	}
	out, err := m.CheckResults(context.Background(), 1, res.Payload.GameID)
	if err != nil {
		t.Fatalf("second check: %v", err)
	}
	if out.Outcome != OutcomeSuccess {
		t.Errorf("second check outcome = %s, want success", out.Outcome)
	}
	if got := countContaining(tr.sentTexts(), "Winning side:"); got != 1 {
		t.Errorf("result messages = %d, want exactly 1", got)
	}
}

func TestCheckResultsConcurrentSingleAnnouncement(t *testing.T) {
	tr := &fakeTransport{}
	m := newTestManager(steadyOracle("95", "90"), tr, nil)
	defer m.Shutdown()

	res, err := m.StartGame(context.Background(), 1, "BTC", "1h")
	if err != nil {
		t.Fatalf("StartGame: %v", err)
	}

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if _, err := m.CheckResults(context.Background(), 1, res.Payload.GameID); err != nil {
				t.Errorf("concurrent check: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	if got := countContaining(tr.sentTexts(), "Winning side:"); got != 1 {
		t.Errorf("result messages = %d, want exactly 1 despite racing checks", got)
	}
}

func TestCheckResultsOracleFailureLeavesGameActive(t *testing.T) {
	tr := &fakeTransport{}
	calls := atomic.Int32{}
	o := &fakeOracle{
		currentFn: func(string) (string, error) {
			if calls.Add(1) == 1 {
				return "100", nil // start succeeds
			}
			return "", fmt.Errorf("oracle down")
		},
		predictFn: func(string, string) (string, error) { return "90", nil },
	}
	m := newTestManager(o, tr, nil)
	defer m.Shutdown()

	res, err := m.StartGame(context.Background(), 1, "BTC", "1h")
	if err != nil {
		t.Fatalf("StartGame: %v", err)
	}
	out, err := m.CheckResults(context.Background(), 1, res.Payload.GameID)
	if !errors.Is(err, ErrOracleUnavailable) {
		t.Fatalf("error = %v, want ErrOracleUnavailable", err)
	}
	if out.Outcome != OutcomeFailure {
		t.Errorf("outcome = %s, want failure", out.Outcome)
	}
	g, _ := m.Store().Get(res.Payload.GameID)
	if g.State != StateActive {
		t.Errorf("state = %s, want still active for manual retry", g.State)
	}
	// Failure does not re-arm the timer.
	if m.PendingTimers() != 0 {
		t.Errorf("PendingTimers = %d, want 0", m.PendingTimers())
	}
	if got := countContaining(tr.sentTexts(), "Could not check results"); got != 1 {
		t.Errorf("failure notices = %d, want 1", got)
	}
}

func TestSettlementRetryPolicy(t *testing.T) {
	tr := &fakeTransport{}
	calls := atomic.Int32{}
	o := &fakeOracle{
		currentFn: func(string) (string, error) {
			n := calls.Add(1)
			// Call 1 is the start snapshot; calls 2 and 3 are settlement
			// attempts, with the first one failing.
			if n == 2 {
				return "", fmt.Errorf("transient outage")
			}
			return "95", nil
		},
		predictFn: func(string, string) (string, error) { return "90", nil },
	}
	m := NewManager(NewStore(), o, tr, nil, Options{DefaultTimeframe: "5m", SettleMaxAttempts: 3})
	defer m.Shutdown()

	res, err := m.StartGame(context.Background(), 1, "BTC", "1h")
	if err != nil {
		t.Fatalf("StartGame: %v", err)
	}
	out, err := m.CheckResults(context.Background(), 1, res.Payload.GameID)
	if err != nil {
		t.Fatalf("CheckResults with retries: %v", err)
	}
	if out.Payload.WinningSide != SideHigher {
		t.Errorf("winning side = %s, want Higher", out.Payload.WinningSide)
	}
	if calls.Load() != 3 {
		t.Errorf("oracle calls = %d, want 3 (start + failed attempt + retry)", calls.Load())
	}
}
