package indexer

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/arena-labs/syncer/src/pool"
	"github.com/arena-labs/syncer/src/utils/config"
	"github.com/arena-labs/syncer/src/utils/model"
	"github.com/arena-labs/syncer/src/utils/notify"
	"github.com/arena-labs/syncer/src/utils/program"
	"github.com/arena-labs/syncer/src/utils/repository/memory"
	"github.com/arena-labs/syncer/src/utils/solana"

	"github.com/cosmos/btcutil/base58"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

func address(seed byte) string {
	return base58.Encode(bytes.Repeat([]byte{seed}, 32))
}

type fakeOracle struct {
	mtx      sync.Mutex
	accounts []string
}

func (self *fakeOracle) CreateAccount(ctx context.Context) (string, error) {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	if len(self.accounts) == 0 {
		return "", fmt.Errorf("no more accounts")
	}
	out := self.accounts[0]
	self.accounts = self.accounts[1:]
	return out, nil
}

func (self *fakeOracle) Commit(ctx context.Context, address string) error {
	return nil
}

func (self *fakeOracle) IsReady(ctx context.Context, address string) (bool, error) {
	return true, nil
}

func (self *fakeOracle) ReadValue(ctx context.Context, address string) (string, bool, error) {
	return "", false, nil
}

// Common setup of the indexer suites: in-memory store, real pool manager and applier
type fixture struct {
	suite.Suite

	ctx       context.Context
	now       time.Time
	config    *config.Config
	programId string
	parser    *program.Parser

	store         *memory.Store
	pool          *pool.Manager
	broadcaster   *notify.Broadcaster
	notifications chan *model.MatchNotification
	applier       *Applier

	creator string
	player  string
	account string
}

func (s *fixture) SetupTest() {
	s.ctx = context.Background()
	s.now = time.Unix(1700000000, 0)
	s.programId = address(1)
	s.creator = address(2)
	s.player = address(3)
	s.account = address(9)

	var err error
	s.parser, err = program.NewParser(s.programId)
	require.NoError(s.T(), err)

	s.config = config.Default()
	s.config.Pool.CooldownMinutes = 5
	s.config.Pool.ProvisionPerSecond = 10000
	s.config.Indexer.ApplierNumShards = 4
	s.config.Indexer.ApplierMaxElapsedTime = time.Second
	s.config.Indexer.ApplierMaxInterval = 10 * time.Millisecond
	s.config.Indexer.ReconcileSignatureLimit = 2
	s.config.Indexer.ReconcileMaxPages = 10
	s.config.Indexer.ReconcileLookbackSlots = 100
	s.config.Indexer.ReconcileNumWorkers = 2

	clock := func() time.Time { return s.now }

	s.store = memory.NewStore()
	s.pool = pool.NewManager(s.config).
		WithStore(s.store).
		WithOracle(&fakeOracle{accounts: []string{s.account}}).
		WithClock(clock)

	s.broadcaster = notify.NewBroadcaster()
	s.notifications = s.broadcaster.Subscribe(100)

	s.applier = NewApplier(s.config).
		WithStore(s.store).
		WithPool(s.pool).
		WithBroadcaster(s.broadcaster).
		WithClock(clock)
}

func (s *fixture) provision() {
	_, err := s.pool.Provision(s.ctx, 1)
	require.NoError(s.T(), err)
}

func (s *fixture) line(match string, payload program.Payload) string {
	line, err := program.EncodeLine(match, payload)
	require.NoError(s.T(), err)
	return line
}

func (s *fixture) event(signature string, slot uint64, match string, payload program.Payload) *program.Event {
	event := program.ParseLine(s.line(match, payload), s.programId, s.programId)
	require.NotNil(s.T(), event)
	event.Signature = signature
	event.Slot = slot
	return event
}

func (s *fixture) created() *program.CreatedPayload {
	return &program.CreatedPayload{
		Creator:       s.creator,
		StakeLamports: 1_000_000,
		Deadline:      s.now.Unix() + 600,
		Game:          "chess",
		Mode:          "blitz",
	}
}

func (s *fixture) joined() *program.JoinedPayload {
	return &program.JoinedPayload{Player: s.player}
}

func (s *fixture) resolved() *program.ResolvedPayload {
	return &program.ResolvedPayload{WinnerSide: 1, Winner: s.player, PayoutLamports: 1_900_000}
}

func (s *fixture) apply(event *program.Event) {
	require.NoError(s.T(), s.applier.Apply(s.ctx, event))
}

func (s *fixture) match(address string) *model.Match {
	match, err := s.store.Matches().Get(s.ctx, address)
	require.NoError(s.T(), err)
	return match
}

func (s *fixture) checkpoint() uint64 {
	checkpoint, err := s.store.Events().GetCheckpoint(s.ctx)
	require.NoError(s.T(), err)
	return checkpoint
}

// Program logs of a successful transaction emitting the given data lines
func (s *fixture) logs(lines ...string) []string {
	out := []string{fmt.Sprintf("Program %s invoke [1]", s.programId)}
	out = append(out, lines...)
	return append(out, fmt.Sprintf("Program %s success", s.programId))
}

// Applies events right away
type syncSink struct {
	fixture *fixture
}

func (self *syncSink) Enqueue(event *program.Event) {
	self.fixture.apply(event)
}

func (self *syncSink) IsKnown(signature string) bool {
	return self.fixture.applier.IsKnown(signature)
}

type fakeLedger struct {
	mtx sync.Mutex

	// Newest first
	signatures   []*solana.SignatureInfo
	transactions map[string]*solana.Transaction
	requests     int
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{transactions: make(map[string]*solana.Transaction)}
}

// Adds a transaction newer than all previous ones
func (self *fakeLedger) add(signature string, slot uint64, failed bool, logs []string) {
	self.mtx.Lock()
	defer self.mtx.Unlock()

	info := &solana.SignatureInfo{Signature: signature, Slot: slot}
	tx := &solana.Transaction{Slot: slot, Meta: &solana.TransactionMeta{LogMessages: logs}}
	if failed {
		info.Err = []byte(`{"InstructionError":[0,"Custom"]}`)
		tx.Meta.Err = info.Err
	}
	self.signatures = append([]*solana.SignatureInfo{info}, self.signatures...)
	self.transactions[signature] = tx
}

func (self *fakeLedger) GetSlot(ctx context.Context) (uint64, error) {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	if len(self.signatures) == 0 {
		return 0, nil
	}
	return self.signatures[0].Slot, nil
}

func (self *fakeLedger) GetSignaturesForAddress(ctx context.Context, address string, opts solana.SignaturesOpts) (out []*solana.SignatureInfo, err error) {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	self.requests++

	start := 0
	if opts.Before != "" {
		for i, info := range self.signatures {
			if info.Signature == opts.Before {
				start = i + 1
				break
			}
		}
	}

	for _, info := range self.signatures[start:] {
		if len(out) == opts.Limit {
			break
		}
		out = append(out, info)
	}
	return
}

func (self *fakeLedger) GetTransaction(ctx context.Context, signature string) (*solana.Transaction, error) {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	return self.transactions[signature], nil
}
