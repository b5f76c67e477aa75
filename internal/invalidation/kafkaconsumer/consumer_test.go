package kafkaconsumer

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/paulmach/orb"

	"github.com/mohammed-shakir/botanitours-map/internal/core/model"
	"github.com/mohammed-shakir/botanitours-map/internal/invalidation"
)

type popupDel struct {
	kind model.Kind
	id   int64
}

type fakePopups struct {
	failFirst atomic.Bool
	mu        sync.Mutex
	seen      []popupDel
}

func (f *fakePopups) Invalidate(_ context.Context, kind model.Kind, id int64) error {
	f.mu.Lock()
	f.seen = append(f.seen, popupDel{kind, id})
	f.mu.Unlock()
	if f.failFirst.Load() {
		f.failFirst.Store(false)
		return errors.New("boom")
	}
	return nil
}

type fakeSessions struct {
	mu      sync.Mutex
	extents []orb.Bound
	files   []string
}

func (f *fakeSessions) InvalidateExtent(b orb.Bound) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.extents = append(f.extents, b)
	return 1
}

func (f *fakeSessions) InvalidateStatic(file string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files = append(f.files, file)
	return 1
}

type fakeStatic struct{ evicted []string }

func (f *fakeStatic) Evict(name string) bool {
	f.evicted = append(f.evicted, name)
	return true
}

type sess struct {
	ctx    context.Context
	mu     sync.Mutex
	marked []int64
}

func (s *sess) Claims() map[string][]int32 { return nil }
func (s *sess) MemberID() string           { return "" }
func (s *sess) GenerationID() int32        { return 0 }
func (s *sess) MarkMessage(m *sarama.ConsumerMessage, _ string) {
	s.mu.Lock()
	s.marked = append(s.marked, m.Offset)
	s.mu.Unlock()
}
func (s *sess) ResetOffset(_ string, _ int32, _ int64, _ string) {}
func (s *sess) MarkOffset(_ string, _ int32, _ int64, _ string)  {}
func (s *sess) Context() context.Context                         { return s.ctx }
func (s *sess) Errors() <-chan error                             { return nil }
func (s *sess) Commit()                                          {}

type claim struct {
	part int32
	msgs chan *sarama.ConsumerMessage
}

func (c *claim) Topic() string                            { return "botanitours-invalidation" }
func (c *claim) Partition() int32                         { return c.part }
func (c *claim) InitialOffset() int64                     { return 0 }
func (c *claim) HighWaterMarkOffset() int64               { return 0 }
func (c *claim) Messages() <-chan *sarama.ConsumerMessage { return c.msgs }

func eventBytes(ev invalidation.Event) []byte {
	ev.Version = 1
	if ev.Op == "" {
		ev.Op = "update"
	}
	ev.TS = time.Now().UTC()
	b, _ := json.Marshal(ev)
	return b
}

func plantWithBBox() []byte {
	id := int64(42)
	return eventBytes(invalidation.Event{
		Kind: invalidation.KindPlant, ID: &id,
		BBox: &invalidation.BBox{X1: -3.7, Y1: 55.0, X2: -3.5, Y2: 55.1, SRID: "EPSG:4326"},
	})
}

type fixture struct {
	popups   *fakePopups
	sessions *fakeSessions
	static   *fakeStatic
	c        *Consumer
}

func newFixture() *fixture {
	f := &fixture{popups: &fakePopups{}, sessions: &fakeSessions{}, static: &fakeStatic{}}
	cfg := NewConfig("x", "botanitours-invalidation", "g")
	f.c = New(cfg, slog.Default(), Targets{Popups: f.popups, Sessions: f.sessions, Static: f.static})
	return f
}

func TestProcessOne_PlantEventClearsPopupAndExtent(t *testing.T) {
	f := newFixture()
	msg := &sarama.ConsumerMessage{Offset: 1, Value: plantWithBBox()}
	if err := f.c.ProcessOne(context.Background(), msg); err != nil {
		t.Fatalf("ProcessOne: %v", err)
	}
	if len(f.popups.seen) != 1 || f.popups.seen[0] != (popupDel{model.KindPlant, 42}) {
		t.Fatalf("popup deletes = %v", f.popups.seen)
	}
	want := orb.Bound{Min: orb.Point{-3.7, 55.0}, Max: orb.Point{-3.5, 55.1}}
	if len(f.sessions.extents) != 1 || f.sessions.extents[0] != want {
		t.Fatalf("extents = %v", f.sessions.extents)
	}
}

func TestProcessOne_ClusterEventEvictsFile(t *testing.T) {
	f := newFixture()
	msg := &sarama.ConsumerMessage{Value: eventBytes(invalidation.Event{Kind: invalidation.KindCluster, File: "cluster1000.json"})}
	if err := f.c.ProcessOne(context.Background(), msg); err != nil {
		t.Fatalf("ProcessOne: %v", err)
	}
	if len(f.static.evicted) != 1 || f.static.evicted[0] != "cluster1000.json" {
		t.Fatalf("evicted = %v", f.static.evicted)
	}
	if len(f.sessions.files) != 1 || len(f.popups.seen) != 0 {
		t.Fatalf("sessions=%v popups=%v", f.sessions.files, f.popups.seen)
	}
}

func TestProcessOne_PoisonMessagesSkipped(t *testing.T) {
	f := newFixture()
	for _, raw := range [][]byte{
		[]byte(`{not json`),
		eventBytes(invalidation.Event{Kind: "Tree"}),
	} {
		if err := f.c.ProcessOne(context.Background(), &sarama.ConsumerMessage{Value: raw}); err != nil {
			t.Fatalf("poison message should be skipped, got %v", err)
		}
	}
	if len(f.popups.seen)+len(f.sessions.extents)+len(f.static.evicted) != 0 {
		t.Fatalf("nothing should be invalidated")
	}
}

func TestSinglePartition_OrderAndCommitAfterWork(t *testing.T) {
	f := newFixture()
	g := &groupHandler{process: f.c.ProcessOne}
	s := &sess{ctx: t.Context()}
	ch := make(chan *sarama.ConsumerMessage, 2)
	ch <- &sarama.ConsumerMessage{Partition: 0, Offset: 10, Value: plantWithBBox()}
	ch <- &sarama.ConsumerMessage{Partition: 0, Offset: 11, Value: plantWithBBox()}
	close(ch)

	if err := g.ConsumeClaim(s, &claim{part: 0, msgs: ch}); err != nil {
		t.Fatalf("ConsumeClaim: %v", err)
	}
	if len(s.marked) != 2 || s.marked[0] != 10 || s.marked[1] != 11 {
		t.Fatalf("marked offsets=%v want [10 11]", s.marked)
	}
}

func TestRetry_CommitOnceAfterSuccess(t *testing.T) {
	f := newFixture()
	f.popups.failFirst.Store(true)
	ctx := context.Background()

	msg := &sarama.ConsumerMessage{Partition: 0, Offset: 5, Value: plantWithBBox()}
	if err := f.c.ProcessOne(ctx, msg); err == nil {
		t.Fatalf("expected error on first attempt")
	}
	if len(f.sessions.extents) != 0 {
		t.Fatalf("extent must not be cleared before the popup delete succeeds")
	}

	s := &sess{ctx: ctx}
	g := &groupHandler{process: f.c.ProcessOne}
	ch := make(chan *sarama.ConsumerMessage, 1)
	ch <- msg
	close(ch)
	if err := g.ConsumeClaim(s, &claim{part: 0, msgs: ch}); err != nil {
		t.Fatalf("ConsumeClaim second attempt: %v", err)
	}
	if len(s.marked) != 1 || s.marked[0] != 5 {
		t.Fatalf("offset was not marked after success; marked=%v", s.marked)
	}
}

func TestMultiPartition_Parallel(t *testing.T) {
	f := newFixture()
	g := &groupHandler{process: f.c.ProcessOne}
	s := &sess{ctx: t.Context()}

	p0 := make(chan *sarama.ConsumerMessage, 2)
	p1 := make(chan *sarama.ConsumerMessage, 2)
	p0 <- &sarama.ConsumerMessage{Partition: 0, Offset: 1, Value: plantWithBBox()}
	p0 <- &sarama.ConsumerMessage{Partition: 0, Offset: 2, Value: plantWithBBox()}
	p1 <- &sarama.ConsumerMessage{Partition: 1, Offset: 1, Value: plantWithBBox()}
	p1 <- &sarama.ConsumerMessage{Partition: 1, Offset: 2, Value: plantWithBBox()}
	close(p0)
	close(p1)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); _ = g.ConsumeClaim(s, &claim{part: 0, msgs: p0}) }()
	go func() { defer wg.Done(); _ = g.ConsumeClaim(s, &claim{part: 1, msgs: p1}) }()
	wg.Wait()

	if len(s.marked) != 4 {
		t.Fatalf("expected 4 marks total; got %v", s.marked)
	}
}

func TestNewConfig_SplitsBrokers(t *testing.T) {
	cfg := NewConfig(" a:9092, ,b:9092 ", "", "")
	if len(cfg.Brokers) != 2 || cfg.Brokers[1] != "b:9092" {
		t.Fatalf("brokers=%v", cfg.Brokers)
	}
	if cfg.Topic == "" || cfg.GroupID == "" {
		t.Fatalf("defaults missing: %+v", cfg)
	}
}
