package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memPublisher struct {
	mu     sync.Mutex
	events []Event
	err    error
	block  chan struct{}
}

func (p *memPublisher) Publish(ctx context.Context, ev Event) error {
	if p.block != nil {
		select {
		case <-p.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *memPublisher) got() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Event(nil), p.events...)
}

func TestHubDeliversToEveryPublisher(t *testing.T) {
	ok := &memPublisher{}
	broken := &memPublisher{err: errors.New("down")}
	h := NewHub(8, broken, ok)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = h.Run(ctx)
		close(done)
	}()

	h.Emit(Event{Name: OrderCreated, OrderID: 1, Audiences: []Audience{Cook}})
	h.Emit(Event{Name: OrderUpdated, OrderID: 1, Status: "ready", Audiences: []Audience{Customer(7)}})

	require.Eventually(t, func() bool { return len(ok.got()) == 2 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	events := ok.got()
	assert.Equal(t, OrderCreated, events[0].Name)
	assert.Equal(t, "ready", events[1].Status)
	assert.False(t, events[0].At.IsZero())

	st := h.Stats()
	assert.Equal(t, int64(2), st.Emitted)
	assert.Equal(t, int64(2), st.Delivered)
	assert.Equal(t, int64(2), st.Failed)
	assert.Equal(t, int64(0), st.Dropped)
}

func TestHubEmitNeverBlocks(t *testing.T) {
	// 没有 Run 在消费，队列满后直接丢弃
	h := NewHub(2)
	start := time.Now()
	for i := 0; i < 10; i++ {
		h.Emit(Event{Name: NoticeBanner, Message: "x"})
	}
	assert.Less(t, time.Since(start), time.Second)

	st := h.Stats()
	assert.Equal(t, int64(2), st.Emitted)
	assert.Equal(t, int64(8), st.Dropped)
}

func TestHubSlowPublisherTimesOut(t *testing.T) {
	slow := &memPublisher{block: make(chan struct{})}
	h := NewHub(4, slow)
	h.timeout = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = h.Run(ctx) }()

	h.Emit(Event{Name: OrderCreated})
	require.Eventually(t, func() bool { return h.Stats().Failed == 1 }, time.Second, 5*time.Millisecond)
	assert.Empty(t, slow.got())
}

func TestAudienceRooms(t *testing.T) {
	assert.Equal(t, "customer:42", Customer(42).Room())
	assert.Equal(t, "cook", Cook.Room())
	assert.Equal(t, "admin", Admin.Room())
	assert.Equal(t, "all", All.Room())

	a, ok := ParseAudience("STUDENT")
	assert.True(t, ok)
	assert.Equal(t, "student", a.Room())
	a, ok = ParseAudience("CUSTOMER:17")
	assert.True(t, ok)
	assert.Equal(t, Customer(17), a)
	for _, bad := range []string{"nobody", "CUSTOMER:", "CUSTOMER:x", "CUSTOMER:-1"} {
		_, ok = ParseAudience(bad)
		assert.False(t, ok, bad)
	}

	assert.Equal(t, []string{"all", "customer:3", "cook"}, RoomsFor("COOK", 3))
	assert.Equal(t, []string{"all", "customer:5", "student"}, RoomsFor("STUDENT", 5))
	assert.Equal(t, []string{"all", "customer:8", "admin"}, RoomsFor("ADMIN", 8))
	assert.Equal(t, "order:new", WireName(OrderCreated))
	assert.Equal(t, "custom", WireName("custom"))
}
