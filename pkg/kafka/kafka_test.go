package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (w *memWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *memWriter) Close() error { return nil }

func (w *memWriter) written() []kafka.Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]kafka.Message(nil), w.msgs...)
}

type chanReader struct {
	ch        chan kafka.Message
	mu        sync.Mutex
	committed []int64
}

func (r *chanReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case m := <-r.ch:
		return m, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (r *chanReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *chanReader) Close() error { return nil }

func (r *chanReader) offsets() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

type funcHandler struct {
	topic string
	fn    func([]byte) error
}

func (h funcHandler) Topic() string                            { return h.topic }
func (h funcHandler) Handle(_ context.Context, b []byte) error { return h.fn(b) }

func TestProducerPublishBatch(t *testing.T) {
	w := &memWriter{}
	p := NewProducerWithWriter(w)

	err := p.PublishBatch(context.Background(), "obs", []Message{
		{Key: []byte("selic"), Value: map[string]float64{"valor": 10.5}},
		{Key: []byte("ipca"), Value: "raw", Headers: map[string]string{"source": "bcb"}},
	})
	require.NoError(t, err)

	msgs := w.written()
	require.Len(t, msgs, 2)
	assert.Equal(t, "obs", msgs[0].Topic)
	assert.JSONEq(t, `{"valor":10.5}`, string(msgs[0].Value))
	assert.Equal(t, "raw", string(msgs[1].Value))
	require.Len(t, msgs[1].Headers, 1)
	assert.Equal(t, "source", msgs[1].Headers[0].Key)

	require.NoError(t, p.PublishBatch(context.Background(), "obs", nil))

	w.err = errors.New("broker down")
	assert.Error(t, p.Publish(context.Background(), "obs", nil, "x"))
}

func TestProducerRequiresBrokers(t *testing.T) {
	_, err := NewProducer()
	assert.Error(t, err)
}

func newTestConsumer(t *testing.T, r *chanReader, dlq *memWriter, opts ...ConsumerOption) *Consumer {
	t.Helper()
	base := []ConsumerOption{
		WithConsumerBrokers([]string{"localhost:9092"}),
		WithReaderFactory(func(*ConsumerConfig, string) Reader { return r }),
		WithConsumerRetry(1, time.Millisecond, 2*time.Millisecond),
	}
	if dlq != nil {
		base = append(base, WithConsumerDLQ("dlq"), WithDLQWriter(dlq))
	}
	c, err := NewConsumer(append(base, opts...)...)
	require.NoError(t, err)
	return c
}

func TestConsumerHandlesAndCommits(t *testing.T) {
	r := &chanReader{ch: make(chan kafka.Message, 4)}
	c := newTestConsumer(t, r, nil, WithConsumerWorkers(2))

	var mu sync.Mutex
	var got []string
	c.RegisterHandler(funcHandler{topic: "obs", fn: func(b []byte) error {
		var v struct{ Indicator string }
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		mu.Lock()
		got = append(got, v.Indicator)
		mu.Unlock()
		return nil
	}})
	require.NoError(t, c.Start())

	r.ch <- kafka.Message{Topic: "obs", Offset: 1, Key: []byte("selic"), Value: []byte(`{"Indicator":"selic"}`)}
	r.ch <- kafka.Message{Topic: "obs", Offset: 2, Key: []byte("ipca"), Value: []byte(`{"Indicator":"ipca"}`)}

	require.Eventually(t, func() bool { return len(r.offsets()) == 2 }, 2*time.Second, 5*time.Millisecond)
	mu.Lock()
	assert.ElementsMatch(t, []string{"selic", "ipca"}, got)
	mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.Stop(ctx))
}

func TestConsumerDeadLettersAfterRetries(t *testing.T) {
	r := &chanReader{ch: make(chan kafka.Message, 1)}
	dlq := &memWriter{}
	c := newTestConsumer(t, r, dlq)

	attempts := 0
	c.RegisterHandler(funcHandler{topic: "obs", fn: func([]byte) error {
		attempts++
		return errors.New("store unavailable")
	}})
	require.NoError(t, c.Start())

	r.ch <- kafka.Message{Topic: "obs", Offset: 7, Key: []byte("cambio"), Value: []byte(`{}`)}

	require.Eventually(t, func() bool { return len(r.offsets()) == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 2, attempts, "one try plus one retry")

	msgs := dlq.written()
	require.Len(t, msgs, 1)
	assert.Equal(t, "dlq", msgs[0].Topic)
	assert.Equal(t, "cambio", string(msgs[0].Key))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.Stop(ctx))
}

func TestConsumerWithoutDLQDoesNotCommitFailures(t *testing.T) {
	r := &chanReader{ch: make(chan kafka.Message, 1)}
	c := newTestConsumer(t, r, nil)

	done := make(chan struct{}, 4)
	c.RegisterHandler(funcHandler{topic: "obs", fn: func([]byte) error {
		done <- struct{}{}
		return errors.New("boom")
	}})
	require.NoError(t, c.Start())

	r.ch <- kafka.Message{Topic: "obs", Offset: 3, Key: []byte("pib")}
	<-done
	<-done

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.Stop(ctx))
	assert.Empty(t, r.offsets())
}

func TestHookChain(t *testing.T) {
	var order []string
	mk := func(name string) ConsumerHook {
		return HookFuncs{
			Before: func(ctx context.Context, _ string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
				order = append(order, "before:"+name)
				return ctx, km, append(data, name...), nil
			},
			After: func(context.Context, string, kafka.Message, []byte, error) {
				order = append(order, "after:"+name)
			},
		}
	}
	chain := NewHookChain(mk("a"), nil, mk("b"))

	_, _, data, err := chain.BeforeHandle(context.Background(), "t", kafka.Message{}, []byte(">"))
	require.NoError(t, err)
	assert.Equal(t, ">ab", string(data))

	chain.AfterHandle(context.Background(), "t", kafka.Message{}, data, nil)
	assert.Equal(t, []string{"before:a", "before:b", "after:b", "after:a"}, order)
}

func TestHookChainRecoversPanics(t *testing.T) {
	panicky := HookFuncs{
		Before: func(context.Context, string, kafka.Message, []byte) (context.Context, kafka.Message, []byte, error) {
			panic("bad hook")
		},
		After: func(context.Context, string, kafka.Message, []byte, error) { panic("again") },
	}
	chain := NewHookChain(panicky)

	_, _, _, err := chain.BeforeHandle(context.Background(), "t", kafka.Message{}, nil)
	var he *HookError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, "ERR_PANIC", he.Code)

	assert.NotPanics(t, func() { chain.AfterHandle(context.Background(), "t", kafka.Message{}, nil, nil) })
}

func TestRequireKeyHook(t *testing.T) {
	h := RequireKeyHook()
	_, _, _, err := h.BeforeHandle(context.Background(), "t", kafka.Message{Offset: 4}, nil)
	var he *HookError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, "ERR_VALIDATION", he.Code)

	_, _, _, err = h.BeforeHandle(context.Background(), "t", kafka.Message{Key: []byte("selic")}, nil)
	assert.NoError(t, err)
}

func TestBackoffWithJitter(t *testing.T) {
	for attempt := 1; attempt <= 10; attempt++ {
		d := backoffWithJitter(10*time.Millisecond, 80*time.Millisecond, attempt)
		assert.Greater(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, 80*time.Millisecond)
	}
}
