package kafka

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetWriterConcurrentSameTopic(t *testing.T) {
	p := NewProducer(ProducerConfig{Brokers: []string{"localhost:9092"}})

	const goroutines = 16
	writers := make([]interface{}, goroutines)

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			writers[i] = p.getWriter("hermes.invocation.events")
		}(i)
	}
	wg.Wait()

	for i := 1; i < goroutines; i++ {
		assert.Same(t, writers[0], writers[i])
	}
}

func TestGetWriterPerTopic(t *testing.T) {
	p := NewProducer(ProducerConfig{Brokers: []string{"localhost:9092"}})

	events := p.getWriter("hermes.invocation.events")
	audit := p.getWriter("hermes.audit")

	require.NotSame(t, events, audit)
	assert.Equal(t, "hermes.invocation.events", events.Topic)
	assert.Same(t, events, p.getWriter("hermes.invocation.events"))
}
