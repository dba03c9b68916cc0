package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grc/pkg/platform/audit/store/postgres"
)

type fakeOutbox struct {
	entries   []postgres.Entry
	published []string
}

func (f *fakeOutbox) Pending(_ context.Context, limit int) ([]postgres.Entry, error) {
	var out []postgres.Entry
	done := map[string]bool{}
	for _, id := range f.published {
		done[id] = true
	}
	for _, e := range f.entries {
		if !done[e.ID] && len(out) < limit {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeOutbox) MarkPublished(_ context.Context, ids []string, _ time.Time) error {
	f.published = append(f.published, ids...)
	return nil
}

type fakeProducer struct {
	keys   []string
	failAt int
}

func (f *fakeProducer) Publish(_ context.Context, _ string, key, _ []byte) error {
	if f.failAt > 0 && len(f.keys)+1 == f.failAt {
		return errors.New("broker unavailable")
	}
	f.keys = append(f.keys, string(key))
	return nil
}

func TestRelayOnce(t *testing.T) {
	outbox := &fakeOutbox{entries: []postgres.Entry{
		{ID: "a", AggregateType: "Control", AggregateID: "1"},
		{ID: "b", AggregateType: "Control", AggregateID: "1"},
		{ID: "c", AggregateType: "Audit", AggregateID: "2"},
	}}

	t.Run("stops at the first failure and keeps order", func(t *testing.T) {
		producer := &fakeProducer{failAt: 2}
		n, err := NewRelay(outbox, producer, "grc.audit").RelayOnce(context.Background())
		require.Error(t, err)
		assert.Equal(t, 1, n)
		assert.Equal(t, []string{"a"}, outbox.published)
	})

	t.Run("resumes with the remaining entries", func(t *testing.T) {
		producer := &fakeProducer{}
		n, err := NewRelay(outbox, producer, "grc.audit", WithBatchSize(10)).RelayOnce(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		assert.Equal(t, []string{"Control:1", "Audit:2"}, producer.keys)
		assert.Equal(t, []string{"a", "b", "c"}, outbox.published)
	})
}
