package ticketnumber

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// counterSource mimics a store that reads MAX(seq)+1 under a lock.
type counterSource struct {
	mu   sync.Mutex
	used map[string][]int
}

func newCounterSource() *counterSource {
	return &counterSource{used: make(map[string][]int)}
}

func (s *counterSource) NextSequence(_ context.Context, dayPrefix string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := len(s.used[dayPrefix]) + 1
	s.used[dayPrefix] = append(s.used[dayPrefix], next)
	return next, nil
}

func TestGenerate_Format(t *testing.T) {
	gen := NewGenerator(time.UTC)
	src := newCounterSource()
	now := time.Date(2025, 11, 12, 15, 4, 5, 0, time.UTC)

	first, err := gen.Generate(context.Background(), now, src)
	require.NoError(t, err)
	second, err := gen.Generate(context.Background(), now, src)
	require.NoError(t, err)

	assert.Equal(t, "TKT-20251112-0001", first)
	assert.Equal(t, "TKT-20251112-0002", second)
}

func TestGenerate_DayRolloverResetsSequence(t *testing.T) {
	gen := NewGenerator(time.UTC)
	src := newCounterSource()
	day := time.Date(2025, 11, 12, 23, 59, 59, 0, time.UTC)

	_, err := gen.Generate(context.Background(), day, src)
	require.NoError(t, err)
	late, err := gen.Generate(context.Background(), day, src)
	require.NoError(t, err)
	next, err := gen.Generate(context.Background(), day.Add(time.Second), src)
	require.NoError(t, err)

	assert.Equal(t, "TKT-20251112-0002", late)
	assert.Equal(t, "TKT-20251113-0001", next)
}

func TestGenerate_UsesConfiguredLocation(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*60*60)
	gen := NewGenerator(loc)
	now := time.Date(2025, 11, 13, 2, 0, 0, 0, time.UTC)

	assert.Equal(t, "TKT-20251112", gen.DayPrefix(now))
	assert.Equal(t, "TKT-20251113", NewGenerator(nil).DayPrefix(now))
}

func TestGenerate_WidensPastFourDigits(t *testing.T) {
	gen := NewGenerator(time.UTC)
	src := SequenceFunc(func(context.Context, string) (int, error) { return 10000, nil })

	number, err := gen.Generate(context.Background(), time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC), src)
	require.NoError(t, err)
	assert.Equal(t, "TKT-20250102-10000", number)
}

func TestGenerate_SourceError(t *testing.T) {
	boom := errors.New("boom")
	src := SequenceFunc(func(context.Context, string) (int, error) { return 0, boom })

	_, err := NewGenerator(nil).Generate(context.Background(), time.Now(), src)
	assert.ErrorIs(t, err, boom)
}

func TestAssign_KeepsPresetNumber(t *testing.T) {
	gen := NewGenerator(time.UTC)
	called := false
	src := SequenceFunc(func(context.Context, string) (int, error) {
		called = true
		return 1, nil
	})
	ticket := &domain.Ticket{TicketNumber: "TKT-20240101-0042"}

	require.NoError(t, gen.Assign(context.Background(), ticket, time.Now(), src))

	assert.Equal(t, "TKT-20240101-0042", ticket.TicketNumber)
	assert.False(t, called)
}

func TestGenerate_ConcurrentCreationIsUniqueAndIncreasing(t *testing.T) {
	gen := NewGenerator(time.UTC)
	src := newCounterSource()
	now := time.Date(2025, 11, 12, 10, 0, 0, 0, time.UTC)

	const n = 64
	numbers := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			number, err := gen.Generate(context.Background(), now, src)
			assert.NoError(t, err)
			numbers[i] = number
		}(i)
	}
	wg.Wait()

	seen := make(map[string]struct{}, n)
	seqs := make([]int, 0, n)
	for _, number := range numbers {
		_, dup := seen[number]
		require.Falsef(t, dup, "duplicate ticket number %s", number)
		seen[number] = struct{}{}
		seq, ok := SequenceOf(number, "TKT-20251112")
		require.True(t, ok)
		seqs = append(seqs, seq)
	}
	sort.Ints(seqs)
	for i, seq := range seqs {
		assert.Equal(t, i+1, seq)
	}
	// allocation order equals sequence order
	assert.Equal(t, seqs, src.used["TKT-20251112"])
}

func TestParse(t *testing.T) {
	day, seq, err := Parse("TKT-20251112-0007")
	require.NoError(t, err)
	assert.Equal(t, "TKT-20251112", day)
	assert.Equal(t, 7, seq)

	for _, bad := range []string{"", "TKT-", "TCK-20251112-0001", "TKT-2025111-0001", "TKT-20251112-01", "TKT-20251112-abcd", "TKT-20251340-0001", "TKT-20251112-0000"} {
		_, _, err := Parse(bad)
		assert.ErrorIsf(t, err, domain.ErrValidation, "input %q", bad)
	}
}
