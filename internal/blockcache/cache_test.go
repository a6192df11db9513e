package blockcache

import (
	"bytes"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bbtrace/internal/host"
)

func TestNew_RoundsToPowerOfTwo(t *testing.T) {
	assert.Equal(t, DefaultBuckets, New(0).Stats().Buckets)
	assert.Equal(t, 1, New(1).Stats().Buckets)
	assert.Equal(t, 1024, New(1000).Stats().Buckets)
	assert.Equal(t, 1024, New(1024).Stats().Buckets)
}

func TestInsertLookup_ExactContent(t *testing.T) {
	c := New(64)
	want := map[host.Addr]string{}
	for i := range 500 {
		key := host.Addr(0x400000 + i*0x13)
		text := fmt.Sprintf("block %d\nret\n", i)
		require.True(t, c.Insert(key, text))
		want[key] = text
	}
	require.Equal(t, len(want), c.Len())
	for key, text := range want {
		got, ok := c.Lookup(key)
		require.True(t, ok, "key %s", key)
		assert.Equal(t, text, got)
	}
}

func TestLookup_MissWithCollidingKeys(t *testing.T) {
	c := New(16)
	// Same bucket: bits 4..7 equal, low nibble differs.
	require.True(t, c.Insert(0x1000, "a\n"))
	require.True(t, c.Insert(0x1001, "b\n"))
	require.True(t, c.Insert(0x1100, "c\n"))
	require.Equal(t, c.bucketOf(0x1000), c.bucketOf(0x1001))
	require.Equal(t, c.bucketOf(0x1000), c.bucketOf(0x1100))

	_, ok := c.Lookup(0x100f)
	assert.False(t, ok)
	_, ok = c.Lookup(0x2000)
	assert.False(t, ok)

	got, ok := c.Lookup(0x1001)
	require.True(t, ok)
	assert.Equal(t, "b\n", got)
	assert.Equal(t, 3, c.Stats().LongestChain)
}

func TestRange_HeadFirstWithinBucket(t *testing.T) {
	c := New(1)
	c.Insert(0x10, "first\n")
	c.Insert(0x20, "second\n")
	c.Insert(0x30, "third\n")

	var keys []host.Addr
	c.Range(func(key host.Addr, _ string) bool {
		keys = append(keys, key)
		return true
	})
	assert.Equal(t, []host.Addr{0x30, 0x20, 0x10}, keys)
}

func TestInsert_DuplicateFirstWriterWins(t *testing.T) {
	c := New(8)
	require.True(t, c.Insert(0x401000, "mov\n"))
	for range 10 {
		assert.False(t, c.Insert(0x401000, "other\n"))
	}

	got, ok := c.Lookup(0x401000)
	require.True(t, ok)
	assert.Equal(t, "mov\n", got)
	st := c.Stats()
	assert.Equal(t, 1, st.Entries)
	assert.Equal(t, 1, st.LongestChain)
	assert.Equal(t, 10, st.Duplicates)
}

func TestInsert_ConcurrentDistinctKeys(t *testing.T) {
	const (
		workers = 8
		perKey  = 100_000 / workers
	)
	c := New(DefaultBuckets)

	var wg sync.WaitGroup
	for w := range workers {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := range perKey {
				key := host.Addr((w*perKey + i) * 4)
				if !c.Insert(key, fmt.Sprintf("%d\n", uint64(key))) {
					t.Errorf("insert %s reported duplicate", key)
				}
				// Readers run alongside writers.
				c.Lookup(key ^ 0x40)
			}
		}(w)
	}
	wg.Wait()

	require.Equal(t, workers*perKey, c.Len())
	for k := range workers * perKey {
		key := host.Addr(k * 4)
		got, ok := c.Lookup(key)
		require.True(t, ok)
		require.Equal(t, fmt.Sprintf("%d\n", uint64(key)), got)
	}
}

func TestInsert_ConcurrentSameKey(t *testing.T) {
	c := New(32)
	var wg sync.WaitGroup
	wins := make(chan string, 16)
	for i := range 16 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			text := fmt.Sprintf("writer %d\n", i)
			if c.Insert(0xdead0, text) {
				wins <- text
			}
		}(i)
	}
	wg.Wait()
	close(wins)

	var winners []string
	for w := range wins {
		winners = append(winners, w)
	}
	require.Len(t, winners, 1)
	got, ok := c.Lookup(0xdead0)
	require.True(t, ok)
	assert.Equal(t, winners[0], got)
	assert.Equal(t, 1, c.Len())
}

func TestTeardown(t *testing.T) {
	c := New(4)
	c.Insert(0x10, "x\n")
	c.Teardown()

	_, ok := c.Lookup(0x10)
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
	assert.Panics(t, func() { c.Insert(0x20, "y\n") })
	assert.PanicsWithValue(t, "blockcache: teardown called twice", c.Teardown)
}

func TestDump_RoundTrip(t *testing.T) {
	c := New(16)
	c.Insert(0x2000, "jmp 0x3000\n")
	c.Insert(0x1000, "nop\nret\n")

	var buf bytes.Buffer
	require.NoError(t, c.WriteDump(&buf))

	d, err := ReadDump(&buf)
	require.NoError(t, err)
	assert.Equal(t, 16, d.Buckets)
	require.Len(t, d.Blocks, 2)
	assert.Equal(t, DumpBlock{Addr: 0x1000, Text: "nop\nret\n"}, d.Blocks[0])
	assert.Equal(t, DumpBlock{Addr: 0x2000, Text: "jmp 0x3000\n"}, d.Blocks[1])
}

func TestReadDump_RejectsGarbage(t *testing.T) {
	_, err := ReadDump(bytes.NewReader([]byte{0xc1}))
	assert.Error(t, err)
}
