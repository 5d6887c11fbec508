package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetGet(t *testing.T) {
	c, err := New(1<<20, time.Minute)
	require.NoError(t, err)
	defer c.Close()

	_, ok := c.Get("a")
	assert.False(t, ok)

	require.True(t, c.Set("a", []byte("<svg/>")))
	c.Wait()

	got, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, "<svg/>", string(got))

	c.Del("a")
	_, ok = c.Get("a")
	assert.False(t, ok)
}

func TestExpires(t *testing.T) {
	c, err := New(1<<20, 10*time.Millisecond)
	require.NoError(t, err)
	defer c.Close()

	c.Set("a", []byte("x"))
	c.Wait()
	time.Sleep(50 * time.Millisecond)

	_, ok := c.Get("a")
	assert.False(t, ok)
}
