package service

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-lynx/vectorium/log"
)

type recordingLogger struct {
	NullLogger
	lines []string
}

func (r *recordingLogger) Log(_ log.Level, msg string) { r.lines = append(r.lines, msg) }

type clock interface{ Now() int64 }

type fixedClock int64

func (f fixedClock) Now() int64 { return int64(f) }

func TestContainerRegisterLookupUnregister(t *testing.T) {
	c := NewContainer()
	l := &recordingLogger{}

	assert.False(t, c.Has(reflect.TypeFor[Logger]()))
	Register[Logger](c, l)
	require.True(t, c.Has(reflect.TypeFor[Logger]()))

	got, ok := c.Lookup(reflect.TypeFor[Logger]())
	require.True(t, ok)
	assert.Same(t, l, got)

	// registration overwrites
	l2 := &recordingLogger{}
	Register[Logger](c, l2)
	got, _ = c.Lookup(reflect.TypeFor[Logger]())
	assert.Same(t, l2, got)

	assert.True(t, Unregister[Logger](c))
	assert.False(t, Unregister[Logger](c), "second unregister reports nothing removed")
	assert.Empty(t, c.Types())
}

func TestContainerClearAndTypes(t *testing.T) {
	c := NewContainer()
	Register[Logger](c, NullLogger{})
	Register[clock](c, fixedClock(1))
	assert.Len(t, c.Types(), 2)
	c.Clear()
	assert.Empty(t, c.Types())
}

func TestResolveWithNullObjectFallback(t *testing.T) {
	c := NewContainer()

	p := Resolve[Logger](c)
	assert.False(t, p.Available())
	assert.True(t, p.HasFallback())
	assert.NotPanics(t, func() {
		p.Get().Log(log.InfoLevel, "dropped")
		p.Get().EnableDebugLogging()
	})

	rp := Resolve[RestClient](c)
	assert.False(t, rp.Available())
	_, err := rp.Get().Get(context.Background(), "/x", nil)
	var restErr *RestError
	require.True(t, errors.As(err, &restErr))
	assert.Equal(t, ServiceNotAvailable, restErr.Message)
}

func TestResolveWithoutNullObjectFailsLoudly(t *testing.T) {
	c := NewContainer()

	p := Resolve[clock](c)
	assert.False(t, p.Available())
	assert.False(t, p.HasFallback())
	_, ok := p.TryGet()
	assert.False(t, ok)

	defer func() {
		r := recover()
		require.NotNil(t, r, "Get on an unavailable service without a null object must panic")
		err, isErr := r.(error)
		require.True(t, isErr)
		assert.ErrorIs(t, err, ErrServiceUnavailable)
	}()
	p.Get().Now()
}

func TestUIServiceHasNoNullObject(t *testing.T) {
	assert.False(t, HasNull(reflect.TypeFor[UI]()))
	assert.True(t, HasNull(reflect.TypeFor[Logger]()))
}

func TestResolveLiveInstance(t *testing.T) {
	c := NewContainer()
	Register[clock](c, fixedClock(42))
	p := Resolve[clock](c)
	require.True(t, p.Available())
	assert.Equal(t, int64(42), p.Get().Now())
}

func TestNewProxyWrongTypeIsUnavailable(t *testing.T) {
	p := NewProxy[clock]("not a clock", true)
	assert.False(t, p.Available())
}

func TestContainerConcurrentAccess(t *testing.T) {
	c := NewContainer()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				Register[clock](c, fixedClock(i))
				Unregister[clock](c)
			}
		}(i)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				_ = Resolve[clock](c).Available()
			}
		}()
	}
	wg.Wait()
}

type versionedClock struct {
	fixedClock
	v string
}

func (v versionedClock) ServiceVersion() string { return v.v }

func TestIDSatisfies(t *testing.T) {
	id := IDFor[clock]("clock", "", true)
	assert.Equal(t, DefaultMinVersion, id.MinVersion)

	ok, err := id.Satisfies(fixedClock(0))
	require.NoError(t, err)
	assert.True(t, ok, "unversioned services always satisfy")

	ok, err = id.Satisfies(versionedClock{v: "1.4.2"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = id.Satisfies(versionedClock{v: "0.9.0"})
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = IDFor[clock]("clock", "not a constraint", true).Satisfies(versionedClock{v: "1.0.0"})
	assert.Error(t, err)
}
