package quadrature

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/test"
	"go.viam.com/utils/testutils"
	"golang.org/x/time/rate"

	"go.viam.com/speedctl/components/board"
	fakeboard "go.viam.com/speedctl/components/board/fake"
	"go.viam.com/speedctl/logging"
	"go.viam.com/speedctl/testutils/inject"
)

func makeBoard(t *testing.T) *fakeboard.Board {
	t.Helper()
	b, err := fakeboard.NewBoard(fakeboard.Config{
		DigitalInterrupts: []board.DigitalInterruptConfig{
			{Name: "a", Pin: "18"},
			{Name: "b", Pin: "19"},
		},
	})
	test.That(t, err, test.ShouldBeNil)
	return b
}

func TestStep(t *testing.T) {
	test.That(t, Step(false, false), test.ShouldEqual, int64(1))
	test.That(t, Step(true, true), test.ShouldEqual, int64(1))
	test.That(t, Step(true, false), test.ShouldEqual, int64(-1))
	test.That(t, Step(false, true), test.ShouldEqual, int64(-1))
}

func TestConfig(t *testing.T) {
	ctx := context.Background()
	logger := logging.NewTestLogger(t)
	b := makeBoard(t)
	defer b.Close(ctx)

	t.Run("missing pins", func(t *testing.T) {
		conf := Config{}
		err := conf.Validate("encoder")
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, `"pins.a" is required`)

		conf.Pins.A = "a"
		err = conf.Validate("encoder")
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, `"pins.b" is required`)

		conf.Pins.B = "a"
		test.That(t, conf.Validate("encoder"), test.ShouldNotBeNil)
	})

	t.Run("unknown pin", func(t *testing.T) {
		_, err := NewEncoder(ctx, b, Config{Pins: Pins{A: "a", B: "z"}}, logger)
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, "cannot find pin (z)")
	})

	t.Run("no board", func(t *testing.T) {
		_, err := NewEncoder(ctx, nil, Config{Pins: Pins{A: "a", B: "b"}}, logger)
		test.That(t, err, test.ShouldNotBeNil)
	})

	t.Run("valid config", func(t *testing.T) {
		enc, err := NewEncoder(ctx, b, Config{Pins: Pins{A: "a", B: "b"}}, logger)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, enc.Close(ctx), test.ShouldBeNil)
	})
}

func TestMatchingThenMismatchedEdges(t *testing.T) {
	e := &Encoder{}
	for i := 0; i < 100; i++ {
		e.HandleEdge(i%2 == 0, i%2 == 0)
	}
	for i := 0; i < 50; i++ {
		e.HandleEdge(i%2 == 0, i%2 != 0)
	}
	pos, err := e.Position(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pos, test.ShouldEqual, int64(50))
}

func TestPositionIsSumOfSteps(t *testing.T) {
	//nolint:gosec
	r := rand.New(rand.NewSource(7))
	e := &Encoder{}
	var expected int64
	for i := 0; i < 10000; i++ {
		a, b := r.Intn(2) == 0, r.Intn(2) == 0
		expected += Step(a, b)
		e.HandleEdge(a, b)
	}
	pos, err := e.Position(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pos, test.ShouldEqual, expected)
}

func TestFullQuadratureCycleNetsZero(t *testing.T) {
	e := &Encoder{}
	// A leads B: 00 -> 10 -> 11 -> 01 -> 00, one channel changes per edge.
	for _, levels := range [][2]bool{{true, false}, {true, true}, {false, true}, {false, false}} {
		e.HandleEdge(levels[0], levels[1])
	}
	pos, err := e.Position(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pos, test.ShouldEqual, int64(0))
}

func TestPositionWraps(t *testing.T) {
	e := &Encoder{}
	e.position.Store(math.MaxInt64)
	e.HandleEdge(true, true)
	pos, err := e.Position(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pos, test.ShouldEqual, int64(math.MinInt64))

	e.HandleEdge(true, false)
	pos, err = e.Position(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pos, test.ShouldEqual, int64(math.MaxInt64))
}

func TestConcurrentEdgesAndReads(t *testing.T) {
	e := &Encoder{}
	ctx := context.Background()
	var wg sync.WaitGroup
	const producers = 4
	const edges = 1000
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < edges; i++ {
				e.HandleEdge(true, true)
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		var last int64
		for i := 0; i < edges; i++ {
			pos, err := e.Position(ctx)
			if err != nil || pos < last {
				t.Errorf("position went backwards: %d < %d", pos, last)
				return
			}
			last = pos
		}
	}()
	wg.Wait()

	pos, err := e.Position(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pos, test.ShouldEqual, int64(producers*edges))
}

func TestStreamedEdges(t *testing.T) {
	ctx := context.Background()
	b := makeBoard(t)
	defer b.Close(ctx)

	enc, err := NewEncoder(ctx, b, Config{Pins: Pins{A: "a", B: "b"}}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	defer enc.Close(ctx)

	test.That(t, b.SetLevels(map[string]bool{"a": true, "b": true}), test.ShouldBeNil)
	for i := 0; i < 100; i++ {
		test.That(t, b.Digitals["a"].Tick(ctx, true, uint64(i)), test.ShouldBeNil)
	}
	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		pos, err := enc.Position(ctx)
		test.That(tb, err, test.ShouldBeNil)
		test.That(tb, pos, test.ShouldEqual, int64(100))
	})

	for i := 0; i < 50; i++ {
		test.That(t, b.Digitals["b"].Tick(ctx, false, uint64(100+i)), test.ShouldBeNil)
	}
	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		pos, err := enc.Position(ctx)
		test.That(tb, err, test.ShouldBeNil)
		test.That(tb, pos, test.ShouldEqual, int64(50))
	})

	test.That(t, enc.ResetPosition(ctx), test.ShouldBeNil)
	pos, err := enc.Position(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pos, test.ShouldEqual, int64(0))
}

func TestCloseUnblocksSenders(t *testing.T) {
	ctx := context.Background()
	b := makeBoard(t)
	defer b.Close(ctx)

	enc, err := NewEncoder(ctx, b, Config{Pins: Pins{A: "a", B: "b"}}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, enc.Close(ctx), test.ShouldBeNil)

	// Nobody is reading anymore; a tick must not block forever.
	test.That(t, b.Digitals["a"].Tick(ctx, true, 1), test.ShouldBeNil)
}

func TestDroppedEdgeOnReadError(t *testing.T) {
	ctx := context.Background()
	logger, logs := logging.NewObservedTestLogger(t)
	a := &inject.DigitalInterrupt{ValueFunc: func(ctx context.Context) (bool, error) {
		return true, nil
	}}
	b := &inject.DigitalInterrupt{ValueFunc: func(ctx context.Context) (bool, error) {
		return false, errors.New("line closed")
	}}
	e := &Encoder{A: a, B: b, logger: logger, readErrLimiter: rate.NewLimiter(rate.Every(time.Hour), 1)}

	for i := 0; i < 5; i++ {
		e.handleTick(ctx)
	}
	pos, err := e.Position(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pos, test.ShouldEqual, int64(0))
	test.That(t, a.ValueCap(), test.ShouldResemble, []interface{}{ctx})
	test.That(t, logs.FilterMessageSnippet("dropping encoder edge").Len(), test.ShouldEqual, 1)
}

func TestStreamTicksFailure(t *testing.T) {
	ctx := context.Background()
	fb := makeBoard(t)
	defer fb.Close(ctx)
	b := &inject.Board{
		Board: fb,
		StreamTicksFunc: func(ctx context.Context, interrupts []board.DigitalInterrupt, ch chan board.Tick) error {
			return errors.New("no event support")
		},
	}
	_, err := NewEncoder(ctx, b, Config{Pins: Pins{A: "a", B: "b"}}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "no event support")
}
