// Package quadrature implements a two channel encoder that counts every edge of either channel.
//
// On each edge both channel levels are read and the position moves by +1 when they match and -1
// when they differ. This is not a full 4x quadrature decode: a steady rotation in one direction
// alternates between matching and differing levels, so a complete quadrature cycle nets zero.
// Only signals whose channels change together, or a single channel toggling with the other held,
// produce a net count.
package quadrature

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.viam.com/utils"
	"golang.org/x/time/rate"

	"go.viam.com/speedctl/components/board"
	"go.viam.com/speedctl/components/encoder"
	"go.viam.com/speedctl/logging"
)

var _ = encoder.Encoder(&Encoder{})

// Pins describes the configuration of Pins for a quadrature encoder.
type Pins struct {
	A string `json:"a"`
	B string `json:"b"`
}

// Config describes the configuration of a quadrature encoder.
type Config struct {
	Pins Pins `json:"pins"`
}

// Validate ensures all parts of the config are valid.
func (config *Config) Validate(path string) error {
	if config.Pins.A == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "pins.a")
	}
	if config.Pins.B == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "pins.b")
	}
	if config.Pins.A == config.Pins.B {
		return errors.Errorf("encoder channels must be distinct, both are %q", config.Pins.A)
	}
	return nil
}

// Step is the position change for one edge given both channel levels.
func Step(a, b bool) int64 {
	if a == b {
		return 1
	}
	return -1
}

// Encoder keeps track of a motor position from edges on two digital interrupts.
type Encoder struct {
	A, B board.DigitalInterrupt

	// position is the only state shared with the loop; it is written solely by HandleEdge.
	position atomic.Int64

	logger         logging.Logger
	readErrLimiter *rate.Limiter

	cancelCtx               context.Context
	cancelFunc              func()
	activeBackgroundWorkers sync.WaitGroup
}

// NewEncoder resolves the encoder channels on the board and starts consuming their edges.
func NewEncoder(ctx context.Context, b board.Board, conf Config, logger logging.Logger) (*Encoder, error) {
	if b == nil {
		return nil, errors.New("quadrature encoder requires a board")
	}
	if err := conf.Validate("encoder"); err != nil {
		return nil, err
	}

	a, err := b.DigitalInterruptByName(conf.Pins.A)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot find pin (%s) for quadrature encoder", conf.Pins.A)
	}
	bi, err := b.DigitalInterruptByName(conf.Pins.B)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot find pin (%s) for quadrature encoder", conf.Pins.B)
	}

	cancelCtx, cancelFunc := context.WithCancel(context.Background())
	e := &Encoder{
		A:              a,
		B:              bi,
		logger:         logger,
		readErrLimiter: rate.NewLimiter(rate.Every(time.Second), 1),
		cancelCtx:      cancelCtx,
		cancelFunc:     cancelFunc,
	}

	ticks := make(chan board.Tick)
	if err := b.StreamTicks(cancelCtx, []board.DigitalInterrupt{a, bi}, ticks); err != nil {
		cancelFunc()
		return nil, errors.Wrap(err, "failed to stream encoder edges")
	}
	e.start(ticks)
	return e, nil
}

func (e *Encoder) start(ticks <-chan board.Tick) {
	e.activeBackgroundWorkers.Add(1)
	utils.ManagedGo(func() {
		for {
			select {
			case <-e.cancelCtx.Done():
				return
			case <-ticks:
			}
			e.handleTick(e.cancelCtx)
		}
	}, e.activeBackgroundWorkers.Done)
}

// handleTick reads both levels as they are now, not as they were at the edge.
func (e *Encoder) handleTick(ctx context.Context) {
	a, err := e.A.Value(ctx)
	if err != nil {
		e.dropEdge(err)
		return
	}
	b, err := e.B.Value(ctx)
	if err != nil {
		e.dropEdge(err)
		return
	}
	e.HandleEdge(a, b)
}

func (e *Encoder) dropEdge(err error) {
	if e.readErrLimiter.Allow() {
		e.logger.Warnw("dropping encoder edge, failed to read channel level", "error", err)
	}
}

// HandleEdge applies one edge with the observed channel levels.
func (e *Encoder) HandleEdge(a, b bool) {
	e.position.Add(Step(a, b))
}

// Position returns the current position in counts.
func (e *Encoder) Position(ctx context.Context) (int64, error) {
	return e.position.Load(), nil
}

// ResetPosition sets the current position to zero.
func (e *Encoder) ResetPosition(ctx context.Context) error {
	e.position.Store(0)
	return nil
}

// Close shuts down the Encoder.
func (e *Encoder) Close(ctx context.Context) error {
	e.logger.Debug("closing quadrature encoder")
	e.cancelFunc()
	e.activeBackgroundWorkers.Wait()
	return nil
}
