package capture

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"fieldTasks/internal/models/task"
)

var (
	ErrUnsupported      = errors.New("геолокация недоступна на устройстве")
	ErrDenied           = errors.New("доступ к геолокации запрещён")
	ErrTimeout          = errors.New("истекло время ожидания геолокации")
	ErrNoPendingRequest = errors.New("нет ожидающего запроса геолокации")
	ErrInvalidPosition  = errors.New("некорректные координаты")
)

// DefaultLocationTimeout - ожидание одной точки с устройства
const DefaultLocationTimeout = 15 * time.Second

type PositionOptions struct {
	HighAccuracy bool
	Timeout      time.Duration
	// MaximumAge 0 - закешированные точки не принимаются
	MaximumAge time.Duration
}

func DefaultPositionOptions() PositionOptions {
	return PositionOptions{
		HighAccuracy: true,
		Timeout:      DefaultLocationTimeout,
		MaximumAge:   0,
	}
}

type Geolocator interface {
	CurrentPosition(ctx context.Context, opts PositionOptions) (task.Coordinates, error)
}

type GeolocatorFunc func(ctx context.Context, opts PositionOptions) (task.Coordinates, error)

func (f GeolocatorFunc) CurrentPosition(ctx context.Context, opts PositionOptions) (task.Coordinates, error) {
	return f(ctx, opts)
}

// Preparer вызывается синхронно перед запуском запроса
type Preparer interface {
	Prepare()
}

func ValidatePosition(c task.Coordinates) error {
	if math.IsNaN(c.Lat) || math.IsInf(c.Lat, 0) || math.IsNaN(c.Lng) || math.IsInf(c.Lng, 0) {
		return fmt.Errorf("(%v, %v): %w", c.Lat, c.Lng, ErrInvalidPosition)
	}
	return nil
}

type fix struct {
	coords task.Coordinates
	err    error
}

// DeviceGeolocator ждёт, пока устройство пришлёт точку по ожидающему запросу.
// Отчёт без запроса отклоняется, поэтому устаревшие точки не используются.
type DeviceGeolocator struct {
	mu      sync.Mutex
	pending chan fix
}

func NewDeviceGeolocator() *DeviceGeolocator {
	return &DeviceGeolocator{}
}

func (g *DeviceGeolocator) Prepare() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pending = make(chan fix, 1)
}

func (g *DeviceGeolocator) CurrentPosition(ctx context.Context, opts PositionOptions) (task.Coordinates, error) {
	g.mu.Lock()
	if g.pending == nil {
		g.pending = make(chan fix, 1)
	}
	ch := g.pending
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		if g.pending == ch {
			g.pending = nil
		}
		g.mu.Unlock()
	}()

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	select {
	case f := <-ch:
		return f.coords, f.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return task.Coordinates{}, ErrTimeout
		}
		return task.Coordinates{}, ctx.Err()
	}
}

func (g *DeviceGeolocator) Deliver(coords task.Coordinates) error {
	if err := ValidatePosition(coords); err != nil {
		return err
	}
	return g.send(fix{coords: coords})
}

func (g *DeviceGeolocator) Fail(err error) error {
	if err == nil {
		err = ErrDenied
	}
	return g.send(fix{err: err})
}

func (g *DeviceGeolocator) send(f fix) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.pending == nil {
		return ErrNoPendingRequest
	}
	select {
	case g.pending <- f:
		return nil
	default:
		// ответ по этому запросу уже есть
		return ErrNoPendingRequest
	}
}
