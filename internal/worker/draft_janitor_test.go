package worker_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"fieldTasks/internal/worker"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockSweeper - мок реестра черновиков
type MockSweeper struct {
	mock.Mock
}

func (m *MockSweeper) Sweep(idle time.Duration) int {
	return m.Called(idle).Int(0)
}

func (m *MockSweeper) Len() int {
	return m.Called().Int(0)
}

// TestDraftJanitor_Check тестирует одну проверку
func TestDraftJanitor_Check(t *testing.T) {
	sweeper := new(MockSweeper)
	sweeper.On("Sweep", 30*time.Minute).Return(3).Once()
	sweeper.On("Len").Return(1).Once()

	ttl := 30 * time.Minute
	janitor := worker.NewDraftJanitor(sweeper, nil, &ttl)

	assert.Equal(t, 3, janitor.Check(context.Background()))
	sweeper.AssertExpectations(t)
}

// countingSweeper считает вызовы без ожиданий мока
type countingSweeper struct {
	calls atomic.Int32
}

func (c *countingSweeper) Sweep(time.Duration) int {
	c.calls.Add(1)
	return 0
}

func (c *countingSweeper) Len() int { return 0 }

// TestDraftJanitor_Start тестирует работу по тикеру и остановку по контексту
func TestDraftJanitor_Start(t *testing.T) {
	sweeper := &countingSweeper{}
	interval := 10 * time.Millisecond
	janitor := worker.NewDraftJanitor(sweeper, &interval, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		janitor.Start(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return sweeper.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop")
	}
}
