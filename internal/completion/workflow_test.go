package completion

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"fieldTasks/internal/blob"
	"fieldTasks/internal/capture"
	"fieldTasks/internal/models/task"
	"fieldTasks/internal/service"
	"fieldTasks/internal/session"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

type geoResult struct {
	coords task.Coordinates
	err    error
}

// scriptedGeo отвечает тем, что тест положил в results
type scriptedGeo struct {
	calls   atomic.Int32
	results chan geoResult
}

func newScriptedGeo() *scriptedGeo {
	return &scriptedGeo{results: make(chan geoResult, 4)}
}

func (g *scriptedGeo) CurrentPosition(ctx context.Context, _ capture.PositionOptions) (task.Coordinates, error) {
	g.calls.Add(1)
	select {
	case r := <-g.results:
		return r.coords, r.err
	case <-ctx.Done():
		return task.Coordinates{}, ctx.Err()
	}
}

// MockSubmitter - мок конвейера отправки
type MockSubmitter struct {
	mock.Mock
}

func (m *MockSubmitter) Submit(ctx context.Context, req service.CompletionRequest) (*service.CompletionResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.CompletionResult), args.Error(1)
}

func photo(t *testing.T, name string) *capture.Photo {
	t.Helper()
	p, err := capture.NewPhoto(name, pngBytes)
	require.NoError(t, err)
	return p
}

func newTestWorkflow(geo capture.Geolocator, sub Submitter) *Workflow {
	staff := session.Principal{UserID: uuid.New(), Role: session.RoleStaff}
	issue := &task.Issue{ID: uuid.New(), Status: task.IssueOpen}
	t := task.New(staff.UserID, "Fix leak", time.Now(), task.WithIssue(issue))
	return NewWorkflow(staff, t, geo, sub)
}

func waitLocation(t *testing.T, w *Workflow) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, w.WaitLocation(ctx))
}

// captureLocation проводит черновик до captured
func captureLocation(t *testing.T, w *Workflow, geo *scriptedGeo, coords task.Coordinates) {
	t.Helper()
	geo.results <- geoResult{coords: coords}
	require.True(t, w.StartLocationCapture())
	waitLocation(t, w)
	require.Equal(t, LocationCaptured, w.Snapshot().LocationStatus)
}

// TestWorkflow_Readiness тестирует готовность к отправке
func TestWorkflow_Readiness(t *testing.T) {
	tests := []struct {
		name      string
		withPhoto bool
		withLoc   bool
		canSubmit bool
		code      string
	}{
		{name: "empty draft", code: service.CodePhotoRequired},
		{name: "photo only", withPhoto: true, code: service.CodeLocationRequired},
		{name: "location only", withLoc: true, code: service.CodePhotoRequired},
		{name: "photo and location", withPhoto: true, withLoc: true, canSubmit: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			geo := newScriptedGeo()
			w := newTestWorkflow(geo, new(MockSubmitter))

			if tt.withLoc {
				captureLocation(t, w, geo, task.Coordinates{Lat: 1, Lng: 2})
			}
			if tt.withPhoto {
				require.NoError(t, w.AttachPhoto(photo(t, "a.png")))
			}

			assert.Equal(t, tt.canSubmit, w.CanSubmit())
			assert.Equal(t, tt.canSubmit, w.Snapshot().CanSubmit)

			err := w.Validate()
			if tt.code == "" {
				assert.NoError(t, err)
			} else {
				assert.True(t, service.HasCode(err, tt.code), "got %v", err)
			}
		})
	}
}

// TestWorkflow_LocationCapture тестирует переходы канала геолокации
func TestWorkflow_LocationCapture(t *testing.T) {
	t.Run("idle issues exactly one request", func(t *testing.T) {
		geo := newScriptedGeo()
		w := newTestWorkflow(geo, new(MockSubmitter))

		assert.True(t, w.StartLocationCapture())
		assert.Equal(t, LocationCapturing, w.Snapshot().LocationStatus)

		// повторный запуск во время получения игнорируется
		assert.False(t, w.StartLocationCapture())
		assert.Equal(t, LocationCapturing, w.Snapshot().LocationStatus)

		geo.results <- geoResult{coords: task.Coordinates{Lat: 19.0760, Lng: 72.8777}}
		waitLocation(t, w)

		snap := w.Snapshot()
		assert.Equal(t, LocationCaptured, snap.LocationStatus)
		assert.Equal(t, &task.Coordinates{Lat: 19.0760, Lng: 72.8777}, snap.Location)
		assert.Equal(t, int32(1), geo.calls.Load())

		// после captured запуск тоже игнорируется
		assert.False(t, w.StartLocationCapture())
		assert.Equal(t, LocationCaptured, w.Snapshot().LocationStatus)
		assert.Equal(t, int32(1), geo.calls.Load())
	})

	t.Run("error allows manual retry", func(t *testing.T) {
		geo := newScriptedGeo()
		w := newTestWorkflow(geo, new(MockSubmitter))

		geo.results <- geoResult{err: capture.ErrDenied}
		require.True(t, w.StartLocationCapture())
		waitLocation(t, w)

		snap := w.Snapshot()
		assert.Equal(t, LocationError, snap.LocationStatus)
		assert.Nil(t, snap.Location)
		assert.NotEmpty(t, snap.LocationError)

		geo.results <- geoResult{coords: task.Coordinates{Lat: 5, Lng: 6}}
		assert.True(t, w.StartLocationCapture())
		waitLocation(t, w)

		assert.Equal(t, LocationCaptured, w.Snapshot().LocationStatus)
		assert.Equal(t, int32(2), geo.calls.Load())
	})

	t.Run("capability absent - error immediately", func(t *testing.T) {
		w := newTestWorkflow(nil, new(MockSubmitter))

		assert.False(t, w.StartLocationCapture())

		snap := w.Snapshot()
		assert.Equal(t, LocationError, snap.LocationStatus)
		assert.Equal(t, capture.ErrUnsupported.Error(), snap.LocationError)

		// ничего не ожидается
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		assert.NoError(t, w.WaitLocation(ctx))
	})

	t.Run("timeout moves to error", func(t *testing.T) {
		geo := capture.NewDeviceGeolocator()
		staff := session.Principal{UserID: uuid.New(), Role: session.RoleStaff}
		w := NewWorkflow(staff, task.New(staff.UserID, "x", time.Now()), geo, new(MockSubmitter),
			WithPositionOptions(capture.PositionOptions{HighAccuracy: true, Timeout: 20 * time.Millisecond}))

		require.True(t, w.StartLocationCapture())
		waitLocation(t, w)

		snap := w.Snapshot()
		assert.Equal(t, LocationError, snap.LocationStatus)
		assert.Equal(t, capture.ErrTimeout.Error(), snap.LocationError)
	})

	t.Run("device report completes pending request", func(t *testing.T) {
		geo := capture.NewDeviceGeolocator()
		w := newTestWorkflow(geo, new(MockSubmitter))

		assert.ErrorIs(t, w.ReportPosition(task.Coordinates{Lat: 1, Lng: 1}), capture.ErrNoPendingRequest)

		require.True(t, w.StartLocationCapture())
		require.NoError(t, w.ReportPosition(task.Coordinates{Lat: 19.0760, Lng: 72.8777}))
		waitLocation(t, w)

		assert.Equal(t, LocationCaptured, w.Snapshot().LocationStatus)
	})

	t.Run("device failure report", func(t *testing.T) {
		geo := capture.NewDeviceGeolocator()
		w := newTestWorkflow(geo, new(MockSubmitter))

		require.True(t, w.StartLocationCapture())
		require.NoError(t, w.ReportFailure(errors.New("user denied geolocation")))
		waitLocation(t, w)

		snap := w.Snapshot()
		assert.Equal(t, LocationError, snap.LocationStatus)
		assert.Equal(t, "user denied geolocation", snap.LocationError)
	})
}

// TestWorkflow_Photo тестирует выбор фото и автозапуск геолокации
func TestWorkflow_Photo(t *testing.T) {
	t.Run("photo starts capture when idle", func(t *testing.T) {
		geo := newScriptedGeo()
		w := newTestWorkflow(geo, new(MockSubmitter))

		require.NoError(t, w.AttachPhoto(photo(t, "a.png")))

		snap := w.Snapshot()
		assert.True(t, snap.HasPhoto)
		assert.Equal(t, LocationCapturing, snap.LocationStatus)

		geo.results <- geoResult{coords: task.Coordinates{Lat: 1, Lng: 2}}
		waitLocation(t, w)
		assert.Equal(t, int32(1), geo.calls.Load())
	})

	t.Run("photo does not restart capture from error", func(t *testing.T) {
		geo := newScriptedGeo()
		w := newTestWorkflow(geo, new(MockSubmitter))

		geo.results <- geoResult{err: capture.ErrDenied}
		require.True(t, w.StartLocationCapture())
		waitLocation(t, w)

		require.NoError(t, w.AttachPhoto(photo(t, "a.png")))
		assert.Equal(t, LocationError, w.Snapshot().LocationStatus)
		assert.Equal(t, int32(1), geo.calls.Load())
	})

	t.Run("reselect replaces photo and keeps location", func(t *testing.T) {
		geo := newScriptedGeo()
		w := newTestWorkflow(geo, new(MockSubmitter))

		geo.results <- geoResult{coords: task.Coordinates{Lat: 19.0760, Lng: 72.8777}}
		require.NoError(t, w.AttachPhoto(photo(t, "first.png")))
		waitLocation(t, w)

		require.NoError(t, w.AttachPhoto(photo(t, "second.png")))

		snap := w.Snapshot()
		assert.Equal(t, "second.png", snap.PhotoName)
		assert.Equal(t, LocationCaptured, snap.LocationStatus)
		assert.Equal(t, &task.Coordinates{Lat: 19.0760, Lng: 72.8777}, snap.Location)
		assert.Equal(t, int32(1), geo.calls.Load())
	})

	t.Run("cancelled selection keeps draft", func(t *testing.T) {
		geo := newScriptedGeo()
		w := newTestWorkflow(geo, new(MockSubmitter))

		err := w.SelectPhoto(context.Background(), capture.PickerFunc(func(context.Context) (*capture.Photo, error) {
			return nil, capture.ErrCancelled
		}))

		assert.NoError(t, err)
		snap := w.Snapshot()
		assert.False(t, snap.HasPhoto)
		assert.Equal(t, LocationIdle, snap.LocationStatus)
	})

	t.Run("oversized selection", func(t *testing.T) {
		w := newTestWorkflow(newScriptedGeo(), new(MockSubmitter))

		err := w.SelectPhoto(context.Background(), capture.PickerFunc(func(context.Context) (*capture.Photo, error) {
			return nil, capture.ErrTooLarge
		}))

		assert.True(t, service.HasCode(err, service.CodePhotoTooLarge))
		assert.Equal(t, "Photo is too large. Please choose a smaller image.", service.UserMessage(err))
		assert.False(t, w.Snapshot().HasPhoto)
	})

	t.Run("non-image selection is a validation error", func(t *testing.T) {
		w := newTestWorkflow(newScriptedGeo(), new(MockSubmitter))

		err := w.SelectPhoto(context.Background(), capture.PickerFunc(func(context.Context) (*capture.Photo, error) {
			return capture.NewPhoto("a.txt", []byte("text"))
		}))

		assert.True(t, service.HasCode(err, service.CodeValidation))
		assert.False(t, w.Snapshot().HasPhoto)
	})
}

func readyWorkflow(t *testing.T, sub Submitter) *Workflow {
	t.Helper()
	geo := newScriptedGeo()
	w := newTestWorkflow(geo, sub)
	geo.results <- geoResult{coords: task.Coordinates{Lat: 19.0760, Lng: 72.8777}}
	require.NoError(t, w.AttachPhoto(photo(t, "a.png")))
	waitLocation(t, w)
	require.NoError(t, w.SetNote("done"))
	require.True(t, w.CanSubmit())
	return w
}

// TestWorkflow_Submit тестирует отправку черновика
func TestWorkflow_Submit(t *testing.T) {
	ctx := context.Background()

	t.Run("location missing - precondition error, nothing sent", func(t *testing.T) {
		sub := new(MockSubmitter)
		w := newTestWorkflow(nil, sub)
		require.NoError(t, w.AttachPhoto(photo(t, "a.png")))

		_, err := w.Submit(ctx)

		assert.True(t, service.HasCode(err, service.CodeLocationRequired))
		assert.Contains(t, service.UserMessage(err), "GPS location is required")
		sub.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything)
	})

	t.Run("failure preserves draft, retry succeeds and clears it", func(t *testing.T) {
		sub := new(MockSubmitter)
		w := readyWorkflow(t, sub)

		sub.On("Submit", mock.Anything, mock.MatchedBy(func(r service.CompletionRequest) bool {
			return r.Photo != nil && r.Location != nil && r.Note == "done" && r.IssueID != nil && !r.LocatedAt.IsZero()
		})).Return(nil, service.NewUploadFailed(errors.New("transport error"))).Once()

		_, err := w.Submit(ctx)
		assert.True(t, service.HasCode(err, service.CodeUploadFailed))

		snap := w.Snapshot()
		assert.True(t, snap.HasPhoto)
		assert.NotNil(t, snap.Location)
		assert.True(t, snap.CanSubmit)
		assert.False(t, snap.Submitting)
		assert.False(t, w.Finished())

		sub.On("Submit", mock.Anything, mock.Anything).
			Return(&service.CompletionResult{TaskID: w.TaskID()}, nil).Once()

		result, err := w.Submit(ctx)
		require.NoError(t, err)
		assert.Equal(t, w.TaskID(), result.TaskID)

		snap = w.Snapshot()
		assert.False(t, snap.HasPhoto)
		assert.Nil(t, snap.Location)
		assert.Empty(t, snap.Note)
		assert.True(t, w.Finished())
		sub.AssertExpectations(t)
	})

	t.Run("second submit while in flight is rejected", func(t *testing.T) {
		sub := new(MockSubmitter)
		w := readyWorkflow(t, sub)

		entered := make(chan struct{})
		release := make(chan struct{})
		sub.On("Submit", mock.Anything, mock.Anything).
			Run(func(mock.Arguments) {
				close(entered)
				<-release
			}).
			Return(&service.CompletionResult{}, nil).Once()

		done := make(chan error, 1)
		go func() {
			_, err := w.Submit(ctx)
			done <- err
		}()

		<-entered
		assert.True(t, w.Snapshot().Submitting)
		_, err := w.Submit(ctx)
		assert.True(t, service.HasCode(err, service.CodeSubmitInProgress))

		// черновик во время отправки не меняется
		assert.True(t, service.HasCode(w.AttachPhoto(photo(t, "late.png")), service.CodeSubmitInProgress))
		assert.True(t, service.HasCode(w.SetNote("edited"), service.CodeSubmitInProgress))
		assert.Equal(t, "done", w.Snapshot().Note)

		close(release)
		require.NoError(t, <-done)
		sub.AssertExpectations(t)
	})

	t.Run("finished draft cannot be submitted again", func(t *testing.T) {
		sub := new(MockSubmitter)
		w := readyWorkflow(t, sub)
		sub.On("Submit", mock.Anything, mock.Anything).Return(&service.CompletionResult{}, nil).Once()

		_, err := w.Submit(ctx)
		require.NoError(t, err)

		_, err = w.Submit(ctx)
		assert.True(t, service.HasCode(err, service.CodeAlreadyCompleted))
		sub.AssertExpectations(t)
	})
}

// fakeStore - хранилище задач и заявок для сквозного сценария
type fakeStore struct {
	tasks     map[uuid.UUID]*task.Task
	issueErr  error
	issueCall int
}

func (f *fakeStore) HealthCheck(context.Context) error { return nil }

func (f *fakeStore) GetByID(_ context.Context, id uuid.UUID) (*task.Task, error) {
	return f.tasks[id], nil
}

func (f *fakeStore) ListForStaff(context.Context, uuid.UUID, time.Time, time.Time) ([]*task.Task, error) {
	return nil, nil
}

func (f *fakeStore) Complete(_ context.Context, id uuid.UUID, c task.Completion) error {
	t := f.tasks[id]
	t.Status = task.StatusCompleted
	t.Completion = &c
	return nil
}

func (f *fakeStore) UpdateIssueStatus(context.Context, uuid.UUID, task.IssueStatus) error {
	f.issueCall++
	return f.issueErr
}

type memBlobs struct{ uploads int }

func (b *memBlobs) Upload(context.Context, string, []byte, blob.UploadOptions) error {
	b.uploads++
	return nil
}

func (b *memBlobs) PublicURL(name string) (string, error) {
	return "https://cdn.example/completion-photos/" + name, nil
}

// TestWorkflow_IssueFailureScenario: фото есть, точка (19.0760, 72.8777), заявка не обновилась
func TestWorkflow_IssueFailureScenario(t *testing.T) {
	staff := session.Principal{UserID: uuid.New(), Role: session.RoleStaff}
	issue := &task.Issue{ID: uuid.New(), Status: task.IssueOpen}
	tk := task.New(staff.UserID, "Fix leak", time.Now(), task.WithIssue(issue))

	store := &fakeStore{tasks: map[uuid.UUID]*task.Task{tk.ID: tk}, issueErr: errors.New("rls violation")}
	blobs := &memBlobs{}
	pipeline := service.NewCompletionService(store, store, blobs)

	geo := newScriptedGeo()
	w := NewWorkflow(staff, tk, geo, pipeline)
	geo.results <- geoResult{coords: task.Coordinates{Lat: 19.0760, Lng: 72.8777}}
	require.NoError(t, w.AttachPhoto(photo(t, "a.png")))
	waitLocation(t, w)

	result, err := w.Submit(context.Background())

	require.NoError(t, err)
	assert.Error(t, result.IssueErr)
	assert.Equal(t, task.StatusCompleted, tk.Status)
	require.NotNil(t, tk.Completion)
	assert.Equal(t, task.Coordinates{Lat: 19.0760, Lng: 72.8777}, tk.Completion.Location)
	assert.NotEmpty(t, tk.Completion.PhotoURL)
	assert.False(t, tk.Completion.CompletedAt.IsZero())
	assert.Equal(t, task.IssueOpen, issue.Status)
	assert.Equal(t, 1, store.issueCall)
	assert.Equal(t, 1, blobs.uploads)
	assert.True(t, w.Finished())
	assert.False(t, w.Snapshot().HasPhoto)
}
