package handlers

import "github.com/go-chi/chi/v5"

// TaskRoutes монтирует маршруты задач и черновиков; аутентификация навешивается снаружи
func TaskRoutes(r chi.Router, tasks *TaskHandler, completions *CompletionHandler) {
	r.Get("/", tasks.ListTasks) // GET /tasks?scope=today|upcoming

	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", tasks.GetTaskByID) // GET /tasks/{id}

		r.Route("/draft", func(r chi.Router) {
			r.Get("/", completions.GetDraft)                         // GET /tasks/{id}/draft
			r.Post("/photo", completions.UploadPhoto)                // POST /tasks/{id}/draft/photo
			r.Post("/location", completions.ReportLocation)          // POST /tasks/{id}/draft/location
			r.Post("/location/capture", completions.CaptureLocation) // POST /tasks/{id}/draft/location/capture
			r.Put("/note", completions.SetNote)                      // PUT /tasks/{id}/draft/note
		})

		r.Post("/complete", completions.Complete) // POST /tasks/{id}/complete
	})
}
