// Package service contains the application use cases of the recognition
// job service: accepting audio for recognition and reporting job state.
//
// The service layer orchestrates the job store, the job queue and the
// fetcher (all received through constructor injection) and translates
// their failures into the sentinel errors the API layer maps to HTTP
// responses.
//
// Key components:
//
// 1. JobService:
//   - SubmitJob resolves the audio source, records a pending job and only
//     then publishes its ID to the queue
//   - GetJob is a pure read of the job record
//   - Stats reports per-status counts and queue depth for health checks
//
// 2. Error Handling:
//   - Expected conditions are sentinels (ErrInputValidation, ErrFetch,
//     ErrJobNotFound) checked with errors.Is
//   - Everything else is wrapped in JobServiceError with the failing operation
//
// The service layer depends on domain entities and store interfaces, never
// on a specific backend.
package service
