// Package services implements [Client], the HTTP client for the multiverse generation backend.
//
// # Endpoints
//
// Generation requests are multipart/form-data (POST /api/upload, /api/create and the
// roll endpoint, "/api/roll" or "/api/roll/test"). Everything else is JSON: credits,
// album management, purchases, user bootstrap and telemetry.
//
// # Result images
//
// [Client.FetchResultAsset] performs exactly one request. The backend answers with the
// image bytes once rendering is finished and with {"ready": false, "status": ...} until
// then, so callers poll. Retrying is the caller's job; see the tasks package.
//
// # Error Handling
//
// Errors wrap sentinels from the shared package:
//   - [shared.ErrAPIRequest] : non-2xx status, carried by [*ServerError]
//   - [shared.ErrImageNotReady] : result not rendered yet, carried by [*NotReadyError]
//   - [shared.ErrMalformedResponse] : body missing required fields or an unexpected content type
//   - [shared.ErrInsufficientCredits] : use_credits refused the spend
//
// Only FetchResultAsset and FetchCredits are safe to retry; every other call mutates state.
//
// # Rate limiting
//
// All requests share one [rate.Limiter] so a grid of slot workers cannot flood the backend.
package services
