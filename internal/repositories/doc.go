// Package repositories implements persistence for the current generation job and device settings.
//
// Key Implementations:
//   - [ResponseRepository] : SQLite key-value store plus a job_history table (default backend)
//   - [RedisResponseStore] : the same contract on Redis, for sharing state between processes
//   - [MemoryResponseStore] : process-local store for ephemeral runs and tests
//   - [SettingsRepository] : user identity and the album mode toggle
//
// All response stores hold at most one current job. Save replaces the job and its inputs
// together and appends the job to a bounded history, newest first. Clear drops the job,
// inputs and source image but keeps history.
package repositories
