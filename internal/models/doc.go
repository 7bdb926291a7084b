// Package models defines the domain entities shared by the multiverse client.
//
// The package contains two categories of types:
//
// 1. Wire entities: decoded from backend responses and persisted as-is
//   - [GenerationJob] : a submitted request and its themed result images
//   - [ThemeResult] : one themed variation, addressed by its result image id
//   - [AlbumTheme] : a theme saved to the user's album
//
// 2. Client state: owned by the client, never sent to the backend
//   - [GenerationInputs] : what the user asked for, replayed on re-roll
//   - [SlotState] : the transient view of one grid cell
//   - [SlotPhase] : the lifecycle of a grid cell
//
// # Slot resolution
//
// A grid of N slots consumes the images of a job in order. Slot n (1-based) reads
// Images[(n-1) mod len(Images)], so grids larger than the job wrap around. See [ResolveIndex].
package models
