// Package tasks orchestrates generation jobs and the per-slot image pipeline.
//
// # Core Operations
//
// [GenerationEngine] runs the two user actions:
//
//  1. [GenerationEngine.Discover] : new job from an image and/or a description
//     - Preprocesses the image (see package imaging)
//     - Clears the response store, then submits (or uploads and rolls)
//     - Saves the job with its inputs and source image
//
//  2. [GenerationEngine.Reroll] : fresh themes for the current source image
//     - Checks the balance, spends the re-roll cost
//     - Rolls with the saved description and album mode
//     - Saves the new job with the same inputs
//
// # Slots
//
// A [SlotController] resolves slot n to image (n-1) mod k of the current job, serves it
// from the image cache when possible, and otherwise polls through [Poller] until the
// backend reports it ready. A [Grid] runs one controller per cell.
//
// Job swaps go through [Grid.Reload]: every slot is cancelled and has exited before the
// cache is cleared and the new job saved, so no fetch for the previous job can write to
// the cache afterwards. Waiting slots are woken by [JobSignal].
//
// # Progress Reporting
//
// Engine operations accept an optional channel of [ProgressUpdate]. Updates use select
// with default so reporting never blocks.
package tasks
