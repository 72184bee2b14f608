// Package memory configures GOMEMLIMIT for containerized runs and provides
// backpressure for the processing passes.
//
// Feature extraction shells out to ffmpeg, libvips and an external embedding
// model, none of which count toward the Go heap. [Configure] therefore
// reserves part of the container limit for them:
//
//	memory.Configure(cfg.MemoryLimit, cfg.MemoryRatio)
//
// An explicit GOMEMLIMIT environment variable takes precedence.
//
// A [Monitor] samples heap usage. Once usage crosses the critical water mark
// the monitor pauses, and [Monitor.Wait] blocks the calling pass before its
// next item until usage falls back under the resume mark:
//
//	mon := memory.NewMonitor(memory.DefaultConfig())
//	mon.Start()
//	defer mon.Stop()
//
//	if err := mon.Wait(ctx); err != nil {
//	    return err
//	}
package memory
