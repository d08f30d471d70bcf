package site

import (
	"context"
	gosync "sync"
	"time"

	"github.com/matheus3301/wppilot/internal/page"
	"go.uber.org/zap"
)

// ObserverConfig controls change detection scheduling.
type ObserverConfig struct {
	Debounce  time.Duration
	Heartbeat time.Duration
}

// DefaultObserverConfig returns the standard scheduling windows.
func DefaultObserverConfig() ObserverConfig {
	return ObserverConfig{Debounce: 200 * time.Millisecond, Heartbeat: 2 * time.Second}
}

// Observe re-evaluates signature whenever the page reports activity and calls
// onChange when the signature differs from the previous one. Mutation bursts
// are debounced; visibility, focus, hash and navigation events re-check
// immediately; a heartbeat re-checks regardless. The first signature is the
// baseline and is not reported.
func Observe(w page.Watcher, cfg ObserverConfig, signature func(context.Context) string, onChange func(reason string), logger *zap.Logger) (dispose func()) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultObserverConfig().Debounce
	}
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = DefaultObserverConfig().Heartbeat
	}

	ctx, cancel := context.WithCancel(context.Background())
	triggers := make(chan string, 1)
	fire := func(reason string) {
		select {
		case triggers <- reason:
		default:
		}
	}

	var (
		mu      gosync.Mutex
		timer   *time.Timer
		pending string
	)
	notify := func(reason string) {
		if ctx.Err() != nil {
			return
		}
		if page.Immediate(reason) {
			fire(reason)
			return
		}
		mu.Lock()
		defer mu.Unlock()
		pending = reason
		if timer != nil {
			timer.Reset(cfg.Debounce)
			return
		}
		timer = time.AfterFunc(cfg.Debounce, func() {
			mu.Lock()
			r := pending
			mu.Unlock()
			fire(r)
		})
	}

	stopWatch, err := w.Watch(notify)
	if err != nil {
		logger.Warn("page watch unavailable, relying on heartbeat", zap.Error(err))
		stopWatch = func() {}
	}

	go func() {
		ticker := time.NewTicker(cfg.Heartbeat)
		defer ticker.Stop()

		last := signature(ctx)
		for {
			var reason string
			select {
			case <-ctx.Done():
				return
			case reason = <-triggers:
			case <-ticker.C:
				reason = page.ReasonHeartbeat
			}
			if ctx.Err() != nil {
				return
			}
			sig := signature(ctx)
			if sig == last {
				continue
			}
			last = sig
			if ctx.Err() != nil {
				return
			}
			onChange(reason)
		}
	}()

	var once gosync.Once
	return func() {
		once.Do(func() {
			cancel()
			stopWatch()
			mu.Lock()
			if timer != nil {
				timer.Stop()
			}
			mu.Unlock()
		})
	}
}
