// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package dispatcher

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// installSignalHandlers wires SIGINT/SIGTERM to graceful shutdown, a second
// SIGINT/SIGTERM to the forceful Abort path, and SIGUSR1/SIGUSR2 to
// pause/resume. It returns a stop function that must be called to release
// the underlying signal channel.
func (d *Dispatcher) installSignalHandlers() (stop func()) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR1, syscall.SIGUSR2)

	done := make(chan struct{})
	go func() {
		interrupted := false
		for {
			select {
			case sig, ok := <-sigCh:
				if !ok {
					return
				}
				switch sig {
				case syscall.SIGINT, syscall.SIGTERM:
					if interrupted {
						d.logger.Warn("second interrupt received, aborting outstanding runs")
						d.Abort()
						return
					}
					interrupted = true
					d.logger.Info("interrupt received, shutting down gracefully")
					d.RequestShutdown()
				case syscall.SIGUSR1:
					if err := d.Pause(); err != nil {
						d.logger.Warn("pause via signal failed", slog.Any("error", err))
					} else {
						d.logger.Info("paused via SIGUSR1")
					}
				case syscall.SIGUSR2:
					if err := d.Resume(); err != nil {
						d.logger.Warn("resume via signal failed", slog.Any("error", err))
					} else {
						d.logger.Info("resumed via SIGUSR2")
					}
				}
			case <-done:
				return
			}
		}
	}()

	return func() {
		signal.Stop(sigCh)
		close(done)
	}
}
