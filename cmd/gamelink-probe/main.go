/*
 * Copyright 2025 SREDiag Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// gamelink-probe attaches to a running emulator, follows the link state and serves health
// probes and metrics. It is the headless counterpart of the companion window.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/srediag/gamelink/adapter"
	"github.com/srediag/gamelink/pkg/gamelink"
	"github.com/srediag/gamelink/pkg/health"
	"github.com/srediag/gamelink/pkg/lifecycle"
)

type options struct {
	mapping     string
	mutex       string
	tick        time.Duration
	report      time.Duration
	admin       string
	send        string
	volume      int
	dump        bool
	lenient     bool
	noTakeOver  bool
	noReconnect bool
	sampleEvery int
	staleAfter  int
	logLevel    int
}

func parseFlags() *options {
	o := &options{}
	flag.StringVar(&o.mapping, "mapping", gamelink.DefaultMappingName, "shared memory name")
	flag.StringVar(&o.mutex, "mutex", gamelink.DefaultMutexName, "mutex name")
	flag.DurationVar(&o.tick, "tick", time.Second/60, "poll interval")
	flag.DurationVar(&o.report, "report", 5*time.Second, "status report interval, 0 disables")
	flag.StringVar(&o.admin, "admin", "127.0.0.1:9464", "address of /live, /ready and /metrics, empty disables")
	flag.StringVar(&o.send, "send", "", "command queued for the producer on the first attach, e.g. :pause")
	flag.IntVar(&o.volume, "volume", -1, "main and Mockingboard volume set once attached, -1 leaves it")
	flag.BoolVar(&o.dump, "dump", false, "print the region header and exit")
	flag.BoolVar(&o.lenient, "lenient", false, "attach to a region with another protocol version")
	flag.BoolVar(&o.noTakeOver, "no-takeover", false, "leave the emulator window rendering")
	flag.BoolVar(&o.noReconnect, "no-reconnect", false, "keep a stale link attached")
	flag.IntVar(&o.sampleEvery, "sample-every", health.DefaultTrackerConfig().SampleEvery, "ticks between heartbeat samples")
	flag.IntVar(&o.staleAfter, "stale-after", health.DefaultTrackerConfig().StaleAfter, "unchanged samples before the link is stale")
	flag.IntVar(&o.logLevel, "log-level", gamelink.LevelInfo, "0 trace, 1 debug, 2 info, 3 warn, 4 error, 5 silent")
	flag.Parse()
	return o
}

func main() {
	o := parseFlags()
	gamelink.SetLogLevel(o.logLevel)
	logger := gamelink.NewLogger("probe", os.Stderr)

	if o.dump {
		if err := gamelink.DebugRegionDetail(os.Stdout, o.mapping); err != nil {
			logger.Errorf("dump %s: %v", o.mapping, err)
			os.Exit(1)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, o, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, o *options, logger *gamelink.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	config := gamelink.DefaultConfig()
	config.MappingName = o.mapping
	config.MutexName = o.mutex
	config.StrictVersion = !o.lenient
	config.TakeOverVideo = !o.noTakeOver
	config.Registerer = reg
	config.LogOutput = os.Stderr
	client, err := gamelink.NewClient(config)
	if err != nil {
		return err
	}
	defer client.Close()

	dispatcher, err := gamelink.NewDispatcher(2)
	if err != nil {
		return err
	}
	defer dispatcher.Close()

	// settings applied once per attachment, from the poll goroutine
	attached := make(chan struct{}, 1)
	dispatcher.Subscribe("log", func(ev gamelink.Event) {
		if ev.Err != nil {
			logger.Debugf("#%d %s: %v", ev.Serial, ev.Type, ev.Err)
			return
		}
		logger.Infof("#%d %s seq=%d", ev.Serial, ev.Type, ev.Sequence)
	})
	dispatcher.Subscribe("attach", func(ev gamelink.Event) {
		if ev.Type == gamelink.EventAttached {
			select {
			case attached <- struct{}{}:
			default:
			}
		}
	})

	wdConfig := lifecycle.DefaultConfig()
	wdConfig.Tracker = health.TrackerConfig{SampleEvery: o.sampleEvery, StaleAfter: o.staleAfter}
	wdConfig.ReconnectOnStale = !o.noReconnect
	wdConfig.Dispatcher = dispatcher
	wdConfig.LogOutput = os.Stderr
	watchdog, err := lifecycle.NewWatchdog(client, wdConfig)
	if err != nil {
		return err
	}

	if o.admin != "" {
		srv := adapter.NewAdminServer(o.admin, adapter.NewHealthHandler(watchdog, reg, "gamelink"), reg)
		if err := srv.Start(); err != nil {
			return err
		}
		logger.Infof("admin endpoints on http://%s", srv.Addr())
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_ = srv.Shutdown(sctx)
		}()
	}

	outbox := gamelink.NewCommandOutbox(client, 0)
	defer outbox.Dispose()
	settings := &attachSettings{send: o.send, volume: o.volume, logger: logger}

	ticker := time.NewTicker(o.tick)
	defer ticker.Stop()
	lastReport := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-attached:
			settings.apply(client, outbox)
		case <-ticker.C:
			watchdog.Poll(ctx)
			if !client.IsActive() {
				continue
			}
			if _, err := outbox.Flush(); err != nil {
				logger.Warnf("send: %v", err)
			}
			if msg, ok := client.ReceiveMessage(); ok {
				logger.Infof("producer says %q", msg)
			}
			if o.report > 0 && time.Since(lastReport) >= o.report {
				lastReport = time.Now()
				logger.Infof("%s", describe(client, watchdog.Status()))
			}
		}
	}
}

// producer is the part of *gamelink.Client an attachment touches.
type producer interface {
	IsActive() bool
	SystemName() string
	ProgramName() string
	Version() uint8
	SetSoundVolume(main, mockingboard int) error
}

// attachSettings applies the command line settings on attach. The volume is reapplied
// to every attachment, the -send command is queued only for the first one.
type attachSettings struct {
	send   string
	volume int
	logger *gamelink.Logger
	queued bool
}

func (a *attachSettings) apply(p producer, outbox *gamelink.CommandOutbox) {
	if !p.IsActive() {
		return
	}
	a.logger.Infof("attached: system %q program %q version %d", p.SystemName(), p.ProgramName(), p.Version())
	if a.send != "" && !a.queued {
		a.queued = true
		if err := outbox.Enqueue(a.send); err != nil {
			a.logger.Warnf("queue %q: %v", a.send, err)
		}
	}
	if a.volume >= 0 {
		if err := p.SetSoundVolume(a.volume, a.volume); err != nil {
			a.logger.Warnf("set volume: %v", err)
		}
	}
}

func describe(client *gamelink.Client, st lifecycle.Status) string {
	info := client.FrameBufferInfo()
	s := fmt.Sprintf("%s seq=%d frame=%dx%d par=%d:%d flags=%#02x volume=%d/%d",
		st.State, info.Sequence, info.Width, info.Height, info.ParX, info.ParY,
		uint8(client.Flags()), client.SoundVolumeMain(), client.SoundVolumeMockingboard())
	if pc, ok := client.ProgramCounter(); ok {
		s += fmt.Sprintf(" pc=%04X", pc)
	}
	return s
}
