// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"spectro/cmd"
	"spectro/internal/audio"
	"spectro/internal/config"
	"spectro/internal/log"
	"spectro/internal/pipeline"
	"spectro/internal/transport"
	"spectro/internal/transport/udp"
)

// main runs in three phases:
//
// 1. Startup (cold): initialize the audio backend, parse configuration,
// handle one-off commands.
//
// 2. Capture (hot): the pipeline coordinator pulls buffers from the
// device, analyzes them, and publishes snapshots; transports fan the
// snapshots out.
//
// 3. Shutdown (cold): on SIGINT/SIGTERM stop transports, pipeline, and
// recording in reverse start order.
func main() {
	backend := audio.NewPortAudioBackend()
	if err := backend.Initialize(); err != nil {
		fmt.Fprintf(os.Stderr, "audio backend init failed: %v\n", err)
		os.Exit(1)
	}
	defer backend.Terminate()

	cfg, err := cmd.ParseArgs()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	if cfg == nil {
		// Help or usage output already printed.
		return
	}

	if level, ok := log.ParseLevel(cfg.LogLevel); ok {
		log.SetLevel(level)
	}

	if cfg.Command == "list" {
		if err := audio.PrintDevices(backend); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
		return
	}

	store, err := config.NewStore(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	var recorder *audio.Recorder
	if cfg.Record {
		recorder = audio.NewRecorder()
		if err := recorder.Start(cfg.OutputFile, int(cfg.SampleRate)); err != nil {
			fmt.Fprintf(os.Stderr, "recording start failed: %v\n", err)
			os.Exit(1)
		}
	}

	coordinator := pipeline.NewCoordinator(backend, store, recorder)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	coordinator.Start(ctx)

	var transports []transport.Transport
	if cfg.WebSocketAddr != "" {
		transports = append(transports, transport.NewWebSocketBroadcaster(cfg.WebSocketAddr))
	}
	if cfg.UDPTargetAddress != "" {
		sender, err := udp.NewSender(cfg.UDPTargetAddress)
		if err != nil {
			log.Errorf("Main: UDP transport disabled: %v", err)
		} else {
			transports = append(transports, udp.NewSnapshotSender(sender))
		}
	}

	var publisher *transport.Publisher
	if len(transports) > 0 {
		publisher = transport.NewPublisher(coordinator, cfg.UDPSendInterval, transports...)
		publisher.Start(ctx)
	}

	log.Infof("Main: spectro running, Ctrl+C to stop")

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)
	<-done

	log.Infof("Main: shutting down")
	if publisher != nil {
		publisher.Stop()
	}
	coordinator.Stop()

	if recorder != nil && recorder.Active() {
		if err := recorder.Stop(); err != nil {
			log.Errorf("Main: stopping recording failed: %v", err)
		} else {
			fmt.Printf("Recording saved to: %s\n", cfg.OutputFile)
		}
	}
}
