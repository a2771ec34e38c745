/* Copyright (c) 2019 Gregor Riepl
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 */

// Command rtspd wires the configuration, logger, RTSP listeners and jitter
// buffers together into a runnable daemon. It terminates every request with
// a bare 200 OK: the RTSP method state machine (DESCRIBE/SETUP/PLAY
// semantics) is a non-goal of the media core this binary demonstrates, so
// its handler only shows the accept -> decode -> reply -> interleave path
// that the rtsp and rtp packages implement.
package main

import (
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/onitake/rtspmedia/configuration"
	"github.com/onitake/rtspmedia/health"
	"github.com/onitake/rtspmedia/jitter"
	"github.com/onitake/rtspmedia/rtsp"
	"github.com/onitake/rtspmedia/util"
)

const (
	moduleMain = "main"

	eventMainConfig    = "config"
	eventMainListener  = "listener"
	eventMainMetrics   = "metrics"
	eventMainMessage   = "message"
	eventMainStartup   = "startup"
	errorMainListen    = "listen"
	errorMainJitter    = "jitter_alloc"
)

func main() {
	var logbackend util.Logger = &util.ConsoleLogger{}
	util.SetGlobalStandardLogger(logbackend)
	logger := util.NewGlobalModuleLogger(moduleMain, nil).(*util.ModuleLogger)

	configname := "rtspd.json"
	if len(os.Args) > 1 {
		configname = os.Args[1]
	}

	config, err := configuration.LoadConfigurationFile(configname)
	if err != nil {
		log.Fatal("Error parsing configuration: ", err)
	}

	logger.Logd(util.Dict{
		"event":       eventMainConfig,
		"listeners":   len(config.Listeners),
		"rtpportmin":  config.RtpPortMin,
		"rtpportmax":  config.RtpPortMax,
		"jitterwish":  config.JitterWish,
	})

	if config.Log != "" {
		flogger, err := util.NewFileLogger(config.Log, true)
		if err != nil {
			log.Fatal("Error opening log: ", err)
		}
		logbackend = flogger
		util.SetGlobalStandardLogger(logbackend)
	}

	registry := health.NewRegistry()

	// The handler answers every request with 200 OK, echoing CSeq. It does
	// not create or feed jitter buffers: the single demonstration buffer is
	// allocated once at startup, below, and registered with the health
	// surface.
	handler := func(conn *rtsp.Connection, msg *rtsp.Message) {
		logger.Logd(util.Dict{
			"event":   eventMainMessage,
			"remote":  conn.Peer().String(),
			"method":  msg.Method,
			"path":    msg.Path,
		})

		var extra []byte
		if msg.HaveCSeq {
			extra = append(extra, []byte(fmt.Sprintf("CSeq: %d\r\n", msg.CSeq))...)
		}
		extra = append(extra, []byte("Content-Length: 0\r\n\r\n")...)
		if err := conn.Reply(msg.ProtoMajor, msg.ProtoMinor, 200, "OK", extra); err != nil {
			logger.Logd(util.Dict{
				"event":   eventMainMessage,
				"error":   "reply_failed",
				"message": err.Error(),
			})
		}
	}

	listeners := config.Listeners
	if len(listeners) == 0 {
		listeners = []configuration.ListenerConfig{{Address: "0.0.0.0:554"}}
	}

	var sockets []*rtsp.Socket
	for _, lc := range listeners {
		var socket *rtsp.Socket
		var err error
		if lc.Cert != "" && lc.Key != "" {
			socket, err = rtsp.ListenSecure(lc.Address, lc.Cert, lc.Key, handler)
		} else {
			socket, err = rtsp.Listen(lc.Address, handler)
		}
		if err != nil {
			logger.Logd(util.Dict{
				"event":   eventMainListener,
				"error":   errorMainListen,
				"address": lc.Address,
				"message": err.Error(),
			})
			continue
		}
		logger.Logd(util.Dict{
			"event":   eventMainListener,
			"address": socket.Addr().String(),
		})
		sockets = append(sockets, socket)
	}

	demoBuffer, err := jitter.Alloc(int(config.JitterMin), int(config.JitterMax), int(config.JitterWish))
	if err != nil {
		logger.Logd(util.Dict{
			"event":   eventMainStartup,
			"error":   errorMainJitter,
			"message": err.Error(),
		})
	} else {
		demoBuffer.SetTelemetry(jitter.NewPromTelemetry("demo"))
		demoBuffer.SetLogger(logbackend)
		registry.Add("demo", demoBuffer)
	}

	if len(sockets) == 0 {
		log.Fatal("No RTSP listeners available")
	}

	if config.MetricsListen != "" {
		logger.Logd(util.Dict{
			"event":   eventMainMetrics,
			"address": config.MetricsListen,
		})
		go func() {
			if err := http.ListenAndServe(config.MetricsListen, health.NewMux(registry)); err != nil {
				logger.Logd(util.Dict{
					"event":   eventMainMetrics,
					"error":   "listen",
					"message": err.Error(),
				})
			}
		}()
	}

	select {}
}
