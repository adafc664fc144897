package main

import (
	"os"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/topre-kscan/internal/activity"
	"github.com/sweeney/topre-kscan/internal/matrix"
	"github.com/sweeney/topre-kscan/internal/mqtt"
	"github.com/sweeney/topre-kscan/internal/status"
)

// device is the part of kscan.Device the control loop drives.
type device interface {
	status.Device
	SetActivity(activity.State) error
}

type changeSink interface {
	Write(matrix.Change) error
}

// loop owns everything that is not the scan itself: fan-out of key events,
// the activity monitor, remote activity commands and heartbeats.
type loop struct {
	dev        device
	publisher  mqtt.Publisher // nil when MQTT is disabled
	mqttStatus mqtt.ConnectionStatus
	sink       changeSink // nil when serial output is disabled
	tracker    *status.Tracker
	monitor    *activity.Monitor
	heartbeat  time.Duration
	now        func() time.Time
	log        *zap.SugaredLogger

	lastHeartbeat time.Time
}

func (l *loop) run(events <-chan mqtt.KeyEvent, commands <-chan string, wake <-chan struct{}, tick <-chan time.Time, sig <-chan os.Signal) error {
	l.lastHeartbeat = l.now()

	for {
		select {
		case s := <-sig:
			l.log.Infow("shutting down", "signal", s)
			l.publishStatus("SHUTDOWN", signalName(s), true)
			return nil

		case ev := <-events:
			l.handleEvent(ev)

		case payload := <-commands:
			st, err := activity.ParseState(payload)
			if err != nil {
				l.log.Warnw("ignoring activity command", "payload", payload, "error", err)
				continue
			}
			l.log.Infow("remote activity command", "state", st)
			l.setActivity(st)

		case <-wake:
			if l.monitor.Record(l.now()) {
				l.setActivity(activity.Active)
			}

		case t := <-tick:
			if st, changed := l.monitor.Check(t); changed {
				l.log.Infow("activity changed", "state", st)
				l.setActivity(st)
			}
			l.refresh()
			if l.heartbeat > 0 && t.Sub(l.lastHeartbeat) >= l.heartbeat {
				l.lastHeartbeat = t
				l.publishStatus("HEARTBEAT", "", false)
			}
		}
	}
}

func (l *loop) handleEvent(ev mqtt.KeyEvent) {
	l.log.Debugw("key", "change", ev.Change)

	if l.publisher != nil {
		if err := l.publisher.Publish(ev); err != nil {
			l.log.Warnw("publish error", "error", err)
		}
	}
	if l.sink != nil {
		if err := l.sink.Write(ev.Change); err != nil {
			l.log.Warnw("serial write error", "error", err)
		}
	}
	if l.monitor.Record(ev.Timestamp) {
		l.log.Infow("activity changed", "state", activity.Active)
		l.setActivity(activity.Active)
	}
}

func (l *loop) setActivity(s activity.State) {
	if err := l.dev.SetActivity(s); err != nil {
		l.log.Warnw("set activity", "state", s, "error", err)
	}
}

func (l *loop) refresh() {
	l.tracker.Refresh(l.dev)
	if l.mqttStatus != nil {
		l.tracker.SetMQTTConnected(l.mqttStatus.IsConnected())
	}
}

func (l *loop) publishStatus(event, reason string, retained bool) {
	if l.publisher == nil {
		return
	}
	l.refresh()
	snap := l.tracker.Snapshot()
	se := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      event,
		Reason:     reason,
		Retained:   retained,
		RawPayload: status.FormatStatusEvent(snap, event, reason),
	}
	if err := l.publisher.PublishSystem(se); err != nil {
		l.log.Warnw("failed to publish system event", "event", event, "error", err)
	}
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}
