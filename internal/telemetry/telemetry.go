// The MIT License (MIT)
//
// # Copyright (c) 2016 xtaci
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// Package telemetry periodically samples every pane's latency-controller
// state and appends it to a CSV log with a ticker-plus-csv.Writer loop,
// re-targeted at per-pane bitrate/lag/speed.
package telemetry

import (
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"
)

// Sample is one pane's state at a tick, sourced from the RPC layer's
// Telemetry shape so both the CSV log and the live telemetry stream read
// off the same fields.
type Sample struct {
	Pane       int
	Bitrate    float64
	LagSeconds float64
	Speed      float64
	Width      int
	Height     int
	Restarts   int
}

var csvHeader = []string{"Unix", "Pane", "Bitrate", "LagSeconds", "Speed", "Width", "Height", "Restarts"}

func (s Sample) toRow(unix int64) []string {
	return []string{
		fmt.Sprint(unix),
		fmt.Sprint(s.Pane),
		fmt.Sprint(s.Bitrate),
		fmt.Sprint(s.LagSeconds),
		fmt.Sprint(s.Speed),
		fmt.Sprint(s.Width),
		fmt.Sprint(s.Height),
		fmt.Sprint(s.Restarts),
	}
}

// Collector produces the per-pane Samples for one tick.
type Collector func() []Sample

// Logger ticks every interval seconds, appending one CSV row per pane per
// tick to path (formatted through time.Now so an operator can roll files
// by day with a pattern like "./telemetry-20060102.csv"). Returns
// immediately if path or interval is unset; runs until stop is closed.
func Logger(path string, interval int, collect Collector, stop <-chan struct{}) {
	if path == "" || interval == 0 {
		return
	}
	ticker := time.NewTicker(time.Duration(interval) * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			writeTick(path, collect())
		}
	}
}

func writeTick(path string, samples []Sample) {
	logdir, logfile := filepath.Split(path)
	f, err := os.OpenFile(logdir+time.Now().Format(logfile), os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Println("telemetry:", err)
		return
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if stat, err := f.Stat(); err == nil && stat.Size() == 0 {
		if err := w.Write(csvHeader); err != nil {
			log.Println("telemetry:", err)
		}
	}
	now := time.Now().Unix()
	for _, s := range samples {
		if err := w.Write(s.toRow(now)); err != nil {
			log.Println("telemetry:", err)
		}
	}
	w.Flush()
}
