package main

import (
	"flag"
)

type runtimeOptions struct {
	assets      string
	backend     string
	device      int
	difficulty  float64
	entrainment string
	feed        string
	cueLevel    float64
	sampleRate  int
	frameSize   int
	noTUI       bool
	verbose     bool
	listDevices bool
}

func parseFlags() runtimeOptions {
	var cfg runtimeOptions

	flag.StringVar(&cfg.assets, "assets", "", "directory of WAV session assets (empty = built-in synthesized pack)")
	flag.StringVar(&cfg.backend, "backend", "oto", "audio output backend (oto, portaudio, null)")
	flag.IntVar(&cfg.device, "device", -1, "portaudio output device index (negative = choose interactively)")
	flag.Float64Var(&cfg.difficulty, "difficulty", -1, "sensitivity scalar in [0,1] (negative = choose interactively)")
	flag.StringVar(&cfg.entrainment, "entrainment", "", "binaural entrainment preset (delta, theta, alpha, beta; empty = off)")
	flag.StringVar(&cfg.feed, "feed", "demo", "coherence feed (demo, stdin)")
	flag.Float64Var(&cfg.cueLevel, "cue-level", 0.8, "movement cue loudness in [0,1]")
	flag.IntVar(&cfg.sampleRate, "sample-rate", 44100, "output sample rate in Hz")
	flag.IntVar(&cfg.frameSize, "frame-size", 1024, "render block size in frames")
	flag.BoolVar(&cfg.noTUI, "no-tui", false, "disable the terminal monitor and interactive pickers")
	flag.BoolVar(&cfg.verbose, "verbose", false, "enable debug logging")
	flag.BoolVar(&cfg.listDevices, "list-devices", false, "print available output devices and exit")
	flag.Parse()

	return cfg
}
