/*
This pkg is a system-wide configuration, no detail is too large or small,
all inclusive and nicely global. Everything here has a default and can be
overridden with a toml file, see Load.

*/
package cfg

import (
	"fmt"
	"strings"
	"time"

	"kmboard/core/eventloop"
	"kmboard/core/obs"
	"kmboard/pkg/kmeans/rpc"

	"github.com/BurntSushi/toml"
)

/*
--------------------------------------------------------------------------------
	Addresses.
--------------------------------------------------------------------------------
*/

// Local address for the RPC node that keeps boards.
var LocalAddrRPC = rpc.Addr{IP: "localhost", Port: "3500"}

// Address for the API / web server used as a user-facing interface.
var LocalAddrAPI = rpc.Addr{IP: "localhost", Port: "3501"}

/*
--------------------------------------------------------------------------------
	Boards.
--------------------------------------------------------------------------------
*/

// Speed new boards get, 1 (slowest) to rpc.MaxSpeed.
var BOARD_DEFAULT_SPEED = rpc.DefaultSpeed

// Area random blobs are placed in (their centres, specifically).
var CANVAS = obs.CanvasBounds

// Seed for random blobs made through the API, zero for a clock based one.
var API_SEED int64 = 0

// Largest blob intensity the API accepts.
var MAX_INTENSITY = obs.DefaultMaxIntensity

// Largest maxSteps the API accepts for converge, at most rpc.MaxConvergeSteps.
var MAX_CONVERGE_STEPS = rpc.MaxConvergeSteps

/*
--------------------------------------------------------------------------------
	Service.
--------------------------------------------------------------------------------
*/

// Log level, parsed by zerolog (trace, debug, info, warn, error...).
var LOG_LEVEL = "info"

var API_READ_TIMEOUT = time.Second * 5
var API_WRITE_TIMEOUT = time.Second * 5

// Config for core/eventloop/cfg.go. Speed 10 boards step once per loop, so
// TimeoutLoop is the fastest a board can step.
var ELT = eventloop.EventLoopConfig{
	LocalAddr: LocalAddrRPC.ToStr(),

	// Timeout for each loop iteration.
	TimeoutLoop: time.Millisecond * 100,

	// Each task in the event loop will be skippable such that not everything has
	// to run in each loop iteration.
	// Example:
	//	int=1 : run on each loop.
	//	int=2 : run every second loop.
	//	etc...
	TaskSkip: eventloop.EventLoopTaskSkipConfig{
		// Advance steps running boards (subject to their speed).
		Advance: 1,
		// Meta triggers polling of metadata for the logger ('L' field in
		// EventLoopConfig, data is passed to the LogMeta method).
		Meta: 50,
	},

	// Logger for the event loop. If nil, then this field is set as a
	// default logger, which writes through zerolog.
	L: nil,
}

/*
--------------------------------------------------------------------------------
	Toml override.
--------------------------------------------------------------------------------
*/

// File is the layout of a toml config file. Keys that are left out keep
// their current value.
type File struct {
	LogLevel string `toml:"log_level"`

	RPC rpc.Addr `toml:"rpc"`
	API struct {
		Addr         rpc.Addr `toml:"addr"`
		ReadTimeout  string   `toml:"read_timeout"`
		WriteTimeout string   `toml:"write_timeout"`
		Seed         int64    `toml:"seed"`

		MaxIntensity     int `toml:"max_intensity"`
		MaxConvergeSteps int `toml:"max_converge_steps"`
	} `toml:"api"`

	EventLoop struct {
		TimeoutLoop string `toml:"timeout_loop"`
		Advance     int    `toml:"advance"`
		Meta        int    `toml:"meta"`
	} `toml:"eventloop"`

	Board struct {
		DefaultSpeed int `toml:"default_speed"`
	} `toml:"board"`

	Canvas obs.Bounds `toml:"canvas"`
}

// current puts the globals of this pkg into a File.
func current() File {
	var f File
	f.LogLevel = LOG_LEVEL
	f.RPC = LocalAddrRPC
	f.API.Addr = LocalAddrAPI
	f.API.ReadTimeout = API_READ_TIMEOUT.String()
	f.API.WriteTimeout = API_WRITE_TIMEOUT.String()
	f.API.Seed = API_SEED
	f.API.MaxIntensity = MAX_INTENSITY
	f.API.MaxConvergeSteps = MAX_CONVERGE_STEPS
	f.EventLoop.TimeoutLoop = ELT.TimeoutLoop.String()
	f.EventLoop.Advance = ELT.TaskSkip.Advance
	f.EventLoop.Meta = ELT.TaskSkip.Meta
	f.Board.DefaultSpeed = BOARD_DEFAULT_SPEED
	// Decoding reuses slices it is given, so never hand it the globals.
	f.Canvas = obs.Bounds{
		Min: append([]int(nil), CANVAS.Min...),
		Max: append([]int(nil), CANVAS.Max...),
	}
	return f
}

func parseDurations(items map[string]string) (map[string]time.Duration, error) {
	res := make(map[string]time.Duration, len(items))
	for key, s := range items {
		d, err := time.ParseDuration(s)
		if err != nil {
			return nil, fmt.Errorf("cfg key '%v': %w", key, err)
		}
		res[key] = d
	}
	return res, nil
}

// Load overrides the globals in this pkg with whatever is set in the toml
// file at 'path'. Unknown keys are an error, and nothing is changed on
// errors.
func Load(path string) error {
	f := current()
	meta, err := toml.DecodeFile(path, &f)
	if err != nil {
		return fmt.Errorf("cfg file '%v': %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("cfg file '%v': unknown keys: %v", path, strings.Join(keys, ", "))
	}

	durations, err := parseDurations(map[string]string{
		"api.read_timeout":       f.API.ReadTimeout,
		"api.write_timeout":      f.API.WriteTimeout,
		"eventloop.timeout_loop": f.EventLoop.TimeoutLoop,
	})
	if err != nil {
		return err
	}
	if f.Canvas.Dim() == 0 {
		return fmt.Errorf("cfg file '%v': canvas min and max need the same length", path)
	}
	if f.API.MaxIntensity < 1 {
		return fmt.Errorf("cfg file '%v': api.max_intensity must be positive", path)
	}
	if f.API.MaxConvergeSteps < 1 || f.API.MaxConvergeSteps > rpc.MaxConvergeSteps {
		return fmt.Errorf("cfg file '%v': api.max_converge_steps must be in [1, %v]", path, rpc.MaxConvergeSteps)
	}

	LOG_LEVEL = f.LogLevel
	LocalAddrRPC = f.RPC
	LocalAddrAPI = f.API.Addr
	API_READ_TIMEOUT = durations["api.read_timeout"]
	API_WRITE_TIMEOUT = durations["api.write_timeout"]
	API_SEED = f.API.Seed
	MAX_INTENSITY = f.API.MaxIntensity
	MAX_CONVERGE_STEPS = f.API.MaxConvergeSteps
	BOARD_DEFAULT_SPEED = f.Board.DefaultSpeed
	CANVAS = f.Canvas

	ELT.LocalAddr = LocalAddrRPC.ToStr()
	ELT.TimeoutLoop = durations["eventloop.timeout_loop"]
	ELT.TaskSkip.Advance = f.EventLoop.Advance
	ELT.TaskSkip.Meta = f.EventLoop.Meta
	return nil
}
